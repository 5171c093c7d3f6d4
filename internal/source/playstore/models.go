package playstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const rpcID = "UsvDTd"

// sortNewest is the sort code the reviews RPC uses for newest-first.
const sortNewest = 2

var errNoPayload = errors.New("response has no reviews payload")

// reviewPage is one decoded page of the reviews RPC.
type reviewPage struct {
	reviews []any
	token   string
}

// buildRequest encodes the f.req form value for one page of the reviews RPC.
func buildRequest(appID string, count int, token string) (string, error) {
	tokenJSON := []byte("null")
	if token != "" {
		b, err := json.Marshal(token)
		if err != nil {
			return "", err
		}
		tokenJSON = b
	}
	idJSON, err := json.Marshal(appID)
	if err != nil {
		return "", err
	}

	inner := fmt.Sprintf(`[null,null,[2,%d,[%d,null,%s],null,[]],[%s,7]]`, sortNewest, count, tokenJSON, idJSON)
	outer, err := json.Marshal([]any{[]any{[]any{rpcID, inner, nil, "generic"}}})
	if err != nil {
		return "", err
	}
	return string(outer), nil
}

// parseResponse extracts the reviews array and continuation token from a batchexecute body.
func parseResponse(body []byte) (*reviewPage, error) {
	// Responses are prefixed with an anti-XSSI guard line.
	if i := bytes.IndexByte(body, '\n'); bytes.HasPrefix(body, []byte(")]}'")) && i >= 0 {
		body = body[i+1:]
	}
	body = bytes.TrimSpace(body)

	var envelopes []any
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	for _, e := range envelopes {
		if at(e, 0) != "wrb.fr" || at(e, 1) != rpcID {
			continue
		}
		payload, ok := at(e, 2).(string)
		if !ok {
			return &reviewPage{}, nil
		}

		var inner []any
		if err := json.Unmarshal([]byte(payload), &inner); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}

		page := &reviewPage{}
		page.reviews, _ = at(inner, 0).([]any)
		// The continuation token trails the last pagination array after the reviews.
		for i := len(inner) - 1; i >= 1 && page.token == ""; i-- {
			if arr, ok := inner[i].([]any); ok && len(arr) > 0 {
				page.token, _ = arr[len(arr)-1].(string)
			}
		}
		return page, nil
	}

	return nil, errNoPayload
}

// at walks nested JSON arrays and returns nil for any missing step.
func at(v any, path ...int) any {
	for _, idx := range path {
		arr, ok := v.([]any)
		if !ok || idx < 0 || idx >= len(arr) {
			return nil
		}
		v = arr[idx]
	}
	return v
}

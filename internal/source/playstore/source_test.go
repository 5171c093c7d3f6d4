package playstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"review_fetcher/internal/domain"
)

func newTestSource(baseURL string, maxReviews, pageSize int) *Source {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(Config{
		BaseURL:        baseURL,
		Timeout:        time.Second,
		MaxReviews:     maxReviews,
		PageSize:       pageSize,
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
	}, logger)
}

func review(i int) []any {
	return []any{
		fmt.Sprintf("gp:%d", i),
		[]any{fmt.Sprintf("user-%d", i), []any{nil, 2}},
		float64(1 + i%5),
		nil,
		fmt.Sprintf("content %d", i),
		[]any{float64(1704067200 + i), float64(0)},
	}
}

func rpcBody(t *testing.T, reviews []any, token string) string {
	t.Helper()
	var pagination any
	if token != "" {
		pagination = []any{nil, token}
	}
	inner, err := json.Marshal([]any{reviews, pagination})
	require.NoError(t, err)
	outer, err := json.Marshal([]any{
		[]any{"wrb.fr", rpcID, string(inner), nil, nil, nil, "generic"},
		[]any{"di", 42},
	})
	require.NoError(t, err)
	return ")]}'\n\n" + string(outer)
}

// requestedCount decodes the page size out of the f.req payload.
func requestedCount(t *testing.T, r *http.Request) (int, string) {
	t.Helper()
	require.NoError(t, r.ParseForm())
	var outer []any
	require.NoError(t, json.Unmarshal([]byte(r.PostForm.Get("f.req")), &outer))
	innerStr, _ := at(outer, 0, 0, 1).(string)
	var inner []any
	require.NoError(t, json.Unmarshal([]byte(innerStr), &inner))
	count, _ := at(inner, 2, 2, 0).(float64)
	token, _ := at(inner, 2, 2, 2).(string)
	return int(count), token
}

func TestFetchReviews_PagesWithToken(t *testing.T) {
	var (
		mu     sync.Mutex
		counts []int
		tokens []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_/PlayStoreUi/data/batchexecute", r.URL.Path)
		assert.Equal(t, "ja-JP", r.URL.Query().Get("hl"))
		assert.Equal(t, "jp", r.URL.Query().Get("gl"))

		count, token := requestedCount(t, r)
		mu.Lock()
		page := len(counts)
		counts = append(counts, count)
		tokens = append(tokens, token)
		mu.Unlock()

		items := make([]any, 0, count)
		for i := 0; i < count; i++ {
			items = append(items, review(page*100+i))
		}
		_, _ = w.Write([]byte(rpcBody(t, items, fmt.Sprintf("tok-%d", page+1))))
	}))
	defer srv.Close()

	reviews, err := newTestSource(srv.URL, 0, 10).FetchReviews(context.Background(), "com.example.app", "JP", 25)
	require.NoError(t, err)
	assert.Len(t, reviews, 25)
	assert.Equal(t, []int{10, 10, 5}, counts)
	assert.Equal(t, []string{"", "tok-1", "tok-2"}, tokens)

	assert.Equal(t, "user-0", reviews[0].Author)
	assert.Equal(t, "content 0", reviews[0].Content)
	assert.Equal(t, 1.0, reviews[0].Rating)
	assert.True(t, reviews[0].CreatedAt.Equal(time.Unix(1704067200, 0)))
	assert.Equal(t, time.UTC, reviews[0].CreatedAt.Location())
}

func TestFetchReviews_StopsWithoutToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(rpcBody(t, []any{review(1), review(2)}, "")))
	}))
	defer srv.Close()

	reviews, err := newTestSource(srv.URL, 0, 0).FetchReviews(context.Background(), "com.example.app", "cn", 0)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, 1, calls)
}

func TestFetchReviews_UnknownLocaleFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "en-US", r.URL.Query().Get("hl"))
		assert.Equal(t, "us", r.URL.Query().Get("gl"))
		_, _ = w.Write([]byte(rpcBody(t, nil, "")))
	}))
	defer srv.Close()

	reviews, err := newTestSource(srv.URL, 0, 0).FetchReviews(context.Background(), "com.example.app", "zz", 10)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestFetchReviews_MissingTimestampIsZero(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		broken := []any{"gp:x", []any{"nobody"}, float64(3), nil, "no date"}
		_, _ = w.Write([]byte(rpcBody(t, []any{broken}, "")))
	}))
	defer srv.Close()

	reviews, err := newTestSource(srv.URL, 0, 0).FetchReviews(context.Background(), "com.example.app", "cn", 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.True(t, reviews[0].CreatedAt.IsZero())
}

func TestFetchReviews_InvalidPackage(t *testing.T) {
	_, err := newTestSource("http://unused.invalid", 0, 0).FetchReviews(context.Background(), "123456", "cn", 10)

	var fetchErr *domain.SourceFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, domain.PlatformAndroid, fetchErr.Platform)
	assert.ErrorIs(t, err, domain.ErrInvalidExternalID)
}

func TestParseResponse_NoPayload(t *testing.T) {
	_, err := parseResponse([]byte(")]}'\n\n[[\"di\",1]]"))
	assert.ErrorIs(t, err, errNoPayload)
}

func TestNew_ClampsLimits(t *testing.T) {
	src := newTestSource("http://unused.invalid", 100000, 1000)
	assert.Equal(t, Ceiling, src.MaxReviews())
	assert.Equal(t, maxPageSize, src.pageSize)
}

package appstore

import "encoding/json"

// feedResponse represents the customer reviews RSS feed in JSON form.
type feedResponse struct {
	Feed struct {
		// Entry is an array, a single object when the page has one entry, or absent.
		Entry json.RawMessage `json:"entry"`
	} `json:"feed"`
}

type label struct {
	Label string `json:"label"`
}

type entry struct {
	ID      label  `json:"id"`
	Title   label  `json:"title"`
	Content label  `json:"content"`
	Updated label  `json:"updated"`
	Rating  *label `json:"im:rating"`
	Author  struct {
		Name label `json:"name"`
	} `json:"author"`
}

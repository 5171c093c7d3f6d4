package domain

import (
	"math"
	"time"
)

// RawReview is one record as returned by a storefront adapter.
// The platform is not part of the payload; the caller supplies it.
type RawReview struct {
	Rating    float64
	Content   string
	Author    string
	CreatedAt time.Time
}

type Review struct {
	ID         int64     `db:"id" json:"id"`
	AppID      int64     `db:"app_id" json:"app_id"`
	Platform   Platform  `db:"platform" json:"platform"`
	Rating     float64   `db:"rating" json:"rating"`
	Content    string    `db:"content" json:"content"`
	Author     string    `db:"author" json:"author"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	IngestedAt time.Time `db:"ingested_at" json:"ingested_at"`
}

// Identity is the de-duplication key of a stored review.
// CreatedAt holds unix seconds of the normalized timestamp.
type Identity struct {
	AppID     int64
	Platform  Platform
	Author    string
	CreatedAt int64
}

func NewIdentity(appID int64, platform Platform, author string, createdAt time.Time) Identity {
	return Identity{
		AppID:     appID,
		Platform:  platform,
		Author:    author,
		CreatedAt: NormalizeTime(createdAt).Unix(),
	}
}

func (r *Review) Identity() Identity {
	return NewIdentity(r.AppID, r.Platform, r.Author, r.CreatedAt)
}

type IdentitySet map[Identity]struct{}

func (s IdentitySet) Has(id Identity) bool {
	_, ok := s[id]
	return ok
}

func (s IdentitySet) Add(id Identity) {
	s[id] = struct{}{}
}

// Clone returns an independent copy so callers can extend it without touching the source set.
func (s IdentitySet) Clone() IdentitySet {
	out := make(IdentitySet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// NormalizeTime converts a source timestamp to the stored form: UTC, second precision.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// Validate reports why a raw record cannot be merged, or nil.
func (r RawReview) Validate(platform Platform) error {
	switch {
	case r.CreatedAt.IsZero():
		return &MalformedRecordError{Platform: platform, Author: r.Author, Reason: "missing created_at"}
	case math.IsNaN(r.Rating) || math.IsInf(r.Rating, 0):
		return &MalformedRecordError{Platform: platform, Author: r.Author, Reason: "rating is not a number"}
	}
	return nil
}

// MergeResult counts the outcome of merging one batch for one (app, platform) unit.
type MergeResult struct {
	Considered int `json:"considered"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Malformed  int `json:"malformed"`
	Failed     int `json:"failed"`
}

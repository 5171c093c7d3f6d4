package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAppNotFound       = errors.New("app not found")
	ErrInvalidApp        = errors.New("invalid app")
	ErrInvalidPlatform   = errors.New("invalid platform")
	ErrInvalidExternalID = errors.New("invalid external app id")
	ErrSchedulerStopped  = errors.New("scheduler stopped")
)

// SourceFetchError is a storefront failure for one app. It fails only its own unit.
type SourceFetchError struct {
	Platform   Platform
	ExternalID string
	Err        error
}

func (e *SourceFetchError) Error() string {
	return fmt.Sprintf("fetch %s reviews for %q: %v", e.Platform, e.ExternalID, e.Err)
}

func (e *SourceFetchError) Unwrap() error {
	return e.Err
}

// MalformedRecordError marks a single review that was dropped from its batch.
type MalformedRecordError struct {
	Platform Platform
	Author   string
	Reason   string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s review by %q: %s", e.Platform, e.Author, e.Reason)
}

// PersistenceError is a store failure. For inserts it covers a single record.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

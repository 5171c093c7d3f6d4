package service

import (
	"context"
	"sort"
	"sync"

	"review_fetcher/internal/domain"
)

// memReviewStore is a ReviewStore backed by a slice, enforcing identity uniqueness like the real stores.
type memReviewStore struct {
	mu      sync.Mutex
	nextID  int64
	reviews []domain.Review
}

func (m *memReviewStore) ExistingIdentities(_ context.Context, appID int64, platform domain.Platform) (domain.IdentitySet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	set := make(domain.IdentitySet)
	for i := range m.reviews {
		r := &m.reviews[i]
		if r.AppID == appID && r.Platform == platform {
			set.Add(r.Identity())
		}
	}
	return set, nil
}

func (m *memReviewStore) Insert(_ context.Context, review *domain.Review) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := review.Identity()
	for i := range m.reviews {
		if m.reviews[i].Identity() == id {
			return false, nil
		}
	}
	m.nextID++
	review.ID = m.nextID
	m.reviews = append(m.reviews, *review)
	return true, nil
}

func (m *memReviewStore) ListByApp(_ context.Context, appID int64, platform domain.Platform) ([]domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []domain.Review
	for _, r := range m.reviews {
		if r.AppID == appID && (platform == "" || r.Platform == platform) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memReviewStore) DeleteByApp(_ context.Context, appID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.reviews[:0]
	for _, r := range m.reviews {
		if r.AppID != appID {
			kept = append(kept, r)
		}
	}
	m.reviews = kept
	return nil
}

func (m *memReviewStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reviews)
}

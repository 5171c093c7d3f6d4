package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/metrics"
)

// Merger inserts fetched reviews that are not yet stored. Publisher may be nil.
type Merger struct {
	reviews   ReviewStore
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewMerger(reviews ReviewStore, publisher Publisher, logger *slog.Logger) *Merger {
	return &Merger{
		reviews:   reviews,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Merge stores every record of batch whose identity is new for (appID, platform).
// Running it twice with the same batch inserts nothing the second time.
func (m *Merger) Merge(ctx context.Context, appID int64, platform domain.Platform, batch []domain.RawReview) (domain.MergeResult, error) {
	result := domain.MergeResult{Considered: len(batch)}
	if len(batch) == 0 {
		return result, nil
	}

	logger := m.logger.With("app_id", appID, "platform", platform)

	stored, err := m.reviews.ExistingIdentities(ctx, appID, platform)
	if err != nil {
		return result, &domain.PersistenceError{Op: "load existing identities", Err: err}
	}
	seen := stored.Clone()

	for _, raw := range batch {
		if err := raw.Validate(platform); err != nil {
			logger.Warn("dropping malformed review", "error", err)
			result.Malformed++
			continue
		}

		review := &domain.Review{
			AppID:      appID,
			Platform:   platform,
			Rating:     raw.Rating,
			Content:    raw.Content,
			Author:     raw.Author,
			CreatedAt:  domain.NormalizeTime(raw.CreatedAt),
			IngestedAt: m.now().UTC(),
		}
		id := review.Identity()
		if seen.Has(id) {
			result.Duplicates++
			continue
		}

		inserted, err := m.reviews.Insert(ctx, review)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return result, fmt.Errorf("merge interrupted: %w", err)
			}
			logger.Error("failed to insert review",
				"author", review.Author,
				"created_at", review.CreatedAt,
				"error", &domain.PersistenceError{Op: "insert review", Err: err},
			)
			result.Failed++
			continue
		}
		seen.Add(id)

		if !inserted {
			result.Duplicates++
			continue
		}
		result.Inserted++

		if m.publisher != nil {
			if err := m.publisher.Publish(ctx, review); err != nil {
				logger.Warn("failed to publish review", "review_id", review.ID, "error", err)
			}
		}
	}

	p := string(platform)
	metrics.AddReviews(p, "inserted", result.Inserted)
	metrics.AddReviews(p, "duplicate", result.Duplicates)
	metrics.AddReviews(p, "malformed", result.Malformed)
	metrics.AddReviews(p, "failed", result.Failed)

	logger.Debug("batch merged",
		"considered", result.Considered,
		"inserted", result.Inserted,
		"duplicates", result.Duplicates,
		"malformed", result.Malformed,
		"failed", result.Failed,
	)

	return result, nil
}

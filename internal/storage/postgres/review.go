package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"review_fetcher/internal/domain"
)

type ReviewStore struct {
	db *sqlx.DB
}

func NewReviewStore(db *sqlx.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) ExistingIdentities(ctx context.Context, appID int64, platform domain.Platform) (domain.IdentitySet, error) {
	query := `SELECT author, created_at FROM reviews WHERE app_id = $1 AND platform = $2`

	rows, err := GetExecutor(ctx, s.db).QueryxContext(ctx, query, appID, platform)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(domain.IdentitySet)
	for rows.Next() {
		var author string
		var createdAt time.Time
		if err := rows.Scan(&author, &createdAt); err != nil {
			return nil, err
		}
		set.Add(domain.NewIdentity(appID, platform, author, createdAt))
	}

	return set, rows.Err()
}

// Insert relies on the identity constraint; a conflicting row leaves the table untouched.
func (s *ReviewStore) Insert(ctx context.Context, review *domain.Review) (bool, error) {
	query := `
		INSERT INTO reviews (app_id, platform, rating, content, author, created_at, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (app_id, platform, author, created_at) DO NOTHING
		RETURNING id`

	ingestedAt := review.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	var id int64
	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		review.AppID,
		review.Platform,
		review.Rating,
		review.Content,
		review.Author,
		domain.NormalizeTime(review.CreatedAt),
		ingestedAt,
	).Scan(&id)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	review.ID = id
	review.IngestedAt = ingestedAt
	return true, nil
}

func (s *ReviewStore) ListByApp(ctx context.Context, appID int64, platform domain.Platform) ([]domain.Review, error) {
	platforms := []string{string(platform)}
	if platform == "" {
		platforms = []string{string(domain.PlatformIOS), string(domain.PlatformAndroid)}
	}

	query := `
		SELECT id, app_id, platform, rating, content, author, created_at, ingested_at
		FROM reviews
		WHERE app_id = $1 AND platform = ANY($2)
		ORDER BY created_at DESC, id DESC`

	var reviews []domain.Review
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &reviews, query, appID, pq.Array(platforms)); err != nil {
		return nil, err
	}
	for i := range reviews {
		reviews[i].CreatedAt = reviews[i].CreatedAt.UTC()
	}
	return reviews, nil
}

func (s *ReviewStore) DeleteByApp(ctx context.Context, appID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM reviews WHERE app_id = $1`, appID)
	return err
}

package sqlite

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"review_fetcher/internal/domain"
)

type reviewRow struct {
	ID         int64           `db:"id"`
	AppID      int64           `db:"app_id"`
	Platform   domain.Platform `db:"platform"`
	Rating     float64         `db:"rating"`
	Content    string          `db:"content"`
	Author     string          `db:"author"`
	CreatedAt  int64           `db:"created_at"`
	IngestedAt int64           `db:"ingested_at"`
}

type ReviewStore struct {
	db *sqlx.DB
}

func NewReviewStore(db *sqlx.DB) *ReviewStore {
	return &ReviewStore{db: db}
}

func (s *ReviewStore) ExistingIdentities(ctx context.Context, appID int64, platform domain.Platform) (domain.IdentitySet, error) {
	rows, err := executor(ctx, s.db).QueryxContext(ctx,
		`SELECT author, created_at FROM reviews WHERE app_id = ? AND platform = ?`,
		appID, string(platform),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(domain.IdentitySet)
	for rows.Next() {
		var author string
		var createdAt int64
		if err := rows.Scan(&author, &createdAt); err != nil {
			return nil, err
		}
		set.Add(domain.Identity{AppID: appID, Platform: platform, Author: author, CreatedAt: createdAt})
	}
	return set, rows.Err()
}

func (s *ReviewStore) Insert(ctx context.Context, review *domain.Review) (bool, error) {
	ingestedAt := review.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}
	createdAt := domain.NormalizeTime(review.CreatedAt)

	res, err := executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO reviews (app_id, platform, rating, content, author, created_at, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (app_id, platform, author, created_at) DO NOTHING`,
		review.AppID, string(review.Platform), review.Rating, review.Content, review.Author,
		createdAt.Unix(), ingestedAt.Unix(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	id, err := res.LastInsertId()
	if err != nil {
		return false, err
	}
	review.ID = id
	review.CreatedAt = createdAt
	review.IngestedAt = ingestedAt
	return true, nil
}

func (s *ReviewStore) ListByApp(ctx context.Context, appID int64, platform domain.Platform) ([]domain.Review, error) {
	query := `
		SELECT id, app_id, platform, rating, content, author, created_at, ingested_at
		FROM reviews
		WHERE app_id = ? AND (? = '' OR platform = ?)
		ORDER BY created_at DESC, id DESC`

	var rows []reviewRow
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, query, appID, string(platform), string(platform)); err != nil {
		return nil, err
	}

	reviews := make([]domain.Review, len(rows))
	for i, r := range rows {
		reviews[i] = domain.Review{
			ID:         r.ID,
			AppID:      r.AppID,
			Platform:   r.Platform,
			Rating:     r.Rating,
			Content:    r.Content,
			Author:     r.Author,
			CreatedAt:  time.Unix(r.CreatedAt, 0).UTC(),
			IngestedAt: time.Unix(r.IngestedAt, 0).UTC(),
		}
	}
	return reviews, nil
}

func (s *ReviewStore) DeleteByApp(ctx context.Context, appID int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx, `DELETE FROM reviews WHERE app_id = ?`, appID)
	return err
}

package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"review_fetcher/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, appID int64, platform domain.Platform) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT app_id, platform, last_synced_at, last_inserted, total_inserted, last_error, updated_at
		FROM sync_state
		WHERE app_id = $1 AND platform = $2`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &state, query, appID, platform)
	if errors.Is(err, sql.ErrNoRows) {
		// Units that never ran start from an empty state
		return &domain.SyncState{AppID: appID, Platform: platform}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (app_id, platform, last_synced_at, last_inserted, total_inserted, last_error, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (app_id, platform) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_inserted = EXCLUDED.last_inserted,
			total_inserted = EXCLUDED.total_inserted,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query,
		state.AppID,
		state.Platform,
		state.LastSyncedAt,
		state.LastInserted,
		state.TotalInserted,
		state.LastError,
	)
	return err
}

func (s *SyncStateStore) ListByApp(ctx context.Context, appID int64) ([]domain.SyncState, error) {
	query := `
		SELECT app_id, platform, last_synced_at, last_inserted, total_inserted, last_error, updated_at
		FROM sync_state
		WHERE app_id = $1
		ORDER BY platform`

	var states []domain.SyncState
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &states, query, appID); err != nil {
		return nil, err
	}
	return states, nil
}

func (s *SyncStateStore) DeleteByApp(ctx context.Context, appID int64) error {
	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM sync_state WHERE app_id = $1`, appID)
	return err
}

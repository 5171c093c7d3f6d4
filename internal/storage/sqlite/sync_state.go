package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"review_fetcher/internal/domain"
)

type syncStateRow struct {
	AppID         int64           `db:"app_id"`
	Platform      domain.Platform `db:"platform"`
	LastSyncedAt  sql.NullInt64   `db:"last_synced_at"`
	LastInserted  int64           `db:"last_inserted"`
	TotalInserted int64           `db:"total_inserted"`
	LastError     sql.NullString  `db:"last_error"`
	UpdatedAt     int64           `db:"updated_at"`
}

func (r syncStateRow) toDomain() domain.SyncState {
	state := domain.SyncState{
		AppID:         r.AppID,
		Platform:      r.Platform,
		LastInserted:  r.LastInserted,
		TotalInserted: r.TotalInserted,
		UpdatedAt:     time.Unix(r.UpdatedAt, 0).UTC(),
	}
	if r.LastSyncedAt.Valid {
		state.LastSyncedAt = domain.Ptr(time.Unix(r.LastSyncedAt.Int64, 0).UTC())
	}
	if r.LastError.Valid {
		state.LastError = domain.Ptr(r.LastError.String)
	}
	return state
}

const syncStateColumns = `app_id, platform, last_synced_at, last_inserted, total_inserted, last_error, updated_at`

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, appID int64, platform domain.Platform) (*domain.SyncState, error) {
	var row syncStateRow
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &row,
		`SELECT `+syncStateColumns+` FROM sync_state WHERE app_id = ? AND platform = ?`,
		appID, string(platform),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SyncState{AppID: appID, Platform: platform}, nil
	}
	if err != nil {
		return nil, err
	}
	state := row.toDomain()
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	var lastSynced any
	if state.LastSyncedAt != nil {
		lastSynced = state.LastSyncedAt.Unix()
	}

	_, err := executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO sync_state (app_id, platform, last_synced_at, last_inserted, total_inserted, last_error, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (app_id, platform) DO UPDATE SET
			last_synced_at = excluded.last_synced_at,
			last_inserted = excluded.last_inserted,
			total_inserted = excluded.total_inserted,
			last_error = excluded.last_error,
			updated_at = excluded.updated_at`,
		state.AppID, string(state.Platform), lastSynced, state.LastInserted, state.TotalInserted,
		nullable(state.LastError), time.Now().Unix(),
	)
	return err
}

func (s *SyncStateStore) ListByApp(ctx context.Context, appID int64) ([]domain.SyncState, error) {
	var rows []syncStateRow
	err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows,
		`SELECT `+syncStateColumns+` FROM sync_state WHERE app_id = ? ORDER BY platform`, appID)
	if err != nil {
		return nil, err
	}
	states := make([]domain.SyncState, len(rows))
	for i, r := range rows {
		states[i] = r.toDomain()
	}
	return states, nil
}

func (s *SyncStateStore) DeleteByApp(ctx context.Context, appID int64) error {
	_, err := executor(ctx, s.db).ExecContext(ctx, `DELETE FROM sync_state WHERE app_id = ?`, appID)
	return err
}

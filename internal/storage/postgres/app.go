package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"review_fetcher/internal/domain"
)

const appColumns = `id, name, platform, app_store_id, play_store_id, app_store_country, play_store_country, created_at, updated_at`

type AppStore struct {
	db *sqlx.DB
}

func NewAppStore(db *sqlx.DB) *AppStore {
	return &AppStore{db: db}
}

func (s *AppStore) List(ctx context.Context) ([]domain.TrackedApp, error) {
	var apps []domain.TrackedApp
	err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &apps, `SELECT `+appColumns+` FROM apps ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *AppStore) GetByID(ctx context.Context, id int64) (*domain.TrackedApp, error) {
	var app domain.TrackedApp
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &app, `SELECT `+appColumns+` FROM apps WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	return &app, nil
}

func (s *AppStore) Create(ctx context.Context, app *domain.TrackedApp) error {
	query := `
		INSERT INTO apps (name, platform, app_store_id, play_store_id, app_store_country, play_store_country)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	return GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		app.Name,
		app.Platform,
		app.StoreIDIOS,
		app.StoreIDAndroid,
		app.LocaleIOS,
		app.LocaleAndroid,
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
}

func (s *AppStore) Update(ctx context.Context, app *domain.TrackedApp) error {
	query := `
		UPDATE apps SET
			name = $2,
			platform = $3,
			app_store_id = $4,
			play_store_id = $5,
			app_store_country = $6,
			play_store_country = $7,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		app.ID,
		app.Name,
		app.Platform,
		app.StoreIDIOS,
		app.StoreIDAndroid,
		app.LocaleIOS,
		app.LocaleAndroid,
	).Scan(&app.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAppNotFound
	}
	return err
}

func (s *AppStore) Delete(ctx context.Context, id int64) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAppNotFound
	}
	return nil
}

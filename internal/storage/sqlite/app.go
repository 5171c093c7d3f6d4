package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"review_fetcher/internal/domain"
)

type appRow struct {
	ID             int64              `db:"id"`
	Name           string             `db:"name"`
	Platform       domain.AppPlatform `db:"platform"`
	StoreIDIOS     *string            `db:"app_store_id"`
	StoreIDAndroid *string            `db:"play_store_id"`
	LocaleIOS      string             `db:"app_store_country"`
	LocaleAndroid  string             `db:"play_store_country"`
	CreatedAt      int64              `db:"created_at"`
	UpdatedAt      int64              `db:"updated_at"`
}

func (r appRow) toDomain() domain.TrackedApp {
	return domain.TrackedApp{
		ID:             r.ID,
		Name:           r.Name,
		Platform:       r.Platform,
		StoreIDIOS:     r.StoreIDIOS,
		StoreIDAndroid: r.StoreIDAndroid,
		LocaleIOS:      r.LocaleIOS,
		LocaleAndroid:  r.LocaleAndroid,
		CreatedAt:      time.Unix(r.CreatedAt, 0).UTC(),
		UpdatedAt:      time.Unix(r.UpdatedAt, 0).UTC(),
	}
}

const appColumns = `id, name, platform, app_store_id, play_store_id, app_store_country, play_store_country, created_at, updated_at`

type AppStore struct {
	db *sqlx.DB
}

func NewAppStore(db *sqlx.DB) *AppStore {
	return &AppStore{db: db}
}

func (s *AppStore) List(ctx context.Context) ([]domain.TrackedApp, error) {
	var rows []appRow
	if err := sqlx.SelectContext(ctx, executor(ctx, s.db), &rows, `SELECT `+appColumns+` FROM apps ORDER BY id`); err != nil {
		return nil, err
	}
	apps := make([]domain.TrackedApp, len(rows))
	for i, r := range rows {
		apps[i] = r.toDomain()
	}
	return apps, nil
}

func (s *AppStore) GetByID(ctx context.Context, id int64) (*domain.TrackedApp, error) {
	var row appRow
	err := sqlx.GetContext(ctx, executor(ctx, s.db), &row, `SELECT `+appColumns+` FROM apps WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAppNotFound
	}
	if err != nil {
		return nil, err
	}
	app := row.toDomain()
	return &app, nil
}

func (s *AppStore) Create(ctx context.Context, app *domain.TrackedApp) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := executor(ctx, s.db).ExecContext(ctx, `
		INSERT INTO apps (name, platform, app_store_id, play_store_id, app_store_country, play_store_country, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		app.Name, string(app.Platform), nullable(app.StoreIDIOS), nullable(app.StoreIDAndroid), app.LocaleIOS, app.LocaleAndroid, now.Unix(), now.Unix(),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	app.ID = id
	app.CreatedAt = now
	app.UpdatedAt = now
	return nil
}

func (s *AppStore) Update(ctx context.Context, app *domain.TrackedApp) error {
	now := time.Now().UTC().Truncate(time.Second)
	res, err := executor(ctx, s.db).ExecContext(ctx, `
		UPDATE apps SET
			name = ?, platform = ?, app_store_id = ?, play_store_id = ?,
			app_store_country = ?, play_store_country = ?, updated_at = ?
		WHERE id = ?`,
		app.Name, string(app.Platform), nullable(app.StoreIDIOS), nullable(app.StoreIDAndroid), app.LocaleIOS, app.LocaleAndroid, now.Unix(), app.ID,
	)
	if err != nil {
		return err
	}
	if err := expectRow(res); err != nil {
		return err
	}
	app.UpdatedAt = now
	return nil
}

func (s *AppStore) Delete(ctx context.Context, id int64) error {
	res, err := executor(ctx, s.db).ExecContext(ctx, `DELETE FROM apps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(res)
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAppNotFound
	}
	return nil
}

// nullable unwraps optional text into a value the driver binds directly.
func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

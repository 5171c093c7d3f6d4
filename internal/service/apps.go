package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"review_fetcher/internal/domain"
)

// AppService manages tracked apps and read access to their reviews.
type AppService struct {
	apps      AppStore
	reviews   ReviewStore
	syncState SyncStateStore
	txManager TransactionManager
	logger    *slog.Logger
}

func NewAppService(
	apps AppStore,
	reviews ReviewStore,
	syncState SyncStateStore,
	txManager TransactionManager,
	logger *slog.Logger,
) *AppService {
	return &AppService{
		apps:      apps,
		reviews:   reviews,
		syncState: syncState,
		txManager: txManager,
		logger:    logger,
	}
}

func (s *AppService) Create(ctx context.Context, in domain.NewApp) (*domain.TrackedApp, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	app := &domain.TrackedApp{
		Name:          strings.TrimSpace(in.Name),
		Platform:      in.Platform,
		LocaleIOS:     strings.ToLower(strings.TrimSpace(in.LocaleIOS)),
		LocaleAndroid: strings.ToLower(strings.TrimSpace(in.LocaleAndroid)),
	}
	domain.AppUpdate{StoreIDIOS: in.StoreIDIOS, StoreIDAndroid: in.StoreIDAndroid}.Apply(app)

	if err := s.apps.Create(ctx, app); err != nil {
		return nil, fmt.Errorf("create app: %w", err)
	}

	s.logger.Info("app created", "app_id", app.ID, "name", app.Name, "platform", app.Platform)
	return app, nil
}

func (s *AppService) List(ctx context.Context) ([]domain.TrackedApp, error) {
	return s.apps.List(ctx)
}

func (s *AppService) Get(ctx context.Context, id int64) (*domain.TrackedApp, error) {
	return s.apps.GetByID(ctx, id)
}

func (s *AppService) Update(ctx context.Context, id int64, upd domain.AppUpdate) (*domain.TrackedApp, error) {
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	app, err := s.apps.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	upd.Apply(app)

	if err := s.apps.Update(ctx, app); err != nil {
		return nil, fmt.Errorf("update app: %w", err)
	}

	s.logger.Info("app updated", "app_id", app.ID)
	return app, nil
}

// Delete removes the app together with its reviews and sync state.
func (s *AppService) Delete(ctx context.Context, id int64) error {
	if _, err := s.apps.GetByID(ctx, id); err != nil {
		return err
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.reviews.DeleteByApp(txCtx, id); err != nil {
			return fmt.Errorf("delete reviews: %w", err)
		}
		if err := s.syncState.DeleteByApp(txCtx, id); err != nil {
			return fmt.Errorf("delete sync state: %w", err)
		}
		if err := s.apps.Delete(txCtx, id); err != nil {
			return fmt.Errorf("delete app: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("app deleted", "app_id", id)
	return nil
}

// Reviews lists stored reviews newest first. An empty platform means both.
func (s *AppService) Reviews(ctx context.Context, id int64, platform domain.Platform) ([]domain.Review, error) {
	if _, err := s.apps.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.reviews.ListByApp(ctx, id, platform)
}

func (s *AppService) SyncStates(ctx context.Context, id int64) ([]domain.SyncState, error) {
	if _, err := s.apps.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.syncState.ListByApp(ctx, id)
}

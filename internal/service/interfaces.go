package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"review_fetcher/internal/domain"
)

type AppStore interface {
	List(ctx context.Context) ([]domain.TrackedApp, error)
	GetByID(ctx context.Context, id int64) (*domain.TrackedApp, error)
	Create(ctx context.Context, app *domain.TrackedApp) error
	Update(ctx context.Context, app *domain.TrackedApp) error
	Delete(ctx context.Context, id int64) error
}

type ReviewStore interface {
	// ExistingIdentities loads every stored identity for one (app, platform) pair.
	ExistingIdentities(ctx context.Context, appID int64, platform domain.Platform) (domain.IdentitySet, error)
	// Insert stores review and reports false when the identity already exists.
	Insert(ctx context.Context, review *domain.Review) (bool, error)
	ListByApp(ctx context.Context, appID int64, platform domain.Platform) ([]domain.Review, error)
	DeleteByApp(ctx context.Context, appID int64) error
}

type SyncStateStore interface {
	Get(ctx context.Context, appID int64, platform domain.Platform) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
	ListByApp(ctx context.Context, appID int64) ([]domain.SyncState, error)
	DeleteByApp(ctx context.Context, appID int64) error
}

type ReviewSource interface {
	Platform() domain.Platform
	MaxReviews() int
	FetchReviews(ctx context.Context, externalID, locale string, limit int) ([]domain.RawReview, error)
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, review *domain.Review) error
	Close() error
}

package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"

	"review_fetcher/internal/domain"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx context.Context
	db  *sqlx.DB

	apps    *AppStore
	reviews *ReviewStore
	states  *SyncStateStore
	tx      *TransactionManager
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()

	db, err := Open(s.ctx, ":memory:")
	s.Require().NoError(err)
	s.db = db

	s.apps = NewAppStore(db)
	s.reviews = NewReviewStore(db)
	s.states = NewSyncStateStore(db)
	s.tx = NewTransactionManager(db)
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.db.Close()
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) createApp() *domain.TrackedApp {
	app := &domain.TrackedApp{
		Name:          "Weather",
		Platform:      domain.AppPlatformIOS,
		StoreIDIOS:    domain.Ptr("123456"),
		LocaleIOS:     "us",
		LocaleAndroid: "cn",
	}
	s.Require().NoError(s.apps.Create(s.ctx, app))
	return app
}

func (s *SQLiteStoreSuite) TestAppStore_RoundTrip() {
	app := s.createApp()
	s.Equal(int64(1), app.ID)

	got, err := s.apps.GetByID(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Equal("Weather", got.Name)
	s.Equal(domain.AppPlatformIOS, got.Platform)
	s.Equal("123456", got.StoreID(domain.PlatformIOS))
	s.Nil(got.StoreIDAndroid)
	s.Equal("us", got.LocaleIOS)

	got.StoreIDAndroid = domain.Ptr("com.example.weather")
	got.Platform = domain.AppPlatformBoth
	s.Require().NoError(s.apps.Update(s.ctx, got))

	list, err := s.apps.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("com.example.weather", list[0].StoreID(domain.PlatformAndroid))
	s.Equal(domain.AppPlatformBoth, list[0].Platform)
}

func (s *SQLiteStoreSuite) TestAppStore_NotFound() {
	_, err := s.apps.GetByID(s.ctx, 77)
	s.ErrorIs(err, domain.ErrAppNotFound)
	s.ErrorIs(s.apps.Update(s.ctx, &domain.TrackedApp{ID: 77}), domain.ErrAppNotFound)
	s.ErrorIs(s.apps.Delete(s.ctx, 77), domain.ErrAppNotFound)
}

func (s *SQLiteStoreSuite) TestReviewStore_InsertIsIdempotent() {
	app := s.createApp()
	createdAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	review := &domain.Review{AppID: app.ID, Platform: domain.PlatformIOS, Rating: 5, Author: "alice", CreatedAt: createdAt}
	inserted, err := s.reviews.Insert(s.ctx, review)
	s.Require().NoError(err)
	s.True(inserted)
	s.Greater(review.ID, int64(0))

	dup := &domain.Review{AppID: app.ID, Platform: domain.PlatformIOS, Rating: 1, Author: "alice", CreatedAt: createdAt.Add(900 * time.Millisecond)}
	inserted, err = s.reviews.Insert(s.ctx, dup)
	s.Require().NoError(err)
	s.False(inserted)

	list, err := s.reviews.ListByApp(s.ctx, app.ID, "")
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(5.0, list[0].Rating)
	s.True(list[0].CreatedAt.Equal(createdAt))
}

func (s *SQLiteStoreSuite) TestReviewStore_IdentitiesArePerPlatform() {
	app := s.createApp()
	createdAt := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

	for _, p := range domain.Platforms {
		_, err := s.reviews.Insert(s.ctx, &domain.Review{AppID: app.ID, Platform: p, Author: "alice", CreatedAt: createdAt})
		s.Require().NoError(err)
	}

	set, err := s.reviews.ExistingIdentities(s.ctx, app.ID, domain.PlatformAndroid)
	s.Require().NoError(err)
	s.Len(set, 1)
	s.True(set.Has(domain.NewIdentity(app.ID, domain.PlatformAndroid, "alice", createdAt)))

	android, err := s.reviews.ListByApp(s.ctx, app.ID, domain.PlatformAndroid)
	s.Require().NoError(err)
	s.Len(android, 1)
}

func (s *SQLiteStoreSuite) TestSyncStateStore() {
	app := s.createApp()

	state, err := s.states.Get(s.ctx, app.ID, domain.PlatformIOS)
	s.Require().NoError(err)
	s.Nil(state.LastSyncedAt)

	now := time.Now().UTC().Truncate(time.Second)
	state.LastSyncedAt = &now
	state.LastInserted = 4
	state.TotalInserted = 4
	s.Require().NoError(s.states.Update(s.ctx, state))

	state.LastError = domain.Ptr("timeout")
	s.Require().NoError(s.states.Update(s.ctx, state))

	got, err := s.states.Get(s.ctx, app.ID, domain.PlatformIOS)
	s.Require().NoError(err)
	s.Equal(int64(4), got.TotalInserted)
	s.Require().NotNil(got.LastSyncedAt)
	s.True(got.LastSyncedAt.Equal(now))
	s.Require().NotNil(got.LastError)
	s.Equal("timeout", *got.LastError)

	list, err := s.states.ListByApp(s.ctx, app.ID)
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *SQLiteStoreSuite) TestTransaction_RollbackKeepsRows() {
	app := s.createApp()
	_, err := s.reviews.Insert(s.ctx, &domain.Review{AppID: app.ID, Platform: domain.PlatformIOS, Author: "alice", CreatedAt: time.Now()})
	s.Require().NoError(err)

	err = s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := s.reviews.DeleteByApp(ctx, app.ID); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Error(err)

	list, err := s.reviews.ListByApp(s.ctx, app.ID, "")
	s.Require().NoError(err)
	s.Len(list, 1)
}

func (s *SQLiteStoreSuite) TestTransaction_CascadeDelete() {
	app := s.createApp()
	_, err := s.reviews.Insert(s.ctx, &domain.Review{AppID: app.ID, Platform: domain.PlatformIOS, Author: "alice", CreatedAt: time.Now()})
	s.Require().NoError(err)
	s.Require().NoError(s.states.Update(s.ctx, &domain.SyncState{AppID: app.ID, Platform: domain.PlatformIOS}))

	err = s.tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if err := s.reviews.DeleteByApp(ctx, app.ID); err != nil {
			return err
		}
		if err := s.states.DeleteByApp(ctx, app.ID); err != nil {
			return err
		}
		return s.apps.Delete(ctx, app.ID)
	})
	s.Require().NoError(err)

	apps, err := s.apps.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(apps)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/service/mocks"
)

const (
	iosMax     = 50
	androidMax = 100
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	apps      *mocks.MockAppStore
	ios       *mocks.MockReviewSource
	android   *mocks.MockReviewSource
	syncState *mocks.MockSyncStateStore
	reviews   *memReviewStore

	service *SyncService
	logger  *slog.Logger
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.apps = mocks.NewMockAppStore(s.ctrl)
	s.ios = mocks.NewMockReviewSource(s.ctrl)
	s.android = mocks.NewMockReviewSource(s.ctrl)
	s.syncState = mocks.NewMockSyncStateStore(s.ctrl)
	s.reviews = &memReviewStore{}

	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.ios.EXPECT().Platform().Return(domain.PlatformIOS).AnyTimes()
	s.ios.EXPECT().MaxReviews().Return(iosMax).AnyTimes()
	s.android.EXPECT().Platform().Return(domain.PlatformAndroid).AnyTimes()
	s.android.EXPECT().MaxReviews().Return(androidMax).AnyTimes()

	s.service = NewSyncService(
		s.apps,
		[]ReviewSource{s.ios, s.android},
		NewMerger(s.reviews, nil, s.logger),
		s.syncState,
		s.logger,
	)
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) allowSyncState() {
	s.syncState.EXPECT().Get(gomock.Any(), gomock.Any(), gomock.Any()).Return(&domain.SyncState{}, nil).AnyTimes()
	s.syncState.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func rawReviews(n int, author string) []domain.RawReview {
	out := make([]domain.RawReview, n)
	for i := range out {
		out[i] = domain.RawReview{
			Rating:    float64(1 + i%5),
			Content:   fmt.Sprintf("review %d", i),
			Author:    author,
			CreatedAt: t1.Add(time.Duration(i) * time.Minute),
		}
	}
	return out
}

func iosApp(id int64, storeID string) domain.TrackedApp {
	return domain.TrackedApp{ID: id, Name: fmt.Sprintf("app-%d", id), Platform: domain.AppPlatformIOS, StoreIDIOS: &storeID, LocaleIOS: "us"}
}

func (s *SyncServiceTestSuite) TestRun_FailureIsolatedToUnit() {
	ctx := context.Background()
	s.allowSyncState()

	apps := []domain.TrackedApp{iosApp(1, "111"), iosApp(2, "222"), iosApp(3, "333")}
	s.apps.EXPECT().List(ctx).Return(apps, nil)

	s.ios.EXPECT().FetchReviews(ctx, "111", "us", iosMax).Return(rawReviews(3, "a"), nil)
	s.ios.EXPECT().FetchReviews(ctx, "222", "us", iosMax).Return(nil, &domain.SourceFetchError{
		Platform: domain.PlatformIOS, ExternalID: "222", Err: errors.New("status 503"),
	})
	s.ios.EXPECT().FetchReviews(ctx, "333", "us", iosMax).Return(rawReviews(2, "c"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{Trigger: domain.TriggerFull})

	s.Require().NoError(err)
	s.Len(summary.Units, 3)
	s.Equal(2, summary.Succeeded())
	s.Equal(1, summary.Failed())
	s.Equal(5, summary.Inserted())
	s.NotEmpty(summary.RunID)

	failed := summary.Units[1]
	s.Equal(int64(2), failed.AppID)
	s.Equal(domain.UnitFailed, failed.Status)
	var fetchErr *domain.SourceFetchError
	s.True(errors.As(failed.Err, &fetchErr))
}

func (s *SyncServiceTestSuite) TestRun_LimitBelowSourceMax() {
	ctx := context.Background()
	s.allowSyncState()

	app := iosApp(1, "111")
	s.apps.EXPECT().GetByID(ctx, int64(1)).Return(&app, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", 10).Return(rawReviews(10, "a"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{AppID: domain.Ptr(int64(1)), Limit: 10})

	s.Require().NoError(err)
	s.Equal(10, summary.Units[0].Fetched)
	s.Equal(10, summary.Inserted())
}

func (s *SyncServiceTestSuite) TestRun_LimitAboveSourceMaxIsCapped() {
	ctx := context.Background()
	s.allowSyncState()

	app := iosApp(1, "111")
	s.apps.EXPECT().GetByID(ctx, int64(1)).Return(&app, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", iosMax).Return(rawReviews(iosMax, "a"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{AppID: domain.Ptr(int64(1)), Limit: 5000})

	s.Require().NoError(err)
	s.Equal(iosMax, summary.Inserted())
}

func (s *SyncServiceTestSuite) TestRun_TrimsOverReturnedBatch() {
	ctx := context.Background()
	s.allowSyncState()

	app := iosApp(1, "111")
	s.apps.EXPECT().GetByID(ctx, int64(1)).Return(&app, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", 10).Return(rawReviews(25, "a"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{AppID: domain.Ptr(int64(1)), Limit: 10})

	s.Require().NoError(err)
	s.Equal(10, summary.Units[0].Fetched)
	s.Equal(10, summary.Units[0].Merge.Considered)
	s.Equal(10, s.reviews.count())
}

func (s *SyncServiceTestSuite) TestRun_PlatformFilter() {
	ctx := context.Background()
	s.allowSyncState()

	app := domain.TrackedApp{
		ID:             1,
		Name:           "both",
		Platform:       domain.AppPlatformBoth,
		StoreIDIOS:     domain.Ptr("111"),
		StoreIDAndroid: domain.Ptr("com.example.app"),
	}
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", domain.DefaultLocale, iosMax).Return(rawReviews(2, "a"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{Platform: domain.PlatformIOS})

	s.Require().NoError(err)
	s.Require().Len(summary.Units, 1)
	s.Equal(domain.PlatformIOS, summary.Units[0].Platform)
}

func (s *SyncServiceTestSuite) TestRun_BothPlatforms() {
	ctx := context.Background()
	s.allowSyncState()

	app := domain.TrackedApp{
		ID:             1,
		Name:           "both",
		Platform:       domain.AppPlatformBoth,
		StoreIDIOS:     domain.Ptr("111"),
		StoreIDAndroid: domain.Ptr("com.example.app"),
		LocaleIOS:      "jp",
		LocaleAndroid:  "kr",
	}
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "jp", iosMax).Return(rawReviews(2, "a"), nil)
	s.android.EXPECT().FetchReviews(ctx, "com.example.app", "kr", androidMax).Return(rawReviews(2, "a"), nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{})

	s.Require().NoError(err)
	s.Equal(2, summary.Succeeded())
	s.Equal(4, summary.Inserted())
	s.Equal(domain.TriggerManual, summary.Request.Trigger)
}

func (s *SyncServiceTestSuite) TestRun_MissingStoreIDSkips() {
	ctx := context.Background()

	app := domain.TrackedApp{ID: 1, Name: "no ids", Platform: domain.AppPlatformBoth, StoreIDIOS: domain.Ptr("  ")}
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{})

	s.Require().NoError(err)
	s.Equal(2, summary.Skipped())
	s.Zero(summary.Failed())
}

func (s *SyncServiceTestSuite) TestRun_AppNotFound() {
	ctx := context.Background()
	s.apps.EXPECT().GetByID(ctx, int64(99)).Return(nil, domain.ErrAppNotFound)

	summary, err := s.service.Run(ctx, domain.SyncRequest{AppID: domain.Ptr(int64(99))})

	s.Nil(summary)
	s.ErrorIs(err, domain.ErrAppNotFound)
}

func (s *SyncServiceTestSuite) TestRun_SecondRunInsertsNothing() {
	ctx := context.Background()
	s.allowSyncState()

	app := iosApp(1, "111")
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil).Times(2)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", iosMax).Return(rawReviews(5, "a"), nil).Times(2)

	first, err := s.service.Run(ctx, domain.SyncRequest{})
	s.Require().NoError(err)
	second, err := s.service.Run(ctx, domain.SyncRequest{})
	s.Require().NoError(err)

	s.Equal(5, first.Inserted())
	s.Equal(0, second.Inserted())
	s.Equal(5, second.Duplicates())
	s.Equal(5, s.reviews.count())
}

func (s *SyncServiceTestSuite) TestRun_RecordsSyncState() {
	ctx := context.Background()

	app := iosApp(1, "111")
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", iosMax).Return(rawReviews(3, "a"), nil)

	s.syncState.EXPECT().Get(ctx, int64(1), domain.PlatformIOS).Return(&domain.SyncState{TotalInserted: 10}, nil)
	s.syncState.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(
		func(_ context.Context, state *domain.SyncState) error {
			s.Equal(int64(1), state.AppID)
			s.Equal(domain.PlatformIOS, state.Platform)
			s.Equal(int64(3), state.LastInserted)
			s.Equal(int64(13), state.TotalInserted)
			s.NotNil(state.LastSyncedAt)
			s.Nil(state.LastError)
			return nil
		},
	)

	_, err := s.service.Run(ctx, domain.SyncRequest{})
	s.NoError(err)
}

func (s *SyncServiceTestSuite) TestRun_SyncStateFailureIsLoggedOnly() {
	ctx := context.Background()

	app := iosApp(1, "111")
	s.apps.EXPECT().List(ctx).Return([]domain.TrackedApp{app}, nil)
	s.ios.EXPECT().FetchReviews(ctx, "111", "us", iosMax).Return(rawReviews(1, "a"), nil)
	s.syncState.EXPECT().Get(ctx, int64(1), domain.PlatformIOS).Return(nil, errors.New("db gone"))

	summary, err := s.service.Run(ctx, domain.SyncRequest{})

	s.NoError(err)
	s.Equal(1, summary.Succeeded())
}

func (s *SyncServiceTestSuite) TestRun_CancelledContextFailsRemainingUnits() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	apps := []domain.TrackedApp{iosApp(1, "111"), iosApp(2, "222")}
	s.apps.EXPECT().List(ctx).Return(apps, nil)

	summary, err := s.service.Run(ctx, domain.SyncRequest{})

	s.Require().NoError(err)
	s.Equal(2, summary.Failed())
	for _, u := range summary.Units {
		s.ErrorIs(u.Err, context.Canceled)
	}
}

func TestEffectiveLimit(t *testing.T) {
	cases := []struct {
		limit, max, want int
	}{
		{0, 500, 500},
		{-1, 500, 500},
		{10, 500, 10},
		{500, 500, 500},
		{7001, 7000, 7000},
	}
	for _, c := range cases {
		if got := EffectiveLimit(c.limit, c.max); got != c.want {
			t.Errorf("EffectiveLimit(%d, %d) = %d, want %d", c.limit, c.max, got, c.want)
		}
	}
}

package playstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/source/fetch"
)

const (
	SourceID   = "play_store"
	SourceName = "Google Play"

	Ceiling     = 7000
	maxPageSize = 199
)

var packageName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)+$`)

// locales maps the configured country to the (gl, hl) pair Google Play expects.
var locales = map[string][2]string{
	"cn": {"cn", "zh-CN"},
	"us": {"us", "en-US"},
	"jp": {"jp", "ja-JP"},
	"kr": {"kr", "ko-KR"},
	"hk": {"hk", "zh-HK"},
	"tw": {"tw", "zh-TW"},
	"sg": {"sg", "en-SG"},
	"my": {"my", "ms-MY"},
	"id": {"id", "id-ID"},
	"ph": {"ph", "en-PH"},
	"mm": {"mm", "my-MM"},
	"th": {"th", "th-TH"},
	"vn": {"vn", "vi-VN"},
}

// Config holds Google Play source configuration.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxReviews     int
	PageSize       int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RPS            float64
	Burst          int
}

// Source fetches reviews through the Play Store web reviews RPC.
type Source struct {
	client     *fetch.Client
	baseURL    string
	maxReviews int
	pageSize   int
	logger     *slog.Logger
}

// New creates a new Google Play source.
func New(cfg Config, logger *slog.Logger) *Source {
	logger = logger.With("source", SourceID)
	maxReviews := cfg.MaxReviews
	if maxReviews <= 0 || maxReviews > Ceiling {
		maxReviews = Ceiling
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return &Source{
		client: fetch.New(fetch.Config{
			Name:           SourceID,
			UserAgent:      cfg.UserAgent,
			Timeout:        cfg.Timeout,
			MaxAttempts:    cfg.MaxAttempts,
			InitialBackoff: cfg.InitialBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			RPS:            cfg.RPS,
			Burst:          cfg.Burst,
		}, logger),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxReviews: maxReviews,
		pageSize:   pageSize,
		logger:     logger,
	}
}

func (s *Source) Name() string {
	return SourceName
}

func (s *Source) Platform() domain.Platform {
	return domain.PlatformAndroid
}

func (s *Source) MaxReviews() int {
	return s.maxReviews
}

// FetchReviews pages through newest-first reviews until limit is reached or the feed ends.
func (s *Source) FetchReviews(ctx context.Context, externalID, locale string, limit int) ([]domain.RawReview, error) {
	if !packageName.MatchString(externalID) {
		return nil, s.fail(externalID, domain.ErrInvalidExternalID)
	}
	if limit <= 0 || limit > s.maxReviews {
		limit = s.maxReviews
	}
	gl, hl := resolveLocale(locale)

	var (
		reviews []domain.RawReview
		token   string
	)
	for pageNum := 1; len(reviews) < limit; pageNum++ {
		count := min(s.pageSize, limit-len(reviews))

		page, err := s.fetchPage(ctx, externalID, gl, hl, count, token)
		if err != nil {
			return nil, s.fail(externalID, fmt.Errorf("fetch page %d: %w", pageNum, err))
		}

		pageReviews := s.transform(page.reviews)
		reviews = append(reviews, pageReviews...)

		s.logger.Debug("fetched page",
			"play_store_id", externalID,
			"page", pageNum,
			"reviews", len(pageReviews),
			"total", len(reviews),
		)

		if page.token == "" || len(page.reviews) == 0 {
			break
		}
		token = page.token
	}

	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

func (s *Source) fetchPage(ctx context.Context, appID, gl, hl string, count int, token string) (*reviewPage, error) {
	freq, err := buildRequest(appID, count, token)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/_/PlayStoreUi/data/batchexecute?hl=%s&gl=%s",
		s.baseURL, url.QueryEscape(hl), url.QueryEscape(gl))
	form := url.Values{"f.req": {freq}}.Encode()

	body, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=UTF-8")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	return parseResponse(body)
}

func (s *Source) transform(items []any) []domain.RawReview {
	reviews := make([]domain.RawReview, 0, len(items))

	for _, item := range items {
		rating, ok := at(item, 2).(float64)
		if !ok {
			s.logger.Warn("review without score", "review_id", at(item, 0))
			continue
		}
		author, _ := at(item, 1, 0).(string)
		content, _ := at(item, 4).(string)

		// Missing timestamps stay zero; the merge step drops them as malformed.
		var createdAt time.Time
		if secs, ok := at(item, 5, 0).(float64); ok && secs > 0 {
			createdAt = time.Unix(int64(secs), 0).UTC()
		}

		reviews = append(reviews, domain.RawReview{
			Rating:    rating,
			Content:   content,
			Author:    author,
			CreatedAt: createdAt,
		})
	}

	return reviews
}

func (s *Source) fail(externalID string, err error) error {
	s.logger.Error("failed to fetch reviews", "play_store_id", externalID, "error", err)
	return &domain.SourceFetchError{Platform: domain.PlatformAndroid, ExternalID: externalID, Err: err}
}

func resolveLocale(country string) (gl, hl string) {
	if l, ok := locales[strings.ToLower(strings.TrimSpace(country))]; ok {
		return l[0], l[1]
	}
	return "us", "en-US"
}

package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"review_fetcher/internal/domain"
	"review_fetcher/internal/source/fetch"
)

const (
	SourceID   = "app_store"
	SourceName = "Apple App Store"

	// The feed serves at most 10 pages of 50 entries.
	pageSize = 50
	maxPages = 10
	Ceiling  = pageSize * maxPages
)

// Config holds App Store source configuration.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxReviews     int
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	RPS            float64
	Burst          int
}

// Source fetches reviews from the App Store customer reviews feed.
type Source struct {
	client     *fetch.Client
	baseURL    string
	maxReviews int
	logger     *slog.Logger
}

// New creates a new App Store source.
func New(cfg Config, logger *slog.Logger) *Source {
	logger = logger.With("source", SourceID)
	maxReviews := cfg.MaxReviews
	if maxReviews <= 0 || maxReviews > Ceiling {
		maxReviews = Ceiling
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
		logger:     logger,
	}
}

func (s *Source) Name() string {
	return SourceName
}

func (s *Source) Platform() domain.Platform {
	return domain.PlatformIOS
}

// MaxReviews is the most reviews a single fetch will return.
func (s *Source) MaxReviews() int {
	return s.maxReviews
}

// FetchReviews fetches up to limit most-recent reviews for the numeric App Store id.
func (s *Source) FetchReviews(ctx context.Context, externalID, locale string, limit int) ([]domain.RawReview, error) {
	if !isNumeric(externalID) {
		return nil, s.fail(externalID, domain.ErrInvalidExternalID)
	}
	if limit <= 0 || limit > s.maxReviews {
		limit = s.maxReviews
	}
	country := strings.ToLower(strings.TrimSpace(locale))
	if country == "" {
		country = domain.DefaultLocale
	}

	var reviews []domain.RawReview
	for page := 1; page <= maxPages && len(reviews) < limit; page++ {
		entries, err := s.fetchPage(ctx, externalID, country, page)
		if err != nil {
			return nil, s.fail(externalID, fmt.Errorf("fetch page %d: %w", page, err))
		}

		pageReviews := s.transform(entries)
		reviews = append(reviews, pageReviews...)

		s.logger.Debug("fetched page",
			"app_store_id", externalID,
			"page", page,
			"reviews", len(pageReviews),
			"total", len(reviews),
		)

		if len(entries) == 0 {
			break
		}
	}

	if len(reviews) > limit {
		reviews = reviews[:limit]
	}
	return reviews, nil
}

func (s *Source) fetchPage(ctx context.Context, id, country string, page int) ([]entry, error) {
	pageURL := fmt.Sprintf("%s/%s/rss/customerreviews/page=%d/id=%s/sortby=mostrecent/json",
		s.baseURL, url.PathEscape(country), page, id)

	body, err := s.client.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var resp feedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw := bytes.TrimSpace(resp.Feed.Entry)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return nil, nil
	case raw[0] == '{':
		var single entry
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("decode entry: %w", err)
		}
		return []entry{single}, nil
	default:
		var entries []entry
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("decode entries: %w", err)
		}
		return entries, nil
	}
}

func (s *Source) transform(entries []entry) []domain.RawReview {
	reviews := make([]domain.RawReview, 0, len(entries))

	for _, e := range entries {
		// The first entry of older feeds describes the app itself.
		if e.Rating == nil {
			continue
		}

		rating, err := strconv.ParseFloat(strings.TrimSpace(e.Rating.Label), 64)
		if err != nil {
			s.logger.Warn("failed to parse rating",
				"review_id", e.ID.Label,
				"rating", e.Rating.Label,
			)
			continue
		}

		// Unparseable timestamps stay zero; the merge step drops them as malformed.
		createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Updated.Label))
		if err != nil {
			s.logger.Debug("failed to parse date",
				"review_id", e.ID.Label,
				"date", e.Updated.Label,
			)
			createdAt = time.Time{}
		}

		reviews = append(reviews, domain.RawReview{
			Rating:    rating,
			Content:   e.Content.Label,
			Author:    e.Author.Name.Label,
			CreatedAt: createdAt,
		})
	}

	return reviews
}

func (s *Source) fail(externalID string, err error) error {
	s.logger.Error("failed to fetch reviews", "app_store_id", externalID, "error", err)
	return &domain.SourceFetchError{Platform: domain.PlatformIOS, ExternalID: externalID, Err: err}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

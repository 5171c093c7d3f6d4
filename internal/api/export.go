package api

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"review_fetcher/internal/domain"
)

const (
	utf8BOM         = "\ufeff"
	exportTimestamp = "2006-01-02 15:04:05"
)

var exportHeader = []string{"ID", "Platform", "Rating", "Content", "Author", "CreatedAt"}

var platformLabels = map[domain.Platform]string{
	domain.PlatformIOS:     "App Store",
	domain.PlatformAndroid: "Google Play",
}

// HandleExportReviews streams every stored review of an app as CSV.
// The body starts with a UTF-8 BOM.
func (h *Handler) HandleExportReviews(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	app, err := h.apps.Get(r.Context(), id)
	if err != nil {
		return err
	}
	reviews, err := h.apps.Reviews(r.Context(), id, "")
	if err != nil {
		return err
	}

	filename := url.PathEscape(fmt.Sprintf("%s_reviews_%s.csv", app.Name, time.Now().UTC().Format("20060102150405")))
	w.Header().Set(headerContentType, contentTypeCSV)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`, filename, filename))
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte(utf8BOM)); err != nil {
		return err
	}
	if err := writeReviewsCSV(w, reviews); err != nil {
		h.logger.Error("failed to write export", "app_id", id, "error", err)
	}
	return nil
}

func writeReviewsCSV(w io.Writer, reviews []domain.Review) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}
	for _, rv := range reviews {
		label, ok := platformLabels[rv.Platform]
		if !ok {
			label = string(rv.Platform)
		}
		record := []string{
			strconv.FormatInt(rv.ID, 10),
			label,
			strconv.FormatFloat(rv.Rating, 'f', -1, 64),
			rv.Content,
			rv.Author,
			rv.CreatedAt.UTC().Format(exportTimestamp),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

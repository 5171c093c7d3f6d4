package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"review_fetcher/internal/domain"
)

type AppService interface {
	Create(ctx context.Context, in domain.NewApp) (*domain.TrackedApp, error)
	List(ctx context.Context) ([]domain.TrackedApp, error)
	Get(ctx context.Context, id int64) (*domain.TrackedApp, error)
	Update(ctx context.Context, id int64, upd domain.AppUpdate) (*domain.TrackedApp, error)
	Delete(ctx context.Context, id int64) error
	Reviews(ctx context.Context, id int64, platform domain.Platform) ([]domain.Review, error)
	SyncStates(ctx context.Context, id int64) ([]domain.SyncState, error)
}

// SyncTrigger starts runs without waiting for them.
type SyncTrigger interface {
	StartFullSync(appID *int64, platform domain.Platform) error
	StartIncrementalSync(appID int64, limit int) error
}

type Handler struct {
	apps    AppService
	trigger SyncTrigger
	logger  *slog.Logger
}

func NewHandler(apps AppService, trigger SyncTrigger, logger *slog.Logger) *Handler {
	return &Handler{apps: apps, trigger: trigger, logger: logger}
}

type acceptedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) error {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	return nil
}

func (h *Handler) HandleListApps(w http.ResponseWriter, r *http.Request) error {
	apps, err := h.apps.List(r.Context())
	if err != nil {
		return ErrInternalServerWrap("list apps", err)
	}
	if apps == nil {
		apps = []domain.TrackedApp{}
	}
	respondJSON(w, http.StatusOK, apps)
	return nil
}

func (h *Handler) HandleCreateApp(w http.ResponseWriter, r *http.Request) error {
	var in domain.NewApp
	if err := decodeStrict(r, &in); err != nil {
		return err
	}

	app, err := h.apps.Create(r.Context(), in)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusCreated, app)
	return nil
}

func (h *Handler) HandleGetApp(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	app, err := h.apps.Get(r.Context(), id)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, app)
	return nil
}

func (h *Handler) HandleUpdateApp(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	var upd domain.AppUpdate
	if err := decodeStrict(r, &upd); err != nil {
		return err
	}

	app, err := h.apps.Update(r.Context(), id, upd)
	if err != nil {
		return err
	}
	respondJSON(w, http.StatusOK, app)
	return nil
}

func (h *Handler) HandleDeleteApp(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	if err := h.apps.Delete(r.Context(), id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (h *Handler) HandleListReviews(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	platform, err := platformQuery(r)
	if err != nil {
		return err
	}

	reviews, err := h.apps.Reviews(r.Context(), id, platform)
	if err != nil {
		return err
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	respondJSON(w, http.StatusOK, reviews)
	return nil
}

func (h *Handler) HandleSyncState(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	states, err := h.apps.SyncStates(r.Context(), id)
	if err != nil {
		return err
	}
	if states == nil {
		states = []domain.SyncState{}
	}
	respondJSON(w, http.StatusOK, states)
	return nil
}

// HandleRefreshApp starts an incremental sync for one app.
func (h *Handler) HandleRefreshApp(w http.ResponseWriter, r *http.Request) error {
	id, err := appIDParam(r)
	if err != nil {
		return err
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return ErrBadRequest("limit must be a positive integer")
		}
	}

	if _, err := h.apps.Get(r.Context(), id); err != nil {
		return err
	}
	if err := h.trigger.StartIncrementalSync(id, limit); err != nil {
		return err
	}

	respondJSON(w, http.StatusAccepted, acceptedResponse{
		Status:  "accepted",
		Message: fmt.Sprintf("incremental sync started for app %d", id),
	})
	return nil
}

// HandleStartSync starts a full sync, optionally scoped by app_id and platform.
func (h *Handler) HandleStartSync(w http.ResponseWriter, r *http.Request) error {
	var appID *int64
	if raw := r.URL.Query().Get("app_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return ErrBadRequest("app_id must be a positive integer")
		}
		if _, err := h.apps.Get(r.Context(), id); err != nil {
			return err
		}
		appID = &id
	}
	platform, err := platformQuery(r)
	if err != nil {
		return err
	}

	if err := h.trigger.StartFullSync(appID, platform); err != nil {
		return err
	}

	respondJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", Message: "full sync started"})
	return nil
}

func appIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, paramID), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadRequest("invalid app id")
	}
	return id, nil
}

func platformQuery(r *http.Request) (domain.Platform, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("platform"))
	if raw == "" {
		return "", nil
	}
	p, err := domain.ParsePlatform(raw)
	if err != nil {
		return "", ErrBadRequestWrap("platform must be ios or android", err)
	}
	return p, nil
}

// decodeStrict rejects unknown fields so typos in updates fail loudly.
func decodeStrict(r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return ErrBadRequestWrap("invalid request payload: "+err.Error(), err)
	}
	return nil
}

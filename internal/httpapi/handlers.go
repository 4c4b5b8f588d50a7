package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"inkshelf.org/api/spec"
	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
	"inkshelf.org/internal/obs"
	"inkshelf.org/internal/stream"
)

// ReadyProbe reports readiness, typically by pinging the database.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the moderation and content services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	moderation *moderation.Service
	content    *content.Service
	events     *stream.Stream
}

func New(mod *moderation.Service, cont *content.Service, events *stream.Stream, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		moderation: mod,
		content:    cont,
		events:     events,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// demo token issuance
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// public + authenticated content surface
	a.mux.HandleFunc("/v1/recommendations", a.handleRecommendationsCollection)
	a.mux.HandleFunc("/v1/recommendations/", a.handleRecommendationResource)
	a.mux.HandleFunc("/v1/reports", a.handleReports)
	a.mux.HandleFunc("/v1/appeals", a.handleAppeals)
	a.mux.HandleFunc("/v1/news", a.handleNewsCollection)
	a.mux.HandleFunc("/v1/news/", a.handleNewsResource)
	a.mux.HandleFunc("/v1/notifications", a.handleNotifications)
	a.mux.HandleFunc("/v1/notifications/read-all", a.handleNotificationsReadAll)
	a.mux.HandleFunc("/v1/notifications/", a.handleNotificationResource)

	// moderator/admin surface
	protect := RequireRole("moderator", "admin")
	a.mux.Handle("/v1/admin/recommendations", protect(http.HandlerFunc(a.handleAdminRecommendations)))
	a.mux.Handle("/v1/admin/recommendations/", protect(http.HandlerFunc(a.handleAdminRecommendationResource)))
	a.mux.Handle("/v1/admin/users", protect(http.HandlerFunc(a.handleAdminUsers)))
	a.mux.Handle("/v1/admin/users/", protect(http.HandlerFunc(a.handleAdminUserResource)))
	a.mux.Handle("/v1/admin/reports", protect(http.HandlerFunc(a.handleAdminReports)))
	a.mux.Handle("/v1/admin/reports/", protect(http.HandlerFunc(a.handleAdminReportResource)))
	a.mux.Handle("/v1/admin/reviews/", protect(http.HandlerFunc(a.handleAdminReviewResource)))
	a.mux.Handle("/v1/admin/logs", protect(http.HandlerFunc(a.handleAdminLogs)))
	a.mux.Handle("/v1/admin/news", protect(http.HandlerFunc(a.handleAdminNewsCollection)))
	a.mux.Handle("/v1/admin/news/", protect(http.HandlerFunc(a.handleAdminNewsResource)))
	a.mux.Handle("/v1/admin/stream", protect(http.HandlerFunc(a.Stream)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "inkshelf-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "inkshelf-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError maps the domain error taxonomy to HTTP status codes.
// This is the only place wire codes are decided.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, catalog.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, catalog.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "insufficient privileges")
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, catalog.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func queryInt(r *http.Request, key string, def, min, max int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < min || v > max {
		return def
	}
	return v
}

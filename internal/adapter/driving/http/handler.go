package httphandler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/keylens/keylens/internal/application"
	"github.com/keylens/keylens/internal/domain/port/driven"
)

// UserSourceFactory builds a CredentialSource that enumerates with the
// calling user's access, derived from their bearer token.
type UserSourceFactory func(userAssertion string) (driven.CredentialSource, error)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	aggregator *application.Aggregator
	scanSvc    *application.ScanService
	store      driven.NotificationStore
	universal  []driven.CredentialSource
	catalog    []driven.CredentialSource
	userSource UserSourceFactory
	audience   string
	scope      string
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. universal
// holds the sources every request can use as-is; userSource (may be nil)
// adds a per-request source bound to the caller's token; catalog is the
// full set of sources to describe on the sources route, including ones
// only instantiable per request.
func NewHandler(
	aggregator *application.Aggregator,
	scanSvc *application.ScanService,
	store driven.NotificationStore,
	universal []driven.CredentialSource,
	catalog []driven.CredentialSource,
	userSource UserSourceFactory,
	audience string,
	scope string,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		aggregator: aggregator,
		scanSvc:    scanSvc,
		store:      store,
		universal:  universal,
		catalog:    catalog,
		userSource: userSource,
		audience:   audience,
		scope:      scope,
		logger:     logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware. Routes that act on credential data
// additionally require a bearer token.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	auth := &bearerValidator{audience: h.audience}
	mux := http.NewServeMux()

	mux.Handle("GET /api/v1/credentials", authMiddleware(auth, http.HandlerFunc(h.ListCredentials)))
	mux.Handle("GET /api/v1/notifications", authMiddleware(auth, http.HandlerFunc(h.ListNotifications)))
	mux.Handle("POST /api/v1/scan", authMiddleware(auth, http.HandlerFunc(h.TriggerScan)))
	mux.HandleFunc("GET /api/v1/config", h.GetConfig)
	mux.HandleFunc("GET /api/v1/sources", h.ListSources)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListCredentials collects from every reachable source on the caller's
// behalf and returns the merged, deduplicated, expiry-sorted roster.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	sources := make([]driven.CredentialSource, 0, len(h.universal)+1)
	sources = append(sources, h.universal...)

	if h.userSource != nil {
		src, err := h.userSource(bearerToken(r.Context()))
		if err != nil {
			h.logger.Error("failed to build on-behalf-of source", "error", err)
			writeError(w, http.StatusUnauthorized, "token exchange rejected")
			return
		}
		sources = append(sources, src)
	}

	records, err := h.aggregator.Collect(r.Context(), sources, application.ContentIdentity)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusGatewayTimeout, "credential collection timed out")
		case errors.Is(err, context.Canceled):
			writeError(w, http.StatusServiceUnavailable, "credential collection cancelled")
		default:
			h.logger.Error("failed to collect credentials", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	resp := make([]CredentialResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toCredentialResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListNotifications returns recently delivered expiry notices, newest first.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list notifications", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]NotificationResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toNotificationResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// TriggerScan runs one scan cycle outside the regular interval and reports
// its summary once it completes.
func (h *Handler) TriggerScan(w http.ResponseWriter, r *http.Request) {
	if err := h.scanSvc.TriggerScan(r.Context()); err != nil {
		h.logger.Error("manual scan failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "scan did not complete")
		return
	}

	_, last := h.scanSvc.State()
	writeJSON(w, http.StatusOK, ScanResponse{
		Status:    "completed",
		LastCycle: toCycleSummaryResponse(last),
	})
}

// GetConfig returns the public client configuration. Unauthenticated: a
// client needs it to acquire the very token the other routes require.
func (h *Handler) GetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ConfigResponse{
		Audience: h.audience,
		Scope:    h.scope,
	})
}

// ListSources describes the configured credential sources and the
// permissions each needs.
func (h *Handler) ListSources(w http.ResponseWriter, _ *http.Request) {
	resp := make([]SourceResponse, 0, len(h.catalog))
	for _, src := range h.catalog {
		resp = append(resp, SourceResponse{
			Name:                src.Name(),
			RequiredPermissions: src.RequiredPermissions(),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health returns service liveness plus the scan loop's current phase and
// last completed cycle.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	state, last := h.scanSvc.State()

	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Time:      time.Now().UTC().Format(time.RFC3339),
		ScanState: string(state),
		LastCycle: toCycleSummaryResponse(last),
	})
}

package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"brandkit/internal/api"
	"brandkit/internal/config"
	"brandkit/internal/logging"
	"brandkit/internal/platform"
	"brandkit/internal/preflight"
	"brandkit/internal/services"
)

// longPollTimeout bounds follow requests so they finish inside the server's
// write timeout.
const longPollTimeout = 25 * time.Second

type apiServer struct {
	bind    string
	cfg     *config.Config
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.API.Bind),
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	token := cfg.API.Token
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/ready", srv.handleReady)
	mux.HandleFunc("GET /api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("GET /api/platforms", authMiddleware(token, srv.handlePlatforms))
	mux.HandleFunc("GET /api/logs", authMiddleware(token, srv.handleLogs))

	mux.HandleFunc("POST /api/brands", authMiddleware(token, srv.handleExtract))
	mux.HandleFunc("GET /api/brands", authMiddleware(token, srv.handleListBrands))
	mux.HandleFunc("GET /api/brands/{id}", authMiddleware(token, srv.handleGetBrand))
	mux.HandleFunc("POST /api/brands/{id}/extract", authMiddleware(token, srv.handleRetryExtraction))
	mux.HandleFunc("DELETE /api/brands/{id}/extraction", authMiddleware(token, srv.handleCancelExtraction))
	mux.HandleFunc("POST /api/brands/{id}/confirm", authMiddleware(token, srv.handleConfirm))
	mux.HandleFunc("GET /api/brands/{id}/events", authMiddleware(token, srv.handleEvents))
	mux.HandleFunc("POST /api/brands/{id}/logo", authMiddleware(token, srv.handleUploadLogo))
	mux.HandleFunc("GET /api/brands/{id}/guide", authMiddleware(token, srv.handleGuide))

	mux.HandleFunc("POST /api/generations", authMiddleware(token, srv.handleGenerate))
	mux.HandleFunc("GET /api/assets", authMiddleware(token, srv.handleListAssets))
	mux.HandleFunc("GET /api/assets/{id}", authMiddleware(token, srv.handleGetAsset))
	mux.HandleFunc("GET /api/assets/{id}/file", authMiddleware(token, srv.handleAssetFile))
	mux.HandleFunc("GET /api/assets/{id}/download", authMiddleware(token, srv.handleDownload))
	mux.HandleFunc("GET /api/assets/{id}/variants/{format}/{quality}", authMiddleware(token, srv.handleVariant))

	srv.handler = requestIDMiddleware(mux)
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	s.mu.Lock()
	server, listener := s.server, s.listener
	s.server, s.listener = nil, nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleReady(w http.ResponseWriter, r *http.Request) {
	var failed []preflight.Result
	if err := s.daemon.deps.Store.Ping(r.Context()); err != nil {
		failed = append(failed, preflight.Result{Name: "Database", Detail: err.Error()})
	}
	statuses := preflight.CheckVideoDeps(s.cfg)
	if !preflight.VideoReady(statuses) {
		for _, st := range statuses {
			if !st.Available {
				failed = append(failed, preflight.Result{Name: st.Name, Detail: st.Detail})
			}
		}
	}
	if len(failed) > 0 {
		s.writeJSON(w, http.StatusServiceUnavailable, api.ReadyResponse{Ready: false, Failed: failed})
		return
	}
	s.writeJSON(w, http.StatusOK, api.ReadyResponse{Ready: true})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	payload := api.DaemonStatus{
		Running:           status.Running,
		PID:               status.PID,
		DatabasePath:      status.DatabasePath,
		LockFilePath:      status.LockFilePath,
		ActiveExtractions: status.ActiveExtractions,
		CacheBytes:        status.CacheBytes,
		Preflight:         status.Preflight,
	}
	if payload.ActiveExtractions == nil {
		payload.ActiveExtractions = []string{}
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
		payload.UptimeSeconds = int64(time.Since(status.StartedAt).Seconds())
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handlePlatforms(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, api.PlatformListResponse{Platforms: api.FromPlatforms(platform.All())})
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	hub := s.daemon.deps.LogHub
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []logging.LogEvent{}, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := queryFlag(query.Get("follow"))
	tail := queryFlag(query.Get("tail"))
	component := strings.TrimSpace(query.Get("component"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = hub.Tail(limit)
	} else {
		ctx := r.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, longPollTimeout)
			defer cancel()
		}
		var err error
		events, next, err = hub.Fetch(ctx, since, limit, follow)
		if err != nil && !isContextDone(err) {
			s.writeError(w, http.StatusInternalServerError, services.KindInternal, err.Error())
			return
		}
		if next < since {
			next = since
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		filtered = append(filtered, evt)
	}
	s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: filtered, Next: next})
}

func queryFlag(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func isContextDone(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// statusForError maps an error kind onto an HTTP status.
func statusForError(err error) int {
	switch services.Kind(err) {
	case services.ErrValidation.Kind(), services.ErrUnsupportedFormat.Kind(), services.ErrMissingLogo.Kind():
		return http.StatusBadRequest
	case services.ErrNotFound.Kind():
		return http.StatusNotFound
	case services.ErrAlreadyInProgress.Kind():
		return http.StatusConflict
	case services.ErrProvider.Kind(), services.ErrUnreachable.Kind(), services.ErrBlocked.Kind():
		return http.StatusBadGateway
	case services.ErrTimeout.Kind():
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusForError(err)
	kind := services.Kind(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.String(logging.FieldErrorKind, kind),
			logging.Error(err),
		)
	}
	s.writeError(w, status, kind, services.Message(err))
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, kind, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: api.ErrorBody{Kind: kind, Message: message}})
}

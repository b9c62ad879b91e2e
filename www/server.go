package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/entsoe-go/config"
	"github.com/angas/entsoe-go/database"
	"github.com/angas/entsoe-go/host"
	"github.com/angas/entsoe-go/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// LogReader is the part of the database the log endpoint reads.
type LogReader interface {
	GetLogEntries(ctx context.Context, minLvl slog.Level, page, pageSize int) ([]database.LogEntryRow, error)
}

// ReloadFunc unloads and sets up a config entry again.
type ReloadFunc func(ctx context.Context, entryID string) error

type Server struct {
	logger *slog.Logger
	config config.AppConfigApi
	host   *host.Host
	logs   LogReader
	reload ReloadFunc
	prices PriceSourceFunc
	hub    *Hub
	router *chi.Mux
}

func NewServer(h *host.Host, logs LogReader, reload ReloadFunc, prices PriceSourceFunc, config config.AppConfigApi) *Server {
	logger := slog.Default().With("module", "www")
	s := &Server{
		logger: logger,
		config: config,
		host:   h,
		logs:   logs,
		reload: reload,
		prices: prices,
		hub:    NewHub(logger),
		router: chi.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)

	r.Get("/api/states", NewStatesHandler(s.host.States))
	r.Get("/api/states/{entityID}", NewStateHandler(s.host.States))
	r.Get("/api/registry", NewRegistryHandler(s.logger, s.host.Registry))
	r.Post("/api/entries/{entryID}/reload", NewReloadHandler(s.logger, s.reload))
	r.Get("/api/entries/{entryID}/chart", NewChartHandler(s.logger, s.prices))
	r.Get("/api/log", NewLogHandler(s.logger, s.logs))
	r.Get("/ws", s.serveWebSocket)
	r.Handle("/metrics", metrics.Handler())
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("url", r.URL.String()),
			slog.String("remoteAddr", r.RemoteAddr))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	name := r.Header.Get("User-Agent")
	client, err := NewClient(s.hub, w, r, name, r.URL.Query().Get("prefix"))
	if err != nil {
		s.logger.Error("new websocket client failed", slog.Any("error", err))
		return
	}
	if !s.hub.Register(client) {
		client.conn.Close()
		return
	}
	go client.WritePump()
	go client.ReadPump()
}

// Run serves HTTP and streams state changes to websocket clients until ctx
// is done.
func (s *Server) Run(ctx context.Context) {
	s.logger.Info("starting server...", slog.String("address", s.config.Address), slog.Int("port", int(s.config.Port)))
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.config.Address, s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.hub.Run(ctx.Done())

	unsubscribe := s.host.States.Subscribe(func(ev host.StateChangedEvent) {
		payload, err := json.Marshal(stateChange{EntityID: ev.EntityID, OldState: ev.Old, NewState: ev.New})
		if err != nil {
			s.logger.Warn("failed to encode state change", slog.String("entity_id", ev.EntityID), slog.Any("error", err))
			return
		}
		select {
		case s.hub.Broadcast <- stateMessage{entityID: ev.EntityID, payload: payload}:
		default:
			s.logger.Warn("websocket broadcast queue full, dropping state", slog.String("entity_id", ev.EntityID))
		}
	})
	defer unsubscribe()

	srvErrors := make(chan error, 1)
	go func() {
		srvErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-srvErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("server error", slog.Any("error", err))
		}

	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
		}
	}
}

type stateChange struct {
	EntityID string      `json:"entity_id"`
	OldState *host.State `json:"old_state"`
	NewState *host.State `json:"new_state"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

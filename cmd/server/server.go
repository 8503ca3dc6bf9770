package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"impostor"
	"impostor/internal/config"
	"impostor/internal/game"
	"impostor/internal/handlers"
	"impostor/internal/scheduler"
	"impostor/internal/store"
)

// Server owns the HTTP listener and the background work behind it.
type Server struct {
	cfg     *config.ServerConfig
	store   *store.MemoryStore
	handler *handlers.Handler
	sched   *scheduler.TimerScheduler
	http    *http.Server
}

// SetupServer wires the catalog, registry, scheduler and router together.
func SetupServer(cfg *config.ServerConfig) (*Server, error) {
	catalog, err := game.NewCatalog(impostor.CategoriesYAML)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}

	s := store.NewMemoryStore(game.RoomDeps{
		Catalog: catalog,
		Rules:   cfg.Rules(),
	}, store.Options{
		CodeLength:      cfg.Game.RoomCodeLength,
		StaleRoomAge:    cfg.Game.StaleRoomAge,
		DisconnectGrace: cfg.Game.DisconnectGrace,
		LocalSessionTTL: cfg.Game.LocalSessionTTL,
		RoomSettings:    cfg.RoomSettings(),
	})

	sched := scheduler.New()
	h := handlers.New(s, catalog, cfg, sched)
	router := handlers.SetupRouter(h, cfg, nil)

	log.Info().Int("categories", catalog.Len()).Msg("category catalog loaded")

	return &Server{
		cfg:     cfg,
		store:   s,
		handler: h,
		sched:   sched,
		http: &http.Server{
			Addr:         cfg.Addr(),
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout, // 0 for SSE and websocket support
		},
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go s.store.Run(sweepCtx, s.cfg.Game.CleanupInterval, s.handler.OnSweep)

	// Room streams end with this context rather than holding Shutdown open
	streams, endStreams := context.WithCancel(context.Background())
	defer endStreams()
	s.http.BaseContext = func(net.Listener) context.Context { return streams }

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("starting server")
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.sched.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.sched.Stop()
	endStreams()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("server gracefully stopped")
	return nil
}

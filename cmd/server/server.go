package main

import (
	"time"

	"github.com/JaimeStill/creditdesk/internal/config"
	"github.com/JaimeStill/creditdesk/internal/infrastructure"
)

type Server struct {
	infra   *infrastructure.Infrastructure
	modules *Modules
	http    *httpServer
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	modules, err := NewModules(infra.Lifecycle.Context(), infra, cfg)
	if err != nil {
		return nil, err
	}

	router := buildRouter(infra)
	modules.Mount(router)

	infra.Logger.Info(
		"server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"auth", cfg.Auth.Mode,
		"receipts", cfg.Storage.Enabled,
		"modules", router.Prefixes(),
	)

	return &Server{
		infra:   infra,
		modules: modules,
		http:    newHTTPServer(&cfg.Server, router, infra.Logger),
	}, nil
}

func (s *Server) Start() error {
	s.infra.Logger.Info("starting service")

	if err := s.infra.Start(); err != nil {
		return err
	}

	if err := s.http.Start(s.infra.Lifecycle); err != nil {
		return err
	}

	go func() {
		lc := s.infra.Lifecycle
		lc.WaitForStartup()
		if down := lc.NotReady(); len(down) > 0 {
			s.infra.Logger.Warn("started with subsystems down", "down", down)
			return
		}
		s.infra.Logger.Info("all subsystems ready", "subsystems", lc.Report())
	}()

	return nil
}

// Shutdown closes every mounted review view, then the HTTP server and the
// subsystems, within timeout.
func (s *Server) Shutdown(timeout time.Duration) error {
	start := time.Now()
	s.infra.Logger.Info("initiating shutdown", "timeout", timeout)

	if err := s.infra.Lifecycle.Shutdown(timeout); err != nil {
		return err
	}
	s.infra.Logger.Info("shutdown complete", "elapsed", time.Since(start))
	return nil
}

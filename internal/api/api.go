// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/config"
	"github.com/JaimeStill/creditdesk/internal/infrastructure"
	"github.com/JaimeStill/creditdesk/internal/metrics"
	"github.com/JaimeStill/creditdesk/pkg/middleware"
	"github.com/JaimeStill/creditdesk/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
// A nil provider leaves the API unauthenticated.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure, provider auth.Provider) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)
	domain.Start(infra.Lifecycle)

	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(metrics.Instrument)
	m.Use(auth.Require(provider, runtime.Logger))

	return m, nil
}

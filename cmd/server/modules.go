package main

import (
	"context"
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/api"
	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/config"
	"github.com/JaimeStill/creditdesk/internal/infrastructure"
	"github.com/JaimeStill/creditdesk/internal/metrics"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/middleware"
	"github.com/JaimeStill/creditdesk/pkg/module"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

// Modules holds the mounted top-level modules. Auth is nil when
// authentication is disabled.
type Modules struct {
	API  *module.Module
	Auth *module.Module
}

func NewModules(ctx context.Context, infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	provider, err := auth.New(ctx, &cfg.Auth, infra.Logger)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra, provider)
	if err != nil {
		return nil, err
	}

	modules := &Modules{API: apiModule}

	if provider != nil {
		mux := http.NewServeMux()
		routes.Register(mux, auth.NewHandler(provider, &cfg.Auth, infra.Logger).Routes())

		authModule := module.New("/auth", mux)
		authModule.Use(middleware.CORS(&cfg.API.CORS))
		authModule.Use(middleware.Logger(infra.Logger))
		authModule.Use(metrics.Instrument)
		modules.Auth = authModule
	}

	return modules, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	if m.Auth != nil {
		router.Mount(m.Auth)
	}
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		lc := infra.Lifecycle
		body := map[string]any{"status": "ready", "subsystems": lc.Report()}
		if !lc.Ready() {
			body["status"] = "not ready"
			body["waiting_on"] = lc.NotReady()
			handlers.RespondJSON(w, http.StatusServiceUnavailable, body)
			return
		}
		handlers.RespondJSON(w, http.StatusOK, body)
	})

	router.HandleNative("GET /metrics", metrics.Handler().ServeHTTP)

	return router
}

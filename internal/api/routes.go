package api

import (
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/copilot"
	"github.com/JaimeStill/creditdesk/internal/intake"
	"github.com/JaimeStill/creditdesk/internal/settings"
	"github.com/JaimeStill/creditdesk/internal/views"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) {
	groups := []routes.Group{
		domain.Activity.Handler().Routes(),
		domain.Dashboard.Handler().Routes(),
		views.NewHandler(
			domain.Views,
			runtime.Logger,
			runtime.Review.DefaultReviewer,
			runtime.Origins,
		).Routes(),
		intake.NewHandler(runtime.Backend, runtime.MaxUploadSize, runtime.Logger).Routes(),
		copilot.NewHandler(runtime.Backend, runtime.Logger).Routes(),
		settings.NewHandler(runtime.Backend, runtime.Review.DefaultReviewer, runtime.Logger).Routes(),
	}

	if domain.Receipts != nil {
		groups = append(groups, domain.Receipts.Handler().Routes())
	}

	routes.Register(mux, groups...)
}

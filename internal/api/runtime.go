package api

import (
	"github.com/JaimeStill/creditdesk/internal/config"
	"github.com/JaimeStill/creditdesk/internal/infrastructure"
	"github.com/JaimeStill/creditdesk/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	Review        config.ReviewConfig
	MaxUploadSize int64
	MaxListSize   int32
	Origins       []string
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Backend:   infra.Backend,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination:    cfg.API.Pagination,
		Review:        cfg.Review,
		MaxUploadSize: cfg.Backend.MaxUploadSizeBytes(),
		MaxListSize:   cfg.Storage.MaxListSize,
		Origins:       cfg.API.CORS.Origins,
	}
}

package api

import (
	"github.com/JaimeStill/creditdesk/internal/activity"
	"github.com/JaimeStill/creditdesk/internal/dashboard"
	"github.com/JaimeStill/creditdesk/internal/receipts"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/internal/views"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
)

// Domain holds all domain systems that comprise the API.
// Receipts is nil when blob storage is disabled.
type Domain struct {
	Activity  activity.System
	Receipts  *receipts.Archive
	Dashboard *dashboard.System
	Views     *views.Registry
}

// NewDomain creates all domain systems from the API runtime. Every reviewer
// action is journaled; successful locks are also archived as receipts.
func NewDomain(runtime *Runtime) *Domain {
	activitySystem := activity.New(
		runtime.Database.Connection(),
		runtime.Database,
		runtime.Logger,
		runtime.Pagination,
	)

	recorders := review.Recorders{activitySystem}

	var archive *receipts.Archive
	if runtime.Storage != nil {
		archive = receipts.New(runtime.Storage, runtime.Logger, runtime.MaxListSize)
		recorders = append(recorders, archive)
	}

	registry := views.NewRegistry(
		runtime.Backend,
		recorders,
		views.Config{
			Review: review.Config{
				PollInterval: runtime.Review.PollIntervalDuration(),
				NoticeTTL:    runtime.Review.NoticeTTLDuration(),
			},
			IdleTimeout: runtime.Review.ViewIdleTimeoutDuration(),
		},
		runtime.Logger,
	)

	dashboardSystem := dashboard.New(
		runtime.Backend,
		dashboard.Config{
			Interval:        runtime.Review.DashboardIntervalDuration(),
			Limit:           runtime.Review.DashboardLimit,
			DefaultReviewer: runtime.Review.DefaultReviewer,
			Views:           registry,
			Recorder:        recorders,
		},
		runtime.Logger,
	)

	return &Domain{
		Activity:  activitySystem,
		Receipts:  archive,
		Dashboard: dashboardSystem,
		Views:     registry,
	}
}

// Start registers the background work of the domain systems with lc.
func (d *Domain) Start(lc *lifecycle.Coordinator) {
	d.Dashboard.Start(lc)
	d.Views.Start(lc)
}

// Package settings reads and updates the backend risk policy.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/auth"
	"github.com/JaimeStill/creditdesk/internal/backend"
	"github.com/JaimeStill/creditdesk/pkg/handlers"
	"github.com/JaimeStill/creditdesk/pkg/routes"
)

// Store is the backend side of the policy.
type Store interface {
	Settings(ctx context.Context) (*applications.Settings, error)
	UpdateSettings(ctx context.Context, policy applications.Policy) error
}

// Change is one policy field whose value differs between two policies.
type Change struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// Update is the response to a policy update.
type Update struct {
	Changes  []Change               `json:"changes"`
	Settings *applications.Settings `json:"settings"`
}

// Diff lists the fields that differ between old and next, in declaration
// order. Audit fields are ignored. A nil old reports every field.
func Diff(old *applications.Policy, next applications.Policy) []Change {
	var prev applications.Policy
	if old != nil {
		prev = *old
	}

	fields := []Change{
		{"dsr_threshold", prev.DSRThreshold, next.DSRThreshold},
		{"min_savings_rate", prev.MinSavingsRate, next.MinSavingsRate},
		{"confidence_threshold", prev.ConfidenceThreshold, next.ConfidenceThreshold},
		{"auto_reject_gambling", prev.AutoRejectGambling, next.AutoRejectGambling},
		{"auto_reject_high_dsr", prev.AutoRejectHighDSR, next.AutoRejectHighDSR},
		{"max_loan_micro_business", prev.MaxLoanMicroBusiness, next.MaxLoanMicroBusiness},
		{"max_loan_personal", prev.MaxLoanPersonal, next.MaxLoanPersonal},
		{"max_loan_housing", prev.MaxLoanHousing, next.MaxLoanHousing},
		{"max_loan_car", prev.MaxLoanCar, next.MaxLoanCar},
	}

	changes := []Change{}
	for _, c := range fields {
		if old == nil || c.Old != c.New {
			changes = append(changes, c)
		}
	}
	return changes
}

type Handler struct {
	store           Store
	defaultReviewer string
	logger          *slog.Logger
}

func NewHandler(store Store, defaultReviewer string, logger *slog.Logger) *Handler {
	return &Handler{
		store:           store,
		defaultReviewer: defaultReviewer,
		logger:          logger.With("handler", "settings"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/settings",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.Get},
			{Method: "PUT", Pattern: "", Handler: h.Put},
		},
	}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.store.Settings(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, s)
}

// Put replaces the policy. The body is validated before the backend sees
// it and an unchanged policy is not written.
func (h *Handler) Put(w http.ResponseWriter, r *http.Request) {
	var policy applications.Policy
	if err := handlers.DecodeJSON(r, &policy, false); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	if err := policy.Validate(); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	current, err := h.store.Settings(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}

	changes := Diff(current.Policy, policy)
	if len(changes) == 0 {
		handlers.RespondJSON(w, http.StatusOK, Update{Changes: changes, Settings: current})
		return
	}

	reviewer := auth.ReviewerName(r.Context(), h.defaultReviewer)
	policy.UpdatedBy = reviewer
	policy.UpdatedAt = ""

	if err := h.store.UpdateSettings(r.Context(), policy); err != nil {
		handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
		return
	}

	attrs := make([]any, 0, 2*len(changes)+2)
	attrs = append(attrs, "reviewer", reviewer)
	for _, c := range changes {
		attrs = append(attrs, c.Field, fmt.Sprintf("%v -> %v", c.Old, c.New))
	}
	h.logger.Info("risk policy updated", attrs...)

	updated, err := h.store.Settings(r.Context())
	if err != nil {
		if !errors.Is(err, backend.ErrUnavailable) {
			handlers.RespondError(w, h.logger, backend.MapHTTPStatus(err), err)
			return
		}
		h.logger.Warn("policy saved but reload failed", "error", err)
		updated = &applications.Settings{Policy: &policy, AuditLogs: current.AuditLogs}
	}

	handlers.RespondJSON(w, http.StatusOK, Update{Changes: changes, Settings: updated})
}

package activity

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/database"
	"github.com/JaimeStill/creditdesk/pkg/lifecycle"
	"github.com/JaimeStill/creditdesk/pkg/pagination"
	"github.com/JaimeStill/creditdesk/pkg/query"
	"github.com/JaimeStill/creditdesk/pkg/repository"
)

// recordTimeout bounds a journal write made on behalf of a reviewer action.
const recordTimeout = 5 * time.Second

// System defines the public contract for the activity journal. It is also a
// review.Recorder, so sessions journal their actions directly.
type System interface {
	review.Recorder

	Handler() *Handler

	Append(ctx context.Context, e Entry) (*Entry, error)
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Entry], error)
	Find(ctx context.Context, id uuid.UUID) (*Entry, error)
}

type repo struct {
	db         *sql.DB
	ready      lifecycle.ReadinessChecker
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an activity repository. Operations fail with
// database.ErrNotReady until ready reports true.
func New(
	db *sql.DB,
	ready lifecycle.ReadinessChecker,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		ready:      ready,
		logger:     logger.With("system", "activity"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

// Record journals a reviewer action. Failures are logged and never surface
// to the review workflow.
func (r *repo) Record(ctx context.Context, a review.Action) {
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()

	e := Entry{
		Action:        string(a.Kind),
		Outcome:       OutcomeSuccess,
		Reviewer:      a.Reviewer,
		ApplicationID: a.ApplicationID,
		ViewID:        optional(a.ViewID),
		Decision:      optional(string(a.Decision)),
		Reason:        optional(a.Reason),
		Detail:        optional(detail(a)),
	}
	if a.Err != nil {
		e.Outcome = OutcomeFailure
		e.Error = optional(a.Err.Error())
	}

	if _, err := r.Append(ctx, e); err != nil {
		r.logger.Warn(
			"activity journal write failed",
			"action", a.Kind,
			"application_id", a.ApplicationID,
			"error", err,
		)
	}
}

func (r *repo) Append(ctx context.Context, e Entry) (*Entry, error) {
	if !r.ready.Ready() {
		return nil, database.ErrNotReady
	}

	q := `
		INSERT INTO activity_entries(id, action, outcome, reviewer, application_id, view_id, decision, reason, detail, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, action, outcome, reviewer, application_id, view_id, decision, reason, detail, error, occurred_at`

	args := []any{
		uuid.New(),
		e.Action,
		e.Outcome,
		e.Reviewer,
		e.ApplicationID,
		e.ViewID,
		e.Decision,
		e.Reason,
		e.Detail,
		e.Error,
	}

	entry, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, dbErrors.Map(err)
	}

	r.logger.Debug("activity recorded", "id", entry.ID, "action", entry.Action, "outcome", entry.Outcome)
	return &entry, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Entry], error) {
	if !r.ready.Ready() {
		return nil, database.ErrNotReady
	}

	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "ApplicationID", "Reviewer", "Detail")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	result, err := repository.QueryPage(ctx, r.db, qb, page, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("list activity: %w", err)
	}
	return result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Entry, error) {
	if !r.ready.Ready() {
		return nil, database.ErrNotReady
	}

	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	e, err := repository.QueryOne(ctx, r.db, q, args, scanEntry)
	if err != nil {
		return nil, dbErrors.Map(err)
	}
	return &e, nil
}

func detail(a review.Action) string {
	switch {
	case a.EmailMode == "":
		return a.Detail
	case a.Detail == "":
		return "email_mode=" + string(a.EmailMode)
	default:
		return "email_mode=" + string(a.EmailMode) + "; " + a.Detail
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

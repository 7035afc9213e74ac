package activity

import (
	"net/url"
	"slices"
	"time"

	"github.com/JaimeStill/creditdesk/pkg/query"
	"github.com/JaimeStill/creditdesk/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "activity_entries", "a").
	Project("id", "ID").
	Project("action", "Action").
	Project("outcome", "Outcome").
	Project("reviewer", "Reviewer").
	Project("application_id", "ApplicationID").
	Project("view_id", "ViewID").
	Project("decision", "Decision").
	Project("reason", "Reason").
	Project("detail", "Detail").
	Project("error", "Error").
	Project("occurred_at", "OccurredAt")

var defaultSort = query.SortField{
	Field:      "OccurredAt",
	Descending: true,
}

// Filters narrows an activity listing. Nil fields are ignored. Action
// matches any of the listed kinds. Since is inclusive and Until exclusive.
type Filters struct {
	ApplicationID *string    `json:"application_id,omitempty"`
	Reviewer      *string    `json:"reviewer,omitempty"`
	Action        []string   `json:"action,omitempty"`
	Outcome       *string    `json:"outcome,omitempty"`
	Since         *time.Time `json:"since,omitempty"`
	Until         *time.Time `json:"until,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ApplicationID", f.ApplicationID).
		WhereContains("Reviewer", f.Reviewer).
		WhereIn("Action", f.Action).
		WhereEquals("Outcome", f.Outcome).
		WhereAfter("OccurredAt", f.Since).
		WhereBefore("OccurredAt", f.Until)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Timestamps use RFC 3339; unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	str := func(key string) *string {
		if v := values.Get(key); v != "" {
			return &v
		}
		return nil
	}
	stamp := func(key string) *time.Time {
		if v := values.Get(key); v != "" {
			if t, err := time.Parse(time.RFC3339, v); err == nil {
				return &t
			}
		}
		return nil
	}

	f.ApplicationID = str("application_id")
	f.Reviewer = str("reviewer")
	f.Action = slices.DeleteFunc(values["action"], func(v string) bool { return v == "" })
	f.Outcome = str("outcome")
	f.Since = stamp("since")
	f.Until = stamp("until")

	return f
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	err := s.Scan(
		&e.ID,
		&e.Action,
		&e.Outcome,
		&e.Reviewer,
		&e.ApplicationID,
		&e.ViewID,
		&e.Decision,
		&e.Reason,
		&e.Detail,
		&e.Error,
		&e.OccurredAt,
	)
	return e, err
}

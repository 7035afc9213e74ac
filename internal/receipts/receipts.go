// Package receipts archives a JSON record of every locked decision to blob
// storage and serves the archive back over HTTP.
package receipts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/JaimeStill/creditdesk/internal/applications"
	"github.com/JaimeStill/creditdesk/internal/review"
	"github.com/JaimeStill/creditdesk/pkg/storage"
)

const (
	keyPrefix      = "receipts"
	contentType    = "application/json"
	archiveTimeout = 10 * time.Second
)

// ErrInvalidApplication indicates an application id that cannot form a blob key.
var ErrInvalidApplication = errors.New("invalid application id")

// Store is the subset of storage.System the archive needs.
type Store interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
	Download(ctx context.Context, key string) (*storage.BlobStream, error)
	List(ctx context.Context, prefix, marker string, maxResults int32) (*storage.ListResult, error)
}

// Receipt is the archived record of a locked decision.
type Receipt struct {
	ApplicationID string                    `json:"application_id"`
	Decision      applications.Decision     `json:"decision"`
	Reviewer      string                    `json:"reviewer"`
	LockedAt      string                    `json:"locked_at"`
	EmailMode     applications.EmailMode    `json:"email_mode,omitempty"`
	History       []applications.AuditEntry `json:"history"`
	ArchivedAt    time.Time                 `json:"archived_at"`
}

// Archive writes receipts to a Store. It implements review.Recorder and only
// reacts to successful locks.
type Archive struct {
	store       Store
	logger      *slog.Logger
	maxListSize int32
}

// New creates an Archive over store.
func New(store Store, logger *slog.Logger, maxListSize int32) *Archive {
	return &Archive{
		store:       store,
		logger:      logger.With("system", "receipts"),
		maxListSize: maxListSize,
	}
}

func (a *Archive) Handler() *Handler {
	return NewHandler(a.store, a.logger, a.maxListSize)
}

func (a *Archive) Record(ctx context.Context, action review.Action) {
	if action.Kind != review.ActionLock || !action.Succeeded() {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	key, err := a.Archive(ctx, FromAction(action, time.Now()))
	if err != nil {
		a.logger.Warn("receipt archive failed", "application_id", action.ApplicationID, "error", err)
		return
	}
	a.logger.Info("receipt archived", "application_id", action.ApplicationID, "key", key)
}

// Archive stores r and returns its blob key.
func (a *Archive) Archive(ctx context.Context, r Receipt) (string, error) {
	prefix, err := Prefix(r.ApplicationID)
	if err != nil {
		return "", err
	}

	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode receipt: %w", err)
	}

	key := fmt.Sprintf("%s%d.json", prefix, r.ArchivedAt.UnixNano())
	if err := a.store.Upload(ctx, key, bytes.NewReader(body), contentType); err != nil {
		return "", fmt.Errorf("upload receipt: %w", err)
	}
	return key, nil
}

// FromAction builds a receipt from a lock action. Values reported by the
// backend snapshot win over the action's own.
func FromAction(action review.Action, now time.Time) Receipt {
	r := Receipt{
		ApplicationID: action.ApplicationID,
		Decision:      action.Decision,
		Reviewer:      action.Reviewer,
		LockedAt:      now.UTC().Format(time.RFC3339),
		EmailMode:     action.EmailMode,
		History:       []applications.AuditEntry{},
		ArchivedAt:    now,
	}

	if app := action.Application; app != nil {
		if app.FinalDecision != "" {
			r.Decision = app.FinalDecision
		}
		if app.LockedBy != "" {
			r.Reviewer = app.LockedBy
		}
		if app.LockedAt != "" {
			r.LockedAt = app.LockedAt
		}
		if len(app.DecisionHistory) > 0 {
			r.History = app.DecisionHistory
		}
	}

	return r
}

// Prefix returns the blob prefix holding the receipts of an application.
func Prefix(applicationID string) (string, error) {
	if applicationID == "" || strings.ContainsAny(applicationID, `/\`) || applicationID == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidApplication, applicationID)
	}
	return keyPrefix + "/" + applicationID + "/", nil
}

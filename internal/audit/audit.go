// Package audit writes the append-only trail of administrative changes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/nebari-dev/accessd/internal/models"
	"github.com/nebari-dev/accessd/internal/store"
)

// Audit actions
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Audited entity labels
const (
	ResourceResource   = "resource"
	ResourceAction     = "action"
	ResourcePermission = "permission"
	ResourceRole       = "role"
	ResourceUserRole   = "user_role"
)

// Mode controls what happens when the audit insert fails.
type Mode string

const (
	// ModeBestEffort commits the mutation first and only logs audit failures
	ModeBestEffort Mode = "best_effort"
	// ModeStrict writes the audit row in the mutation's transaction
	ModeStrict Mode = "strict"
)

// ParseMode validates a configured audit mode. Empty means best effort.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBestEffort:
		return ModeBestEffort, nil
	case ModeStrict:
		return ModeStrict, nil
	default:
		return "", fmt.Errorf("invalid audit mode %q (supported: best_effort, strict)", s)
	}
}

// RequestContext is the client information stored with an entry.
type RequestContext struct {
	IP        *string
	UserAgent string
}

// FromRequest extracts the client address and user agent.
func FromRequest(r *http.Request) RequestContext {
	if r == nil {
		return RequestContext{}
	}
	return RequestContext{IP: ClientIP(r), UserAgent: r.UserAgent()}
}

// ClientIP returns the leftmost X-Forwarded-For address, falling back to
// the connection's remote address when the header is absent or its first
// entry does not parse. Nil means neither yields an address.
func ClientIP(r *http.Request) *string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := net.ParseIP(strings.TrimSpace(strings.Split(xff, ",")[0])); ip != nil {
			s := ip.String()
			return &s
		}
	}

	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return nil
	}
	s := ip.String()
	return &s
}

// Entry describes one audited change. A nil Actor records a system action.
type Entry struct {
	Actor    *uuid.UUID
	Action   string
	Resource string
	Details  interface{}
	Request  RequestContext
}

// Recorder appends audit entries.
type Recorder struct {
	store  *store.Store
	mode   Mode
	logger *slog.Logger
}

// NewRecorder creates a recorder writing through st.
func NewRecorder(st *store.Store, mode Mode, logger *slog.Logger) *Recorder {
	if mode == "" {
		mode = ModeBestEffort
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: st, mode: mode, logger: logger}
}

// Mode returns the configured failure mode.
func (r *Recorder) Mode() Mode {
	return r.mode
}

// Record appends e outside any transaction.
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	return write(ctx, r.store, e)
}

// Mutate runs mutate in a transaction and records the entry it returns.
// In strict mode the entry is written in the same transaction, so a failed
// audit insert rolls the mutation back. In best-effort mode the entry is
// written after commit, detached from ctx cancellation, and a failure is
// only logged.
func (r *Recorder) Mutate(ctx context.Context, mutate func(tx *store.Store) (Entry, error)) error {
	if r.mode == ModeStrict {
		return r.store.Transaction(ctx, func(tx *store.Store) error {
			e, err := mutate(tx)
			if err != nil {
				return err
			}
			if err := write(ctx, tx, e); err != nil {
				return fmt.Errorf("failed to record audit log: %w", err)
			}
			return nil
		})
	}

	var e Entry
	err := r.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		e, err = mutate(tx)
		return err
	})
	if err != nil {
		return err
	}
	if err := write(context.WithoutCancel(ctx), r.store, e); err != nil {
		r.logger.Error("Failed to record audit log",
			"action", e.Action,
			"resource", e.Resource,
			"error", err)
	}
	return nil
}

func write(ctx context.Context, st *store.Store, e Entry) error {
	details, err := json.Marshal(e.Details)
	if err != nil || e.Details == nil {
		details = []byte("{}")
	}

	entry := models.AuditLog{
		UserID:      e.Actor,
		Action:      e.Action,
		Resource:    e.Resource,
		DetailsJSON: string(details),
		IPAddress:   e.Request.IP,
		UserAgent:   e.Request.UserAgent,
	}
	return st.AppendAuditLog(ctx, &entry)
}

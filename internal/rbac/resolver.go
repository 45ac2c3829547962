package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nebari-dev/accessd/internal/policysync"
	"github.com/nebari-dev/accessd/internal/store"
	"golang.org/x/sync/singleflight"
)

// Options configures a Resolver.
type Options struct {
	MatchMode   MatchMode
	CacheTTL    time.Duration // 0 rebuilds the snapshot for every request
	PublicPaths []string      // path prefixes that are always allowed
	Logger      *slog.Logger
}

// Resolver evaluates requests against an in-memory policy snapshot loaded
// from the store. It is safe for concurrent use.
type Resolver struct {
	store  *store.Store
	opts   Options
	logger *slog.Logger

	current atomic.Pointer[snapshot]
	stale   atomic.Bool
	group   singleflight.Group
	now     func() time.Time

	mu  sync.RWMutex
	bus policysync.Bus
}

// NewResolver creates a resolver reading policy from st.
func NewResolver(st *store.Store, opts Options) *Resolver {
	if opts.MatchMode == "" {
		opts.MatchMode = MatchContains
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  st,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
}

// IsPublic reports whether path falls under a public prefix.
func (r *Resolver) IsPublic(path string) bool {
	for _, prefix := range r.opts.PublicPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Resolve decides whether id may perform req.
func (r *Resolver) Resolve(ctx context.Context, req Request, id *Identity) (Result, error) {
	if r.IsPublic(req.Path) {
		return Result{Decision: DecisionAllow, Reason: "public path"}, nil
	}
	if id == nil || !id.Authenticated {
		return Result{Decision: DecisionDeny, Reason: "not authenticated"}, nil
	}
	if !id.Active {
		return Result{Decision: DecisionDeny, Reason: "account inactive"}, nil
	}
	if id.Superuser {
		return Result{Decision: DecisionAllow, Reason: "superuser"}, nil
	}

	endpoint := req.Route
	if endpoint == "" {
		endpoint = req.Path
	}
	code := ActionCode(req.Method)

	snap, err := r.snapshot(ctx)
	if err != nil {
		return Result{}, err
	}

	resource, ok := matchResource(snap.endpoints, endpoint, r.opts.MatchMode)
	if !ok {
		return Result{Decision: DecisionNotConfigured, Reason: "no resource for endpoint", Action: code}, nil
	}
	res := Result{Resource: resource.Endpoint, Action: code}

	actionID, ok := snap.actions[code]
	if !ok {
		res.Decision, res.Reason = DecisionNotConfigured, "no action for method"
		return res, nil
	}
	permID, ok := snap.permissions[permKey{resource.ID, actionID}]
	if !ok {
		res.Decision, res.Reason = DecisionNotConfigured, "no permission for resource and action"
		return res, nil
	}

	granted, err := snap.granted(id.UserID, permID)
	if err != nil {
		return Result{}, err
	}
	if granted {
		res.Decision, res.Reason = DecisionAllow, "granted by role"
	} else {
		res.Decision, res.Reason = DecisionDeny, "no role grants permission"
	}
	return res, nil
}

// Invalidate drops the cached snapshot on this replica.
func (r *Resolver) Invalidate() {
	r.stale.Store(true)
}

// InvalidatePolicy drops the local snapshot and notifies peer replicas
// through the attached bus, if any.
func (r *Resolver) InvalidatePolicy(ctx context.Context) {
	r.Invalidate()
	r.mu.RLock()
	bus := r.bus
	r.mu.RUnlock()
	if bus == nil {
		return
	}
	if err := bus.Publish(ctx); err != nil {
		r.logger.Warn("Failed to publish policy invalidation", "error", err)
	}
}

// SetBus attaches bus so that InvalidatePolicy notifies peers.
func (r *Resolver) SetBus(bus policysync.Bus) {
	r.mu.Lock()
	r.bus = bus
	r.mu.Unlock()
}

// Watch attaches bus and invalidates the snapshot whenever a peer
// publishes. It blocks until ctx is canceled.
func (r *Resolver) Watch(ctx context.Context, bus policysync.Bus) error {
	r.SetBus(bus)
	return bus.Subscribe(ctx, r.Invalidate)
}

// Reload rebuilds the snapshot immediately.
func (r *Resolver) Reload(ctx context.Context) error {
	r.Invalidate()
	_, err := r.snapshot(ctx)
	return err
}

func (r *Resolver) snapshot(ctx context.Context) (*snapshot, error) {
	if snap := r.current.Load(); snap != nil && !r.expired(snap) {
		return snap, nil
	}

	v, err, _ := r.group.Do("snapshot", func() (interface{}, error) {
		r.stale.Store(false)
		data, err := r.store.LoadPolicy(context.WithoutCancel(ctx))
		if err != nil {
			r.stale.Store(true)
			return nil, fmt.Errorf("failed to load policy: %w", err)
		}
		snap, err := buildSnapshot(data, r.now())
		if err != nil {
			r.stale.Store(true)
			return nil, err
		}
		r.current.Store(snap)
		r.logger.Debug("Policy snapshot rebuilt",
			"resources", len(data.Resources),
			"permissions", len(data.Permissions),
			"grants", len(data.RolePermissions),
			"assignments", len(data.UserRoles))
		return snap, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*snapshot), nil
}

func (r *Resolver) expired(snap *snapshot) bool {
	if r.stale.Load() || r.opts.CacheTTL <= 0 {
		return true
	}
	return r.now().Sub(snap.builtAt) > r.opts.CacheTTL
}

func lower(s string) string { return strings.ToLower(s) }

// Package policysync broadcasts policy invalidations between replicas so
// each one drops its cached authorization snapshot after a mutation.
package policysync

import (
	"context"
	"fmt"

	"github.com/nebari-dev/accessd/internal/config"
)

// Bus carries "policy changed" notifications.
type Bus interface {
	// Publish tells every subscriber that the policy changed
	Publish(ctx context.Context) error

	// Subscribe calls handler for every notification published by another
	// participant. It blocks until ctx is canceled or the bus is closed.
	Subscribe(ctx context.Context, handler func()) error

	// Close releases the bus and unblocks subscribers
	Close() error
}

// New builds the bus selected by cfg.Type.
func New(cfg config.SyncConfig) (Bus, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryBus(), nil
	case "valkey":
		return NewValkeyBus(cfg.ValkeyAddr, cfg.Channel)
	default:
		return nil, fmt.Errorf("unknown sync type %q (supported: memory, valkey)", cfg.Type)
	}
}

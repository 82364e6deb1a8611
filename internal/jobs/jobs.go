// Package jobs holds the two periodic invocations: publishing due posts and
// recording follower counts. Both are triggered externally and return a
// summary of what they did.
package jobs

import (
	"context"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/notifications"
)

// Job names used for metrics, logs and trigger routes.
const (
	JobDispatch        = "dispatch"
	JobFollowerStats   = "follower_stats"
	defaultItemTimeout = 15 * time.Second
)

// CredentialResolver resolves a usable credential for an owner.
type CredentialResolver interface {
	GetCredential(ctx context.Context, ownerID uint) (*credential.Credential, error)
}

// Leaser hands out short exclusive leases. *cache.Leaser satisfies it.
type Leaser interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lease, bool, error)
}

// EventPublisher delivers outcome events. *notifications.Notifier satisfies it.
type EventPublisher interface {
	PublishEvent(ctx context.Context, ev notifications.Event) error
}

type noopEvents struct{}

func (noopEvents) PublishEvent(context.Context, notifications.Event) error { return nil }

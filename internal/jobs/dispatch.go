package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/cache"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/notifications"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/publisher"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DuePostStore is the slice of the post repository the dispatcher needs.
type DuePostStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Post, error)
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	MarkPosted(ctx context.Context, id uint, externalID string, postedAt time.Time) error
	MarkFailed(ctx context.Context, id uint, message string) error
}

// DispatchConfig bounds one dispatch invocation.
type DispatchConfig struct {
	BatchSize   int
	Concurrency int
	ItemTimeout time.Duration
	LeaseTTL    time.Duration
}

// DispatchSummary reports what one invocation did. Succeeded+Failed+Skipped == Total.
type DispatchSummary struct {
	RunID     string `json:"run_id"`
	Total     int    `json:"total"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

type itemOutcome int

const (
	itemSucceeded itemOutcome = iota
	itemFailed
	itemSkipped
	// itemUnrecorded was published but the posted state could not be stored.
	itemUnrecorded
)

// DispatchExecutor publishes every due post once per invocation.
type DispatchExecutor struct {
	posts     DuePostStore
	creds     CredentialResolver
	publisher publisher.Publisher
	leaser    Leaser
	events    EventPublisher
	cfg       DispatchConfig
	now       func() time.Time
}

// DispatchOption customizes a DispatchExecutor.
type DispatchOption func(*DispatchExecutor)

// WithLeaser enables per-post leases. A lease is held until its TTL expires,
// and the post is re-read under it, so an invocation working from a stale due
// list skips posts another invocation already resolved.
func WithLeaser(l Leaser) DispatchOption {
	return func(e *DispatchExecutor) { e.leaser = l }
}

// WithDispatchEvents publishes posted/failed events.
func WithDispatchEvents(p EventPublisher) DispatchOption {
	return func(e *DispatchExecutor) {
		if p != nil {
			e.events = p
		}
	}
}

// WithDispatchClock overrides time.Now.
func WithDispatchClock(now func() time.Time) DispatchOption {
	return func(e *DispatchExecutor) { e.now = now }
}

// NewDispatchExecutor creates a DispatchExecutor.
func NewDispatchExecutor(posts DuePostStore, creds CredentialResolver, pub publisher.Publisher, cfg DispatchConfig, opts ...DispatchOption) *DispatchExecutor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 2 * cfg.ItemTimeout
	}
	e := &DispatchExecutor{
		posts:     posts,
		creds:     creds,
		publisher: pub,
		events:    noopEvents{},
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run lists due posts and processes them concurrently. Only a failure to
// list due posts is returned; per-post failures are recorded on the post.
// In-flight items are not cancelled when ctx is.
func (e *DispatchExecutor) Run(ctx context.Context) (*DispatchSummary, error) {
	runID := observability.GenerateCorrelationID()
	ctx = observability.WithCorrelationID(ctx, runID)
	defer observability.TrackJob(JobDispatch)()

	span, ctx := observability.NewSpan(ctx, "jobs.dispatch")
	defer span.End()

	now := e.now()
	observability.LogAsyncOperationStart(ctx, JobDispatch, map[string]interface{}{"now": now.UTC()})

	due, err := e.posts.ListDue(ctx, now, e.cfg.BatchSize)
	if err != nil {
		span.SetError(err)
		observability.LogAsyncOperationError(ctx, JobDispatch, err, nil)
		return nil, fmt.Errorf("list due posts: %w", err)
	}

	summary := &DispatchSummary{RunID: runID, Total: len(due)}
	if len(due) == 0 {
		observability.LogAsyncOperationEnd(ctx, JobDispatch, map[string]interface{}{"total": 0})
		return summary, nil
	}

	detached := context.WithoutCancel(ctx)
	var succeeded, failed, skipped atomic.Int64

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, post := range due {
		g.Go(func() error {
			switch e.dispatchOne(detached, post) {
			case itemSucceeded:
				succeeded.Add(1)
			case itemSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	summary.Succeeded = int(succeeded.Load())
	summary.Failed = int(failed.Load())
	summary.Skipped = int(skipped.Load())

	span.AddAttributes(
		attribute.Int("dispatch.total", summary.Total),
		attribute.Int("dispatch.succeeded", summary.Succeeded),
		attribute.Int("dispatch.failed", summary.Failed),
		attribute.Int("dispatch.skipped", summary.Skipped),
	)
	observability.LogAsyncOperationEnd(ctx, JobDispatch, map[string]interface{}{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"skipped":   summary.Skipped,
	})
	return summary, nil
}

func (e *DispatchExecutor) dispatchOne(ctx context.Context, post *models.Post) (outcome itemOutcome) {
	defer func() {
		observability.DispatchItems.WithLabelValues(outcomeLabel(outcome)).Inc()
	}()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		slog.ErrorContext(ctx, "dispatch item panicked", "post_id", post.ID, "panic", r, "stack", string(debug.Stack()))
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "marking panicked post failed also panicked", "post_id", post.ID, "panic", r)
				outcome = itemFailed
			}
		}()
		outcome = e.fail(ctx, post, fmt.Sprintf("dispatch panicked: %v", r))
	}()

	span, ctx := observability.NewSpan(ctx, "jobs.dispatch.item")
	span.AddAttributes(attribute.Int("post.id", int(post.ID)), attribute.Int("owner.id", int(post.OwnerID)))
	defer span.End()

	if e.leaser != nil {
		lease, ok, err := e.leaser.Acquire(ctx, cache.DispatchLeaseKey(post.ID), e.cfg.LeaseTTL)
		switch {
		case err != nil:
			// Redis trouble must not stop publishing; the status guard still
			// prevents a second terminal write.
			slog.WarnContext(ctx, "dispatch lease unavailable", "post_id", post.ID, "error", err)
		case !ok:
			return itemSkipped
		default:
			// Once this item goes ahead the lease is left to expire, so a later
			// holder cannot act on a due list read before the item was resolved.
			if !e.stillDue(ctx, post.ID) {
				if err := lease.Release(ctx); err != nil {
					slog.WarnContext(ctx, "dispatch lease release failed", "post_id", post.ID, "error", err)
				}
				return itemSkipped
			}
		}
	}

	itemCtx, cancel := context.WithTimeout(ctx, e.cfg.ItemTimeout)
	defer cancel()

	cred, err := e.creds.GetCredential(itemCtx, post.OwnerID)
	if err != nil {
		span.SetError(err)
		return e.fail(ctx, post, credentialFailureMessage(err))
	}

	externalID, err := e.publisher.Publish(itemCtx, cred, post.Content)
	if err != nil {
		span.SetError(err)
		return e.fail(ctx, post, publishFailureMessage(err, e.cfg.ItemTimeout))
	}
	span.AddAttributes(attribute.String("post.external_id", externalID))

	if err := e.posts.MarkPosted(ctx, post.ID, externalID, e.now()); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			slog.WarnContext(ctx, "post resolved by another dispatch", "post_id", post.ID, "external_post_id", externalID)
			return itemSkipped
		}
		span.SetError(err)
		// The post stays scheduled and will be published again once its
		// lease expires.
		slog.ErrorContext(ctx, "published post could not be marked posted",
			"post_id", post.ID,
			"owner_id", post.OwnerID,
			"external_post_id", externalID,
			"error", err,
		)
		return itemUnrecorded
	}

	e.publish(ctx, notifications.Event{
		Type:           notifications.EventPostPosted,
		OwnerID:        post.OwnerID,
		PostID:         post.ID,
		ExternalPostID: externalID,
		OccurredAt:     e.now().UTC(),
	})
	return itemSucceeded
}

// stillDue re-reads the post and reports whether it is still waiting to be
// published. A read error keeps the item, relying on the status guard.
func (e *DispatchExecutor) stillDue(ctx context.Context, id uint) bool {
	fresh, err := e.posts.GetByID(ctx, id)
	switch {
	case models.IsCode(err, models.CodeNotFound):
		return false
	case err != nil:
		slog.WarnContext(ctx, "dispatch re-read failed", "post_id", id, "error", err)
		return true
	}
	if !fresh.Due(e.now()) {
		slog.InfoContext(ctx, "post no longer due", "post_id", id, "status", fresh.Status)
		return false
	}
	return true
}

func (e *DispatchExecutor) fail(ctx context.Context, post *models.Post, message string) itemOutcome {
	if err := e.posts.MarkFailed(ctx, post.ID, message); err != nil {
		if models.IsCode(err, models.CodeConflict) {
			return itemSkipped
		}
		observability.LogAsyncOperationError(ctx, JobDispatch, err, map[string]interface{}{
			"post_id": post.ID,
			"stage":   "mark_failed",
		})
		return itemFailed
	}

	slog.InfoContext(ctx, "post dispatch failed", "post_id", post.ID, "owner_id", post.OwnerID, "reason", message)
	e.publish(ctx, notifications.Event{
		Type:       notifications.EventPostFailed,
		OwnerID:    post.OwnerID,
		PostID:     post.ID,
		Error:      message,
		OccurredAt: e.now().UTC(),
	})
	return itemFailed
}

func (e *DispatchExecutor) publish(ctx context.Context, ev notifications.Event) {
	if err := e.events.PublishEvent(ctx, ev); err != nil {
		slog.WarnContext(ctx, "failed to publish notification", "type", ev.Type, "owner_id", ev.OwnerID, "error", err)
	}
}

func credentialFailureMessage(err error) string {
	switch {
	case errors.Is(err, credential.ErrCredentialNotFound):
		return "no platform account connected"
	case errors.Is(err, credential.ErrCredentialInvalid):
		return "platform credential is invalid or expired"
	default:
		return "credential lookup failed: " + err.Error()
	}
}

func publishFailureMessage(err error, timeout time.Duration) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Sprintf("publish timed out after %s", timeout)
	}
	return err.Error()
}

func outcomeLabel(o itemOutcome) string {
	switch o {
	case itemSucceeded:
		return observability.OutcomeSucceeded
	case itemSkipped:
		return observability.OutcomeSkipped
	case itemUnrecorded:
		return observability.OutcomeUnrecorded
	default:
		return observability.OutcomeFailed
	}
}

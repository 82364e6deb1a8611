package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/notifications"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/publisher"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// OwnerLister enumerates owners with a usable credential.
type OwnerLister interface {
	ListOwners(ctx context.Context) ([]uint, error)
}

// SnapshotStore is the slice of the snapshot repository the recorder needs.
type SnapshotStore interface {
	Append(ctx context.Context, snap *models.FollowerSnapshot) error
	Latest(ctx context.Context, ownerID uint) (*models.FollowerSnapshot, error)
}

// FollowerConfig bounds one follower stats invocation. A positive
// MinInterval skips owners whose latest snapshot is younger than it.
type FollowerConfig struct {
	Concurrency int
	ItemTimeout time.Duration
	MinInterval time.Duration
}

// FollowerFailure names an owner whose snapshot could not be recorded.
type FollowerFailure struct {
	OwnerID uint   `json:"owner_id"`
	Error   string `json:"error"`
}

// FollowerSummary reports what one invocation did.
type FollowerSummary struct {
	RunID    string            `json:"run_id"`
	Total    int               `json:"total"`
	Recorded int               `json:"recorded"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Failures []FollowerFailure `json:"failures"`
}

// FollowerStatsRecorder appends one follower snapshot per credentialed owner.
type FollowerStatsRecorder struct {
	owners    OwnerLister
	creds     CredentialResolver
	publisher publisher.Publisher
	snapshots SnapshotStore
	events    EventPublisher
	cfg       FollowerConfig
	now       func() time.Time
}

// FollowerOption customizes a FollowerStatsRecorder.
type FollowerOption func(*FollowerStatsRecorder)

// WithFollowerEvents publishes followers.recorded events.
func WithFollowerEvents(p EventPublisher) FollowerOption {
	return func(r *FollowerStatsRecorder) {
		if p != nil {
			r.events = p
		}
	}
}

// WithFollowerClock overrides time.Now.
func WithFollowerClock(now func() time.Time) FollowerOption {
	return func(r *FollowerStatsRecorder) { r.now = now }
}

// NewFollowerStatsRecorder creates a FollowerStatsRecorder.
func NewFollowerStatsRecorder(owners OwnerLister, creds CredentialResolver, pub publisher.Publisher, snapshots SnapshotStore, cfg FollowerConfig, opts ...FollowerOption) *FollowerStatsRecorder {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = defaultItemTimeout
	}
	r := &FollowerStatsRecorder{
		owners:    owners,
		creds:     creds,
		publisher: pub,
		snapshots: snapshots,
		events:    noopEvents{},
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run records a snapshot for every credentialed owner. Only a failure to
// enumerate owners is returned.
func (r *FollowerStatsRecorder) Run(ctx context.Context) (*FollowerSummary, error) {
	runID := observability.GenerateCorrelationID()
	ctx = observability.WithCorrelationID(ctx, runID)
	defer observability.TrackJob(JobFollowerStats)()

	span, ctx := observability.NewSpan(ctx, "jobs.follower_stats")
	defer span.End()

	now := r.now().UTC()
	observability.LogAsyncOperationStart(ctx, JobFollowerStats, nil)

	owners, err := r.owners.ListOwners(ctx)
	if err != nil {
		span.SetError(err)
		observability.LogAsyncOperationError(ctx, JobFollowerStats, err, nil)
		return nil, fmt.Errorf("list credentialed owners: %w", err)
	}

	summary := &FollowerSummary{RunID: runID, Total: len(owners), Failures: []FollowerFailure{}}
	detached := context.WithoutCancel(ctx)

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, ownerID := range owners {
		g.Go(func() error {
			outcome, err := r.recordOne(detached, ownerID, now)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				summary.Failed++
				summary.Failures = append(summary.Failures, FollowerFailure{OwnerID: ownerID, Error: err.Error()})
			case outcome == itemSkipped:
				summary.Skipped++
			default:
				summary.Recorded++
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(summary.Failures, func(i, j int) bool { return summary.Failures[i].OwnerID < summary.Failures[j].OwnerID })

	span.AddAttributes(
		attribute.Int("followers.total", summary.Total),
		attribute.Int("followers.recorded", summary.Recorded),
		attribute.Int("followers.failed", summary.Failed),
	)
	observability.LogAsyncOperationEnd(ctx, JobFollowerStats, map[string]interface{}{
		"total":    summary.Total,
		"recorded": summary.Recorded,
		"failed":   summary.Failed,
		"skipped":  summary.Skipped,
	})
	return summary, nil
}

func (r *FollowerStatsRecorder) recordOne(ctx context.Context, ownerID uint, now time.Time) (outcome itemOutcome, err error) {
	defer func() {
		if err != nil {
			outcome = itemFailed
			slog.WarnContext(ctx, "follower snapshot failed", "owner_id", ownerID, "error", err)
		}
		observability.FollowerSnapshots.WithLabelValues(outcomeLabel(outcome)).Inc()
	}()
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "follower snapshot panicked", "owner_id", ownerID, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("record panicked: %v", r)
		}
	}()

	itemCtx, cancel := context.WithTimeout(ctx, r.cfg.ItemTimeout)
	defer cancel()

	if r.cfg.MinInterval > 0 {
		latest, err := r.snapshots.Latest(itemCtx, ownerID)
		switch {
		case err == nil && now.Sub(latest.RecordedAt) < r.cfg.MinInterval:
			return itemSkipped, nil
		case err != nil && !models.IsCode(err, models.CodeNotFound):
			return itemFailed, fmt.Errorf("read latest snapshot: %w", err)
		}
	}

	cred, err := r.creds.GetCredential(itemCtx, ownerID)
	if err != nil {
		return itemFailed, fmt.Errorf("resolve credential: %w", err)
	}

	counts, err := r.publisher.FetchFollowerCounts(itemCtx, cred)
	if err != nil {
		return itemFailed, fmt.Errorf("fetch follower counts: %w", err)
	}

	snap := &models.FollowerSnapshot{
		OwnerID:        ownerID,
		FollowerCount:  counts.Followers,
		FollowingCount: counts.Following,
		RecordedAt:     now,
	}
	if err := r.snapshots.Append(ctx, snap); err != nil {
		return itemFailed, fmt.Errorf("append snapshot: %w", err)
	}

	if err := r.events.PublishEvent(ctx, notifications.Event{
		Type:          notifications.EventFollowersRecorded,
		OwnerID:       ownerID,
		FollowerCount: &counts.Followers,
		OccurredAt:    now,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish notification", "owner_id", ownerID, "error", err)
	}
	return itemSucceeded, nil
}

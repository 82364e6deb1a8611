package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/lifecycle"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/notifications"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/publisher"
)

// memPosts is an in-memory DuePostStore with the same guarded transitions
// as the SQL repository.
type memPosts struct {
	mu      sync.Mutex
	posts   map[uint]*models.Post
	listErr error
	writes  int
	// markPostedErr makes MarkPosted fail without writing.
	markPostedErr error
}

func newMemPosts(posts ...*models.Post) *memPosts {
	m := &memPosts{posts: map[uint]*models.Post{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memPosts) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.Post
	for _, p := range m.posts {
		if p.Due(now) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memPosts) GetByID(_ context.Context, id uint) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) apply(id uint, ev lifecycle.Event, eff lifecycle.Effect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return models.NewNotFoundError("Post", id)
	}
	if err := lifecycle.Apply(p, ev, eff); err != nil {
		return err
	}
	m.writes++
	return nil
}

func (m *memPosts) MarkPosted(_ context.Context, id uint, externalID string, postedAt time.Time) error {
	if m.markPostedErr != nil {
		return m.markPostedErr
	}
	return m.apply(id, lifecycle.EventDispatchSuccess, lifecycle.Effect{At: postedAt, ExternalPostID: externalID})
}

func (m *memPosts) MarkFailed(_ context.Context, id uint, message string) error {
	return m.apply(id, lifecycle.EventDispatchFailure, lifecycle.Effect{ErrorMessage: message})
}

// frozenDue serves a due list captured earlier, as an invocation that listed
// before another one finished would see it.
type frozenDue struct {
	*memPosts
	due []*models.Post
}

func (f *frozenDue) ListDue(context.Context, time.Time, int) ([]*models.Post, error) {
	out := make([]*models.Post, 0, len(f.due))
	for _, p := range f.due {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memPosts) get(id uint) models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.posts[id]
}

type stubCreds struct {
	GetCredentialFn func(ctx context.Context, ownerID uint) (*credential.Credential, error)
}

func (s stubCreds) GetCredential(ctx context.Context, ownerID uint) (*credential.Credential, error) {
	return s.GetCredentialFn(ctx, ownerID)
}

func credsFor(owners ...uint) stubCreds {
	set := map[uint]bool{}
	for _, o := range owners {
		set[o] = true
	}
	return stubCreds{GetCredentialFn: func(_ context.Context, ownerID uint) (*credential.Credential, error) {
		if !set[ownerID] {
			return nil, credential.ErrCredentialNotFound
		}
		return &credential.Credential{OwnerID: ownerID, AccessToken: "tok"}, nil
	}}
}

type stubPublisher struct {
	PublishFn             func(ctx context.Context, cred *credential.Credential, content string) (string, error)
	FetchFollowerCountsFn func(ctx context.Context, cred *credential.Credential) (*publisher.FollowerCounts, error)
}

func (s *stubPublisher) Publish(ctx context.Context, cred *credential.Credential, content string) (string, error) {
	return s.PublishFn(ctx, cred, content)
}

func (s *stubPublisher) FetchFollowerCounts(ctx context.Context, cred *credential.Credential) (*publisher.FollowerCounts, error) {
	return s.FetchFollowerCountsFn(ctx, cred)
}

type recordingEvents struct {
	mu     sync.Mutex
	events []notifications.Event
}

func (r *recordingEvents) PublishEvent(_ context.Context, ev notifications.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingEvents) types() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, ev := range r.events {
		out[ev.Type]++
	}
	return out
}

func duePost(id, owner uint, at time.Time) *models.Post {
	return &models.Post{ID: id, OwnerID: owner, Content: "post", ScheduledAt: at, IsApproved: true, Status: models.PostStatusScheduled}
}

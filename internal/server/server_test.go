package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/bootstrap"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/config"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/database"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/featureflags"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/generator"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/jobs"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/publisher"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	testJWTSecret = "test-jwt-secret-with-enough-length-0123456789"
	testJobSecret = "test-job-trigger-secret"
)

type fakePublisher struct {
	published atomic.Int64
	followers int64
}

func (p *fakePublisher) Publish(_ context.Context, _ *credential.Credential, _ string) (string, error) {
	n := p.published.Add(1)
	return "ext-" + strconv.FormatInt(n, 10), nil
}

func (p *fakePublisher) FetchFollowerCounts(context.Context, *credential.Credential) (*publisher.FollowerCounts, error) {
	return &publisher.FollowerCounts{Followers: p.followers}, nil
}

type fakeGenerator struct{ calls atomic.Int64 }

func (g *fakeGenerator) Generate(_ context.Context, in generator.Input) (string, error) {
	n := g.calls.Add(1)
	return in.Topic + " take #" + strconv.FormatInt(n, 10), nil
}

type testEnv struct {
	srv *Server
	app *fiber.App
	pub *fakePublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))

	cfg := &config.Config{
		JWTSecret:               testJWTSecret,
		JobTriggerSecret:        testJobSecret,
		CredentialEncryptionKey: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32)),
		DispatchBatchSize:       50,
		DispatchConcurrency:     4,
		FollowerConcurrency:     4,
	}
	pub := &fakePublisher{followers: 1234}
	comps, err := bootstrap.BuildComponents(cfg, db, nil, bootstrap.Overrides{
		Publisher: pub,
		Generator: &fakeGenerator{},
	})
	require.NoError(t, err)

	srv := NewServerWithDeps(cfg, db, nil, comps)
	return &testEnv{srv: srv, app: srv.NewApp(), pub: pub}
}

func tokenFor(t *testing.T, ownerID uint) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(ownerID), 10),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return signed
}

func (e *testEnv) do(t *testing.T, method, path, bearer string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/posts", "/api/schedule/slots", "/api/account/credential", "/api/stats/followers"} {
		resp := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, path)
	}

	resp := env.do(t, http.MethodGet, "/api/posts", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPostLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 1)
	other := tokenFor(t, 2)

	resp := env.do(t, http.MethodPut, "/api/schedule/slots", owner, UpdateSlotsRequest{
		Slots:    []string{"18:00", "09:00", "09:00"},
		Timezone: "UTC",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decode[models.TimeSlotConfig](t, resp)
	assert.Equal(t, models.SlotList{"09:00", "18:00"}, slots.Slots)

	resp = env.do(t, http.MethodPost, "/api/posts", owner, CreatePostRequest{Content: "  hello followers  "})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Post](t, resp)
	assert.Equal(t, "hello followers", created.Content)
	assert.Equal(t, models.PostStatusScheduled, created.Status)
	assert.True(t, created.IsApproved)
	assert.True(t, created.ScheduledAt.After(time.Now().Add(-time.Minute)))
	hm := created.ScheduledAt.UTC().Format("15:04")
	assert.Contains(t, []string{"09:00", "18:00"}, hm)

	postPath := "/api/posts/" + strconv.FormatUint(uint64(created.ID), 10)

	resp = env.do(t, http.MethodGet, postPath, other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, postPath+"/approve", owner, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.CodeConflict, decode[models.ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodPost, postPath+"/retry", owner, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	edited := "edited content"
	resp = env.do(t, http.MethodPut, postPath, owner, UpdatePostRequest{Content: &edited})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, edited, decode[models.Post](t, resp).Content)

	resp = env.do(t, http.MethodGet, "/api/posts?status=scheduled", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.Post](t, resp), 1)

	resp = env.do(t, http.MethodGet, "/api/posts?status=bogus", owner, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, postPath, other, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, postPath, owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, postPath, owner, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreatePost_Validation(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 1)

	resp := env.do(t, http.MethodPost, "/api/posts", owner, CreatePostRequest{Content: "   "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidation, decode[models.ErrorResponse](t, resp).Code)

	long := string(bytes.Repeat([]byte("a"), models.MaxPostContentLength+1))
	resp = env.do(t, http.MethodPost, "/api/posts", owner, CreatePostRequest{Content: long})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+owner)
	raw, err := env.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = raw.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
}

func TestGenerateApproveAndRegenerate(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 3)

	resp := env.do(t, http.MethodPost, "/api/posts/generate", owner, GeneratePostsRequest{Topic: "go tips", Count: 3})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	drafts := decode[[]models.Post](t, resp)
	require.Len(t, drafts, 3)
	for i, d := range drafts {
		assert.Equal(t, models.PostStatusUnapproved, d.Status)
		assert.False(t, d.IsApproved)
		if i > 0 {
			assert.True(t, d.ScheduledAt.After(drafts[i-1].ScheduledAt), "assignments strictly increase")
		}
	}

	resp = env.do(t, http.MethodPost, "/api/posts/generate", owner, GeneratePostsRequest{Topic: "go tips", Count: 21})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	firstPath := "/api/posts/" + strconv.FormatUint(uint64(drafts[0].ID), 10)
	resp = env.do(t, http.MethodPost, firstPath+"/approve", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	approved := decode[models.Post](t, resp)
	assert.Equal(t, models.PostStatusScheduled, approved.Status)
	assert.True(t, approved.IsApproved)

	resp = env.do(t, http.MethodPost, firstPath+"/regenerate", owner, RegeneratePostRequest{Topic: "rust tips"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	regenerated := decode[models.Post](t, resp)
	assert.Equal(t, models.PostStatusUnapproved, regenerated.Status)
	assert.False(t, regenerated.IsApproved)
	assert.Contains(t, regenerated.Content, "rust tips")
}

func TestDispatchAndFollowerJobsOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 5)

	resp := env.do(t, http.MethodPut, "/api/account/credential", owner, ConnectAccountRequest{
		AccessToken: "platform-token",
		AccountID:   "acct-5",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[credential.Status](t, resp)
	assert.True(t, status.Connected)
	assert.True(t, status.Usable)

	past := time.Now().Add(-time.Minute).UTC()
	resp = env.do(t, http.MethodPost, "/api/posts", owner, CreatePostRequest{Content: "due now", ScheduledAt: &past})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	due := decode[models.Post](t, resp)

	resp = env.do(t, http.MethodPost, "/api/jobs/dispatch", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/jobs/dispatch", owner, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "user tokens cannot trigger jobs")

	resp = env.do(t, http.MethodPost, "/api/jobs/dispatch", testJobSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[jobs.DispatchSummary](t, resp)
	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.NotEmpty(t, summary.RunID)

	resp = env.do(t, http.MethodGet, "/api/posts/"+strconv.FormatUint(uint64(due.ID), 10), owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	posted := decode[models.Post](t, resp)
	assert.Equal(t, models.PostStatusPosted, posted.Status)
	require.NotNil(t, posted.ExternalPostID)
	assert.Equal(t, "ext-1", *posted.ExternalPostID)

	resp = env.do(t, http.MethodPost, "/api/jobs/dispatch", testJobSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 0, decode[jobs.DispatchSummary](t, resp).Total)
	assert.Equal(t, int64(1), env.pub.published.Load())

	resp = env.do(t, http.MethodPost, "/api/jobs/follower-stats", testJobSecret, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	fs := decode[jobs.FollowerSummary](t, resp)
	assert.Equal(t, 1, fs.Total)
	assert.Equal(t, 1, fs.Recorded)

	resp = env.do(t, http.MethodGet, "/api/stats/followers/latest", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1234), decode[models.FollowerSnapshot](t, resp).FollowerCount)

	resp = env.do(t, http.MethodGet, "/api/stats/followers?limit=10", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode[[]models.FollowerSnapshot](t, resp), 1)

	resp = env.do(t, http.MethodDelete, "/api/account/credential", owner, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = env.do(t, http.MethodGet, "/api/account/credential", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, decode[credential.Status](t, resp).Connected)
}

func TestSchedulePreview(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 9)

	resp := env.do(t, http.MethodGet, "/api/schedule/preview?count=3", owner, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	preview := decode[SchedulePreviewResponse](t, resp)
	require.Len(t, preview.Times, 3)
	assert.Equal(t, time.Hour, preview.Times[1].Sub(preview.Times[0]), "fallback spacing without slots")

	resp = env.do(t, http.MethodGet, "/api/schedule/preview?count=0", owner, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/api/schedule/slots", owner, UpdateSlotsRequest{Slots: []string{"25:00"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = env.do(t, http.MethodPut, "/api/schedule/slots", owner, UpdateSlotsRequest{Slots: []string{"09:00"}, Timezone: "Mars/Olympus"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdmissionDrainRejectsNewRequests(t *testing.T) {
	env := newTestEnv(t)
	owner := tokenFor(t, 1)

	require.True(t, env.srv.admission.Drain())

	resp := env.do(t, http.MethodGet, "/api/posts", owner, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "5", resp.Header.Get(fiber.HeaderRetryAfter))

	resp = env.do(t, http.MethodPost, "/api/jobs/dispatch", testJobSecret, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// MockDispatchRunner is a mock of the DispatchRunner interface
type MockDispatchRunner struct {
	mock.Mock
}

func (m *MockDispatchRunner) Run(ctx context.Context) (*jobs.DispatchSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jobs.DispatchSummary), args.Error(1)
}

func TestTriggerDispatch(t *testing.T) {
	tests := []struct {
		name           string
		mockSetup      func(m *MockDispatchRunner)
		expectedStatus int
	}{
		{
			name: "Success",
			mockSetup: func(m *MockDispatchRunner) {
				m.On("Run", mock.Anything).Return(&jobs.DispatchSummary{RunID: "r1", Total: 2, Succeeded: 1, Failed: 1}, nil)
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "Enumeration failure",
			mockSetup: func(m *MockDispatchRunner) {
				m.On("Run", mock.Anything).Return(nil, errors.New("list due posts: connection reset"))
			},
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockDispatchRunner)
			tt.mockSetup(m)
			s := &Server{dispatcher: m}

			app := fiber.New()
			app.Post("/jobs/dispatch", s.TriggerDispatch)

			resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/jobs/dispatch", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)
			if tt.expectedStatus == http.StatusInternalServerError {
				body := decode[models.ErrorResponse](t, resp)
				assert.Equal(t, "Internal server error", body.Error)
				assert.NotContains(t, body.Error, "connection reset")
			} else {
				summary := decode[jobs.DispatchSummary](t, resp)
				assert.Equal(t, 2, summary.Total)
			}
			m.AssertExpectations(t)
		})
	}
}

func TestContentGenerationFlag(t *testing.T) {
	env := newTestEnv(t)
	token := tokenFor(t, 3)

	resp := env.do(t, http.MethodGet, "/api/features", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]bool{"content_generation": true}, decode[map[string]bool](t, resp))

	env.srv.features = featureflags.NewManager("content_generation=off")
	env.app = env.srv.NewApp()

	resp = env.do(t, http.MethodPost, "/api/posts/generate", token, GeneratePostsRequest{Topic: "go", Count: 1})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "FEATURE_DISABLED", body["code"])

	resp = env.do(t, http.MethodPost, "/api/posts/1/regenerate", token, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/posts", token, CreatePostRequest{Content: "manual posts stay available"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

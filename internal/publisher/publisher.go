// Package publisher talks to the publishing platform's HTTP API.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/credential"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	opPublish   = "publish"
	opFollowers = "followers"
)

// FollowerCounts is an account's audience at the time of the request.
type FollowerCounts struct {
	Followers int64
	Following *int64
}

// Publisher publishes content and reads account metrics on behalf of an owner.
type Publisher interface {
	Publish(ctx context.Context, cred *credential.Credential, content string) (externalID string, err error)
	FetchFollowerCounts(ctx context.Context, cred *credential.Credential) (*FollowerCounts, error)
}

// APIError is a non-2xx response from the platform.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("platform returned HTTP %d: %s", e.StatusCode, e.Message)
}

// Retryable reports whether the same request might succeed later.
func (e *APIError) Retryable() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// Config configures a Client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

// Client is the resty-backed Publisher.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// NewClient builds a Client. A non-positive rate disables client-side throttling.
func NewClient(cfg Config) *Client {
	limit := rate.Inf
	burst := 1
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
		burst = int(math.Max(1, math.Ceil(cfg.RatePerSecond)))
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Client{http: hc, limiter: rate.NewLimiter(limit, burst)}
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func (b *errorBody) message() string {
	switch {
	case b.Detail != "":
		return b.Detail
	case len(b.Errors) > 0:
		return b.Errors[0].Message
	default:
		return b.Title
	}
}

type createTweetRequest struct {
	Text string `json:"text"`
}

type createTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

type meResponse struct {
	Data struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		PublicMetrics *struct {
			FollowersCount int64  `json:"followers_count"`
			FollowingCount *int64 `json:"following_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// Publish creates a post and returns the platform's id for it.
func (c *Client) Publish(ctx context.Context, cred *credential.Credential, content string) (string, error) {
	var out createTweetResponse
	err := c.do(ctx, opPublish, cred, func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(createTweetRequest{Text: content}).SetResult(&out).Post("/2/tweets")
	})
	if err != nil {
		return "", err
	}
	if out.Data.ID == "" {
		return "", errors.New("platform response did not include a post id")
	}
	return out.Data.ID, nil
}

// FetchFollowerCounts reads the authenticated account's public metrics.
func (c *Client) FetchFollowerCounts(ctx context.Context, cred *credential.Credential) (*FollowerCounts, error) {
	var out meResponse
	err := c.do(ctx, opFollowers, cred, func(r *resty.Request) (*resty.Response, error) {
		return r.SetQueryParam("user.fields", "public_metrics").SetResult(&out).Get("/2/users/me")
	})
	if err != nil {
		return nil, err
	}
	m := out.Data.PublicMetrics
	if m == nil {
		return nil, errors.New("platform response did not include public metrics")
	}
	if m.FollowersCount < 0 || (m.FollowingCount != nil && *m.FollowingCount < 0) {
		return nil, errors.New("platform returned negative follower counts")
	}
	return &FollowerCounts{Followers: m.FollowersCount, Following: m.FollowingCount}, nil
}

func (c *Client) do(ctx context.Context, op string, cred *credential.Credential, send func(*resty.Request) (*resty.Response, error)) error {
	ctx, span := observability.GetTraceLayer().TraceClientCall(ctx, "publisher", op)
	defer span.End()

	err := c.send(ctx, cred, send)
	outcome := observability.OutcomeSucceeded
	if err != nil {
		outcome = observability.OutcomeFailed
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.StatusCode))
		}
	}
	observability.PublisherRequests.WithLabelValues(op, outcome).Inc()
	return err
}

func (c *Client) send(ctx context.Context, cred *credential.Credential, send func(*resty.Request) (*resty.Response, error)) error {
	if cred == nil || cred.AccessToken == "" {
		return credential.ErrCredentialInvalid
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	var apiErr errorBody
	resp, err := send(c.http.R().
		SetContext(ctx).
		SetAuthToken(cred.AccessToken).
		SetError(&apiErr))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("platform request: %w", ctxErr)
		}
		return fmt.Errorf("platform request: %w", err)
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.message()}
	}
	return nil
}

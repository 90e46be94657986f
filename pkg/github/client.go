package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/go-github/v70/github"
	"github.com/krrrr38/github-2-github/pkg/logger"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"
)

// DefaultContentDelay spaces out content-creating requests.
// https://docs.github.com/en/rest/using-the-rest-api/rate-limits-for-the-rest-api?apiVersion=2022-11-28#calculating-points-for-the-secondary-rate-limit
const DefaultContentDelay = 1 * time.Second

// Client wraps the GitHub REST and GraphQL clients with retry capabilities
type Client struct {
	inner        *github.Client
	v4           *githubv4.Client
	maxRetries   int
	contentDelay time.Duration
}

type Option func(*Client)

// WithMaxRetries sets how many times a transient failure is retried
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithContentDelay sets the pause before each comment, issue or pull request creation
func WithContentDelay(d time.Duration) Option {
	return func(c *Client) {
		c.contentDelay = d
	}
}

// NewClientByPAT creates a new GitHub client with the provided token
func NewClientByPAT(token string, opts ...Option) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	return newClient(github.NewClient(tc), githubv4.NewClient(tc), opts...)
}

// NewClientByApp authenticates as a GitHub App installation
func NewClientByApp(appID, installationID int64, privateKey string, opts ...Option) (*Client, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, []byte(privateKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}
	hc := &http.Client{Transport: itr}
	return newClient(github.NewClient(hc), githubv4.NewClient(hc), opts...), nil
}

// NewClientWithURLs points both APIs at custom endpoints, mainly for tests
func NewClientWithURLs(hc *http.Client, restURL, graphqlURL string, opts ...Option) (*Client, error) {
	if !strings.HasSuffix(restURL, "/") {
		restURL += "/"
	}
	baseURL, err := url.Parse(restURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse GitHub API URL: %w", err)
	}
	inner := github.NewClient(hc)
	inner.BaseURL = baseURL
	return newClient(inner, githubv4.NewEnterpriseClient(graphqlURL, hc), opts...), nil
}

func newClient(inner *github.Client, v4 *githubv4.Client, opts ...Option) *Client {
	c := &Client{
		inner:        inner,
		v4:           v4,
		maxRetries:   3,
		contentDelay: DefaultContentDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetInner returns the underlying GitHub client
func (client *Client) GetInner() *github.Client {
	return client.inner
}

// GetV4 returns the underlying GitHub GraphQL client
func (client *Client) GetV4() *githubv4.Client {
	return client.v4
}

func (client *Client) retry(ctx context.Context, operation func() error) error {
	return RetryableOperation(ctx, client.maxRetries, operation)
}

// retryCreate retries a content-creating request only when GitHub refused it,
// since a 5xx or a dropped connection may hide a created issue, PR or comment
func (client *Client) retryCreate(ctx context.Context, operation func() error) error {
	return retryOperation(ctx, client.maxRetries, isRejectedError, operation)
}

// waitContent pauses before a content-creating request
func (client *Client) waitContent(ctx context.Context) error {
	if client.contentDelay <= 0 {
		return nil
	}
	select {
	case <-time.After(client.contentDelay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// newBackOff is replaced in tests to avoid sleeping
var newBackOff = func() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 1 * time.Second
	bo.Multiplier = 2.0
	bo.RandomizationFactor = 0.2
	bo.MaxInterval = 60 * time.Second
	bo.MaxElapsedTime = 0
	return bo
}

// RetryableOperation runs operation, retrying transient failures up to maxRetries times
func RetryableOperation(ctx context.Context, maxRetries int, operation func() error) error {
	return retryOperation(ctx, maxRetries, isRetryableError, operation)
}

func retryOperation(ctx context.Context, maxRetries int, retryable func(error) bool, operation func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempt := 0
	bo := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), uint64(maxRetries)), ctx)
	err := backoff.RetryNotify(func() error {
		attempt++
		err := operation()
		if err == nil {
			return nil
		}
		if isRateLimitError(err) {
			return backoff.Permanent(fmt.Errorf("rate limited: %w", err))
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo, func(err error, delay time.Duration) {
		logger.Info(fmt.Sprintf("Retryable error: %v. Retrying after %s (attempt %d/%d)", err, delay, attempt, maxRetries+1))
	})
	if err != nil && attempt > maxRetries && retryable(err) {
		return fmt.Errorf("operation failed after %d attempts: %w", attempt, err)
	}
	return err
}

// isRateLimitError determines if an error is due to primary rate limiting
func isRateLimitError(err error) bool {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return true
	}
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode == http.StatusForbidden && errResp.Message == "rate limit"
	}
	return false
}

// isRejectedError reports a secondary rate limit rejection, where GitHub did not process the request
func isRejectedError(err error) bool {
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil &&
		errResp.Response.StatusCode == http.StatusTooManyRequests
}

// isRetryableError determines if an error should be retried
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return true
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		code := errResp.Response.StatusCode
		return code == http.StatusTooManyRequests ||
			code == http.StatusInternalServerError ||
			code == http.StatusBadGateway ||
			code == http.StatusServiceUnavailable ||
			code == http.StatusGatewayTimeout
	}

	// network/transport errors, but not cancellation
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

// statusCode extracts the HTTP status from a go-github error, or 0
func statusCode(err error) int {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

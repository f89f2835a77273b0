package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second

	defaultBreakerFailures uint32 = 5
	defaultBreakerTimeout         = 30 * time.Second
	defaultBreakerInterval        = 60 * time.Second

	// RequestIDHeader carries a per-request id the server can log
	RequestIDHeader = "X-Request-ID"
)

// HTTPClient talks to a chat server over HTTP
type HTTPClient struct {
	options    ClientOptions
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient creates a new HTTP chat client
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	options := ClientOptions{
		BaseURL: defaultBaseURL,
		Variant: Butler,
		Timeout: defaultTimeout,
		Headers: make(map[string]string),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if options.BaseURL == "" {
		return nil, fmt.Errorf("base URL not provided")
	}
	if _, err := ParseVariant(string(options.Variant)); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// No client-wide timeout: it would cut long answer streams short.
	httpClient := &http.Client{}

	c := &HTTPClient{
		options:    options,
		httpClient: httpClient,
		logger:     logger,
	}
	c.breaker = newBreaker("chat:"+string(options.Variant), options.Breaker, logger)
	c.limiter = newLimiter(options.RateLimit)
	return c, nil
}

func newLimiter(rl RateLimit) *rate.Limiter {
	if rl.RequestsPerMinute <= 0 {
		return nil
	}
	burst := rl.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rl.RequestsPerMinute/60.0), burst)
}

func newBreaker(name string, cfg BreakerSettings, logger *zap.Logger) *gobreaker.CircuitBreaker[*http.Response] {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultBreakerFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultBreakerTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultBreakerInterval
	}

	return gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// A rejected request still proves the server is up.
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return !statusErr.Temporary()
			}
			return false
		},
	})
}

// Tools fetches the available tools
func (c *HTTPClient) Tools(ctx context.Context) (map[string]string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/tools", nil, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tools map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&tools); err != nil {
		return nil, fmt.Errorf("failed to parse tools: %w", err)
	}
	if tools == nil {
		tools = map[string]string{}
	}
	return tools, nil
}

// Greeting fetches the welcome message
func (c *HTTPClient) Greeting(ctx context.Context) (string, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, "/greeting", nil, "text/plain")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read greeting: %w", err)
	}
	return string(body), nil
}

// StreamChat submits a question. Only stream initiation goes through the
// circuit breaker; failures while reading the body are the caller's.
func (c *HTTPClient) StreamChat(ctx context.Context, inquiry Inquiry) (io.ReadCloser, error) {
	if inquiry.Tools == nil {
		inquiry.Tools = []string{}
	}
	body, err := json.Marshal(inquiry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, "/stream/chat", body, "text/plain")
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Close cleans up resources
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Endpoint returns the absolute URL of a variant-scoped path
func (c *HTTPClient) Endpoint(path string) string {
	return fmt.Sprintf("%s/api/%s%s", c.options.BaseURL, c.options.Variant, path)
}

// BreakerState reports the circuit breaker state
func (c *HTTPClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, accept string) (*http.Response, error) {
	url := c.Endpoint(path)
	requestID := uuid.NewString()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}
	start := time.Now()

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		c.setHeaders(req, accept, body != nil)
		req.Header.Set(RequestIDHeader, requestID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to execute request: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			defer resp.Body.Close()
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &StatusError{
				Method: method,
				Path:   path,
				Code:   resp.StatusCode,
				Body:   strings.TrimSpace(string(snippet)),
			}
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%s circuit open: %w", c.options.Variant, err)
		}
		c.logger.Debug("request failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.String("request_id", requestID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return nil, err
	}

	c.logger.Debug("request accepted",
		zap.String("method", method),
		zap.String("url", url),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}

func (c *HTTPClient) setHeaders(req *http.Request, accept string, hasBody bool) {
	req.Header.Set("User-Agent", "kaizen-chat/1.0")
	req.Header.Set("Accept", accept)
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.options.Headers {
		req.Header.Set(k, v)
	}
}

func (c *HTTPClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.options.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.options.Timeout)
}

var _ Client = (*HTTPClient)(nil)

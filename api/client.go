package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client defines the chat server operations the front end consumes
type Client interface {
	// Tools returns the available tools keyed by raw id
	Tools(ctx context.Context) (map[string]string, error)

	// Greeting returns the plain-text welcome message
	Greeting(ctx context.Context) (string, error)

	// StreamChat submits a question and returns the streamed answer body once
	// the server has accepted it. The caller must close the body.
	StreamChat(ctx context.Context, inquiry Inquiry) (io.ReadCloser, error)

	// Close cleans up any resources
	Close() error
}

// Inquiry is the request body of a chat submission
type Inquiry struct {
	Question string   `json:"question"`
	Tools    []string `json:"tools"`
}

// Variant selects which assistant the server routes to
type Variant string

const (
	Butler Variant = "butler"
	Hoover Variant = "hoover"
)

// Variants lists the supported assistants
var Variants = []Variant{Butler, Hoover}

// ParseVariant validates an assistant name
func ParseVariant(name string) (Variant, error) {
	v := Variant(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Variants {
		if v == known {
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown variant %q (want butler or hoover)", name)
}

// BreakerSettings configures the circuit breaker guarding requests
type BreakerSettings struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
}

// RateLimit throttles outgoing requests. A zero rate disables it.
type RateLimit struct {
	RequestsPerMinute float64
	Burst             int
}

// ClientOptions contains options for creating a client
type ClientOptions struct {
	BaseURL   string
	Variant   Variant
	// Timeout bounds the tools and greeting requests. Chat streams are
	// never timed out by the client.
	Timeout   time.Duration
	Headers   map[string]string
	Breaker   BreakerSettings
	RateLimit RateLimit
	Logger    *zap.Logger
}

// ClientOption is a functional option for configuring clients
type ClientOption func(*ClientOptions)

// WithBaseURL sets the server root, e.g. http://localhost:8080
func WithBaseURL(url string) ClientOption {
	return func(o *ClientOptions) {
		o.BaseURL = strings.TrimRight(url, "/")
	}
}

// WithVariant sets the assistant variant
func WithVariant(v Variant) ClientOption {
	return func(o *ClientOptions) {
		o.Variant = v
	}
}

// WithTimeout sets the timeout for non-streaming requests
func WithTimeout(timeout time.Duration) ClientOption {
	return func(o *ClientOptions) {
		o.Timeout = timeout
	}
}

// WithHeaders sets additional headers
func WithHeaders(headers map[string]string) ClientOption {
	return func(o *ClientOptions) {
		if o.Headers == nil {
			o.Headers = make(map[string]string)
		}
		for k, v := range headers {
			o.Headers[k] = v
		}
	}
}

// WithBreaker sets the circuit breaker thresholds
func WithBreaker(b BreakerSettings) ClientOption {
	return func(o *ClientOptions) {
		o.Breaker = b
	}
}

// WithRateLimit sets the request rate limit
func WithRateLimit(rl RateLimit) ClientOption {
	return func(o *ClientOptions) {
		o.RateLimit = rl
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = logger
	}
}

// Package embedding turns text into fixed-dimension vectors through an
// external embedding service, with validation and retry.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/metrics"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxTextLength = 10000
	DefaultRxTimeout     = 20 * time.Second
	DefaultMaxRetries    = 3
	DefaultBaseDelay     = 500 * time.Millisecond
)

// Options tunes Client behavior.
type Options struct {
	// MaxTextLength is a soft limit in runes; longer texts are logged, not rejected.
	MaxTextLength int
	// RxTimeout bounds each attempt end to end, independent of the transport timeout.
	RxTimeout time.Duration
	// MaxRetries is the total number of attempts.
	MaxRetries int
	// BaseDelay is the wait before the second attempt; it doubles after each
	// failure. Zero retries immediately, negative uses DefaultBaseDelay.
	BaseDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxTextLength <= 0 {
		o.MaxTextLength = DefaultMaxTextLength
	}
	if o.RxTimeout <= 0 {
		o.RxTimeout = DefaultRxTimeout
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.BaseDelay < 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	return o
}

// Client validates input, calls the transport and retries failed attempts
// with exponential backoff. It holds no per-call state.
type Client struct {
	transport Transport
	opts      Options
	logger    *zap.Logger

	// observeWait, when set, receives every backoff wait before it happens.
	observeWait func(time.Duration)
}

// NewClient creates an embedding client over the given transport.
func NewClient(transport Transport, opts Options, log *zap.Logger) *Client {
	return &Client{
		transport: transport,
		opts:      opts.withDefaults(),
		logger:    logger.OrNop(log),
	}
}

// Embed returns the embedding of text, which must have exactly expectedDim
// components. Failed attempts (transport errors, timeouts, wrong shape) are
// retried up to MaxRetries times with delay BaseDelay*2^(attempt-1); the
// final failure is an *UnavailableError.
func (c *Client) Embed(ctx context.Context, baseURL, text string, expectedDim int) ([]float32, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("%w: base URL is empty", ErrInvalidInput)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is empty", ErrInvalidInput)
	}
	if expectedDim <= 0 {
		return nil, fmt.Errorf("%w: expected dimension must be positive, got %d", ErrInvalidInput, expectedDim)
	}

	if n := utf8.RuneCountInString(text); n > c.opts.MaxTextLength {
		c.logger.Warn("Embedding text exceeds soft limit",
			zap.Int("length", n),
			zap.Int("limit", c.opts.MaxTextLength),
		)
	}

	start := time.Now()
	var (
		vector   []float32
		attempts int
		lastErr  error
	)

	operation := func() error {
		attempts++
		metrics.EmbeddingAttemptsTotal.Inc()

		v, err := c.attempt(ctx, baseURL, text, expectedDim)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		vector = v
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Embedding attempt failed, retrying",
			zap.Int("attempt", attempts),
			zap.Int("max_attempts", c.opts.MaxRetries),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if c.observeWait != nil {
			c.observeWait(wait)
		}
	}

	err := backoff.RetryNotify(operation, c.newBackOff(ctx), notify)
	metrics.EmbeddingRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("error").Inc()
		if lastErr == nil {
			lastErr = err
		}
		c.logger.Error("Embedding failed",
			zap.Int("attempts", attempts),
			zap.Error(lastErr),
		)
		return nil, &UnavailableError{Attempts: attempts, Err: lastErr}
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ok").Inc()
	return vector, nil
}

// attempt performs one bounded request and validates the response shape.
func (c *Client) attempt(ctx context.Context, baseURL, text string, expectedDim int) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RxTimeout)
	defer cancel()

	vectors, err := c.transport.Embed(ctx, baseURL, text)
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("%w: expected 1 vector, got %d", ErrUnexpectedResponse, len(vectors))
	}
	if len(vectors[0]) != expectedDim {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vectors[0]), expectedDim)
	}
	return vectors[0], nil
}

// newBackOff yields BaseDelay, 2*BaseDelay, 4*BaseDelay, ... with no jitter,
// allowing MaxRetries attempts in total and no wait after the last one.
func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.opts.BaseDelay * time.Duration(1<<uint(c.opts.MaxRetries))
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.opts.MaxRetries-1)), ctx)
}

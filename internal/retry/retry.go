package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultMaxRetries = 5
)

// RetryableFunc is one attempt of a retried operation.
type RetryableFunc func(ctx context.Context) error

// Config holds configuration for retry operations.
type Config struct {
	MaxRetries    int
	BackoffConfig *BackoffConfig
	Logger        *zap.Logger
}

// NewConfig creates a new retry configuration with default values.
func NewConfig() *Config {
	return &Config{
		MaxRetries:    DefaultMaxRetries,
		BackoffConfig: NewBackoffConfig(),
		Logger:        zap.NewNop(),
	}
}

// WithMaxRetries sets the maximum number of retry attempts.
func (c *Config) WithMaxRetries(maxRetries int) *Config {
	if maxRetries >= 0 {
		c.MaxRetries = maxRetries
	}
	return c
}

// WithLogger sets the logger that reports each failed attempt.
func (c *Config) WithLogger(logger *zap.Logger) *Config {
	if logger != nil {
		c.Logger = logger
	}
	return c
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so DoWithConfig returns it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// DoWithConfig runs fn until it succeeds, returns a Permanent error, or MaxRetries
// retries have failed. The error of the last attempt is returned.
func DoWithConfig(ctx context.Context, config *Config, fn RetryableFunc) error {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context error: %w", err)
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == config.MaxRetries {
			return err
		}

		delay := config.BackoffConfig.Calculate(attempt)
		logger.Debug("attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("context error: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return nil
}

// Package health gates simulation startup on target service readiness.
package health

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultAttempts and DefaultDelay bound the startup wait to about
	// a minute per service.
	DefaultAttempts = 30
	DefaultDelay    = 2 * time.Second
)

// Checker polls each target service's health endpoint until it answers
// or the retry budget runs out.
type Checker struct {
	client   *http.Client
	logger   *zap.Logger
	attempts int
	delay    time.Duration
}

func NewChecker(logger *zap.Logger) *Checker {
	return &Checker{
		client:   &http.Client{Timeout: 5 * time.Second},
		logger:   logger,
		attempts: DefaultAttempts,
		delay:    DefaultDelay,
	}
}

// WaitAll blocks until every base URL reports healthy. The first service
// that exhausts its retries fails the whole wait; the caller must not
// start any traffic after an error.
func (c *Checker) WaitAll(ctx context.Context, services map[string]string) error {
	for name, baseURL := range services {
		if err := c.wait(ctx, name, baseURL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) wait(ctx context.Context, name, baseURL string) error {
	url := strings.TrimRight(baseURL, "/") + "/health"

	for attempt := 1; attempt <= c.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if c.probe(ctx, url) {
			c.logger.Info("service ready",
				zap.String("service", name),
				zap.Int("attempt", attempt))
			return nil
		}

		c.logger.Debug("service not ready yet",
			zap.String("service", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.attempts))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}
	}

	return fmt.Errorf("service %s at %s not healthy after %d attempts", name, baseURL, c.attempts)
}

func (c *Checker) probe(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

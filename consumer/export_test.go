//go:build unit

package consumer

import (
	"context"
	"time"
)

func WithSleeper(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *config) {
		c.sleep = fn
	}
}

package fetcher

import (
	"context"
	"time"

	"github.com/IshaanNene/StoreScope/internal/automation"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// Navigable is the browser session capability consumed by the engine.
type Navigable interface {
	// Launch starts the browser. It must be called once before navigating.
	Launch(ctx context.Context) error

	// Navigate loads url and reports success or an explicit block.
	Navigate(ctx context.Context, url string) types.NavOutcome

	// NavigateWithFallback tries primary, then secondary, refreshing once
	// after each error page. A challenge is reported without waiting.
	NavigateWithFallback(ctx context.Context, primary, secondary string) types.NavOutcome

	// WaitForChallenge blocks until a challenge is cleared or the
	// configured budget runs out.
	WaitForChallenge(ctx context.Context) bool

	// HTTPClient builds an API client carrying the browser's cookies.
	HTTPClient(ctx context.Context, referer string) (*Client, error)

	// Page returns the live page.
	Page() automation.Page

	// Close releases the browser.
	Close() error
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// SleepFunc matches Sleep. Tests substitute a recorder.
type SleepFunc func(ctx context.Context, d time.Duration) error

package engine

import (
	"context"
	"time"

	"github.com/IshaanNene/StoreScope/internal/config"
	"github.com/IshaanNene/StoreScope/internal/fetcher"
)

// Pacer draws randomized delays and sleeps them, honoring cancellation.
type Pacer struct {
	sleep fetcher.SleepFunc
}

// NewPacer creates a Pacer. A nil sleep uses fetcher.Sleep.
func NewPacer(sleep fetcher.SleepFunc) *Pacer {
	if sleep == nil {
		sleep = fetcher.Sleep
	}
	return &Pacer{sleep: sleep}
}

// Wait sleeps a fresh random duration drawn from r.
func (p *Pacer) Wait(ctx context.Context, r config.DelayRange) error {
	return p.sleep(ctx, r.Draw())
}

// Sleep sleeps exactly d.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleep(ctx, d)
}

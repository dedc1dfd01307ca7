package engine

import (
	"context"
	"errors"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// Strategy control errors. Strategies wrap them to steer the cascade; any
// other error is absorbed as a warning.
var (
	// ErrSkip means the strategy does not apply to this page, for example
	// because the API tokens are missing.
	ErrSkip = errors.New("strategy not applicable")

	// ErrExhausted means the strategy read its source to the end. The
	// remaining strategies are not attempted.
	ErrExhausted = errors.New("source exhausted")
)

// Strategy is one step of the extraction cascade for records of type T.
type Strategy[T any] interface {
	Name() string
	Attempt(ctx context.Context, run *Run, sink Sink[T]) error
}

// ProductStrategy contributes product fields. Fields already set by an
// earlier strategy are never overwritten.
type ProductStrategy interface {
	Name() string
	Extract(ctx context.Context, run *Run) (*types.ProductRecord, error)
}

// Collect folds strategies into coll in order. A strategy is attempted
// only while coll holds fewer than sufficiency records and is not full.
// Strategy failures never abort the fold.
func Collect[T any](ctx context.Context, run *Run, content types.ContentType, strategies []Strategy[T], coll *Collection[T], sufficiency int) *Collection[T] {
	logger := run.Logger.With("component", "collector", "content", content)

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			run.Warn("%s: collection cancelled: %v", content, err)
			break
		}
		if coll.Full() {
			logger.Info("result cap reached", "count", coll.Len())
			break
		}
		if sufficiency > 0 && coll.Len() >= sufficiency {
			logger.Debug("yield sufficient, skipping remaining strategies", "count", coll.Len(), "next", s.Name())
			break
		}

		before := coll.Len()
		logger.Debug("strategy attempt", "strategy", s.Name(), "count", before)
		err := s.Attempt(ctx, run, coll)
		added := coll.Len() - before
		run.addYield(content, s.Name(), added)

		switch {
		case err == nil:
			logger.Debug("strategy complete", "strategy", s.Name(), "added", added)
		case errors.Is(err, ErrExhausted):
			logger.Info("source exhausted", "strategy", s.Name(), "added", added, "count", coll.Len())
			return coll
		case errors.Is(err, ErrSkip):
			logger.Info("strategy skipped", "strategy", s.Name(), "reason", err)
		default:
			logger.Warn("strategy failed", "strategy", s.Name(), "added", added, "error", err)
			run.Metrics.StrategyErrors.Add(1)
			run.Warn("%s/%s: %v", content, s.Name(), err)
		}
	}
	return coll
}

// CollectProduct merges the product strategies in order, first writer
// wins, until the record is complete.
func CollectProduct(ctx context.Context, run *Run, strategies []ProductStrategy) types.ProductRecord {
	logger := run.Logger.With("component", "collector", "content", types.ContentProduct)

	var rec types.ProductRecord
	for _, s := range strategies {
		if ctx.Err() != nil || rec.Complete() {
			break
		}
		logger.Debug("strategy attempt", "strategy", s.Name())
		part, err := s.Extract(ctx, run)
		if part != nil {
			rec.Merge(part)
		}
		switch {
		case err == nil:
		case errors.Is(err, ErrSkip):
			logger.Info("strategy skipped", "strategy", s.Name(), "reason", err)
		default:
			logger.Warn("strategy failed", "strategy", s.Name(), "error", err)
			run.Metrics.StrategyErrors.Add(1)
			run.Warn("%s/%s: %v", types.ContentProduct, s.Name(), err)
		}
		// Later strategies read earlier fields, e.g. the review total.
		run.setProduct(rec)
	}

	rec.Merge(&types.ProductRecord{ID: run.Identity.ProductID, URL: run.Identity.PageURL()})
	run.setProduct(rec)
	return rec
}

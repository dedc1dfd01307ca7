// Package extract implements the platform strategies of the extraction
// cascade: embedded page data, internal APIs, structural DOM scans and
// legacy selector tables.
package extract

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/StoreScope/internal/engine"
	"github.com/IshaanNene/StoreScope/internal/parser"
	"github.com/IshaanNene/StoreScope/internal/types"
)

// attempt adapts a function to engine.Strategy.
type attempt[T any] struct {
	name string
	fn   func(ctx context.Context, run *engine.Run, sink engine.Sink[T]) error
}

func (a attempt[T]) Name() string { return a.name }

func (a attempt[T]) Attempt(ctx context.Context, run *engine.Run, sink engine.Sink[T]) error {
	return a.fn(ctx, run, sink)
}

// product adapts a function to engine.ProductStrategy.
type product struct {
	name string
	fn   func(ctx context.Context, run *engine.Run) (*types.ProductRecord, error)
}

func (p product) Name() string { return p.name }

func (p product) Extract(ctx context.Context, run *engine.Run) (*types.ProductRecord, error) {
	return p.fn(ctx, run)
}

// Register installs every strategy of both platforms into reg.
func Register(reg *engine.Registry, logger *slog.Logger) {
	structured := parser.NewStructuredDataExtractor(logger)

	for _, p := range []types.Platform{types.PlatformCoupang, types.PlatformNaver} {
		reg.Register(p, engine.StrategyEmbedded, engine.StrategySet{
			Product: []engine.ProductStrategy{product{engine.StrategyEmbedded, embeddedProduct}},
			Reviews: attempt[types.ReviewRecord]{engine.StrategyEmbedded, embeddedReviews},
			QnA:     attempt[types.QnAPair]{engine.StrategyEmbedded, embeddedQnA},
		})
	}

	reg.Register(types.PlatformCoupang, engine.StrategyAPI, engine.StrategySet{
		Reviews: attempt[types.ReviewRecord]{engine.StrategyAPI, coupangAPIReviews},
	})
	reg.Register(types.PlatformCoupang, engine.StrategyLegacy, engine.StrategySet{
		Product: []engine.ProductStrategy{
			product{engine.StrategyLegacy, coupangProduct},
			product{"structured", structuredProduct(structured)},
		},
		Reviews: attempt[types.ReviewRecord]{engine.StrategyLegacy, coupangUIReviews},
		QnA:     attempt[types.QnAPair]{engine.StrategyLegacy, coupangQnA},
	})

	reg.Register(types.PlatformNaver, engine.StrategyAPI, engine.StrategySet{
		Reviews: attempt[types.ReviewRecord]{engine.StrategyAPI, naverAPIReviews},
		QnA:     attempt[types.QnAPair]{engine.StrategyAPI, naverAPIQnA},
	})
	reg.Register(types.PlatformNaver, engine.StrategyDOM, engine.StrategySet{
		Reviews: attempt[types.ReviewRecord]{engine.StrategyDOM, naverDOMReviews},
		QnA:     attempt[types.QnAPair]{engine.StrategyDOM, naverDOMQnA},
	})
	reg.Register(types.PlatformNaver, engine.StrategyLegacy, engine.StrategySet{
		Product: []engine.ProductStrategy{
			product{engine.StrategyLegacy, naverProduct},
			product{"structured", structuredProduct(structured)},
		},
		Reviews: attempt[types.ReviewRecord]{engine.StrategyLegacy, naverLegacyReviews},
		QnA:     attempt[types.QnAPair]{engine.StrategyLegacy, naverLegacyQnA},
	})
}

// DefaultRegistry returns a registry holding every built-in strategy.
func DefaultRegistry(logger *slog.Logger) *engine.Registry {
	reg := engine.NewRegistry()
	Register(reg, logger)
	return reg
}

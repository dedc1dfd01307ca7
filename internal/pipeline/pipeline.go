// Package pipeline normalizes collected records before they reach a
// collection.
package pipeline

import (
	"log/slog"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return false to drop the record from the pipeline.
type Middleware[T any] interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return false to drop it.
	Process(rec T) (T, bool)
}

// Pipeline chains middleware processors together.
type Pipeline[T any] struct {
	middlewares []Middleware[T]
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New[T any](logger *slog.Logger) *Pipeline[T] {
	return &Pipeline[T]{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline[T]) Use(mw Middleware[T]) *Pipeline[T] {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
	return p
}

// Process runs the record through all middleware in order.
func (p *Pipeline[T]) Process(rec T) (T, bool) {
	current := rec
	for _, mw := range p.middlewares {
		next, ok := mw.Process(current)
		if !ok {
			p.logger.Debug("record dropped", "stage", mw.Name())
			var zero T
			return zero, false
		}
		current = next
	}
	return current, true
}

// Len returns the number of middleware in the chain.
func (p *Pipeline[T]) Len() int {
	return len(p.middlewares)
}

// Func adapts a plain function to a Middleware.
type Func[T any] struct {
	Label string
	Fn    func(T) (T, bool)
}

func (f Func[T]) Name() string { return f.Label }

func (f Func[T]) Process(rec T) (T, bool) { return f.Fn(rec) }

package engine

import (
	"sort"
	"sync"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// Strategy names.
const (
	StrategyEmbedded = "embedded"
	StrategyAPI      = "api"
	StrategyDOM      = "dom"
	StrategyLegacy   = "legacy"
)

// StrategySet is what one named strategy contributes on a platform. Any
// field may be empty.
type StrategySet struct {
	Product []ProductStrategy
	Reviews Strategy[types.ReviewRecord]
	QnA     Strategy[types.QnAPair]
}

// Plan is the ordered cascade for one platform.
type Plan struct {
	Product []ProductStrategy
	Reviews []Strategy[types.ReviewRecord]
	QnA     []Strategy[types.QnAPair]
}

// Registry maps strategy names to their implementations per platform.
type Registry struct {
	mu   sync.RWMutex
	sets map[types.Platform]map[string]StrategySet
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sets: make(map[types.Platform]map[string]StrategySet)}
}

// Register installs set under name for platform, replacing any previous
// registration.
func (r *Registry) Register(platform types.Platform, name string, set StrategySet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sets[platform] == nil {
		r.sets[platform] = make(map[string]StrategySet)
	}
	r.sets[platform][name] = set
}

// Names returns the strategy names registered for platform, sorted.
func (r *Registry) Names(platform types.Platform) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets[platform]))
	for n := range r.sets[platform] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Plan builds the cascade for platform in the given order. Names without
// a registration on the platform are returned as unknown and skipped.
func (r *Registry) Plan(platform types.Platform, order []string) (Plan, []string) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plan Plan
	var unknown []string
	seen := make(map[string]bool, len(order))
	for _, name := range order {
		if seen[name] {
			continue
		}
		seen[name] = true
		set, ok := r.sets[platform][name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		plan.Product = append(plan.Product, set.Product...)
		if set.Reviews != nil {
			plan.Reviews = append(plan.Reviews, set.Reviews)
		}
		if set.QnA != nil {
			plan.QnA = append(plan.QnA, set.QnA)
		}
	}
	return plan, unknown
}

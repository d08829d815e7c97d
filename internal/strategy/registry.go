package strategy

import (
	"fmt"
	"sync"

	"binaryOptionsBot/internal/domain"
	"binaryOptionsBot/internal/ports"
)

type entry struct {
	mu sync.Mutex // serializes updates to one strategy
	s  domain.Strategy
}

// Registry is the in-memory catalog of strategies. Membership is guarded by an RWMutex and each
// entry has its own lock, so updates to different strategies never contend. Callers only ever see
// copies.
type Registry struct {
	mu        sync.RWMutex
	entries   map[string]*entry
	order     []string // insertion order
	maxActive int
}

// NewRegistry creates a registry that holds at most maxActive active strategies.
func NewRegistry(maxActive int) *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		maxActive: maxActive,
	}
}

// Add inserts a strategy. The ceiling check and the insert happen under the same lock, so
// concurrent adds can never push the active count above the ceiling.
func (r *Registry) Add(s domain.Strategy) error {
	if s.ID == "" {
		return fmt.Errorf("%w: strategy id is empty", ports.ErrInvalidRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[s.ID]; exists {
		return fmt.Errorf("%w: strategy %s already registered", ports.ErrInvalidRequest, s.ID)
	}
	if s.IsActive() && r.maxActive > 0 && r.activeCountLocked() >= r.maxActive {
		return fmt.Errorf("%w: %d active strategies", ports.ErrCeilingReached, r.maxActive)
	}

	r.entries[s.ID] = &entry{s: s.Clone()}
	r.order = append(r.order, s.ID)
	return nil
}

// Get returns a copy of the strategy.
func (r *Registry) Get(id string) (domain.Strategy, bool) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Strategy{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.s.Clone(), true
}

// Update applies fn to the stored strategy under its entry lock and returns the updated copy.
// A retired strategy can never be made active again.
func (r *Registry) Update(id string, fn func(s *domain.Strategy) error) (domain.Strategy, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return domain.Strategy{}, fmt.Errorf("%w: %s", ports.ErrStrategyNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	working := e.s.Clone()
	if err := fn(&working); err != nil {
		return e.s.Clone(), err
	}
	if working.ID != e.s.ID {
		return e.s.Clone(), fmt.Errorf("%w: strategy id cannot change", ports.ErrInvalidRequest)
	}
	if e.s.Status == domain.StrategyRetired && working.Status != domain.StrategyRetired {
		return e.s.Clone(), fmt.Errorf("%w: strategy %s is retired", ports.ErrInvalidRequest, id)
	}
	e.s = working
	return e.s.Clone(), nil
}

// Active returns copies of the active strategies in insertion order.
func (r *Registry) Active() []domain.Strategy {
	return r.collect(true)
}

// All returns copies of every strategy in insertion order.
func (r *Registry) All() []domain.Strategy {
	return r.collect(false)
}

// ActiveCount returns the number of active strategies.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

// Len returns the number of strategies, retired included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// MaxActive returns the active-strategy ceiling.
func (r *Registry) MaxActive() int {
	return r.maxActive
}

func (r *Registry) collect(activeOnly bool) []domain.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Strategy, 0, len(r.order))
	for _, id := range r.order {
		e := r.entries[id]
		e.mu.Lock()
		if !activeOnly || e.s.IsActive() {
			out = append(out, e.s.Clone())
		}
		e.mu.Unlock()
	}
	return out
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, e := range r.entries {
		e.mu.Lock()
		if e.s.IsActive() {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

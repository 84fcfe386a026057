package policy

import (
	"fmt"
	"sort"
	"sync"

	"github.com/annealtrade/regimebot/internal/domain"
)

// Policy is a named, pluggable trading strategy. Implementations must be
// pure: the engine owns all risk and sizing decisions.
type Policy interface {
	Name() string
	EntrySignal(candles []domain.Candle) domain.EntrySignal
	ExitSignal(candles []domain.Candle, entryPrice float64) domain.ExitSignal
}

// Registry is a name-keyed map of policies, populated once at startup.
// Selection is a map lookup, never dynamic dispatch.
type Registry struct {
	mu       sync.RWMutex
	policies map[string]Policy
}

func NewRegistry() *Registry {
	return &Registry{policies: make(map[string]Policy)}
}

func (r *Registry) Register(p Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.policies[p.Name()]; exists {
		return fmt.Errorf("policy %q already registered", p.Name())
	}
	r.policies[p.Name()] = p
	return nil
}

func (r *Registry) Get(name string) (Policy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[name]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.policies))
	for name := range r.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in policies registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range []Policy{
		NewEMACrossover(),
		NewMomentumRider(),
		NewRSIReversal(),
		NewVWAPMeanRev(),
		NewBreakoutHunter(),
	} {
		// Built-in names are unique; a collision here is a programming error.
		if err := r.Register(p); err != nil {
			panic(err)
		}
	}
	return r
}

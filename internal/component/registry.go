package component

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kingrea/vilma/internal/config"
)

var (
	// ErrCoupleTypes is returned when a component's declared couple types
	// disagree with whether it implements Coupler.
	ErrCoupleTypes = errors.New("component: couple types do not match the coupler contract")
	// ErrUnsupportedCouple is returned by ResolveCoupler for undeclared couple types.
	ErrUnsupportedCouple = errors.New("component: couple type not supported")
)

// Env carries the host services a factory may depend on.
type Env struct {
	Config *config.Config
	Logger *zap.Logger
}

// Factory constructs a component from the host environment.
type Factory func(Env) (Component, error)

// Registry maintains known component factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register installs a component factory. Returns an error if the name already exists.
func (r *Registry) Register(name string, factory Factory) error {
	if name == "" {
		return fmt.Errorf("component: name is required")
	}
	if factory == nil {
		return fmt.Errorf("component: factory is required for %s", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("component: %s already registered", name)
	}
	r.factories[name] = factory
	return nil
}

// MustRegister panics if registration fails.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Resolve constructs a component by name. A Coupler must declare at least
// one couple type and a plain Component must declare none.
func (r *Registry) Resolve(name string, env Env) (Component, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("component: unknown name %s", name)
	}
	if env.Logger == nil {
		env.Logger = zap.NewNop()
	}
	comp, err := factory(env)
	if err != nil {
		return nil, fmt.Errorf("component: build %s: %w", name, err)
	}
	info := comp.Info()
	if err := info.Validate(); err != nil {
		return nil, err
	}
	_, coupler := comp.(Coupler)
	if coupler != (len(info.CoupleTypes) > 0) {
		return nil, fmt.Errorf("%w: %s declares %v", ErrCoupleTypes, name, info.CoupleTypes)
	}
	return comp, nil
}

// ResolveCoupler resolves name and checks it takes part in coupleType
// exchanges.
func (r *Registry) ResolveCoupler(name, coupleType string, env Env) (Coupler, error) {
	comp, err := r.Resolve(name, env)
	if err != nil {
		return nil, err
	}
	info := comp.Info()
	if !info.SupportsCouple(coupleType) {
		return nil, fmt.Errorf("%w: %s couples %v, not %q", ErrUnsupportedCouple, name, info.CoupleTypes, coupleType)
	}
	return comp.(Coupler), nil
}

// Names returns a sorted list of registered component names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package chain

import (
	"sort"
	"sync"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/pkg/errors"
)

// Operation is a named extension step. It receives the current payload and
// the arguments passed to Apply, and returns the replacement payload. It must
// not modify data.
type Operation func(data dataset.Value, args ...any) (dataset.Value, error)

// Registry maps names to extension operations. It is safe for concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry is the process-wide registry used by chains built without
// WithRegistry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// Register adds op under name. Empty, duplicate and built-in step names are
// rejected with a ConfigurationError.
func (r *Registry) Register(name string, op Operation) error {
	if name == "" {
		return errors.NewConfigurationError("operation name", name)
	}
	if reserved[name] {
		return errors.NewConfigurationError("operation name", name+" (built-in step)")
	}
	if op == nil {
		return errors.NewConfigurationError("operation", "nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[name]; ok {
		return errors.NewConfigurationError("operation name", name+" (already registered)")
	}
	r.ops[name] = op
	return nil
}

// MustRegister is Register that panics on error.
func (r *Registry) MustRegister(name string, op Operation) {
	if err := r.Register(name, op); err != nil {
		panic(err)
	}
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Apply runs the extension operation registered under name on the payload.
// The step is logged under name. An unknown name is a ConfigurationError.
func (c *Chain) Apply(name string, args ...any) *Chain {
	step := name
	if step == "" {
		step = StepApply
	}
	return c.run(step, func() (*outcome, error) {
		op, ok := c.registry.Lookup(name)
		if !ok {
			return nil, errors.NewConfigurationError("operation", name, c.registry.Names()...)
		}
		next, err := op(c.data.Clone(), args...)
		if err != nil {
			return nil, err
		}
		if !dataset.Present(next) {
			return nil, errors.NewCollaboratorErrorf(name, "operation returned no payload (%T)", next)
		}
		return c.swap(name+" applied", next), nil
	})
}

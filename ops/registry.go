package ops

import (
	"fmt"
	"sort"

	"github.com/djeday123/godnn/dnn"
	"github.com/djeday123/godnn/tensor"
)

// Operator is a vendor-backed tensor operation. Run reads the input
// tensors and writes the outputs, resizing them as needed. Close
// releases vendor descriptors; an operator must not be used after
// Close. Instances are not safe for concurrent invocation.
type Operator interface {
	Run(inputs, outputs []*tensor.Tensor) error
	Close() error
}

// Factory constructs an operator bound to a vendor library instance.
type Factory func(lib dnn.Library, args Arguments) (Operator, error)

// Registry maps operator names to factories. Registration happens
// explicitly during bootstrap, never from init(); this keeps operator
// availability a decision of the embedding program rather than a side
// effect of imports.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register installs a factory under name. Registering the same name
// twice is a bootstrap bug and fails.
func (r *Registry) Register(name string, f Factory) error {
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("operator %q already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Create builds a named operator against the given vendor library.
func (r *Registry) Create(name string, lib dnn.Library, args Arguments) (Operator, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("operator %q not registered", name)
	}
	return f(lib, args)
}

// Names returns the registered operator names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

package metric

import (
	"errors"
	"fmt"

	"github.com/haskel/raimetrics/internal/dataset"
)

// Session is the read-only view of an analysis session that groups consult
// for compatibility and configuration.
type Session interface {
	Task() TaskType
	Config() *UserConfig
	Model() *dataset.Model
	Meta() *dataset.MetaDatabase
}

// Descriptor registers one metric group.
type Descriptor struct {
	Name       string
	TaskType   TaskType
	Complexity Complexity
	Category   string
	// Compatible adds conditions on top of the task restriction. Nil means none.
	Compatible func(s Session) bool
	New        func(s Session) Group
}

// IsCompatible is the task restriction and-ed with the extra predicate.
func (d Descriptor) IsCompatible(s Session) bool {
	if !d.TaskType.Accepts(s.Task()) {
		return false
	}
	if d.Compatible != nil {
		return d.Compatible(s)
	}
	return true
}

func (d Descriptor) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDescriptor)
	}
	if d.New == nil {
		return fmt.Errorf("%w: %s has no constructor", ErrInvalidDescriptor, d.Name)
	}
	if !d.TaskType.IsValid() {
		return fmt.Errorf("%w: %s has unknown task type %q", ErrInvalidDescriptor, d.Name, d.TaskType)
	}
	return nil
}

// Registry is an immutable ordered set of descriptors.
type Registry struct {
	entries []Descriptor
	index   map[string]int
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.entries))
	for i, d := range r.entries {
		out[i] = d.Name
	}
	return out
}

func (r *Registry) Get(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.entries[i], true
}

// Descriptors returns a copy of the entries in registration order.
func (r *Registry) Descriptors() []Descriptor {
	return append([]Descriptor(nil), r.entries...)
}

// RegistryBuilder collects descriptors before freezing them into a Registry.
type RegistryBuilder struct {
	entries []Descriptor
	index   map[string]int
	errs    []error
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{index: make(map[string]int)}
}

// Register adds d. Errors are collected and reported by Build.
func (b *RegistryBuilder) Register(ds ...Descriptor) *RegistryBuilder {
	for _, d := range ds {
		if err := d.validate(); err != nil {
			b.errs = append(b.errs, err)
			continue
		}
		if _, exists := b.index[d.Name]; exists {
			b.errs = append(b.errs, fmt.Errorf("%w: %s", ErrDuplicateGroup, d.Name))
			continue
		}
		b.index[d.Name] = len(b.entries)
		b.entries = append(b.entries, d)
	}
	return b
}

func (b *RegistryBuilder) Build() (*Registry, error) {
	if len(b.errs) > 0 {
		return nil, errors.Join(b.errs...)
	}
	r := &Registry{
		entries: append([]Descriptor(nil), b.entries...),
		index:   make(map[string]int, len(b.entries)),
	}
	for k, v := range b.index {
		r.index[k] = v
	}
	return r, nil
}

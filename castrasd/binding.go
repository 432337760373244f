// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"fmt"
	"iter"

	"go.uber.org/multierr"
)

// Binding is a service hosted by the running application.
type Binding struct {
	Name       string
	Descriptor Descriptor
}

// Bind creates a Binding named after its descriptor.
func Bind(d Descriptor) Binding {
	return Binding{
		Name:       d.Name,
		Descriptor: d,
	}
}

// Bindings is an immutable, ordered set of Bindings with unique names. The
// set is fixed once the application is assembled.
//
// A nil *Bindings is an empty set.
type Bindings struct {
	all   []Binding
	names map[string]bool
}

// NewBindings validates and bundles the given bindings. Every binding must have
// a name, and names must be unique. All problems are reported in one aggregate error.
func NewBindings(bs ...Binding) (*Bindings, error) {
	var (
		err error
		b   = &Bindings{
			all:   make([]Binding, 0, len(bs)),
			names: make(map[string]bool, len(bs)),
		}
	)

	for i, binding := range bs {
		switch {
		case len(binding.Name) == 0:
			err = multierr.Append(err, fmt.Errorf("no service name for binding #%d", i))

		case b.names[binding.Name]:
			err = multierr.Append(err, fmt.Errorf("duplicate service binding [%s]", binding.Name))

		default:
			b.names[binding.Name] = true
			b.all = append(b.all, binding)
		}
	}

	if err != nil {
		return nil, err
	}

	return b, nil
}

// Len returns the number of bindings.
func (b *Bindings) Len() int {
	if b == nil {
		return 0
	}

	return len(b.all)
}

// Contains tests if a service with the given name is bound.
func (b *Bindings) Contains(name string) bool {
	return b != nil && b.names[name]
}

// All provides iteration over the bindings in declaration order.
func (b *Bindings) All() iter.Seq[Binding] {
	return func(f func(Binding) bool) {
		if b == nil {
			return
		}

		for _, binding := range b.all {
			if !f(binding) {
				return
			}
		}
	}
}

// Names returns a fresh set of the bound service names.
func (b *Bindings) Names() map[string]bool {
	names := make(map[string]bool, b.Len())
	for binding := range b.All() {
		names[binding.Name] = true
	}

	return names
}

// DescribeServices implements Describer, so an application's bindings can be
// exported to tooling directly.
func (b *Bindings) DescribeServices() []Descriptor {
	ds := make([]Descriptor, 0, b.Len())
	for binding := range b.All() {
		ds = append(ds, binding.Descriptor)
	}

	return ds
}

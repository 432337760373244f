// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/multierr"
)

// Call is a single endpoint of a service. Path is a route pattern in which
// ":name" matches one path segment and "*name" matches the remainder of the path,
// e.g. "/api/users/:id".
type Call struct {
	Method string `json:"method" yaml:"method"`
	Path   string `json:"path" yaml:"path"`
}

// ServiceACL describes access to a service that is permitted from outside the
// application. An empty Method permits any method.
type ServiceACL struct {
	Method    string `json:"method,omitempty" yaml:"method,omitempty"`
	PathRegex string `json:"pathRegex" yaml:"pathRegex"`
}

// MethodACL creates a ServiceACL restricted to one HTTP method.
func MethodACL(method, pathRegex string) ServiceACL {
	return ServiceACL{
		Method:    method,
		PathRegex: pathRegex,
	}
}

// PathACL creates a ServiceACL that permits any HTTP method.
func PathACL(pathRegex string) ServiceACL {
	return ServiceACL{
		PathRegex: pathRegex,
	}
}

// Descriptor describes a service: its name, its calls, and who may reach it.
// Build one with a DescriptorBuilder.
type Descriptor struct {
	// Name is the service name used for location and registration.
	Name string

	// Calls are the endpoints this service exposes.
	Calls []Call

	// ACLs are the explicitly declared access control entries.
	ACLs []ServiceACL

	// AutoACL indicates that an ACL should be generated for each call
	// when the descriptor is resolved.
	AutoACL bool

	// Locatable indicates that this service should be registered with, and
	// found through, service locators. Internal-only services set this to false.
	Locatable bool
}

// DescriptorBuilder is a Fluent Builder for Descriptors.
//
// The zero value is usable, but Named is the common starting point. This
// builder is not safe for concurrent usage.
type DescriptorBuilder struct {
	d   Descriptor
	err error
}

// Named starts a DescriptorBuilder for a locatable service.
func Named(name string) *DescriptorBuilder {
	return &DescriptorBuilder{
		d: Descriptor{
			Name:      name,
			Locatable: true,
		},
	}
}

func (db *DescriptorBuilder) appendErrs(errs ...error) {
	db.err = multierr.Append(
		db.err,
		multierr.Combine(errs...),
	)
}

// WithCalls adds endpoints to the service.
func (db *DescriptorBuilder) WithCalls(calls ...Call) *DescriptorBuilder {
	for _, c := range calls {
		if !strings.HasPrefix(c.Path, "/") {
			db.appendErrs(fmt.Errorf("call path [%s] must begin with '/'", c.Path))
			continue
		}

		if len(c.Method) == 0 {
			c.Method = http.MethodGet
		}

		db.d.Calls = append(db.d.Calls, c)
	}

	return db
}

// WithACLs adds explicit access control entries.
func (db *DescriptorBuilder) WithACLs(acls ...ServiceACL) *DescriptorBuilder {
	for _, acl := range acls {
		if _, err := regexp.Compile(acl.PathRegex); err != nil {
			db.appendErrs(fmt.Errorf("invalid ACL path regex [%s]: %w", acl.PathRegex, err))
			continue
		}

		db.d.ACLs = append(db.d.ACLs, acl)
	}

	return db
}

// WithAutoACL controls ACL generation for each call.
func (db *DescriptorBuilder) WithAutoACL(v bool) *DescriptorBuilder {
	db.d.AutoACL = v
	return db
}

// WithLocatable controls whether the service is visible to locators.
func (db *DescriptorBuilder) WithLocatable(v bool) *DescriptorBuilder {
	db.d.Locatable = v
	return db
}

// Err returns any accumulated error thus far.
func (db *DescriptorBuilder) Err() error {
	return db.err
}

// Build returns the Descriptor, or an aggregate of every error encountered.
func (db *DescriptorBuilder) Build() (d Descriptor, err error) {
	err = db.err
	if len(db.d.Name) == 0 {
		err = multierr.Append(err, ErrNoServiceName)
	}

	if err == nil {
		d = db.d
		d.Calls = append([]Call(nil), db.d.Calls...)
		d.ACLs = append([]ServiceACL(nil), db.d.ACLs...)
	}

	return
}

// MustBuild is like Build, but panics on error. Useful for descriptors declared
// as package variables.
func (db *DescriptorBuilder) MustBuild() Descriptor {
	d, err := db.Build()
	if err != nil {
		panic(err)
	}

	return d
}

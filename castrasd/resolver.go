// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoServiceName indicates a descriptor without a name.
var ErrNoServiceName = errors.New("service descriptors must have a name")

// Resolver turns a declared Descriptor into its canonical form: the name used
// for location and the complete list of ACLs.
type Resolver interface {
	Resolve(Descriptor) (Descriptor, error)
}

// ResolverFunc is the closure form of a Resolver.
type ResolverFunc func(Descriptor) (Descriptor, error)

func (f ResolverFunc) Resolve(d Descriptor) (Descriptor, error) { return f(d) }

// DefaultResolver returns the standard Resolver. It validates the name and ACL
// patterns, and when AutoACL is set, appends one ACL per call.
func DefaultResolver() Resolver {
	return ResolverFunc(defaultResolve)
}

func defaultResolve(d Descriptor) (r Descriptor, err error) {
	if len(d.Name) == 0 {
		return Descriptor{}, ErrNoServiceName
	}

	r = d
	r.Calls = append([]Call(nil), d.Calls...)
	r.ACLs = make([]ServiceACL, 0, len(d.ACLs)+len(d.Calls))
	for _, acl := range d.ACLs {
		if _, err = regexp.Compile(acl.PathRegex); err != nil {
			return Descriptor{}, fmt.Errorf("service [%s]: invalid ACL path regex [%s]: %w", d.Name, acl.PathRegex, err)
		}

		r.ACLs = append(r.ACLs, acl)
	}

	if d.AutoACL {
		for _, c := range d.Calls {
			r.ACLs = append(r.ACLs, MethodACL(c.Method, CallPathRegex(c.Path)))
		}
	}

	return
}

// CallPathRegex converts a call's route pattern into an anchored regular
// expression. Query strings are dropped. ":name" segments match a single path
// segment, "*name" segments match the rest of the path, and everything else
// is matched literally.
func CallPathRegex(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	var (
		b        strings.Builder
		segments = strings.Split(path, "/")
	)

	b.WriteByte('^')
	for i, s := range segments {
		if i > 0 {
			b.WriteByte('/')
		}

		switch {
		case strings.HasPrefix(s, ":"):
			b.WriteString("[^/]+")

		case strings.HasPrefix(s, "*"):
			b.WriteString(".*")

		default:
			b.WriteString(regexp.QuoteMeta(s))
		}
	}

	b.WriteByte('$')
	return b.String()
}

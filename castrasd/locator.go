// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"net/url"
)

// Locator maps a service name to network addresses.
//
// Implementations must be idempotent and safe for concurrent use, since
// callers, including circuit breakers, may invoke them repeatedly.
type Locator interface {
	// Locate returns one address for the named service. A nil URL with a nil
	// error means the service is not known to this Locator, which is not an error.
	//
	// The call identifies the endpoint being invoked. Locators may ignore it.
	Locate(ctx context.Context, name string, call Call) (*url.URL, error)

	// LocateAll returns every known address for the named service. An empty
	// slice means the service is not known to this Locator.
	LocateAll(ctx context.Context, name string, call Call) ([]*url.URL, error)
}

// ServiceDoer is optionally implemented by Locators that need to control how a
// located service is used, such as wrapping the invocation in a circuit breaker.
type ServiceDoer interface {
	DoWithService(ctx context.Context, name string, call Call, f func(*url.URL) error) (bool, error)
}

// DoWithService locates the named service and invokes f with its address. The
// returned boolean is false, and f is not invoked, if the service could not be found.
//
// If l implements ServiceDoer, it is used instead.
func DoWithService(ctx context.Context, l Locator, name string, call Call, f func(*url.URL) error) (bool, error) {
	if sd, ok := l.(ServiceDoer); ok {
		return sd.DoWithService(ctx, name, call, f)
	}

	return doWithService(ctx, l, name, call, f)
}

func doWithService(ctx context.Context, l Locator, name string, call Call, f func(*url.URL) error) (bool, error) {
	u, err := l.Locate(ctx, name, call)
	if err != nil || u == nil {
		return false, err
	}

	return true, f(u)
}

// cloneURL copies a URL so callers cannot modify a Locator's state.
func cloneURL(u *url.URL) *url.URL {
	clone := *u
	if u.User != nil {
		user := *u.User
		clone.User = &user
	}

	return &clone
}

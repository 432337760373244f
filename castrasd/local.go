// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
)

const (
	// DefaultLocalScheme is the scheme of URLs returned by a LocalLocator.
	DefaultLocalScheme = "http"

	// DefaultLocalHost is the host of URLs returned by a LocalLocator.
	DefaultLocalHost = "localhost"
)

// ErrNoServicePort indicates that a component requiring a ServicePort was given nil.
var ErrNoServicePort = errors.New("a service port is required")

// LocalLocatorOption is a configurable option for a LocalLocator.
type LocalLocatorOption interface {
	apply(*LocalLocator) error
}

type localLocatorOptionFunc func(*LocalLocator) error

func (f localLocatorOptionFunc) apply(ll *LocalLocator) error { return f(ll) }

// WithScheme sets the scheme of located URLs. This should match the scheme
// of the server that publishes the ServicePort.
func WithScheme(scheme string) LocalLocatorOption {
	return localLocatorOptionFunc(func(ll *LocalLocator) error {
		if len(scheme) > 0 {
			ll.scheme = scheme
		}

		return nil
	})
}

// WithHost sets the host of located URLs.
func WithHost(host string) LocalLocatorOption {
	return localLocatorOptionFunc(func(ll *LocalLocator) error {
		if len(host) > 0 {
			ll.host = host
		}

		return nil
	})
}

// LocalLocator finds services hosted by this application instance. It only
// knows the names in the application's Bindings, and all of them live at the
// one port the application's server publishes.
type LocalLocator struct {
	names  map[string]bool
	port   *ServicePort
	scheme string
	host   string
}

// NewLocalLocator creates a LocalLocator over a fixed set of bindings. Lookups
// will wait until port is published.
func NewLocalLocator(b *Bindings, port *ServicePort, opts ...LocalLocatorOption) (*LocalLocator, error) {
	if port == nil {
		return nil, ErrNoServicePort
	}

	ll := &LocalLocator{
		names:  b.Names(),
		port:   port,
		scheme: DefaultLocalScheme,
		host:   DefaultLocalHost,
	}

	for _, o := range opts {
		if err := o.apply(ll); err != nil {
			return nil, err
		}
	}

	return ll, nil
}

// Locate waits for the ServicePort, then returns the local URL if name is a
// bound service. Unbound names produce a nil URL. If the ServicePort failed, or
// ctx ends before the port is published, that error is returned.
func (ll *LocalLocator) Locate(ctx context.Context, name string, _ Call) (*url.URL, error) {
	port, err := ll.port.Await(ctx)
	if err != nil || !ll.names[name] {
		return nil, err
	}

	return &url.URL{
		Scheme: ll.scheme,
		Host:   net.JoinHostPort(ll.host, strconv.Itoa(port)),
	}, nil
}

// LocateAll returns the single local URL, if any.
func (ll *LocalLocator) LocateAll(ctx context.Context, name string, call Call) ([]*url.URL, error) {
	u, err := ll.Locate(ctx, name, call)
	if u == nil {
		return nil, err
	}

	return []*url.URL{u}, nil
}

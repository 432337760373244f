// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrPortResolved is returned when a ServicePort that already has a port,
	// or has already failed, is published to again.
	ErrPortResolved = errors.New("the service port has already been resolved")

	// ErrInvalidPort is returned when an attempt is made to publish a port
	// outside the range of valid TCP ports.
	ErrInvalidPort = errors.New("invalid service port")
)

// ServicePort is the port an application's server listens on, published exactly
// once after the server binds. Servers are frequently built before their port is
// known, e.g. when binding to port 0, so anything that needs to address the server
// waits on a ServicePort.
//
// The zero value is ready to use. A ServicePort must not be copied after first use.
// It is safe for one publisher and any number of concurrent readers.
type ServicePort struct {
	lock     sync.Mutex
	done     chan struct{}
	resolved bool

	port int
	err  error
}

// NewServicePort creates an unresolved ServicePort.
func NewServicePort() *ServicePort {
	return new(ServicePort)
}

// doneChan lazily creates the done channel. The lock must be held.
func (sp *ServicePort) doneChan() chan struct{} {
	if sp.done == nil {
		sp.done = make(chan struct{})
	}

	return sp.done
}

// resolve settles this ServicePort exactly once. The lock must be held.
func (sp *ServicePort) resolve(port int, err error) error {
	if sp.resolved {
		return ErrPortResolved
	}

	sp.resolved = true
	sp.port = port
	sp.err = err
	close(sp.doneChan())
	return nil
}

// Provide publishes the port. Every pending and future Await returns this port.
//
// Publishing more than once returns ErrPortResolved, whatever the port, and leaves
// the original port in place. Otherwise, a port outside 1-65535 returns
// ErrInvalidPort and does not resolve this ServicePort.
func (sp *ServicePort) Provide(port int) error {
	defer sp.lock.Unlock()
	sp.lock.Lock()

	if sp.resolved {
		return ErrPortResolved
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	return sp.resolve(port, nil)
}

// Fail resolves this ServicePort with an error instead of a port, typically
// because the server could not bind. Every pending and future Await returns err.
// The same once-only rule as Provide applies.
func (sp *ServicePort) Fail(err error) error {
	if err == nil {
		err = errors.New("service port failed")
	}

	defer sp.lock.Unlock()
	sp.lock.Lock()
	return sp.resolve(0, err)
}

// Done returns a channel that is closed once this ServicePort is resolved.
func (sp *ServicePort) Done() <-chan struct{} {
	defer sp.lock.Unlock()
	sp.lock.Lock()
	return sp.doneChan()
}

// Port returns the published port without waiting. The boolean is false if no
// port has been published yet, or if this ServicePort failed.
func (sp *ServicePort) Port() (int, bool) {
	defer sp.lock.Unlock()
	sp.lock.Lock()
	return sp.port, sp.resolved && sp.err == nil
}

// Await waits for this ServicePort to resolve. If the context ends first, the
// context's error is returned. Awaiting a failed ServicePort returns the failure.
func (sp *ServicePort) Await(ctx context.Context) (int, error) {
	select {
	case <-sp.Done():
		// the fields are immutable once done is closed
		return sp.port, sp.err

	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

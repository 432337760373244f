// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/consul/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// DefaultRegisterRetry is the default interval between attempts to register a service.
	DefaultRegisterRetry = 10 * time.Second

	// DefaultCheckInterval is how often consul polls a service's health check.
	DefaultCheckInterval = 10 * time.Second

	// DefaultCheckHost is the host health checks target when no advertised
	// address is configured.
	DefaultCheckHost = "localhost"
)

var (
	ErrRegistrarRegistered = errors.New("the registrar has already registered, or is registering, its services")
	ErrNoAgent             = errors.New("no consul agent supplied")
)

// AgentRegisterer is the low-level behavior of anything that can perform a
// consul service registration. *api.Agent implements this interface.
type AgentRegisterer interface {
	ServiceRegisterOpts(*api.AgentServiceRegistration, api.ServiceRegisterOpts) error
}

// AgentDeregisterer is the low-level behavior of anything that can perform a
// consul service deregistration. *api.Agent implements this interface.
type AgentDeregisterer interface {
	ServiceDeregisterOpts(serviceID string, opts *api.QueryOptions) error
}

// RegistrarOption is a configurable option for a Registrar.
type RegistrarOption interface {
	apply(*Registrar) error
}

type registrarOptionFunc func(*Registrar) error

func (f registrarOptionFunc) apply(r *Registrar) error { return f(r) }

// WithAgent sets both the registerer and deregisterer, typically from an *api.Agent.
func WithAgent(a interface {
	AgentRegisterer
	AgentDeregisterer
}) RegistrarOption {
	return registrarOptionFunc(func(r *Registrar) error {
		r.ar = a
		r.ad = a
		return nil
	})
}

// WithRegistration applies the registration portion of the consul configuration.
func WithRegistration(rc RegistrationConfig) RegistrarOption {
	return registrarOptionFunc(func(r *Registrar) error {
		r.address = rc.Address
		r.tags = append([]string(nil), rc.Tags...)
		if rc.Retry > 0 {
			r.retry = rc.Retry
		}

		r.check = rc.Check
		if len(r.check.Path) > 0 && r.check.Interval <= 0 {
			r.check.Interval = DefaultCheckInterval
		}

		return nil
	})
}

// WithServiceScheme sets the scheme advertised in each registration's meta.
func WithServiceScheme(scheme string) RegistrarOption {
	return registrarOptionFunc(func(r *Registrar) error {
		if len(scheme) > 0 {
			r.scheme = scheme
		}

		return nil
	})
}

// WithInstanceID overrides the generated identifier for this application instance.
func WithInstanceID(id string) RegistrarOption {
	return registrarOptionFunc(func(r *Registrar) error {
		if len(id) > 0 {
			r.instance = id
		}

		return nil
	})
}

// WithRegistrarLogger sets the logger used to report registration progress.
func WithRegistrarLogger(l *zap.Logger) RegistrarOption {
	return registrarOptionFunc(func(r *Registrar) error {
		if l != nil {
			r.logger = l
		}

		return nil
	})
}

// Registrar registers this application's locatable bindings with a consul agent.
// Since the server's port is not known until it binds, registration waits on
// the ServicePort.
type Registrar struct {
	ar       AgentRegisterer
	ad       AgentDeregisterer
	bindings *Bindings
	port     *ServicePort
	logger   *zap.Logger

	address  string
	tags     []string
	scheme   string
	instance string
	retry    time.Duration
	check    CheckConfig

	// after creates the timers between registration attempts. Tests replace it.
	after func(time.Duration) (<-chan time.Time, func() bool)

	lock        sync.Mutex
	registering bool
	registered  []string
}

// NewRegistrar creates a Registrar for the given bindings. An agent is required.
func NewRegistrar(b *Bindings, port *ServicePort, opts ...RegistrarOption) (*Registrar, error) {
	if port == nil {
		return nil, ErrNoServicePort
	}

	r := &Registrar{
		bindings: b,
		port:     port,
		logger:   zap.NewNop(),
		scheme:   DefaultConsulScheme,
		instance: uuid.NewString(),
		retry:    DefaultRegisterRetry,
		after: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}

	for _, o := range opts {
		if err := o.apply(r); err != nil {
			return nil, err
		}
	}

	if r.ar == nil || r.ad == nil {
		return nil, ErrNoAgent
	}

	return r, nil
}

// InstanceID returns the identifier of this application instance.
func (r *Registrar) InstanceID() string {
	return r.instance
}

// ServiceID returns the consul service identifier used for a bound service.
func (r *Registrar) ServiceID(name string) string {
	return name + "-" + r.instance
}

func (r *Registrar) registration(b Binding, port int) *api.AgentServiceRegistration {
	asr := &api.AgentServiceRegistration{
		ID:      r.ServiceID(b.Name),
		Name:    b.Name,
		Tags:    r.tags,
		Port:    port,
		Address: r.address,
		Meta: map[string]string{
			SchemeMetaKey: r.scheme,
		},
	}

	if len(r.check.Path) > 0 {
		host := r.address
		if len(host) == 0 {
			host = DefaultCheckHost
		}

		check := &api.AgentServiceCheck{
			CheckID:  asr.ID + "-http",
			Name:     b.Name + " health",
			Interval: r.check.Interval.String(),
			HTTP: (&url.URL{
				Scheme: r.scheme,
				Host:   net.JoinHostPort(host, strconv.Itoa(port)),
				Path:   r.check.Path,
			}).String(),
		}

		if r.check.Timeout > 0 {
			check.Timeout = r.check.Timeout.String()
		}

		if r.check.DeregisterAfter > 0 {
			check.DeregisterCriticalServiceAfter = r.check.DeregisterAfter.String()
		}

		asr.Check = check
	}

	return asr
}

// registerOne retries a single registration until it succeeds or ctx ends.
func (r *Registrar) registerOne(ctx context.Context, asr *api.AgentServiceRegistration) error {
	opts := api.ServiceRegisterOpts{
		ReplaceExistingChecks: true,
	}.WithContext(ctx)

	for {
		err := r.ar.ServiceRegisterOpts(asr, opts)
		if err == nil {
			return nil
		}

		r.logger.Warn(
			"service registration failed",
			zap.String("serviceID", asr.ID),
			zap.Error(err),
		)

		ch, stop := r.after(r.retry)
		select {
		case <-ctx.Done():
			stop()
			return err

		case <-ch:
			// continue retrying
		}
	}
}

// Register waits for the ServicePort, then registers every locatable binding.
// Each registration is retried until it succeeds or ctx ends. Services registered
// before an error remain registered and are removed by Deregister.
//
// The Registrar is not locked while waiting or talking to the agent, so Registered
// and Deregister remain usable. A second Register, whether concurrent or after a
// successful one, returns ErrRegistrarRegistered.
func (r *Registrar) Register(ctx context.Context) error {
	r.lock.Lock()
	if r.registering || len(r.registered) > 0 {
		r.lock.Unlock()
		return ErrRegistrarRegistered
	}

	r.registering = true
	r.lock.Unlock()

	defer func() {
		r.lock.Lock()
		r.registering = false
		r.lock.Unlock()
	}()

	port, err := r.port.Await(ctx)
	if err != nil {
		return err
	}

	for b := range r.bindings.All() {
		if !b.Descriptor.Locatable {
			continue
		}

		asr := r.registration(b, port)
		if err := r.registerOne(ctx, asr); err != nil {
			return err
		}

		r.lock.Lock()
		r.registered = append(r.registered, asr.ID)
		r.lock.Unlock()

		r.logger.Info(
			"registered service",
			zap.String("service", b.Name),
			zap.String("serviceID", asr.ID),
			zap.Int("port", port),
		)
	}

	return nil
}

// Deregister removes every service this Registrar registered. Deregistration is
// attempted for all services regardless of errors, and the errors are aggregated.
func (r *Registrar) Deregister(ctx context.Context) (err error) {
	r.lock.Lock()
	registered := r.registered
	r.registered = nil
	r.lock.Unlock()

	for _, serviceID := range registered {
		qo := new(api.QueryOptions).WithContext(ctx)
		err = multierr.Append(err, r.ad.ServiceDeregisterOpts(serviceID, qo))
	}

	return
}

// Registered returns the consul identifiers of the currently registered services.
func (r *Registrar) Registered() []string {
	defer r.lock.Unlock()
	r.lock.Lock()
	return append([]string(nil), r.registered...)
}

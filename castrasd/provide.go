// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"

	"github.com/hashicorp/consul/api"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideServicePort creates the application's one *ServicePort. The server
// publishes to it, and locators and registrars wait on it.
func ProvideServicePort() fx.Option {
	return fx.Provide(NewServicePort)
}

// ProvideBindings creates the application's *Bindings, one per descriptor,
// in the given order.
func ProvideBindings(ds ...Descriptor) fx.Option {
	return fx.Provide(
		func() (*Bindings, error) {
			bs := make([]Binding, 0, len(ds))
			for _, d := range ds {
				bs = append(bs, Bind(d))
			}

			return NewBindings(bs...)
		},
	)
}

type localIn struct {
	fx.In

	Bindings *Bindings `optional:"true"`
	Port     *ServicePort
	Options  []LocalLocatorOption `group:"castrasd.local"`
}

func newLocalLocator(in localIn) (Locator, error) {
	return NewLocalLocator(in.Bindings, in.Port, in.Options...)
}

// ProvideLocal creates a Locator that only finds this application's own bindings.
// This is the usual locator for development and tests. A *ServicePort must be
// present, and *Bindings is optional.
//
// LocalLocatorOptions may be contributed with the value group "castrasd.local".
func ProvideLocal() fx.Option {
	return fx.Provide(newLocalLocator)
}

// ProvideStatic creates a Locator backed by a StaticConfig, which must be present
// in the application, e.g. via castra.ProvideConfig[castrasd.StaticConfig]("castra.services").
func ProvideStatic() fx.Option {
	return fx.Provide(
		func(sc StaticConfig) (Locator, error) {
			return NewStaticLocator(sc)
		},
	)
}

func newConsulClient(cfg ConsulConfig) (*api.Client, error) {
	apiCfg := NewConsulAPIConfig(cfg)
	return api.NewClient(&apiCfg)
}

func newConsulLocator(s Services, cfg ConsulConfig) (Locator, error) {
	return NewConsulLocator(s, cfg)
}

type registrarIn struct {
	fx.In

	Client   *api.Client
	Config   ConsulConfig
	Bindings *Bindings `optional:"true"`
	Port     *ServicePort
	Logger   *zap.Logger `optional:"true"`
}

func newRegistrar(in registrarIn) (*Registrar, error) {
	return NewRegistrar(
		in.Bindings,
		in.Port,
		WithAgent(in.Client.Agent()),
		WithRegistration(in.Config.Registration),
		WithServiceScheme(in.Config.ServiceScheme),
		WithRegistrarLogger(in.Logger),
	)
}

// BindRegistrar binds a Registrar to the application lifecycle. On start,
// registration runs in the background, since it waits on the ServicePort that
// the server publishes from its own start hook. On stop, any registration still
// in progress is canceled and every registered service is deregistered.
func BindRegistrar(r *Registrar, lc fx.Lifecycle) {
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan struct{})

			go func() {
				defer close(done)
				if err := r.Register(ctx); err != nil && !errors.Is(err, context.Canceled) {
					r.logger.Error("service registration did not complete", zap.Error(err))
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}

			return r.Deregister(ctx)
		},
	})
}

// ProvideConsul creates the production service discovery components. A ConsulConfig
// must be present in the application, e.g. via
// castra.ProvideConfig[castrasd.ConsulConfig]("castra.consul"), along with a *ServicePort.
//
// The following components are created:
//
//   - *api.Client
//   - Services, backed by the consul health endpoint
//   - Locator, backed by consul
//   - *Registrar, bound to the application lifecycle
func ProvideConsul() fx.Option {
	return fx.Options(
		fx.Provide(
			newConsulClient,
			func(c *api.Client) Services { return NewHealthServices(c) },
			newConsulLocator,
			newRegistrar,
		),
		fx.Invoke(
			BindRegistrar,
		),
	)
}

type circuitBreakerIn struct {
	fx.In

	Locator Locator
	Config  CircuitBreakerConfig `optional:"true"`
	Logger  *zap.Logger          `optional:"true"`
}

// ProvideCircuitBreaker decorates whatever Locator the application has with
// per-service circuit breaking. A CircuitBreakerConfig is optional.
func ProvideCircuitBreaker() fx.Option {
	return fx.Decorate(
		func(in circuitBreakerIn) Locator {
			return NewCircuitBreakerLocator(in.Locator, in.Config, in.Logger)
		},
	)
}

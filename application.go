// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ApplicationOption tailors how NewApplication assembles an Application.
type ApplicationOption interface {
	apply(*applicationSettings) error
}

type applicationOptionFunc func(*applicationSettings) error

func (f applicationOptionFunc) apply(as *applicationSettings) error { return f(as) }

type applicationSettings struct {
	additional Configuration
	logger     *zap.Logger
	modules    []fx.Option
}

// WithAdditionalConfiguration overlays configuration on top of the base
// configuration file. The context's initial configuration still wins over it.
// Multiple uses are overlaid in order.
func WithAdditionalConfiguration(c Configuration) ApplicationOption {
	return applicationOptionFunc(func(as *applicationSettings) error {
		as.additional = as.additional.Overlay(c)
		return nil
	})
}

// WithLogger supplies the application logger, bypassing the logging configuration.
func WithLogger(l *zap.Logger) ApplicationOption {
	return applicationOptionFunc(func(as *applicationSettings) error {
		as.logger = l
		return nil
	})
}

// WithModules adds fx options, e.g. castrasd.ProvideLocal(), to the application's
// dependency graph.
func WithModules(opts ...fx.Option) ApplicationOption {
	return applicationOptionFunc(func(as *applicationSettings) error {
		as.modules = append(as.modules, opts...)
		return nil
	})
}

// Application is an assembled, but not necessarily started, application.
type Application struct {
	ctx    Context
	config Configuration
	logger *zap.Logger
	app    *fx.App
}

// NewApplication composes configuration and logging for the given context and
// builds the fx dependency graph. The following components are always available
// within the graph:
//
//   - castra.Context
//   - castra.Mode
//   - castra.Configuration
//   - *zap.Logger
//
// If the graph cannot be built, the error from fx is returned.
func NewApplication(ctx Context, opts ...ApplicationOption) (*Application, error) {
	var as applicationSettings
	for _, o := range opts {
		if err := o.apply(&as); err != nil {
			return nil, err
		}
	}

	config, err := LoadConfiguration(ctx, as.additional)
	if err != nil {
		return nil, err
	}

	if as.logger == nil {
		var lc LoggingConfig
		if err := config.Unmarshal("logging", &lc); err != nil {
			return nil, err
		}

		if as.logger, err = NewLogger(ctx.Mode(), lc); err != nil {
			return nil, err
		}
	}

	a := &Application{
		ctx:    ctx,
		config: config,
		logger: as.logger,
	}

	a.app = fx.New(
		fxLogger(a.logger),
		fx.Supply(ctx, ctx.Mode(), a.logger),
		fx.Provide(a.Configuration),
		fx.Options(as.modules...),
	)

	if err := a.app.Err(); err != nil {
		return nil, err
	}

	a.logger.Debug("application assembled", zap.Stringer("mode", ctx.Mode()))
	return a, nil
}

// Context returns the context this application was loaded with.
func (a *Application) Context() Context {
	return a.ctx
}

// Configuration returns a copy of the composed configuration.
func (a *Application) Configuration() Configuration {
	return a.config.Clone()
}

// Logger returns the application logger.
func (a *Application) Logger() *zap.Logger {
	return a.logger
}

// Start runs all fx start hooks.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Stop runs all fx stop hooks and flushes the logger.
func (a *Application) Stop(ctx context.Context) error {
	err := a.app.Stop(ctx)
	a.logger.Sync() // ignore errors, e.g. syncing stderr
	return err
}

// Done returns a channel that receives a signal when the process should shut down.
func (a *Application) Done() <-chan fx.ShutdownSignal {
	return a.app.Wait()
}

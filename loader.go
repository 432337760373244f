// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import "errors"

// ErrNoLoadFunc indicates that a Loader was created without a production LoadFunc.
var ErrNoLoadFunc = errors.New("a production load function is required")

// LoadFunc assembles an Application from a Context.
type LoadFunc func(Context) (*Application, error)

// Loader is the entry point the hosting platform uses to obtain an Application.
type Loader interface {
	Load(Context) (*Application, error)
}

// LoaderOption is a configurable option for a ModeLoader.
type LoaderOption interface {
	apply(*ModeLoader) error
}

type loaderOptionFunc func(*ModeLoader) error

func (f loaderOptionFunc) apply(ml *ModeLoader) error { return f(ml) }

// WithDevLoad sets the LoadFunc used for Dev mode. A nil LoadFunc is ignored.
func WithDevLoad(f LoadFunc) LoaderOption {
	return loaderOptionFunc(func(ml *ModeLoader) error {
		ml.dev = f
		return nil
	})
}

// ModeLoader is a Loader that dispatches on the context's Mode. Dev mode
// uses the development LoadFunc, all other modes use the production LoadFunc.
type ModeLoader struct {
	prod LoadFunc
	dev  LoadFunc
}

// NewLoader creates a ModeLoader. Unless WithDevLoad is used, Dev mode
// loads the same way as production.
func NewLoader(prod LoadFunc, opts ...LoaderOption) (*ModeLoader, error) {
	if prod == nil {
		return nil, ErrNoLoadFunc
	}

	ml := &ModeLoader{
		prod: prod,
	}

	for _, o := range opts {
		if err := o.apply(ml); err != nil {
			return nil, err
		}
	}

	return ml, nil
}

// Load dispatches to LoadDevMode or LoadProdMode based on ctx.Mode().
func (ml *ModeLoader) Load(ctx Context) (*Application, error) {
	if ctx.Mode() == Dev {
		return ml.LoadDevMode(ctx)
	}

	return ml.LoadProdMode(ctx)
}

// LoadProdMode always uses the production LoadFunc.
func (ml *ModeLoader) LoadProdMode(ctx Context) (*Application, error) {
	return ml.prod(ctx)
}

// LoadDevMode uses the development LoadFunc, falling back to production.
func (ml *ModeLoader) LoadDevMode(ctx Context) (*Application, error) {
	if ml.dev != nil {
		return ml.dev(ctx)
	}

	return ml.prod(ctx)
}

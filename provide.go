// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import (
	"go.uber.org/fx"
)

// ProvideConfig creates a component of type T by unmarshaling the configuration
// subtree at key. If the key is absent, the zero value of T is provided.
//
// This is the usual way to feed configuration into other packages' Provide functions:
//
//	castra.ProvideConfig[castrahttp.Config]("castra.http")
func ProvideConfig[T any](key string) fx.Option {
	return fx.Provide(
		func(c Configuration) (t T, err error) {
			err = c.Unmarshal(key, &t)
			return
		},
	)
}

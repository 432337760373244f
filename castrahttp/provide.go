// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrahttp

import (
	"github.com/xmidt-org/castra"
	"github.com/xmidt-org/castra/castrasd"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RouteGroup is the fx value group that Routes are collected from.
const RouteGroup = "castrahttp.routes"

// AsRoute annotates a constructor so that the Route it returns joins the RouteGroup.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.ResultTags(`group:"`+RouteGroup+`"`),
	)
}

type serverIn struct {
	fx.In

	Config    Config `optional:"true"`
	Port      *castrasd.ServicePort
	Logger    *zap.Logger    `optional:"true"`
	Context   castra.Context `optional:"true"`
	Routes    []Route        `group:"castrahttp.routes"`
	Lifecycle fx.Lifecycle
}

func newServer(in serverIn) (*Server, error) {
	s, err := NewServer(
		in.Config,
		in.Port,
		in.Logger,
		in.Context.PlatformContext().WebCommands,
	)

	if err == nil {
		for _, r := range in.Routes {
			s.Mount(r)
		}

		in.Lifecycle.Append(
			fx.StartStopHook(s.Start, s.Stop),
		)
	}

	return s, err
}

// Provide creates the application's *Server and binds it to the lifecycle. A
// *castrasd.ServicePort must be present. Config, *zap.Logger, and castra.Context
// are optional. Routes are gathered from the RouteGroup value group.
func Provide() fx.Option {
	return fx.Options(
		fx.Provide(newServer),
		fx.Invoke(
			func(*Server) {},
		),
	)
}

// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import "net/http"

// Environment describes where and how an application runs.
type Environment struct {
	// RootPath is the directory used to locate application resources,
	// such as the base configuration file.
	RootPath string

	// Mode is the environment mode.
	Mode Mode
}

// WebCommand is a hook that may intercept an HTTP request before it
// reaches any service route. Handle returns true if it wrote a response.
type WebCommand interface {
	Handle(http.ResponseWriter, *http.Request) bool
}

// WebCommandFunc is the closure form of a WebCommand.
type WebCommandFunc func(http.ResponseWriter, *http.Request) bool

func (f WebCommandFunc) Handle(rw http.ResponseWriter, r *http.Request) bool { return f(rw, r) }

// WebCommands is an ordered set of hooks.
type WebCommands []WebCommand

// Handle offers the request to each command in order, stopping at the
// first command that handles it.
func (wc WebCommands) Handle(rw http.ResponseWriter, r *http.Request) bool {
	for _, c := range wc {
		if c.Handle(rw, r) {
			return true
		}
	}

	return false
}

// PlatformContext is what the hosting platform hands to an application
// when it boots.
type PlatformContext struct {
	Environment          Environment
	InitialConfiguration Configuration
	WebCommands          WebCommands
}

// Context is the immutable application context. Create one per process
// start with NewContext.
type Context struct {
	pc PlatformContext
}

// NewContext wraps a PlatformContext. The initial configuration and web commands
// are copied, so later changes to pc do not affect the returned Context.
func NewContext(pc PlatformContext) Context {
	pc.InitialConfiguration = pc.InitialConfiguration.Clone()
	if len(pc.WebCommands) > 0 {
		pc.WebCommands = append(WebCommands(nil), pc.WebCommands...)
	}

	return Context{pc: pc}
}

// PlatformContext returns a copy of the wrapped platform context.
func (c Context) PlatformContext() PlatformContext {
	pc := c.pc
	pc.InitialConfiguration = pc.InitialConfiguration.Clone()
	if len(pc.WebCommands) > 0 {
		pc.WebCommands = append(WebCommands(nil), pc.WebCommands...)
	}

	return pc
}

// Environment returns the environment of this context.
func (c Context) Environment() Environment {
	return c.pc.Environment
}

// Mode is a shorthand for Environment().Mode.
func (c Context) Mode() Mode {
	return c.pc.Environment.Mode
}

var testContext = NewContext(PlatformContext{
	Environment: Environment{
		RootPath: ".",
		Mode:     Test,
	},
})

// TestContext returns the process-wide context used by tests: Test mode,
// the current directory as the root, no configuration, and no web commands.
// It holds no live resources.
func TestContext() Context {
	return testContext
}

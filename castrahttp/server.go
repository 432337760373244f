// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrahttp

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xmidt-org/castra"
	"github.com/xmidt-org/castra/castrasd"
	"go.uber.org/zap"
)

const (
	// DefaultAddress binds an ephemeral port on the loopback interface.
	DefaultAddress = "localhost:0"

	// DefaultReadHeaderTimeout is used when Config.ReadHeaderTimeout is unset.
	DefaultReadHeaderTimeout = 10 * time.Second
)

var ErrServerStarted = errors.New("the server has already been started")

// Config is the server portion of the application configuration, typically
// found under "castra.http".
type Config struct {
	// Address is the listen address. Port 0 binds an ephemeral port, which is
	// published once bound. Defaults to DefaultAddress.
	Address string `json:"address" yaml:"address" mapstructure:"address"`

	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout" mapstructure:"readHeaderTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout" mapstructure:"idleTimeout"`
}

// Route is an HTTP handler mounted on the server's router.
type Route struct {
	// Pattern is a chi route pattern, e.g. "/api/users/{id}".
	Pattern string

	// Method restricts the route to one HTTP method. If unset, all methods match.
	Method string

	Handler http.Handler
}

// Server is the application's HTTP server. It is created unbound, and publishes
// its port to a castrasd.ServicePort when Start binds it.
type Server struct {
	cfg      Config
	port     *castrasd.ServicePort
	logger   *zap.Logger
	router   chi.Router
	commands castra.WebCommands

	lock     sync.Mutex
	server   *http.Server
	listener net.Listener
	serveErr chan error
	stopped  bool
}

// NewServer creates an unstarted Server. Web commands, if any, see every request
// before the router does.
func NewServer(cfg Config, port *castrasd.ServicePort, logger *zap.Logger, commands castra.WebCommands) (*Server, error) {
	if port == nil {
		return nil, castrasd.ErrNoServicePort
	}

	if len(cfg.Address) == 0 {
		cfg.Address = DefaultAddress
	}

	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		cfg:      cfg,
		port:     port,
		logger:   logger,
		router:   chi.NewRouter(),
		commands: commands,
	}, nil
}

// Router exposes the underlying router for mounting handlers.
func (s *Server) Router() chi.Router {
	return s.router
}

// Mount adds a Route to the router.
func (s *Server) Mount(r Route) {
	if len(r.Method) > 0 {
		s.router.Method(r.Method, r.Pattern, r.Handler)
	} else {
		s.router.Handle(r.Pattern, r.Handler)
	}
}

// ServeHTTP offers the request to the web commands, then to the router.
func (s *Server) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if s.commands.Handle(rw, r) {
		return
	}

	s.router.ServeHTTP(rw, r)
}

// Start binds the listener, publishes the bound port, and begins serving in the
// background. If the bind fails, the ServicePort is failed so that nothing waits
// on it forever.
func (s *Server) Start(context.Context) error {
	defer s.lock.Unlock()
	s.lock.Lock()

	if s.server != nil {
		return ErrServerStarted
	}

	l, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		if failErr := s.port.Fail(err); failErr != nil {
			s.logger.Debug("service port already resolved", zap.Error(failErr))
		}

		s.logger.Error("unable to bind server", zap.String("address", s.cfg.Address), zap.Error(err))
		return err
	}

	port := l.Addr().(*net.TCPAddr).Port
	if err := s.port.Provide(port); err != nil {
		l.Close()
		return err
	}

	s.listener = l
	s.serveErr = make(chan error, 1)
	s.server = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger),
	}

	go func(server *http.Server, l net.Listener, serveErr chan<- error) {
		serveErr <- server.Serve(l)
	}(s.server, l, s.serveErr)

	s.logger.Info("server started", zap.String("address", l.Addr().String()), zap.Int("port", port))
	return nil
}

// Addr returns the bound address, or nil if the server is not running.
func (s *Server) Addr() net.Addr {
	defer s.lock.Unlock()
	s.lock.Lock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Stop gracefully shuts down the server. Stopping an unstarted or already
// stopped server does nothing. A stopped server cannot be started again, since
// its ServicePort has already been published.
func (s *Server) Stop(ctx context.Context) error {
	defer s.lock.Unlock()
	s.lock.Lock()

	if s.server == nil || s.stopped {
		return nil
	}

	s.stopped = true
	err := s.server.Shutdown(ctx)
	if serveErr := <-s.serveErr; err == nil && !errors.Is(serveErr, http.ErrServerClosed) {
		err = serveErr
	}

	s.listener = nil
	s.logger.Info("server stopped")
	return err
}

// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/suite"
)

// testAgent is an in-memory consul agent.
type testAgent struct {
	lock           sync.Mutex
	failures       int
	registered     map[string]api.AgentServiceRegistration
	registerOpts   []api.ServiceRegisterOpts
	deregisterErr  error
	deregistered   []string
	registerCalled chan struct{}
}

func newTestAgent() *testAgent {
	return &testAgent{
		registered:     make(map[string]api.AgentServiceRegistration),
		registerCalled: make(chan struct{}, 100),
	}
}

func (ta *testAgent) ServiceRegisterOpts(asr *api.AgentServiceRegistration, opts api.ServiceRegisterOpts) error {
	defer ta.lock.Unlock()
	ta.lock.Lock()

	ta.registerCalled <- struct{}{}
	ta.registerOpts = append(ta.registerOpts, opts)
	if ta.failures > 0 {
		ta.failures--
		return errors.New("agent unavailable")
	}

	ta.registered[asr.ID] = *asr
	return nil
}

func (ta *testAgent) ServiceDeregisterOpts(serviceID string, _ *api.QueryOptions) error {
	defer ta.lock.Unlock()
	ta.lock.Lock()

	ta.deregistered = append(ta.deregistered, serviceID)
	delete(ta.registered, serviceID)
	return ta.deregisterErr
}

type RegistrarSuite struct {
	suite.Suite

	agent    *testAgent
	port     *ServicePort
	bindings *Bindings
}

func (suite *RegistrarSuite) SetupTest() {
	var err error
	suite.agent = newTestAgent()
	suite.port = NewServicePort()
	suite.bindings, err = NewBindings(
		Bind(Named("users").MustBuild()),
		Bind(Named("internal").WithLocatable(false).MustBuild()),
		Bind(Named("orders").MustBuild()),
	)

	suite.Require().NoError(err)
}

func (suite *RegistrarSuite) newRegistrar(opts ...RegistrarOption) *Registrar {
	r, err := NewRegistrar(
		suite.bindings,
		suite.port,
		append([]RegistrarOption{WithAgent(suite.agent), WithInstanceID("instance")}, opts...)...,
	)

	suite.Require().NoError(err)
	return r
}

func (suite *RegistrarSuite) TestMissingDependencies() {
	_, err := NewRegistrar(suite.bindings, nil, WithAgent(suite.agent))
	suite.ErrorIs(err, ErrNoServicePort)

	_, err = NewRegistrar(suite.bindings, suite.port)
	suite.ErrorIs(err, ErrNoAgent)
}

func (suite *RegistrarSuite) TestGeneratedInstanceID() {
	r1, err := NewRegistrar(suite.bindings, suite.port, WithAgent(suite.agent))
	suite.Require().NoError(err)

	r2, err := NewRegistrar(suite.bindings, suite.port, WithAgent(suite.agent), WithInstanceID(""))
	suite.Require().NoError(err)

	suite.NotEmpty(r1.InstanceID())
	suite.NotEqual(r1.InstanceID(), r2.InstanceID())
}

func (suite *RegistrarSuite) TestRegisterWaitsForPort() {
	r := suite.newRegistrar(
		WithRegistration(RegistrationConfig{
			Address: "10.1.1.1",
			Tags:    []string{"v1"},
		}),
		WithServiceScheme("https"),
	)

	done := make(chan error, 1)
	go func() {
		done <- r.Register(context.Background())
	}()

	select {
	case <-suite.agent.registerCalled:
		suite.Fail("registration should wait for the port")
	case <-time.After(20 * time.Millisecond):
	}

	suite.Require().NoError(suite.port.Provide(8443))
	suite.Require().NoError(<-done)

	suite.Equal([]string{"users-instance", "orders-instance"}, r.Registered())
	suite.Len(suite.agent.registered, 2)
	suite.NotContains(suite.agent.registered, "internal-instance")

	users := suite.agent.registered["users-instance"]
	suite.Equal("users", users.Name)
	suite.Equal(8443, users.Port)
	suite.Equal("10.1.1.1", users.Address)
	suite.Equal([]string{"v1"}, users.Tags)
	suite.Equal(map[string]string{SchemeMetaKey: "https"}, users.Meta)
	suite.True(suite.agent.registerOpts[0].ReplaceExistingChecks)

	suite.ErrorIs(r.Register(context.Background()), ErrRegistrarRegistered)
}

func (suite *RegistrarSuite) TestUsableWhileWaiting() {
	r := suite.newRegistrar()

	done := make(chan error, 1)
	go func() {
		done <- r.Register(context.Background())
	}()

	suite.Eventually(
		func() bool {
			r.lock.Lock()
			defer r.lock.Unlock()
			return r.registering
		},
		time.Second,
		time.Millisecond,
	)

	accessed := make(chan []string, 1)
	go func() {
		accessed <- r.Registered()
	}()

	select {
	case registered := <-accessed:
		suite.Empty(registered)
	case <-time.After(time.Second):
		suite.FailNow("Registered blocked while registration was waiting on the port")
	}

	deregistered := make(chan error, 1)
	go func() {
		deregistered <- r.Deregister(context.Background())
	}()

	select {
	case err := <-deregistered:
		suite.NoError(err)
	case <-time.After(time.Second):
		suite.FailNow("Deregister blocked while registration was waiting on the port")
	}

	suite.ErrorIs(r.Register(context.Background()), ErrRegistrarRegistered)

	suite.Require().NoError(suite.port.Provide(8080))
	suite.Require().NoError(<-done)
	suite.Equal([]string{"users-instance", "orders-instance"}, r.Registered())
}

func (suite *RegistrarSuite) TestHealthCheck() {
	suite.Run("Default", func() {
		agent := newTestAgent()
		r, err := NewRegistrar(
			suite.bindings,
			suite.port,
			WithAgent(agent),
			WithInstanceID("instance"),
			WithRegistration(RegistrationConfig{
				Check: CheckConfig{Path: "/health"},
			}),
		)

		suite.Require().NoError(err)
		suite.Require().NoError(suite.port.Provide(8080))
		suite.Require().NoError(r.Register(context.Background()))

		check := agent.registered["users-instance"].Check
		suite.Require().NotNil(check)
		suite.Equal("users-instance-http", check.CheckID)
		suite.Equal("http://localhost:8080/health", check.HTTP)
		suite.Equal(DefaultCheckInterval.String(), check.Interval)
		suite.Empty(check.Timeout)
		suite.Empty(check.DeregisterCriticalServiceAfter)
	})

	suite.Run("Custom", func() {
		r := suite.newRegistrar(
			WithRegistration(RegistrationConfig{
				Address: "10.1.1.1",
				Check: CheckConfig{
					Path:            "/ready",
					Interval:        time.Second,
					Timeout:         500 * time.Millisecond,
					DeregisterAfter: time.Minute,
				},
			}),
			WithServiceScheme("https"),
		)

		asr := r.registration(Bind(Named("orders").MustBuild()), 8443)
		suite.Require().NotNil(asr.Check)
		suite.Equal("https://10.1.1.1:8443/ready", asr.Check.HTTP)
		suite.Equal("1s", asr.Check.Interval)
		suite.Equal("500ms", asr.Check.Timeout)
		suite.Equal("1m0s", asr.Check.DeregisterCriticalServiceAfter)
	})

	suite.Run("None", func() {
		asr := suite.newRegistrar().registration(Bind(Named("orders").MustBuild()), 8080)
		suite.Nil(asr.Check)
	})
}

func (suite *RegistrarSuite) TestRetry() {
	suite.agent.failures = 2
	r := suite.newRegistrar(WithRegistration(RegistrationConfig{Retry: time.Minute}))

	var delays []time.Duration
	r.after = func(d time.Duration) (<-chan time.Time, func() bool) {
		delays = append(delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch, func() bool { return true }
	}

	suite.Require().NoError(suite.port.Provide(8080))
	suite.Require().NoError(r.Register(context.Background()))
	suite.Equal([]time.Duration{time.Minute, time.Minute}, delays)
	suite.Len(r.Registered(), 2)
}

func (suite *RegistrarSuite) TestRegisterCanceled() {
	suite.agent.failures = 1000
	r := suite.newRegistrar()
	r.after = func(time.Duration) (<-chan time.Time, func() bool) {
		return make(chan time.Time), func() bool { return true }
	}

	suite.Require().NoError(suite.port.Provide(8080))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	suite.Error(r.Register(ctx))
	suite.Empty(r.Registered())
}

func (suite *RegistrarSuite) TestPortFailed() {
	expectedErr := errors.New("bind failed")
	r := suite.newRegistrar()
	suite.Require().NoError(suite.port.Fail(expectedErr))

	suite.ErrorIs(r.Register(context.Background()), expectedErr)
	suite.Empty(suite.agent.registered)
}

func (suite *RegistrarSuite) TestDeregister() {
	r := suite.newRegistrar()
	suite.Require().NoError(suite.port.Provide(8080))
	suite.Require().NoError(r.Register(context.Background()))

	suite.agent.deregisterErr = errors.New("expected")
	err := r.Deregister(context.Background())
	suite.Error(err)
	suite.Equal([]string{"users-instance", "orders-instance"}, suite.agent.deregistered)
	suite.Empty(r.Registered())

	// nothing left to deregister
	suite.agent.deregistered = nil
	suite.NoError(r.Deregister(context.Background()))
	suite.Empty(suite.agent.deregistered)
}

func TestRegistrar(t *testing.T) {
	suite.Run(t, new(RegistrarSuite))
}

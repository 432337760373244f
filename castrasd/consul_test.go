// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/suite"
)

type ConsulConfigSuite struct {
	suite.Suite
}

func (suite *ConsulConfigSuite) newConfig() ConsulConfig {
	return ConsulConfig{
		Scheme:     "https",
		Address:    "consul:8500",
		Datacenter: "dc1",
		Token:      "xyz",
		Namespace:  "namespace",
		PathPrefix: "/consul",
		WaitTime:   15 * time.Second,
		TokenFile:  "/etc/app/token",
		Partition:  "partition",
	}
}

func (suite *ConsulConfigSuite) assertSimpleFields(cfg api.Config) {
	suite.Equal("https", cfg.Scheme)
	suite.Equal("consul:8500", cfg.Address)
	suite.Equal("dc1", cfg.Datacenter)
	suite.Equal("xyz", cfg.Token)
	suite.Equal("namespace", cfg.Namespace)
	suite.Equal("/consul", cfg.PathPrefix)
	suite.Equal(15*time.Second, cfg.WaitTime)
	suite.Equal("/etc/app/token", cfg.TokenFile)
	suite.Equal("partition", cfg.Partition)
	suite.Nil(cfg.HttpClient)
	suite.Nil(cfg.Transport)
}

func (suite *ConsulConfigSuite) testSimple() {
	cfg := NewConsulAPIConfig(suite.newConfig())
	suite.assertSimpleFields(cfg)
	suite.Nil(cfg.HttpAuth)
	suite.Equal(api.TLSConfig{}, cfg.TLSConfig)
}

func (suite *ConsulConfigSuite) testBasicAuth() {
	src := suite.newConfig()
	src.BasicAuth = ConsulBasicAuth{UserName: "user", Password: "password"}

	cfg := NewConsulAPIConfig(src)
	suite.assertSimpleFields(cfg)
	suite.Require().NotNil(cfg.HttpAuth)
	suite.Equal(
		api.HttpBasicAuth{Username: "user", Password: "password"},
		*cfg.HttpAuth,
	)
}

func (suite *ConsulConfigSuite) testTLS() {
	src := suite.newConfig()
	src.TLS = ConsulTLS{
		Address:            "consul:8501",
		CAFile:             "/etc/app/cafile",
		CAPath:             "/etc/app/capath",
		CertificateFile:    "/etc/app/cert",
		KeyFile:            "/etc/app/key",
		InsecureSkipVerify: true,
	}

	cfg := NewConsulAPIConfig(src)
	suite.assertSimpleFields(cfg)
	suite.Nil(cfg.HttpAuth)
	suite.Equal(
		api.TLSConfig{
			Address:            "consul:8501",
			CAFile:             "/etc/app/cafile",
			CAPath:             "/etc/app/capath",
			CertFile:           "/etc/app/cert",
			KeyFile:            "/etc/app/key",
			InsecureSkipVerify: true,
		},
		cfg.TLSConfig,
	)
}

func (suite *ConsulConfigSuite) TestNewConsulAPIConfig() {
	suite.Run("Simple", suite.testSimple)
	suite.Run("BasicAuth", suite.testBasicAuth)
	suite.Run("TLS", suite.testTLS)
}

func TestConsulConfig(t *testing.T) {
	suite.Run(t, new(ConsulConfigSuite))
}

type ConsulLocatorSuite struct {
	suite.Suite

	queries   []Query
	instances []Instance
	err       error
}

func (suite *ConsulLocatorSuite) SetupTest() {
	suite.queries = nil
	suite.err = nil
	suite.instances = []Instance{
		{ID: "users-1", Name: "users", Address: "10.0.0.1", Port: 8080},
		{ID: "users-2", Name: "users", NodeAddress: "10.0.0.2", Port: 8081},
		{ID: "users-3", Name: "users", Address: "10.0.0.3", Port: 8443, Meta: map[string]string{SchemeMetaKey: "https"}},
	}
}

func (suite *ConsulLocatorSuite) services() Services {
	return ServicesFunc(func(q Query) ([]Instance, error) {
		suite.queries = append(suite.queries, q)
		if suite.err != nil {
			return nil, suite.err
		}

		var matched []Instance
		for _, i := range suite.instances {
			if i.Name == q.Service {
				matched = append(matched, i)
			}
		}

		return matched, nil
	})
}

func (suite *ConsulLocatorSuite) newLocator(cfg ConsulConfig) *ConsulLocator {
	cl, err := NewConsulLocator(suite.services(), cfg)
	suite.Require().NoError(err)
	return cl
}

func (suite *ConsulLocatorSuite) TestLocateAll() {
	cl := suite.newLocator(ConsulConfig{
		Datacenter: "dc2",
		Tags:       []string{"v1"},
	})

	us, err := cl.LocateAll(context.Background(), "users", Call{})
	suite.Require().NoError(err)
	suite.Require().Len(us, 3)
	suite.Equal("http://10.0.0.1:8080", us[0].String())
	suite.Equal("http://10.0.0.2:8081", us[1].String())
	suite.Equal("https://10.0.0.3:8443", us[2].String())

	suite.Require().Len(suite.queries, 1)
	q := suite.queries[0]
	suite.Equal("users", q.Service)
	suite.Equal([]string{"v1"}, q.Tags)
	suite.True(q.PassingOnly)
	suite.Require().NotNil(q.Options)
	suite.Equal("dc2", q.Options.Datacenter)
}

func (suite *ConsulLocatorSuite) TestIncludeUnhealthy() {
	cl := suite.newLocator(ConsulConfig{IncludeUnhealthy: true, ServiceScheme: "h2c"})

	u, err := cl.Locate(context.Background(), "users", Call{})
	suite.Require().NoError(err)
	suite.Equal("h2c://10.0.0.1:8080", u.String())
	suite.False(suite.queries[0].PassingOnly)
}

func (suite *ConsulLocatorSuite) TestNotFound() {
	cl := suite.newLocator(ConsulConfig{})

	u, err := cl.Locate(context.Background(), "orders", Call{})
	suite.NoError(err)
	suite.Nil(u)

	us, err := cl.LocateAll(context.Background(), "orders", Call{})
	suite.NoError(err)
	suite.Empty(us)
}

func (suite *ConsulLocatorSuite) TestError() {
	suite.err = errors.New("expected")
	cl := suite.newLocator(ConsulConfig{})

	u, err := cl.Locate(context.Background(), "users", Call{})
	suite.ErrorIs(err, suite.err)
	suite.Nil(u)
}

func (suite *ConsulLocatorSuite) TestRouting() {
	suite.Run("First", func() {
		cl := suite.newLocator(ConsulConfig{Routing: RouteFirst})
		for i := 0; i < 3; i++ {
			u, err := cl.Locate(context.Background(), "users", Call{})
			suite.NoError(err)
			suite.Equal("http://10.0.0.1:8080", u.String())
		}
	})

	suite.Run("RoundRobin", func() {
		cl := suite.newLocator(ConsulConfig{Routing: RouteRoundRobin})
		var hosts []string
		for i := 0; i < 4; i++ {
			u, err := cl.Locate(context.Background(), "users", Call{})
			suite.Require().NoError(err)
			hosts = append(hosts, u.Host)
		}

		suite.Equal(
			[]string{"10.0.0.1:8080", "10.0.0.2:8081", "10.0.0.3:8443", "10.0.0.1:8080"},
			hosts,
		)
	})

	suite.Run("Random", func() {
		cl := suite.newLocator(ConsulConfig{Routing: RouteRandom})
		for i := 0; i < 10; i++ {
			u, err := cl.Locate(context.Background(), "users", Call{})
			suite.Require().NoError(err)
			suite.Contains(
				[]string{"10.0.0.1:8080", "10.0.0.2:8081", "10.0.0.3:8443"},
				u.Host,
			)
		}
	})

	suite.Run("Invalid", func() {
		cl, err := NewConsulLocator(suite.services(), ConsulConfig{Routing: "sideways"})
		suite.Error(err)
		suite.Nil(cl)
	})
}

func TestConsulLocator(t *testing.T) {
	suite.Run(t, new(ConsulLocatorSuite))
}

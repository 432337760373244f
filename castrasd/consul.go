// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/consul/api"
)

const (
	// SchemeMetaKey is the consul service meta key holding the scheme a
	// service instance speaks. Registrars set this key.
	SchemeMetaKey = "scheme"

	// DefaultConsulScheme is used when a consul service instance has no scheme meta.
	DefaultConsulScheme = "http"
)

// RoutingPolicy selects which service instance Locate returns.
type RoutingPolicy string

const (
	// RouteFirst always returns the first instance reported by consul.
	RouteFirst RoutingPolicy = "first"

	// RouteRandom returns a random instance.
	RouteRandom RoutingPolicy = "random"

	// RouteRoundRobin cycles through instances.
	RouteRoundRobin RoutingPolicy = "round-robin"
)

// ConsulBasicAuth holds the HTTP basic authorization credentials for consul.
type ConsulBasicAuth struct {
	UserName string `json:"userName" yaml:"userName" mapstructure:"userName"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
}

// ConsulTLS holds the TLS options used to talk to consul.
type ConsulTLS struct {
	// Address, if set, is used as the TLS ServerName.
	Address            string `json:"address" yaml:"address" mapstructure:"address"`
	CAFile             string `json:"caFile" yaml:"caFile" mapstructure:"caFile"`
	CAPath             string `json:"caPath" yaml:"caPath" mapstructure:"caPath"`
	CertificateFile    string `json:"certificateFile" yaml:"certificateFile" mapstructure:"certificateFile"`
	KeyFile            string `json:"keyFile" yaml:"keyFile" mapstructure:"keyFile"`
	InsecureSkipVerify bool   `json:"insecureSkipVerify" yaml:"insecureSkipVerify" mapstructure:"insecureSkipVerify"`
}

// ConsulConfig configures the consul client, the consul locator, and service
// registration. Typically unmarshaled from the "castra.consul" configuration key.
type ConsulConfig struct {
	// Scheme is the URI scheme of the consul agent.
	Scheme string `json:"scheme" yaml:"scheme" mapstructure:"scheme"`

	// Address is the address of the consul agent, including port.
	Address string `json:"address" yaml:"address" mapstructure:"address"`

	// PathPrefix is prepended to request paths when consul sits behind a gateway.
	PathPrefix string `json:"pathPrefix" yaml:"pathPrefix" mapstructure:"pathPrefix"`

	// Datacenter is the optional datacenter. If unset, the agent's datacenter is used.
	Datacenter string `json:"datacenter" yaml:"datacenter" mapstructure:"datacenter"`

	// WaitTime bounds blocking queries. If unset, the agent's default is used.
	WaitTime time.Duration `json:"waitTime" yaml:"waitTime" mapstructure:"waitTime"`

	// Token is a per request ACL token. If unset, the agent's token is used.
	Token string `json:"token" yaml:"token" mapstructure:"token"`

	// TokenFile holds the ACL token. Token takes precedence when both are set.
	TokenFile string `json:"tokenFile" yaml:"tokenFile" mapstructure:"tokenFile"`

	// Namespace is sent to the agent in requests where no namespace is set.
	Namespace string `json:"namespace" yaml:"namespace" mapstructure:"namespace"`

	// Partition is sent to the agent in requests where no partition is set.
	Partition string `json:"partition" yaml:"partition" mapstructure:"partition"`

	BasicAuth ConsulBasicAuth `json:"basicAuth" yaml:"basicAuth" mapstructure:"basicAuth"`
	TLS       ConsulTLS       `json:"tls" yaml:"tls" mapstructure:"tls"`

	// Tags restricts located instances to those having all these tags.
	Tags []string `json:"tags" yaml:"tags" mapstructure:"tags"`

	// IncludeUnhealthy includes instances that are not passing their checks.
	IncludeUnhealthy bool `json:"includeUnhealthy" yaml:"includeUnhealthy" mapstructure:"includeUnhealthy"`

	// Routing selects among instances. Defaults to RouteFirst.
	Routing RoutingPolicy `json:"routing" yaml:"routing" mapstructure:"routing"`

	// Scheme used for instances without SchemeMetaKey. Defaults to DefaultConsulScheme.
	ServiceScheme string `json:"serviceScheme" yaml:"serviceScheme" mapstructure:"serviceScheme"`

	// Registration controls how this application registers its own services.
	Registration RegistrationConfig `json:"registration" yaml:"registration" mapstructure:"registration"`
}

// RegistrationConfig is the service registration portion of ConsulConfig.
type RegistrationConfig struct {
	// Address is the address advertised for this instance. If unset, consul
	// uses the agent's address.
	Address string `json:"address" yaml:"address" mapstructure:"address"`

	// Tags are attached to every registered service.
	Tags []string `json:"tags" yaml:"tags" mapstructure:"tags"`

	// Retry is the interval between registration attempts. Defaults to DefaultRegisterRetry.
	Retry time.Duration `json:"retry" yaml:"retry" mapstructure:"retry"`

	// Check, if its Path is set, attaches an HTTP health check to every registration.
	Check CheckConfig `json:"check" yaml:"check" mapstructure:"check"`
}

// CheckConfig describes the HTTP health check consul runs against each
// registered service.
type CheckConfig struct {
	// Path is the request path the agent polls, e.g. "/health".
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// Interval defaults to DefaultCheckInterval.
	Interval time.Duration `json:"interval" yaml:"interval" mapstructure:"interval"`
	Timeout  time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// DeregisterAfter removes a service that stays critical this long. Zero disables it.
	DeregisterAfter time.Duration `json:"deregisterAfter" yaml:"deregisterAfter" mapstructure:"deregisterAfter"`
}

// NewConsulAPIConfig maps a ConsulConfig onto the consul client's api.Config.
func NewConsulAPIConfig(src ConsulConfig) (dst api.Config) {
	dst = api.Config{
		Scheme:     src.Scheme,
		Address:    src.Address,
		PathPrefix: src.PathPrefix,
		Datacenter: src.Datacenter,
		WaitTime:   src.WaitTime,
		Token:      src.Token,
		TokenFile:  src.TokenFile,
		Namespace:  src.Namespace,
		Partition:  src.Partition,
		TLSConfig: api.TLSConfig{
			Address:            src.TLS.Address,
			CAFile:             src.TLS.CAFile,
			CAPath:             src.TLS.CAPath,
			CertFile:           src.TLS.CertificateFile,
			KeyFile:            src.TLS.KeyFile,
			InsecureSkipVerify: src.TLS.InsecureSkipVerify,
		},
	}

	if len(src.BasicAuth.UserName) > 0 {
		dst.HttpAuth = &api.HttpBasicAuth{
			Username: src.BasicAuth.UserName,
			Password: src.BasicAuth.Password,
		}
	}

	return
}

// Query is a consul service query.
type Query struct {
	Service     string
	Tags        []string
	PassingOnly bool
	Options     *api.QueryOptions
}

// Instance is one consul service instance.
type Instance struct {
	ID          string
	Name        string
	Tags        []string
	Meta        map[string]string
	Address     string
	NodeAddress string
	Port        int
}

// Services is the strategy for querying consul for service instances.
type Services interface {
	Get(Query) ([]Instance, error)
}

// ServicesFunc is the closure form of Services.
type ServicesFunc func(Query) ([]Instance, error)

func (f ServicesFunc) Get(q Query) ([]Instance, error) { return f(q) }

type healthServices struct {
	health *api.Health
}

func (hs healthServices) Get(q Query) ([]Instance, error) {
	entries, _, err := hs.health.ServiceMultipleTags(
		q.Service,
		q.Tags,
		q.PassingOnly,
		q.Options,
	)

	if err != nil {
		return nil, err
	}

	instances := make([]Instance, 0, len(entries))
	for _, se := range entries {
		i := Instance{
			ID:      se.Service.ID,
			Name:    se.Service.Service,
			Tags:    se.Service.Tags,
			Meta:    se.Service.Meta,
			Address: se.Service.Address,
			Port:    se.Service.Port,
		}

		if se.Node != nil {
			i.NodeAddress = se.Node.Address
		}

		instances = append(instances, i)
	}

	return instances, nil
}

// NewHealthServices produces a Services strategy backed by the consul health
// endpoint, which honors Query.PassingOnly.
func NewHealthServices(client *api.Client) Services {
	return healthServices{
		health: client.Health(),
	}
}

// ConsulLocator finds services registered with consul.
type ConsulLocator struct {
	services      Services
	tags          []string
	passingOnly   bool
	routing       RoutingPolicy
	serviceScheme string
	datacenter    string

	counter atomic.Uint64
}

// NewConsulLocator creates a ConsulLocator that uses the given Services strategy.
func NewConsulLocator(s Services, cfg ConsulConfig) (*ConsulLocator, error) {
	cl := &ConsulLocator{
		services:      s,
		tags:          append([]string(nil), cfg.Tags...),
		passingOnly:   !cfg.IncludeUnhealthy,
		routing:       cfg.Routing,
		serviceScheme: cfg.ServiceScheme,
		datacenter:    cfg.Datacenter,
	}

	switch cl.routing {
	case "":
		cl.routing = RouteFirst

	case RouteFirst, RouteRandom, RouteRoundRobin:
		// valid

	default:
		return nil, fmt.Errorf("invalid routing policy [%s]", cfg.Routing)
	}

	if len(cl.serviceScheme) == 0 {
		cl.serviceScheme = DefaultConsulScheme
	}

	return cl, nil
}

func (cl *ConsulLocator) instanceURL(i Instance) *url.URL {
	host := i.Address
	if len(host) == 0 {
		host = i.NodeAddress
	}

	scheme := cl.serviceScheme
	if s := strings.TrimSpace(i.Meta[SchemeMetaKey]); len(s) > 0 {
		scheme = s
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(i.Port)),
	}
}

// LocateAll queries consul for every instance of name.
func (cl *ConsulLocator) LocateAll(ctx context.Context, name string, _ Call) ([]*url.URL, error) {
	qo := &api.QueryOptions{
		Datacenter: cl.datacenter,
	}

	instances, err := cl.services.Get(Query{
		Service:     name,
		Tags:        cl.tags,
		PassingOnly: cl.passingOnly,
		Options:     qo.WithContext(ctx),
	})

	if err != nil || len(instances) == 0 {
		return nil, err
	}

	urls := make([]*url.URL, 0, len(instances))
	for _, i := range instances {
		urls = append(urls, cl.instanceURL(i))
	}

	return urls, nil
}

// Locate queries consul and selects one instance according to the routing policy.
func (cl *ConsulLocator) Locate(ctx context.Context, name string, call Call) (*url.URL, error) {
	urls, err := cl.LocateAll(ctx, name, call)
	if err != nil || len(urls) == 0 {
		return nil, err
	}

	switch cl.routing {
	case RouteRandom:
		return urls[rand.IntN(len(urls))], nil

	case RouteRoundRobin:
		n := cl.counter.Add(1) - 1
		return urls[n%uint64(len(urls))], nil

	default:
		return urls[0], nil
	}
}

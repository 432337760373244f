// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/multierr"
)

// StaticConfig maps service names to fixed addresses. Typically unmarshaled
// from the "castra.services" configuration key:
//
//	castra:
//	  services:
//	    users: ["http://users-1:9000", "http://users-2:9000"]
type StaticConfig map[string][]string

// StaticLocator finds services using a fixed map of addresses.
type StaticLocator struct {
	services map[string][]*url.URL
}

// NewStaticLocator parses every configured address. Entries must be absolute
// URLs; all invalid entries are reported in one aggregate error.
func NewStaticLocator(sc StaticConfig) (*StaticLocator, error) {
	var (
		err error
		sl  = &StaticLocator{
			services: make(map[string][]*url.URL, len(sc)),
		}
	)

	for name, addresses := range sc {
		for _, address := range addresses {
			u, parseErr := url.Parse(address)
			switch {
			case parseErr != nil:
				err = multierr.Append(err, fmt.Errorf("service [%s]: %w", name, parseErr))

			case !u.IsAbs() || len(u.Host) == 0:
				err = multierr.Append(err, fmt.Errorf("service [%s]: address [%s] is not an absolute URL", name, address))

			default:
				sl.services[name] = append(sl.services[name], u)
			}
		}
	}

	if err != nil {
		return nil, err
	}

	return sl, nil
}

// Locate returns the first configured address for name.
func (sl *StaticLocator) Locate(_ context.Context, name string, _ Call) (*url.URL, error) {
	if us := sl.services[name]; len(us) > 0 {
		return cloneURL(us[0]), nil
	}

	return nil, nil
}

// LocateAll returns every configured address for name.
func (sl *StaticLocator) LocateAll(_ context.Context, name string, _ Call) ([]*url.URL, error) {
	us := sl.services[name]
	if len(us) == 0 {
		return nil, nil
	}

	clones := make([]*url.URL, len(us))
	for i, u := range us {
		clones[i] = cloneURL(u)
	}

	return clones, nil
}

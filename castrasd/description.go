// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castrasd

// Describer is implemented by applications that expose service descriptors to
// external tooling.
type Describer interface {
	DescribeServices() []Descriptor
}

// DescriberFunc is the closure form of a Describer.
type DescriberFunc func() []Descriptor

func (f DescriberFunc) DescribeServices() []Descriptor { return f() }

// NoServices is a Describer that declares nothing.
var NoServices Describer = DescriberFunc(func() []Descriptor { return nil })

// ACLDescription is the exported form of a ServiceACL. Method is empty
// when the ACL permits every method.
type ACLDescription struct {
	Method      string `json:"method,omitempty" yaml:"method,omitempty"`
	PathPattern string `json:"pathPattern" yaml:"pathPattern"`
}

// ServiceDescription is what deployment and discovery tooling sees of a service.
type ServiceDescription struct {
	Name string           `json:"name" yaml:"name"`
	ACLs []ACLDescription `json:"acls" yaml:"acls"`
}

// DiscoverServices resolves every descriptor declared by d and translates each
// into a ServiceDescription. Output order and count match the declarations.
//
// Resolution is all or nothing: the first error from the Resolver is returned
// unchanged along with a nil slice. A nil Resolver means DefaultResolver, and a nil
// Describer declares nothing.
func DiscoverServices(r Resolver, d Describer) ([]ServiceDescription, error) {
	if r == nil {
		r = DefaultResolver()
	}

	if d == nil {
		d = NoServices
	}

	declared := d.DescribeServices()
	sds := make([]ServiceDescription, 0, len(declared))
	for _, desc := range declared {
		resolved, err := r.Resolve(desc)
		if err != nil {
			return nil, err
		}

		sd := ServiceDescription{
			Name: resolved.Name,
			ACLs: make([]ACLDescription, 0, len(resolved.ACLs)),
		}

		for _, acl := range resolved.ACLs {
			sd.ACLs = append(sd.ACLs, ACLDescription{
				Method:      acl.Method,
				PathPattern: acl.PathRegex,
			})
		}

		sds = append(sds, sd)
	}

	return sds, nil
}

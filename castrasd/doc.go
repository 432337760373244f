// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

/*
Package castrasd provides service description and discovery for a castra
application: the services an application binds, the descriptors exported to
deployment tooling, and the locators used to find services by name.

Locators are available for local (in-process) lookups, static configuration,
and consul. Any of them can be decorated with per-service circuit breaking.
*/
package castrasd

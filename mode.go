// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import (
	"fmt"
	"strings"
)

// Mode is the environment mode an application runs in.
type Mode int

const (
	// Prod is the production mode. This is the zero value.
	Prod Mode = iota // prod

	// Dev is the development mode. Loaders treat this mode specially.
	Dev // dev

	// Test is the mode used by unit and integration tests.
	Test // test
)

// String returns the canonical text for this mode.
func (m Mode) String() string {
	switch m {
	case Prod:
		return "prod"

	case Dev:
		return "dev"

	case Test:
		return "test"

	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts text into a Mode. Matching is case-insensitive, and
// the long forms "production" and "development" are accepted.
func ParseMode(text string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "prod", "production":
		return Prod, nil

	case "dev", "development":
		return Dev, nil

	case "test":
		return Test, nil

	default:
		return Prod, fmt.Errorf("invalid mode [%s]", text)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, which allows modes
// to appear in configuration files.
func (m *Mode) UnmarshalText(text []byte) (err error) {
	*m, err = ParseMode(string(text))
	return
}

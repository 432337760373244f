// SPDX-FileCopyrightText: 2026 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package castra

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// BaseConfigurationFiles are the file names, in order of preference, that
// LoadConfiguration looks for under an environment's root path.
var BaseConfigurationFiles = []string{
	"application.yaml",
	"application.yml",
	"application.toml",
}

// Configuration is a tree of string-keyed values. Nested objects are always
// represented as Configuration.
type Configuration map[string]any

// Clone produces a deep copy. Nested map[string]any values are converted
// to Configuration. Cloning a nil Configuration returns nil.
func (c Configuration) Clone() Configuration {
	if c == nil {
		return nil
	}

	clone := make(Configuration, len(c))
	for k, v := range c {
		clone[k] = cloneValue(v)
	}

	return clone
}

func cloneValue(v any) any {
	switch vt := v.(type) {
	case Configuration:
		return vt.Clone()

	case map[string]any:
		return Configuration(vt).Clone()

	case []any:
		l := make([]any, len(vt))
		for i, e := range vt {
			l[i] = cloneValue(e)
		}

		return l

	default:
		return v
	}
}

// Overlay returns a new Configuration with over applied on top of c. Keys in
// over win. When both sides hold an object for a key, the objects are merged
// recursively. Neither c nor over is modified.
func (c Configuration) Overlay(over Configuration) Configuration {
	merged := c.Clone()
	if merged == nil {
		merged = make(Configuration, len(over))
	}

	for k, ov := range over.Clone() {
		if oc, ok := ov.(Configuration); ok {
			if bc, ok := merged[k].(Configuration); ok {
				merged[k] = bc.Overlay(oc)
				continue
			}
		}

		merged[k] = ov
	}

	return merged
}

// ComposeConfiguration overlays each layer in order onto base.
func ComposeConfiguration(base Configuration, layers ...Configuration) Configuration {
	result := base.Clone()
	if result == nil {
		result = Configuration{}
	}

	for _, l := range layers {
		result = result.Overlay(l)
	}

	return result
}

// Get returns the value at a dotted path, e.g. "castra.http.address".
func (c Configuration) Get(path string) (v any, ok bool) {
	if len(path) == 0 {
		return c, c != nil
	}

	current := c
	keys := strings.Split(path, ".")
	for i, k := range keys {
		v, ok = current[k]
		if !ok || i == len(keys)-1 {
			return
		}

		if current, ok = v.(Configuration); !ok {
			return nil, false
		}
	}

	return
}

// Unmarshal decodes the subtree at path into target, using yaml struct tags.
// A missing path leaves target untouched and is not an error.
func (c Configuration) Unmarshal(path string, target any) error {
	v, ok := c.Get(path)
	if !ok {
		return nil
	}

	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to marshal configuration [%s]: %w", path, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("unable to unmarshal configuration [%s]: %w", path, err)
	}

	return nil
}

// normalize converts decoded documents into Configuration trees.
func normalize(v any) any {
	switch vt := v.(type) {
	case map[string]any:
		c := make(Configuration, len(vt))
		for k, e := range vt {
			c[k] = normalize(e)
		}

		return c

	case Configuration:
		return normalize(map[string]any(vt))

	case map[any]any:
		c := make(Configuration, len(vt))
		for k, e := range vt {
			c[fmt.Sprint(k)] = normalize(e)
		}

		return c

	case []map[string]any:
		l := make([]any, len(vt))
		for i, e := range vt {
			l[i] = normalize(e)
		}

		return l

	case []any:
		l := make([]any, len(vt))
		for i, e := range vt {
			l[i] = normalize(e)
		}

		return l

	default:
		return v
	}
}

// ParseYAML decodes a YAML (or JSON) document.
func ParseYAML(data []byte) (Configuration, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	c, _ := normalize(raw).(Configuration)
	return c, nil
}

// ParseTOML decodes a TOML document.
func ParseTOML(data []byte) (Configuration, error) {
	var raw map[string]any
	if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return nil, err
	}

	c, _ := normalize(raw).(Configuration)
	return c, nil
}

// LoadConfigurationFile reads a configuration file, choosing the decoder by
// file extension.
func LoadConfigurationFile(path string) (Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c Configuration
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		c, err = ParseYAML(data)

	case ".toml":
		c, err = ParseTOML(data)

	default:
		return nil, fmt.Errorf("unsupported configuration file type [%s]", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("unable to parse configuration file [%s]: %w", path, err)
	}

	return c, nil
}

// LoadConfiguration composes the final application configuration. The base is
// the first of BaseConfigurationFiles found under the environment's root path,
// or empty if there is none. The additional configuration is overlaid onto the base,
// and the context's initial configuration is overlaid last.
func LoadConfiguration(ctx Context, additional Configuration) (Configuration, error) {
	var base Configuration
	root := ctx.Environment().RootPath
	if len(root) > 0 {
		for _, name := range BaseConfigurationFiles {
			c, err := LoadConfigurationFile(filepath.Join(root, name))
			if errors.Is(err, fs.ErrNotExist) {
				continue
			} else if err != nil {
				return nil, err
			}

			base = c
			break
		}
	}

	return ComposeConfiguration(
		base,
		additional,
		ctx.pc.InitialConfiguration,
	), nil
}

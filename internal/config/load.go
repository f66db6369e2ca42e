// Copyright (c) 2021 Canonical Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates the configuration file at path.
//
// Errors come back as one of *NotFoundError (file missing), *FormatError
// (YAML syntax, unknown key, wrong type) or *ValidationError (semantic
// problem: duplicate name, out-of-range value).
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, err
	}
	return Parse(data)
}

// Parse decodes and validates configuration file contents.
func Parse(data []byte) (*Config, error) {
	cfg, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode performs strict, unknown-key-rejecting YAML decoding.
//
// yaml.v3 does not support KnownFields on a root of unknown shape in one
// pass (see https://github.com/go-yaml/yaml/issues/460), so we decode once
// loosely to find top-level keys, reject anything outside the fixed root
// schema, then re-decode with KnownFields(true) so that nested unknown
// keys (inside a service entry) are caught too.
func decode(data []byte) (*Config, error) {
	var outline map[string]yaml.Node
	if err := yaml.Unmarshal(data, &outline); err != nil {
		return nil, &FormatError{Message: fmt.Sprintf("cannot parse configuration: %v", err)}
	}
	for k := range outline {
		switch k {
		case "email", "services":
		default:
			return nil, &FormatError{Message: fmt.Sprintf("cannot parse configuration: unknown key %q", k)}
		}
	}
	if _, ok := outline["services"]; !ok {
		return nil, &FormatError{Message: "cannot parse configuration: missing required key \"services\""}
	}

	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, &FormatError{Message: fmt.Sprintf("cannot parse configuration: %v", err)}
	}
	for _, svc := range cfg.Services {
		if svc == nil {
			return nil, &FormatError{Message: "cannot parse configuration: empty service entry"}
		}
	}
	return cfg, nil
}

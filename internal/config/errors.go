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
	"fmt"
	"strings"
)

// NotFoundError is returned by LoadFile when the configuration file does
// not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("cannot find configuration file %q", e.Path)
}

// FormatError is returned for YAML syntax errors, unknown keys, and
// fields of the wrong YAML type — problems detected while decoding,
// before semantic validation runs.
type FormatError struct {
	Message string
}

func (e *FormatError) Error() string {
	return e.Message
}

// ValidationError is returned for semantic problems: values out of
// range, duplicate service names, invalid enum members. It aggregates
// every problem found in one pass, rather than stopping at the first.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", strings.Join(e.Problems, "; "))
}

func (e *ValidationError) add(format string, args ...any) {
	e.Problems = append(e.Problems, fmt.Sprintf(format, args...))
}

func (e *ValidationError) errorOrNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}

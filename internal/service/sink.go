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

package service

import (
	"io"
	"os"

	"github.com/go-taskmaster/taskmaster/internal/logger"
)

// sink is a Worker's stdout or stderr destination: either a real,
// truncated-for-append file shared by every Worker in the Service, or a
// null sink if unconfigured or if opening the file failed.
type sink struct {
	io.Writer
	file *os.File
}

func openSink(path, label string) sink {
	if path == "" {
		return sink{Writer: io.Discard}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		logger.Noticef("cannot open %s (%s): %v, falling back to null sink", label, path, err)
		return sink{Writer: io.Discard}
	}
	return sink{Writer: f, file: f}
}

func (s sink) Close() {
	if s.file == nil {
		return
	}
	if err := s.file.Close(); err != nil {
		logger.Debugf("error closing sink: %v", err)
	}
}

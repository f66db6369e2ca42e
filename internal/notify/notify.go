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

// Package notify defines the Notifier contract and the concrete sinks
// Workers and Services dispatch to: a no-op, a logging sink, and an SMTP
// sink.
package notify

import "github.com/go-taskmaster/taskmaster/internal/logger"

// Notifier is a fire-and-forget event sink. Each call takes the service
// name and the resulting state's name. Implementations must not block
// the caller for longer than it takes to hand the event off, and must
// never let a delivery failure propagate back to the caller.
type Notifier interface {
	SendStart(serviceName, state string)
	SendStop(serviceName, state string)
	SendExited(serviceName, state string)
}

// Started, Stopped and Exited are the call sites used throughout
// internal/worker and internal/service. They tolerate a nil Notifier
// (meaning none configured) and recover any panic from the underlying
// implementation, so a broken Notifier can never affect worker state.
func Started(n Notifier, serviceName, state string) { dispatch(n, serviceName, state, notifyStart) }
func Stopped(n Notifier, serviceName, state string) { dispatch(n, serviceName, state, notifyStop) }
func Exited(n Notifier, serviceName, state string)  { dispatch(n, serviceName, state, notifyExited) }

type kind int

const (
	notifyStart kind = iota
	notifyStop
	notifyExited
)

func dispatch(n Notifier, serviceName, state string, k kind) {
	if n == nil {
		return
	}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Noticef("notifier panicked for %s: %v", serviceName, r)
			}
		}()
		switch k {
		case notifyStart:
			n.SendStart(serviceName, state)
		case notifyStop:
			n.SendStop(serviceName, state)
		case notifyExited:
			n.SendExited(serviceName, state)
		}
	}()
}

// Null is a Notifier that discards every event, used when no email
// configuration is present.
var Null Notifier = nullNotifier{}

type nullNotifier struct{}

func (nullNotifier) SendStart(string, string)  {}
func (nullNotifier) SendStop(string, string)   {}
func (nullNotifier) SendExited(string, string) {}

// LogNotifier logs each event at Notice level instead of sending it
// anywhere; useful for tests.
type LogNotifier struct{}

func (LogNotifier) SendStart(serviceName, state string) {
	logger.Noticef("%s: started notification, state=%s", serviceName, state)
}

func (LogNotifier) SendStop(serviceName, state string) {
	logger.Noticef("%s: stopped notification, state=%s", serviceName, state)
}

func (LogNotifier) SendExited(serviceName, state string) {
	logger.Noticef("%s: exited notification, state=%s", serviceName, state)
}

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

package notify

import (
	"fmt"
	"net/smtp"
	"strings"

	"github.com/go-taskmaster/taskmaster/internal/logger"
)

// SMTPNotifier emails an operator-facing notice on each of the three
// lifecycle events: one message per call, subject "<service> – process
// started|stopped|exited" and a body naming the resulting state.
//
// No third-party SMTP client library is pulled in anywhere else in this
// codebase, so this is built on the standard library's net/smtp (see
// DESIGN.md).
type SMTPNotifier struct {
	Server   string
	Port     int
	From     string
	Password string
	To       []string
}

func (s *SMTPNotifier) SendStart(serviceName, state string) {
	s.send(serviceName, "started", state)
}

func (s *SMTPNotifier) SendStop(serviceName, state string) {
	s.send(serviceName, "stopped", state)
}

func (s *SMTPNotifier) SendExited(serviceName, state string) {
	s.send(serviceName, "exited", state)
}

func (s *SMTPNotifier) send(serviceName, event, state string) {
	addr := fmt.Sprintf("%s:%d", s.Server, s.Port)
	auth := smtp.PlainAuth("", s.From, s.Password, s.Server)

	subject := fmt.Sprintf("%s – process %s", serviceName, event)
	body := fmt.Sprintf("Service %q reached state %s.\n", serviceName, state)
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		s.From, strings.Join(s.To, ", "), subject, body)

	if err := smtp.SendMail(addr, auth, s.From, s.To, []byte(msg)); err != nil {
		logger.Noticef("%s: failed to send %s notification: %v", serviceName, event, err)
	}
}

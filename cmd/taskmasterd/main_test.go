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

package main

import (
	"testing"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/notify"
)

func TestBuildNotifierNilEmailIsNull(t *testing.T) {
	if buildNotifier(nil) != notify.Null {
		t.Fatal("expected notify.Null for absent email config")
	}
}

func TestBuildNotifierEmailProducesSMTPNotifier(t *testing.T) {
	n := buildNotifier(&config.EmailConfig{
		SMTPServer: "smtp.example.com",
		SMTPPort:   587,
		SMTPEmail:  "taskmaster@example.com",
		To:         []string{"ops@example.com"},
	})
	smtp, ok := n.(*notify.SMTPNotifier)
	if !ok {
		t.Fatalf("expected *notify.SMTPNotifier, got %T", n)
	}
	if smtp.Server != "smtp.example.com" || smtp.Port != 587 {
		t.Fatalf("unexpected SMTPNotifier fields: %+v", smtp)
	}
}

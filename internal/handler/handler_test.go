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

package handler_test

import (
	"os"
	"testing"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/handler"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/reaper"
)

func TestMain(m *testing.M) {
	if err := reaper.Start(); err != nil {
		panic(err)
	}
	code := m.Run()
	reaper.Stop()
	os.Exit(code)
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func svcCfg(name, cmd string) *config.ServiceConfig {
	return &config.ServiceConfig{
		Name:         name,
		Cmd:          cmd,
		NumProcs:     1,
		AutoStart:    boolPtr(false),
		AutoRestart:  config.AutoRestartNever,
		ExitCodes:    []int{0},
		StartRetries: intPtr(1),
		StartTime:    intPtr(0),
		StopSignal:   "TERM",
		StopTime:     intPtr(2),
	}
}

func TestNewBuildsOneServicePerConfigEntryInOrder(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	st := h.Status()
	if len(st) != 2 || st[0].Name != "a" || st[1].Name != "b" {
		t.Fatalf("expected [a, b] in order, got %+v", st)
	}
}

func TestStartWithNoNamesTargetsEveryService(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	h.Start()
	for _, st := range h.Status() {
		for _, p := range st.Processes {
			if p != "Running" {
				t.Fatalf("expected Running for %s, got %s", st.Name, p)
			}
		}
	}
}

func TestStartWithNamesTargetsOnlyThoseServices(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	h.Start("a")
	st := h.Status()
	if st[0].Processes[0] != "Running" {
		t.Fatalf("expected a Running, got %s", st[0].Processes[0])
	}
	if st[1].Processes[0] != "Stopped" {
		t.Fatalf("expected b untouched (Stopped), got %s", st[1].Processes[0])
	}
}

func TestReloadDropsMissingServices(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	h.Reload(&config.Config{Services: []*config.ServiceConfig{svcCfg("a", "sleep 1")}}, nil)
	st := h.Status()
	if len(st) != 1 || st[0].Name != "a" {
		t.Fatalf("expected only a to remain, got %+v", st)
	}
}

func TestReloadAddsNewServices(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{svcCfg("a", "sleep 1")}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	h.Reload(&config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}, nil)
	st := h.Status()
	if len(st) != 2 || st[0].Name != "a" || st[1].Name != "b" {
		t.Fatalf("expected [a, b], got %+v", st)
	}
}

func TestReloadPreservesOrderOfNewConfig(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{
		svcCfg("a", "sleep 1"),
		svcCfg("b", "sleep 1"),
	}}
	h := handler.New(cfg, notify.Null)
	defer h.Delete()

	h.Reload(&config.Config{Services: []*config.ServiceConfig{
		svcCfg("b", "sleep 1"),
		svcCfg("c", "sleep 1"),
	}}, nil)
	st := h.Status()
	names := []string{st[0].Name, st[1].Name}
	if names[0] != "b" || names[1] != "c" {
		t.Fatalf("expected [b, c] in new config order, got %+v", names)
	}
}

func TestDeleteEmptiesHandler(t *testing.T) {
	cfg := &config.Config{Services: []*config.ServiceConfig{svcCfg("a", "sleep 1")}}
	h := handler.New(cfg, notify.Null)
	h.Start()

	h.Delete()
	if got := len(h.Status()); got != 0 {
		t.Fatalf("expected empty Handler after delete, got %d entries", got)
	}
}

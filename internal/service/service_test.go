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

package service_test

import (
	"os"
	"testing"
	"time"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/reaper"
	"github.com/go-taskmaster/taskmaster/internal/service"
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

func baseConfig(cmd string) *config.ServiceConfig {
	cfg := &config.ServiceConfig{
		Name:         "web",
		Cmd:          cmd,
		NumProcs:     2,
		AutoStart:    boolPtr(false),
		AutoRestart:  config.AutoRestartNever,
		ExitCodes:    []int{0},
		StartRetries: intPtr(1),
		StartTime:    intPtr(0),
		StopSignal:   "TERM",
		StopTime:     intPtr(2),
	}
	return cfg
}

func waitForAll(t *testing.T, st func() service.Status, want string, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		s := st()
		ok := true
		for _, p := range s.Processes {
			if p != want {
				ok = false
			}
		}
		if ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("not every process reached %s, got %+v", want, st())
}

func TestStartBringsUpConfiguredProcessCount(t *testing.T) {
	cfg := baseConfig("sleep 1")
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.Start()
	st := svc.Status()
	if len(st.Processes) != 2 {
		t.Fatalf("expected 2 processes, got %d", len(st.Processes))
	}
	for _, p := range st.Processes {
		if p != "Running" {
			t.Fatalf("expected Running, got %s", p)
		}
	}
}

func TestStopReachesStoppedForEveryProcess(t *testing.T) {
	cfg := baseConfig("sleep 5")
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.Start()
	waitForAll(t, svc.Status, "Running", time.Second)

	svc.Stop()
	st := svc.Status()
	for _, p := range st.Processes {
		if p != "Stopped" {
			t.Fatalf("expected Stopped, got %s", p)
		}
	}
}

func TestAutorestartAlwaysRestartsAfterExit(t *testing.T) {
	// Cmd is split on whitespace with no shell quoting, hence ${IFS}.
	cfg := baseConfig("sh -c sleep${IFS}0.2;exit${IFS}0")
	cfg.NumProcs = 1
	cfg.AutoRestart = config.AutoRestartAlways
	cfg.StartRetries = intPtr(5)
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.Start()
	// Give the monitor loop a couple of restart cycles; it should still be
	// alive in Running or Exited-about-to-restart, never stuck Stopped.
	time.Sleep(1200 * time.Millisecond)
	st := svc.Status()
	if st.Processes[0] == "Stopped" {
		t.Fatalf("expected service still being restarted, got Stopped")
	}
}

func TestAutoStartHonoursConfig(t *testing.T) {
	cfg := baseConfig("sleep 1")
	cfg.AutoStart = boolPtr(false)
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.AutoStart()
	st := svc.Status()
	for _, p := range st.Processes {
		if p != "Stopped" {
			t.Fatalf("expected Stopped (autostart disabled), got %s", p)
		}
	}
}

func TestReloadResizesWorkerCount(t *testing.T) {
	cfg := baseConfig("sleep 5")
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.Start()
	waitForAll(t, svc.Status, "Running", time.Second)

	grown := baseConfig("sleep 5")
	grown.NumProcs = 3
	svc.Reload(grown, notify.Null)
	if got := len(svc.Status().Processes); got != 3 {
		t.Fatalf("expected 3 processes after growing, got %d", got)
	}

	shrunk := baseConfig("sleep 5")
	shrunk.NumProcs = 1
	svc.Reload(shrunk, notify.Null)
	if got := len(svc.Status().Processes); got != 1 {
		t.Fatalf("expected 1 process after shrinking, got %d", got)
	}
}

func TestReloadRebuildsWorkersOnCmdChange(t *testing.T) {
	cfg := baseConfig("sleep 5")
	cfg.NumProcs = 1
	svc := service.New(cfg, notify.Null)
	defer svc.Delete()

	svc.Start()
	waitForAll(t, svc.Status, "Running", time.Second)

	changed := baseConfig("sleep 1")
	changed.NumProcs = 1
	svc.Reload(changed, notify.Null)
	// Rebuild tears the old (running) worker down to a fresh Stopped one
	// before AutoStart (disabled here) would bring it back up.
	st := svc.Status()
	if len(st.Processes) != 1 {
		t.Fatalf("expected 1 process, got %d", len(st.Processes))
	}
	if st.Processes[0] != "Stopped" {
		t.Fatalf("expected freshly rebuilt worker to be Stopped, got %s", st.Processes[0])
	}
}

func TestDeleteIsIdempotentAndLeavesNoProcesses(t *testing.T) {
	cfg := baseConfig("sleep 5")
	svc := service.New(cfg, notify.Null)

	svc.Start()
	waitForAll(t, svc.Status, "Running", time.Second)

	svc.Delete()
	if got := len(svc.Status().Processes); got != 0 {
		t.Fatalf("expected 0 processes after delete, got %d", got)
	}
	svc.Delete() // idempotent
}

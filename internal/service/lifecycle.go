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
	"sync"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/logger"
	"github.com/go-taskmaster/taskmaster/internal/worker"
)

// Start (re)spawns every configured Worker. Workers already alive
// (Running, Starting or Stopping) are left untouched; any other Worker is
// replaced with a fresh one. For each Worker it tracks two cooperating
// tasks in a shared tomb: the start task itself, and a monitor task that
// awaits the start task and then drives the autorestart lifecycle. Start
// returns once every start task has returned; monitor tasks keep running
// in the background.
func (svc *Service) Start() {
	svc.mu.Lock()
	svc.pruneAndRefillLocked()
	workers := append([]*worker.Worker(nil), svc.workers...)
	startRetries := *svc.cfg.StartRetries
	startTime := *svc.cfg.StartTime
	autoRestart := svc.cfg.AutoRestart
	exitCodes := append([]int(nil), svc.cfg.ExitCodes...)
	name := svc.cfg.Name
	svc.mu.Unlock()

	// recoverTask turns a panic in a start or monitor task into a log line.
	recoverTask := func(id int, task string) {
		if r := recover(); r != nil {
			logger.Noticef("%s-%d: %s task panicked: %v", name, id, task, r)
		}
	}

	var wg sync.WaitGroup
	for i, w := range workers {
		id := i + 1
		w := w
		t := new(tomb.Tomb)

		svc.mu.Lock()
		svc.tombs[id] = t
		svc.mu.Unlock()

		startDone := make(chan struct{})
		wg.Add(1)
		t.Go(func() error {
			defer wg.Done()
			defer close(startDone)
			defer recoverTask(id, "start")
			w.Start(startRetries+1, startTime)
			return nil
		})
		t.Go(func() error {
			defer recoverTask(id, "monitor")
			select {
			case <-startDone:
			case <-t.Dying():
				return nil
			}
			svc.monitor(w, id, startRetries, startTime, autoRestart, exitCodes, t.Dying())
			return nil
		})
	}
	wg.Wait()
}

// monitor waits for the child to exit, then while it keeps exiting
// within the retry budget,
// sleep retries+1 seconds and invoke the configured autorestart policy.
// It returns once the Worker leaves Exited for good: Stopped/Fatal via
// Worker.Wait's own decision, or because the policy declined to restart
// it (Autorestart left the state unchanged). On return it resets the
// retry counter and drops this Worker's tomb from the tracking set, so a
// later independent Start begins with a clean slate.
func (svc *Service) monitor(w *worker.Worker, id, startRetries, startTime int, policy config.AutoRestart, exitCodes []int, dying <-chan struct{}) {
	defer func() {
		w.ResetRetries()
		svc.mu.Lock()
		delete(svc.tombs, id)
		svc.mu.Unlock()
	}()

	w.Wait(startRetries)
	for w.State() == worker.Exited && w.Retries() < startRetries {
		wait := time.Duration(w.Retries()+1) * time.Second
		select {
		case <-dying:
			return
		case <-time.After(wait):
		}

		before := w.State()
		w.Autorestart(exitCodes, startRetries+1, startTime, policy)
		if w.State() == before {
			// The policy declined to restart (exit code was expected, or
			// policy is never): nothing left to monitor.
			return
		}
		w.Wait(startRetries)
	}
}

// Stop cancels every in-flight start and monitor task, then concurrently
// stops every Worker. It blocks until every Worker's Stop has returned:
// Workers that were Running or Starting end in Stopped, Workers in any
// other state (Exited, Fatal, Backoff) keep that state.
func (svc *Service) Stop() {
	svc.mu.Lock()
	tombs := svc.tombs
	svc.tombs = make(map[int]*tomb.Tomb)
	workers := append([]*worker.Worker(nil), svc.workers...)
	sig := svc.stopSignal()
	stopTime := *svc.cfg.StopTime
	svc.mu.Unlock()

	for _, t := range tombs {
		t.Kill(nil)
	}

	var wg sync.WaitGroup
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Stop(sig, stopTime)
		}()
	}
	wg.Wait()
}

// Restart stops and then starts every Worker. Any error encountered while
// stopping is swallowed: Start always runs.
func (svc *Service) Restart() {
	svc.Stop()
	svc.Start()
}

// Wait blocks until every currently tracked start/monitor task has
// returned. It is a test and shutdown affordance, not part of the
// steady-state lifecycle.
func (svc *Service) Wait() {
	svc.mu.Lock()
	tombs := make([]*tomb.Tomb, 0, len(svc.tombs))
	for _, t := range svc.tombs {
		tombs = append(tombs, t)
	}
	svc.mu.Unlock()
	for _, t := range tombs {
		t.Wait()
	}
}

// AutoStart starts the Service only if its configuration requests it.
func (svc *Service) AutoStart() {
	svc.mu.Lock()
	auto := svc.cfg.AutoStart
	svc.mu.Unlock()
	if auto != nil && *auto {
		svc.Start()
	}
}

// Delete cancels every in-flight task, deletes every Worker, closes the
// shared sinks and empties the Worker list. The Service must not be used
// afterwards.
func (svc *Service) Delete() {
	svc.mu.Lock()
	tombs := svc.tombs
	svc.tombs = make(map[int]*tomb.Tomb)
	workers := svc.workers
	svc.workers = nil
	svc.mu.Unlock()

	for _, t := range tombs {
		t.Kill(nil)
	}

	deleteAll(workers)

	svc.stdout.Close()
	svc.stderr.Close()
}

func deleteAll(workers []*worker.Worker) {
	var wg sync.WaitGroup
	for _, w := range workers {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Delete()
		}()
	}
	wg.Wait()
}

// pruneAndRefillLocked drops Workers that are not alive and replaces them
// with fresh ones so exactly NumProcs Workers remain. Callers must hold
// svc.mu.
func (svc *Service) pruneAndRefillLocked() {
	kept := svc.workers[:0]
	for _, w := range svc.workers {
		switch w.State() {
		case worker.Running, worker.Starting, worker.Stopping:
			kept = append(kept, w)
		}
	}
	svc.workers = kept
	for len(svc.workers) < svc.cfg.NumProcs {
		svc.workers = append(svc.workers, svc.newWorkerLocked(len(svc.workers)+1))
	}
}

// Status returns a point-in-time snapshot of every Worker's state.
func (svc *Service) Status() Status {
	svc.mu.Lock()
	workers := append([]*worker.Worker(nil), svc.workers...)
	name, cmd := svc.cfg.Name, svc.cfg.Cmd
	svc.mu.Unlock()

	st := Status{Name: name, Cmd: cmd, Processes: make([]string, len(workers))}
	for i, w := range workers {
		st.Processes[i] = string(w.State())
	}
	return st
}

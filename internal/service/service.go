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

// Package service implements Service, the aggregate of every Worker that
// shares a single ServiceConfig entry: one set of N Workers, one shared
// stdout sink and one shared stderr sink, and the per-Worker monitor task
// that drives the autorestart lifecycle once a Worker's initial start
// completes.
package service

import (
	"sync"
	"syscall"

	"gopkg.in/tomb.v2"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/logger"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/worker"
)

// Status is a point-in-time snapshot of a Service, shaped for rendering
// as "name, cmd, process_1, process_2, ...".
type Status struct {
	Name      string
	Cmd       string
	Processes []string
}

// Service owns every Worker configured for one entry in taskmaster.yml.
type Service struct {
	mu       sync.Mutex
	cfg      *config.ServiceConfig
	notifier notify.Notifier
	stdout   sink
	stderr   sink
	workers  []*worker.Worker
	tombs    map[int]*tomb.Tomb
}

// New builds a Service in the Stopped state: its Workers exist but none
// has been started.
func New(cfg *config.ServiceConfig, notifier notify.Notifier) *Service {
	svc := &Service{
		cfg:      cfg,
		notifier: notifier,
		tombs:    make(map[int]*tomb.Tomb),
	}
	svc.stdout = openSink(cfg.Stdout, cfg.Name+" stdout")
	svc.stderr = openSink(cfg.Stderr, cfg.Name+" stderr")
	for i := 0; i < cfg.NumProcs; i++ {
		svc.workers = append(svc.workers, svc.newWorkerLocked(i+1))
	}
	return svc
}

func (svc *Service) spawnConfigFor(cfg *config.ServiceConfig) worker.SpawnConfig {
	mask, ok := cfg.UmaskValue()
	return worker.SpawnConfig{
		Cmd:        cfg.Cmd,
		UmaskSet:   ok,
		Umask:      mask,
		WorkingDir: cfg.WorkingDir,
		User:       cfg.User,
		Env:        cfg.Env,
		StdoutPath: cfg.Stdout,
		StderrPath: cfg.Stderr,
	}
}

func (svc *Service) newWorkerLocked(id int) *worker.Worker {
	return worker.New(svc.cfg.Name, id, svc.spawnConfigFor(svc.cfg), svc.stdout, svc.stderr, svc.notifier)
}

func (svc *Service) stopSignal() syscall.Signal {
	sig, err := config.ParseStopSignal(svc.cfg.StopSignal)
	if err != nil {
		logger.Noticef("%s: %v, falling back to SIGTERM", svc.cfg.Name, err)
		return syscall.SIGTERM
	}
	return sig
}

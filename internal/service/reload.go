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
	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/worker"
)

// Reload applies a new ServiceConfig for the same service name:
//
//  1. Resize the Worker list to newCfg.NumProcs, deleting any Workers
//     beyond the new count.
//  2. Compare the spawn-relevant slice of the old and new configuration
//     (cmd, umask, workingdir, user, env, and now also stdout/stderr
//     paths). Any difference rebuilds every remaining Worker from
//     scratch, including reopening the shared sinks; otherwise Workers
//     are kept and just get the refreshed Notifier.
//  3. Invoke AutoStart.
func (svc *Service) Reload(newCfg *config.ServiceConfig, notifier notify.Notifier) {
	svc.mu.Lock()
	oldSpawn := svc.spawnConfigFor(svc.cfg)
	newSpawn := svc.spawnConfigFor(newCfg)
	var toDrop []*worker.Worker
	if len(svc.workers) > newCfg.NumProcs {
		toDrop = append(toDrop, svc.workers[newCfg.NumProcs:]...)
		svc.workers = svc.workers[:newCfg.NumProcs]
	}
	svc.mu.Unlock()

	deleteAll(toDrop)

	rebuildAll := !oldSpawn.Equal(newSpawn)

	svc.mu.Lock()
	svc.cfg = newCfg
	svc.notifier = notifier

	if rebuildAll {
		stale := svc.workers
		svc.workers = nil
		svc.mu.Unlock()
		deleteAll(stale)
		svc.mu.Lock()

		svc.stdout.Close()
		svc.stderr.Close()
		svc.stdout = openSink(newCfg.Stdout, newCfg.Name+" stdout")
		svc.stderr = openSink(newCfg.Stderr, newCfg.Name+" stderr")

		for len(svc.workers) < newCfg.NumProcs {
			svc.workers = append(svc.workers, svc.newWorkerLocked(len(svc.workers)+1))
		}
	} else {
		for len(svc.workers) < newCfg.NumProcs {
			svc.workers = append(svc.workers, svc.newWorkerLocked(len(svc.workers)+1))
		}
		for _, w := range svc.workers {
			w.SetNotifier(notifier)
		}
	}
	svc.mu.Unlock()

	svc.AutoStart()
}

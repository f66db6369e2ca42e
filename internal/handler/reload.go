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

package handler

import (
	"sync"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/service"
)

// Reload applies a freshly loaded configuration via a three-phase diff:
//
//  1. Every existing Service whose name no longer appears in newCfg is
//     deleted and dropped.
//  2. Every surviving Service has its config overwritten with the
//     matching new entry and is reloaded in place.
//  3. Every name in newCfg not previously present gets a freshly
//     constructed Service, appended at the end.
//  4. Autostart is dispatched across the resulting set.
//
// The new Notifier (nil keeps the current one) replaces the old one
// everywhere. Iteration order afterwards is newCfg's declaration order.
func (h *Handler) Reload(newCfg *config.Config, newNotifier notify.Notifier) {
	h.mu.Lock()
	if newNotifier != nil {
		h.notifier = newNotifier
	}
	notifier := h.notifier

	wanted := make(map[string]*config.ServiceConfig, len(newCfg.Services))
	for _, svcCfg := range newCfg.Services {
		wanted[svcCfg.Name] = svcCfg
	}

	var toDelete []*service.Service
	for _, name := range h.names {
		if _, ok := wanted[name]; !ok {
			toDelete = append(toDelete, h.services[name])
			delete(h.services, name)
		}
	}
	h.mu.Unlock()

	dispatch(toDelete, func(svc *service.Service) { svc.Delete() })

	h.mu.Lock()
	type pending struct {
		svc    *service.Service
		svcCfg *config.ServiceConfig
	}
	var toReload []pending
	for _, svcCfg := range newCfg.Services {
		if svc, ok := h.services[svcCfg.Name]; ok {
			toReload = append(toReload, pending{svc, svcCfg})
		}
	}
	h.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range toReload {
		p := p
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.svc.Reload(p.svcCfg, notifier)
		}()
	}
	wg.Wait()

	h.mu.Lock()
	names := make([]string, 0, len(newCfg.Services))
	for _, svcCfg := range newCfg.Services {
		names = append(names, svcCfg.Name)
		if _, ok := h.services[svcCfg.Name]; !ok {
			h.services[svcCfg.Name] = service.New(svcCfg, notifier)
		}
	}
	h.names = names
	h.mu.Unlock()

	h.AutoStart()
}

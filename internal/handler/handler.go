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

// Package handler implements Handler, the top-level supervisor: an
// ordered, name-keyed list of Services kept in sync with the
// configuration, exposing the outward start/stop/restart/autostart/
// reload/delete/status API.
package handler

import (
	"sync"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/service"
)

// Handler owns every Service configured in a taskmaster.yml.
type Handler struct {
	mu       sync.Mutex
	notifier notify.Notifier
	names    []string // insertion order, for deterministic status output
	services map[string]*service.Service
}

// New builds a Handler with one Service per entry of cfg.Services, in
// declaration order.
func New(cfg *config.Config, notifier notify.Notifier) *Handler {
	h := &Handler{
		notifier: notifier,
		services: make(map[string]*service.Service),
	}
	for _, svcCfg := range cfg.Services {
		h.names = append(h.names, svcCfg.Name)
		h.services[svcCfg.Name] = service.New(svcCfg, notifier)
	}
	return h
}

// selected resolves an optional name list to the Services it designates,
// in Handler order. An empty or nil list means every Service.
func (h *Handler) selected(names []string) []*service.Service {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(names) == 0 {
		out := make([]*service.Service, 0, len(h.names))
		for _, n := range h.names {
			out = append(out, h.services[n])
		}
		return out
	}
	out := make([]*service.Service, 0, len(names))
	for _, n := range names {
		if svc, ok := h.services[n]; ok {
			out = append(out, svc)
		}
	}
	return out
}

// dispatch runs fn concurrently over the selected Services and returns
// only once every call has returned; it does not hand the calls off and
// return early. This lets callers (notably cmd/taskmasterd) sequence
// operations predictably.
func dispatch(services []*service.Service, fn func(*service.Service)) {
	var wg sync.WaitGroup
	for _, svc := range services {
		svc := svc
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(svc)
		}()
	}
	wg.Wait()
}

// Start starts the named Services (or every Service if names is empty).
func (h *Handler) Start(names ...string) {
	dispatch(h.selected(names), func(svc *service.Service) { svc.Start() })
}

// Stop stops the named Services (or every Service if names is empty).
func (h *Handler) Stop(names ...string) {
	dispatch(h.selected(names), func(svc *service.Service) { svc.Stop() })
}

// Restart restarts the named Services (or every Service if names is empty).
func (h *Handler) Restart(names ...string) {
	dispatch(h.selected(names), func(svc *service.Service) { svc.Restart() })
}

// AutoStart invokes autostart on every Service.
func (h *Handler) AutoStart() {
	dispatch(h.selected(nil), func(svc *service.Service) { svc.AutoStart() })
}

// Status returns one entry per Service, in Handler order.
func (h *Handler) Status() []service.Status {
	services := h.selected(nil)
	out := make([]service.Status, len(services))
	for i, svc := range services {
		out[i] = svc.Status()
	}
	return out
}

// Delete deletes every Service and empties the Handler.
func (h *Handler) Delete() {
	h.mu.Lock()
	services := make([]*service.Service, 0, len(h.names))
	for _, n := range h.names {
		services = append(services, h.services[n])
	}
	h.names = nil
	h.services = make(map[string]*service.Service)
	h.mu.Unlock()

	dispatch(services, func(svc *service.Service) { svc.Delete() })
}

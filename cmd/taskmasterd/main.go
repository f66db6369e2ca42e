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

// Command taskmasterd wires the config loader, the Notifier, and the
// Handler together: it parses flags, loads the configuration, brings up
// every autostart service and then blocks until SIGINT, reloading on
// SIGHUP.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/canonical/go-flags"

	"github.com/go-taskmaster/taskmaster/internal/config"
	"github.com/go-taskmaster/taskmaster/internal/handler"
	"github.com/go-taskmaster/taskmaster/internal/logger"
	"github.com/go-taskmaster/taskmaster/internal/notify"
	"github.com/go-taskmaster/taskmaster/internal/reaper"
)

type options struct {
	ConfigFile string `short:"f" long:"file" default:"taskmaster.yml" description:"Path to the configuration file"`
	Generate   string `short:"g" long:"generate" description:"Write a skeleton configuration to this path and exit"`
	LogLevel   string `short:"l" long:"level" default:"info" description:"Log verbosity: debug, info, warning or error"`
}

func main() {
	os.Exit(run())
}

func run() int {
	var opts options
	parser := flags.NewParser(&opts, flags.Default)
	parser.ShortDescription = "A process supervisor driven by a declarative service list"
	if _, err := parser.Parse(); err != nil {
		if fe, ok := err.(*flags.Error); ok && fe.Type == flags.ErrHelp {
			return 0
		}
		return 1
	}

	if opts.Generate != "" {
		if err := config.WriteSkeleton(opts.Generate); err != nil {
			fmt.Fprintf(os.Stderr, "error: cannot write skeleton: %v\n", err)
			return 1
		}
		return 0
	}

	setupLogging(opts.LogLevel)

	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if err := reaper.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "error: cannot start child process reaper: %v\n", err)
		return 1
	}

	n := buildNotifier(cfg.Email)
	h := handler.New(cfg, n)
	h.AutoStart()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGHUP)

	for sig := range sigs {
		switch sig {
		case syscall.SIGHUP:
			logger.Noticef("received SIGHUP, reloading configuration from %s", opts.ConfigFile)
			newCfg, err := config.LoadFile(opts.ConfigFile)
			if err != nil {
				logger.Noticef("reload failed, keeping current configuration: %v", err)
				continue
			}
			h.Reload(newCfg, buildNotifier(newCfg.Email))
		case syscall.SIGINT:
			logger.Noticef("received SIGINT, shutting down")
			h.Delete()
			if err := reaper.Stop(); err != nil {
				logger.Noticef("cannot stop child process reaper: %v", err)
			}
			return 0
		}
	}
	return 0
}

func setupLogging(level string) {
	logger.SetLogger(logger.New(os.Stderr, "[taskmasterd] "))
	if level == "debug" {
		os.Setenv("TASKMASTER_DEBUG", "1")
	} else {
		os.Unsetenv("TASKMASTER_DEBUG")
	}
}

func buildNotifier(email *config.EmailConfig) notify.Notifier {
	if email == nil {
		return notify.Null
	}
	return &notify.SMTPNotifier{
		Server:   email.SMTPServer,
		Port:     email.SMTPPort,
		From:     email.SMTPEmail,
		Password: email.SMTPPassword,
		To:       email.To,
	}
}

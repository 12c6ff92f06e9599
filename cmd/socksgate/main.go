// Copyright 2024 The Socksgate Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command socksgate runs a SOCKS5 proxy server configured by a TOML file.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/socksgate/socksgate/config"
	"github.com/socksgate/socksgate/outgoing"
	"github.com/socksgate/socksgate/socks5"
)

func main() {
	configPath := pflag.StringP("config", "c", "config.toml", "path to the TOML configuration file")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if err := run(*configPath, logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(configPath string, logger *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", "path", configPath)

	dispatcher, err := newDispatcher(cfg.Outgoing)
	if err != nil {
		return err
	}
	listenAddr, err := cfg.Incoming.ListenAddr.Resolve()
	if err != nil {
		return fmt.Errorf("incoming.listen_addr: %w", err)
	}

	server := &socks5.Server{Dispatcher: dispatcher, Logger: logger}
	return server.ListenAndServe(listenAddr)
}

func newDispatcher(cfg config.Outgoing) (socks5.Dispatcher, error) {
	switch cfg.Type {
	case config.TypeDirect:
		return &outgoing.Direct{}, nil
	case config.TypeSocks5:
		serverAddr, err := cfg.ServerAddr.Resolve()
		if err != nil {
			return nil, fmt.Errorf("outgoing.server_addr: %w", err)
		}
		return outgoing.NewSOCKS5(serverAddr)
	default:
		return nil, fmt.Errorf("unsupported outgoing.type %q", cfg.Type)
	}
}

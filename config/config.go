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

// Package config loads and validates the TOML configuration file. The file
// has two tables, [incoming] and [outgoing]; unknown fields are ignored.
package config

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/viper"
)

// Recognized values of incoming.type and outgoing.type. Other values are
// reserved.
const (
	TypeSocks5 = "Socks5"
	TypeDirect = "Direct"
)

// Addr is an address in the configuration file: a port with exactly one of
// an IP literal or a hostname.
type Addr struct {
	IP     string `mapstructure:"ip"`
	Domain string `mapstructure:"domain"`
	Port   uint16 `mapstructure:"port"`
}

// Resolve validates the address and returns it in host:port form, resolving
// a hostname through the OS resolver.
func (a *Addr) Resolve() (string, error) {
	port := strconv.Itoa(int(a.Port))
	switch {
	case a.IP != "" && a.Domain != "":
		return "", fmt.Errorf("only one of ip and domain may be set, got %q and %q", a.IP, a.Domain)
	case a.IP != "":
		ip := net.ParseIP(a.IP)
		if ip == nil {
			return "", fmt.Errorf("invalid IP literal %q", a.IP)
		}
		return net.JoinHostPort(ip.String(), port), nil
	case a.Domain != "":
		tcpAddr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(a.Domain, port))
		if err != nil {
			return "", fmt.Errorf("resolve %q: %w", a.Domain, err)
		}
		return tcpAddr.String(), nil
	default:
		return "", fmt.Errorf("one of ip or domain must be set")
	}
}

// Incoming is the [incoming] table.
type Incoming struct {
	Type       string `mapstructure:"type"`
	ListenAddr Addr   `mapstructure:"listen_addr"`
}

// Outgoing is the [outgoing] table. ServerAddr is the upstream proxy address
// and only meaningful for type Socks5.
type Outgoing struct {
	Type       string `mapstructure:"type"`
	ServerAddr *Addr  `mapstructure:"server_addr"`
}

// Config is the whole configuration file.
type Config struct {
	Incoming Incoming `mapstructure:"incoming"`
	Outgoing Outgoing `mapstructure:"outgoing"`
}

// Load reads and validates the TOML file at path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %v: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %v: %w", path, err)
	}
	if err := cfg.validate(v); err != nil {
		return nil, fmt.Errorf("config %v: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) validate(v *viper.Viper) error {
	if c.Incoming.Type != TypeSocks5 {
		return fmt.Errorf("unsupported incoming.type %q", c.Incoming.Type)
	}
	if !v.IsSet("incoming.listen_addr.port") {
		return fmt.Errorf("incoming.listen_addr.port is required")
	}
	switch c.Outgoing.Type {
	case TypeDirect:
	case TypeSocks5:
		if c.Outgoing.ServerAddr == nil {
			return fmt.Errorf("outgoing.server_addr is required for type %q", TypeSocks5)
		}
	default:
		return fmt.Errorf("unsupported outgoing.type %q", c.Outgoing.Type)
	}
	return nil
}

// Example returns a valid example configuration document.
func Example() string {
	return `[incoming]
type = "Socks5"

[incoming.listen_addr]
ip = "127.0.0.1"
port = 1080

[outgoing]
type = "Direct"
`
}

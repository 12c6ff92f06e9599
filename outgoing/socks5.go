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

package outgoing

import (
	"context"
	"fmt"
	"net"

	"golang.org/x/net/proxy"

	"github.com/socksgate/socksgate/socks5"
	"github.com/socksgate/socksgate/transport"
)

// SOCKS5 chains outbound connections through an upstream SOCKS5 proxy.
// Destination addresses are forwarded as-is, so domain names resolve on the
// upstream side. Safe for concurrent use.
type SOCKS5 struct {
	serverAddr string
	dialer     proxy.ContextDialer
}

var _ socks5.Dispatcher = (*SOCKS5)(nil)

// NewSOCKS5 creates a dispatcher that forwards through the SOCKS5 proxy
// listening at serverAddr (host:port).
func NewSOCKS5(serverAddr string) (*SOCKS5, error) {
	dialer, err := proxy.SOCKS5("tcp", serverAddr, nil, &net.Dialer{})
	if err != nil {
		return nil, fmt.Errorf("upstream proxy %v: %w", serverAddr, err)
	}
	return &SOCKS5{serverAddr: serverAddr, dialer: dialer.(proxy.ContextDialer)}, nil
}

// DialRequest implements [socks5.Dispatcher]. Failures to reach the upstream
// proxy classify by OS error like a direct dial; errors reported by the
// upstream itself classify as a general failure.
func (s *SOCKS5) DialRequest(ctx context.Context, dst *socks5.Addr) (transport.StreamConn, error) {
	// The proxy dialer's DialContext wraps its connection in a type without
	// half-close, so the upstream is dialed here and the SOCKS5 exchange runs
	// on that *net.TCPConn through DialWithConn.
	handshaker, ok := s.dialer.(interface {
		DialWithConn(ctx context.Context, c net.Conn, network, address string) (net.Addr, error)
	})
	if !ok {
		return nil, fmt.Errorf("%w: upstream dialer %T lacks DialWithConn", socks5.ErrGeneralServerFailure, s.dialer)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.serverAddr)
	if err != nil {
		return nil, classify(err)
	}
	if _, err := handshaker.DialWithConn(ctx, conn, "tcp", dst.String()); err != nil {
		conn.Close()
		return nil, classify(err)
	}
	return conn.(*net.TCPConn), nil
}

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

// Package transport provides the stream abstractions the proxy is built on:
// a full-duplex byte stream with half-close support and observable local and
// peer addresses, dialers that produce such streams, and the bidirectional
// relay that splices two of them together.
package transport

import (
	"context"
	"net"
)

// StreamConn is a net.Conn that allows for closing only the reader or writer
// end of it, supporting half-open state.
type StreamConn interface {
	net.Conn
	// CloseRead closes the read end of the connection. No more reads should
	// happen after this call.
	CloseRead() error
	// CloseWrite closes the write end of the connection. An EOF or FIN signal
	// may be sent to the connection target.
	CloseWrite() error
}

// StreamDialer provides a way to dial a destination and establish stream
// connections.
type StreamDialer interface {
	// DialStream connects to `raddr`.
	// `raddr` has the form `host:port`, where `host` can be a domain name or IP address.
	DialStream(ctx context.Context, raddr string) (StreamConn, error)
}

// TCPDialer is a [StreamDialer] that connects over TCP using the standard
// [net.Dialer].
type TCPDialer struct {
	Dialer net.Dialer
}

var _ StreamDialer = (*TCPDialer)(nil)

// DialStream implements [StreamDialer].
func (d *TCPDialer) DialStream(ctx context.Context, raddr string) (StreamConn, error) {
	conn, err := d.Dialer.DialContext(ctx, "tcp", raddr)
	if err != nil {
		return nil, err
	}
	return conn.(*net.TCPConn), nil
}

// FuncStreamDialer is a [StreamDialer] that uses the given function to dial.
type FuncStreamDialer func(ctx context.Context, raddr string) (StreamConn, error)

// DialStream implements [StreamDialer].
func (f FuncStreamDialer) DialStream(ctx context.Context, raddr string) (StreamConn, error) {
	return f(ctx, raddr)
}

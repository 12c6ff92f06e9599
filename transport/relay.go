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

package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
)

// relayBufferSize is the per-direction copy buffer. Each direction writes
// exactly the bytes it read before issuing the next read; no data crosses
// between directions.
const relayBufferSize = 16 * 1024

// Relay splices client and server together as a full-duplex byte pipe and
// returns once both directions have finished. A direction finishes normally
// when its reader returns EOF, at which point the write end of the opposite
// stream is half-closed. If one direction fails, the other is left to run to
// completion and the failure is logged and returned; if both fail, the joined
// error is returned. Relay does not close either stream beyond the
// half-closes; the caller owns both connections.
func Relay(client, server StreamConn, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("relay started",
		"client_peer_port", addrPort(client.RemoteAddr()),
		"client_local_port", addrPort(client.LocalAddr()),
		"server_local_port", addrPort(server.LocalAddr()),
		"server_peer_port", addrPort(server.RemoteAddr()),
	)

	fromClient := make(chan error, 1)
	go func() {
		fromClient <- copyOneWay(server, client)
	}()
	serverErr := copyOneWay(client, server)
	clientErr := <-fromClient

	if clientErr != nil {
		logger.Error("relay client to server failed", "err", clientErr)
		clientErr = fmt.Errorf("client to server: %w", clientErr)
	}
	if serverErr != nil {
		logger.Error("relay server to client failed", "err", serverErr)
		serverErr = fmt.Errorf("server to client: %w", serverErr)
	}
	return errors.Join(clientErr, serverErr)
}

// copyOneWay forwards bytes from src to dst until src reaches EOF, then
// half-closes dst so the target sees the end of stream.
func copyOneWay(dst, src StreamConn) error {
	buf := make([]byte, relayBufferSize)
	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return fmt.Errorf("write: %w", werr)
			}
		}
		if rerr == io.EOF {
			if cerr := dst.CloseWrite(); cerr != nil {
				return fmt.Errorf("close write: %w", cerr)
			}
			return nil
		}
		if rerr != nil {
			return fmt.Errorf("read: %w", rerr)
		}
	}
}

func addrPort(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	_, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return port
}

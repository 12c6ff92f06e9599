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

package socks5

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/socksgate/socksgate/transport"
)

// Dispatcher yields a connected outbound stream for a destination address, or
// a classified failure. Implementations must be safe for concurrent use from
// any number of sessions.
//
// A failure may wrap a [ReplyCode] to select the code of the final response;
// errors without one are reported as [ErrGeneralServerFailure].
type Dispatcher interface {
	DialRequest(ctx context.Context, dst *Addr) (transport.StreamConn, error)
}

// defaultHandshakeTimeout bounds the greeting and request phases of a
// session. The copy phase has no wall-clock limit.
const defaultHandshakeTimeout = 10 * time.Second

// Server accepts SOCKS5 client connections and proxies each CONNECT request
// through its [Dispatcher]. The zero value is not usable: Dispatcher is
// required.
type Server struct {
	// Dispatcher establishes outbound connections. Required.
	Dispatcher Dispatcher
	// Logger receives session diagnostics. nil means [slog.Default].
	Logger *slog.Logger
	// HandshakeTimeout bounds the greeting and request phases. Zero means
	// defaultHandshakeTimeout.
	HandshakeTimeout time.Duration
}

// ListenAndServe binds a TCP listener on addr and serves until the listener
// fails. It only returns on error.
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %v: %w", addr, err)
	}
	defer ln.Close()
	return s.Serve(ln)
}

// Serve accepts connections from ln indefinitely, running one session per
// connection. Recoverable accept failures (out of descriptors, connection
// aborted before accept) are logged and retried with backoff; any other
// accept failure ends the loop with an error. Session failures never reach
// the accept loop.
func (s *Server) Serve(ln net.Listener) error {
	logger := s.logger()
	logger.Info("listening", "addr", ln.Addr().String())

	var retryDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !recoverableAccept(err) {
				return fmt.Errorf("accept: %w", err)
			}
			if retryDelay == 0 {
				retryDelay = 5 * time.Millisecond
			} else {
				retryDelay *= 2
			}
			if retryDelay > time.Second {
				retryDelay = time.Second
			}
			logger.Warn("accept failed, retrying", "err", err, "delay", retryDelay)
			time.Sleep(retryDelay)
			continue
		}
		retryDelay = 0
		go s.handleConn(conn.(*net.TCPConn))
	}
}

// recoverableAccept reports whether an accept error leaves the listening
// socket usable.
func recoverableAccept(err error) bool {
	if errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// handleConn drives a single session end to end: parse the request, dial
// through the dispatcher, send the final reply, then splice the two streams.
// Errors are logged and never propagate out.
func (s *Server) handleConn(clientConn *net.TCPConn) {
	logger := s.logger().With("client", clientConn.RemoteAddr().String())
	defer func() {
		if r := recover(); r != nil {
			logger.Error("session panicked", "panic", r)
		}
	}()
	defer clientConn.Close()
	// Closing with unread client bytes makes the kernel reset the connection,
	// which can discard a reply the client has not read yet. A session that
	// ends before its request is handled half-closes first and discards input
	// until EOF or the deadline.
	drainOnExit := true
	defer func() {
		if drainOnExit {
			clientConn.CloseWrite()
			io.Copy(io.Discard, clientConn)
		}
	}()

	clientConn.SetDeadline(time.Now().Add(s.handshakeTimeout()))
	sess := &session{conn: clientConn, logger: logger}

	if err := sess.handshake(); err != nil {
		logger.Warn("handshake failed", "err", err)
		return
	}
	dst, err := sess.readRequest()
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			// The expired deadline covers writes too; allow the reply out.
			clientConn.SetDeadline(time.Now().Add(time.Second))
			sess.reply(ErrGeneralServerFailure, zeroAddr())
		}
		logger.Warn("request failed", "err", err)
		return
	}
	clientConn.SetDeadline(time.Time{})
	drainOnExit = false

	targetConn, err := s.Dispatcher.DialRequest(context.Background(), dst)
	if err != nil {
		logger.Warn("outbound dial failed", "dst", dst.String(), "err", err)
		code := ErrGeneralServerFailure
		var replyCode ReplyCode
		if errors.As(err, &replyCode) && replyCode != Succeeded {
			code = replyCode
		}
		// The bound address mirrors the requested address on failure.
		if err := sess.reply(code, dst); err != nil {
			logger.Warn("failure reply not sent", "err", err)
		}
		return
	}
	defer targetConn.Close()

	bound := addrFromNet(targetConn.LocalAddr())
	if bound == nil {
		logger.Error("outbound local address unusable", "addr", targetConn.LocalAddr())
		sess.reply(ErrGeneralServerFailure, dst)
		return
	}
	if err := sess.reply(Succeeded, bound); err != nil {
		logger.Warn("success reply not sent", "err", err)
		return
	}

	if err := transport.Relay(clientConn, targetConn, logger); err != nil {
		logger.Warn("relay finished with error", "err", err)
	}
}

func (s *Server) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Server) handshakeTimeout() time.Duration {
	if s.HandshakeTimeout > 0 {
		return s.HandshakeTimeout
	}
	return defaultHandshakeTimeout
}

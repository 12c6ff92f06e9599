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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/socksgate/socksgate/transport"
)

// session is the per-connection protocol state machine. Wire operations are
// strictly ordered: handshake, then readRequest, then exactly one reply.
type session struct {
	conn   transport.StreamConn
	logger *slog.Logger
}

// handshake negotiates the authentication method: it reads the client
// greeting and selects "no authentication required" if offered.
//
// A client that does not speak SOCKS5 gets no response at all. A client that
// offers no acceptable method gets the NO ACCEPTABLE METHODS selection before
// the error returns.
func (s *session) handshake() error {
	// VER, NMETHODS
	var hdr [2]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return fmt.Errorf("read greeting: %w", err)
	}
	if hdr[0] != version {
		return fmt.Errorf("not a SOCKS5 client: version %v", hdr[0])
	}
	methods := make([]byte, int(hdr[1]))
	if _, err := io.ReadFull(s.conn, methods); err != nil {
		return fmt.Errorf("read methods: %w", err)
	}
	if !slices.Contains(methods, byte(authMethodNoAuth)) {
		if _, err := s.conn.Write([]byte{version, authNoAcceptableMethod}); err != nil {
			return fmt.Errorf("write method selection: %w", err)
		}
		return fmt.Errorf("no acceptable method among %v", methods)
	}
	if _, err := s.conn.Write([]byte{version, authMethodNoAuth}); err != nil {
		return fmt.Errorf("write method selection: %w", err)
	}
	s.logger.Debug("client authenticated")
	return nil
}

// readRequest parses the request frame and returns the destination address.
// Protocol errors that still permit a reply (unsupported command, bad address
// type) are replied to before the error returns; a version mismatch or an
// I/O failure is not.
func (s *session) readRequest() (*Addr, error) {
	// VER, CMD, RSV, ATYP and the first address byte. For IPv4 and IPv6 the
	// fifth byte is the first address octet; for domain names it is the
	// length field.
	var hdr [5]byte
	if _, err := io.ReadFull(s.conn, hdr[:]); err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if hdr[0] != version {
		return nil, fmt.Errorf("not a SOCKS5 request: version %v", hdr[0])
	}
	if hdr[1] != CmdConnect {
		if err := s.reply(ErrCommandNotSupported, zeroAddr()); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: command %v", ErrCommandNotSupported, hdr[1])
	}
	dst, err := readDestAddr(hdr[3], hdr[4], s.conn)
	if err != nil {
		if errors.Is(err, ErrAddressTypeNotSupported) {
			if rerr := s.reply(ErrAddressTypeNotSupported, zeroAddr()); rerr != nil {
				return nil, rerr
			}
		}
		return nil, err
	}
	s.logger.Debug("request parsed", "dst", dst)
	return dst, nil
}

// reply writes the final response frame:
//
//	+----+-----+-------+------+----------+----------+
//	|VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//	+----+-----+-------+------+----------+----------+
//	| 1  |  1  | X'00' |  1   | Variable |    2     |
//	+----+-----+-------+------+----------+----------+
func (s *session) reply(code ReplyCode, bnd *Addr) error {
	b := make([]byte, 0, 3+1+1+255+2)
	b = append(b, version, byte(code), 0)
	b, err := appendAddr(b, bnd)
	if err != nil {
		// Never skip the reply over a bad bound address.
		b, _ = appendAddr(b[:3], zeroAddr())
	}
	if _, err := s.conn.Write(b); err != nil {
		return fmt.Errorf("write reply: %w", err)
	}
	s.logger.Debug("reply sent", "code", uint8(code))
	return nil
}

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

// Package outgoing provides the dispatchers that establish outbound
// connections for proxied requests. Dial failures are classified into the
// SOCKS5 reply vocabulary by wrapping the matching [socks5.ReplyCode].
package outgoing

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/socksgate/socksgate/socks5"
	"github.com/socksgate/socksgate/transport"
)

// Direct dials destinations straight from the local host, resolving domain
// names through the OS resolver. The zero value is usable and safe for
// concurrent use.
type Direct struct {
	// Dialer establishes the outbound connection. nil means a plain
	// [transport.TCPDialer].
	Dialer transport.StreamDialer
}

var _ socks5.Dispatcher = (*Direct)(nil)

// DialRequest implements [socks5.Dispatcher].
func (d *Direct) DialRequest(ctx context.Context, dst *socks5.Addr) (transport.StreamConn, error) {
	conn, err := d.dialer().DialStream(ctx, dst.String())
	if err != nil {
		return nil, classify(err)
	}
	return conn, nil
}

func (d *Direct) dialer() transport.StreamDialer {
	if d.Dialer != nil {
		return d.Dialer
	}
	return &transport.TCPDialer{}
}

// classify maps an outbound dial failure onto the SOCKS5 reply vocabulary:
//
//	name resolution failure        -> general SOCKS server failure
//	ECONNREFUSED                   -> connection refused
//	ENETUNREACH (and equivalents)  -> network unreachable
//	EHOSTUNREACH (and equivalents) -> host unreachable
//	ETIMEDOUT (and equivalents)    -> TTL expired
//	anything else                  -> general SOCKS server failure
//
// The platform equivalents live in the errno_*.go files.
func classify(err error) error {
	code := socks5.ErrGeneralServerFailure
	var dnsErr *net.DNSError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		// keep the general failure code
	case errors.Is(err, errConnectionRefused):
		code = socks5.ErrConnectionRefused
	case errors.Is(err, errNetworkUnreachable):
		code = socks5.ErrNetworkUnreachable
	case errors.Is(err, errHostUnreachable):
		code = socks5.ErrHostUnreachable
	case errors.Is(err, errTimedOut):
		code = socks5.ErrTTLExpired
	case errors.As(err, &netErr) && netErr.Timeout():
		// Deadline expirations carry no errno but are the same condition.
		code = socks5.ErrTTLExpired
	}
	return fmt.Errorf("%w: %w", code, err)
}

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
	"errors"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gosocks5 "github.com/things-go/go-socks5"

	"github.com/socksgate/socksgate/socks5"
	"github.com/socksgate/socksgate/transport"
)

func echoListener(t *testing.T) *net.TCPAddr {
	t.Helper()
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go func() {
		for {
			conn, err := ln.AcceptTCP()
			if err != nil {
				return
			}
			go func() {
				io.Copy(conn, conn)
				conn.Close()
			}()
		}
	}()
	return ln.Addr().(*net.TCPAddr)
}

func TestDirectDialIP(t *testing.T) {
	addr := echoListener(t)
	direct := &Direct{}

	conn, err := direct.DialRequest(context.Background(), &socks5.Addr{
		IP: addr.IP, Port: uint16(addr.Port),
	})
	require.NoError(t, err)
	defer conn.Close()
	require.NotNil(t, conn.LocalAddr())

	_, err = conn.Write([]byte("abc"))
	require.NoError(t, err)
	buf := make([]byte, 3)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), buf)
}

func TestDirectDialDomain(t *testing.T) {
	addr := echoListener(t)
	direct := &Direct{}

	conn, err := direct.DialRequest(context.Background(), &socks5.Addr{
		Name: "localhost", Port: uint16(addr.Port),
	})
	require.NoError(t, err)
	conn.Close()
}

func TestDirectDialRefused(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	direct := &Direct{}
	_, err = direct.DialRequest(context.Background(), &socks5.Addr{
		IP: net.IPv4(127, 0, 0, 1), Port: uint16(port),
	})
	require.ErrorIs(t, err, socks5.ErrConnectionRefused)
}

func TestDirectResolutionFailureIsGeneral(t *testing.T) {
	direct := &Direct{Dialer: &transport.TCPDialer{Dialer: net.Dialer{Timeout: 5 * time.Second}}}
	_, err := direct.DialRequest(context.Background(), &socks5.Addr{
		Name: "host.invalid", Port: 80,
	})
	require.Error(t, err)
	var code socks5.ReplyCode
	require.True(t, errors.As(err, &code))
	require.Equal(t, socks5.ErrGeneralServerFailure, code)
}

// TestDirectDialerSeam checks that Direct forwards the destination in
// host:port form to its dialer and classifies whatever failure comes back.
func TestDirectDialerSeam(t *testing.T) {
	var dialed string
	direct := &Direct{Dialer: transport.FuncStreamDialer(
		func(ctx context.Context, raddr string) (transport.StreamConn, error) {
			dialed = raddr
			return nil, &net.OpError{Op: "dial", Net: "tcp", Err: errTimedOut}
		})}

	_, err := direct.DialRequest(context.Background(), &socks5.Addr{
		Name: "example.com", Port: 443,
	})
	require.Equal(t, "example.com:443", dialed)
	require.ErrorIs(t, err, socks5.ErrTTLExpired)
}

func TestClassify(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want socks5.ReplyCode
	}{
		{"refused", errConnectionRefused, socks5.ErrConnectionRefused},
		{"network unreachable", errNetworkUnreachable, socks5.ErrNetworkUnreachable},
		{"host unreachable", errHostUnreachable, socks5.ErrHostUnreachable},
		{"timed out", errTimedOut, socks5.ErrTTLExpired},
		{"deadline", os.ErrDeadlineExceeded, socks5.ErrTTLExpired},
		{"anything else", errors.New("broken wire"), socks5.ErrGeneralServerFailure},
	} {
		t.Run(tc.name, func(t *testing.T) {
			wrapped := &net.OpError{Op: "dial", Net: "tcp", Err: tc.err}
			var code socks5.ReplyCode
			require.True(t, errors.As(classify(wrapped), &code))
			require.Equal(t, tc.want, code)
		})
	}
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := &net.OpError{Op: "dial", Net: "tcp", Err: errConnectionRefused}
	err := classify(cause)
	var opErr *net.OpError
	require.True(t, errors.As(err, &opErr))
}

func TestSOCKS5DispatcherThroughUpstream(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go gosocks5.NewServer().Serve(ln)

	echoAddr := echoListener(t)
	dispatcher, err := NewSOCKS5(ln.Addr().String())
	require.NoError(t, err)

	conn, err := dispatcher.DialRequest(context.Background(), &socks5.Addr{
		IP: echoAddr.IP, Port: uint16(echoAddr.Port),
	})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("through upstream"))
	require.NoError(t, err)
	buf := make([]byte, len("through upstream"))
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	require.Equal(t, "through upstream", string(buf))
}

func TestSOCKS5DispatcherUpstreamDown(t *testing.T) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	upstreamAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	dispatcher, err := NewSOCKS5(upstreamAddr)
	require.NoError(t, err)
	_, err = dispatcher.DialRequest(context.Background(), &socks5.Addr{
		IP: net.IPv4(127, 0, 0, 1), Port: 80,
	})
	require.ErrorIs(t, err, socks5.ErrConnectionRefused)
}

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

//go:build unix

package outgoing

import "golang.org/x/sys/unix"

// connect(2) errno values that have a SOCKS5 reply code of their own.
var (
	errConnectionRefused  error = unix.ECONNREFUSED
	errNetworkUnreachable error = unix.ENETUNREACH
	errHostUnreachable    error = unix.EHOSTUNREACH
	errTimedOut           error = unix.ETIMEDOUT
)

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

//go:build windows

package outgoing

import "golang.org/x/sys/windows"

// Winsock and Win32 connect errors that have a SOCKS5 reply code of their
// own. ERROR_NETWORK_UNREACHABLE (1231) and ERROR_HOST_UNREACHABLE (1232)
// surface from some dial paths instead of their WSA counterparts.
var (
	errConnectionRefused  error = windows.WSAECONNREFUSED
	errNetworkUnreachable error = windows.ERROR_NETWORK_UNREACHABLE
	errHostUnreachable    error = windows.ERROR_HOST_UNREACHABLE
	errTimedOut           error = windows.WSAETIMEDOUT
)

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

//go:build !unix && !windows

package outgoing

import "errors"

// Platforms without usable connect errnos never match these sentinels, so
// every dial failure classifies as a general failure.
var (
	errConnectionRefused  = errors.New("connection refused")
	errNetworkUnreachable = errors.New("network unreachable")
	errHostUnreachable    = errors.New("host unreachable")
	errTimedOut           = errors.New("timed out")
)

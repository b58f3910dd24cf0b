// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rcs620s

import "time"

// Transport is the byte link to the reader. It knows nothing about frames.
// Implementations must not block in ReadAvailable: it returns whatever is
// buffered right now, possibly nothing.
type Transport interface {
	// Write sends p to the reader.
	Write(p []byte) (int, error)

	// ReadAvailable copies up to len(p) already-received bytes into p.
	ReadAvailable(p []byte) (int, error)

	// Flush discards any received but unread bytes.
	Flush() error

	// Close releases the underlying port.
	Close() error
}

// TransportTyper is implemented by transports that can report their kind.
// Wire traces use it to label failures.
type TransportTyper interface {
	Type() TransportType
}

// TransportType names a transport for logs and wire traces.
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// Clock is the time source of the link. Now must be monotonic.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now, which carries a monotonic reading.
func (SystemClock) Now() time.Time { return time.Now() }

// Sleep blocks for d.
func (SystemClock) Sleep(d time.Duration) { time.Sleep(d) }

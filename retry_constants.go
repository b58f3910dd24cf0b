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

// Connection retry constants control device connection behavior.
const (
	// DefaultConnectionRetries is the number of attempts to initialise a device.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the initial delay between connection attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff is the maximum delay between connection attempts.
	ConnectionMaxBackoff = 500 * time.Millisecond
	// ConnectionBackoffMultiplier is the exponential backoff multiplier.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random jitter factor (0.0-1.0) to prevent thundering herd.
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout is the overall timeout for all connection attempts.
	ConnectionRetryTimeout = 10 * time.Second
)

// Page read retry constants apply to the multi-page NDEF read, where a
// single lost frame should not abort the whole message.
const (
	// PageReadRetries is the number of attempts per 4-page read.
	PageReadRetries = 3
	// PageReadInitialBackoff is the delay before the first page read retry.
	PageReadInitialBackoff = 20 * time.Millisecond
	// PageReadMaxBackoff caps the page read backoff.
	PageReadMaxBackoff = 100 * time.Millisecond
)

// ConnectionRetryConfig returns the backoff used while initialising a device.
func ConnectionRetryConfig(attempts int) *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    ConnectionInitialBackoff,
		MaxBackoff:        ConnectionMaxBackoff,
		BackoffMultiplier: ConnectionBackoffMultiplier,
		Jitter:            ConnectionJitter,
		RetryTimeout:      ConnectionRetryTimeout,
	}
}

// PageReadRetryConfig returns the backoff used for page reads inside ReadNDEF.
func PageReadRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       PageReadRetries,
		InitialBackoff:    PageReadInitialBackoff,
		MaxBackoff:        PageReadMaxBackoff,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
	}
}

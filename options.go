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

import (
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"
)

// Option is a functional option for configuring a Device
type Option func(*Device) error

// WithTimeout sets the link timeout used for every read of an exchange
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		return d.SetTimeout(timeout)
	}
}

// WithClock replaces the wall clock. Tests pass a fake clock so timeouts and
// the push settle delay run instantly.
func WithClock(clock Clock) Option {
	return func(d *Device) error {
		if clock == nil {
			return fmt.Errorf("%w: nil clock", ErrInvalidParameter)
		}
		d.config.Clock = clock
		return nil
	}
}

// WithRetryConfig sets the backoff used by retried operations such as the
// page reads of ReadNDEF
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.config.RetryConfig = config
		return nil
	}
}

// WithMetricsRegistry registers the link counters in r instead of a private
// registry, so an application can export them alongside its own.
func WithMetricsRegistry(r metrics.Registry) Option {
	return func(d *Device) error {
		d.config.Metrics = r
		return nil
	}
}

// WithTraceSize sets how many wire trace entries a failed exchange carries
func WithTraceSize(entries int) Option {
	return func(d *Device) error {
		if entries <= 0 {
			return fmt.Errorf("%w: trace size %d", ErrInvalidParameter, entries)
		}
		d.config.TraceSize = entries
		return nil
	}
}

// WithPortName labels wire traces with the port the transport is bound to
func WithPortName(port string) Option {
	return func(d *Device) error {
		d.config.Port = port
		return nil
	}
}

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

// Package testing provides test doubles for the RC-S620/S driver: a manual
// clock, a byte-scripted transport and a wire-level reader simulator.
package testing

import (
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/syncutil"
)

// FakeClock is a manually driven clock. Sleep advances it by the requested
// duration; Now advances it by Step after each call, which lets busy-wait
// loops reach their deadline without any sleeps at all.
type FakeClock struct {
	now    time.Time
	start  time.Time
	sleeps []time.Duration
	step   time.Duration
	mu     syncutil.Mutex
}

// NewFakeClock returns a clock starting at the Unix epoch with no auto-advance.
func NewFakeClock() *FakeClock {
	start := time.Unix(0, 0)
	return &FakeClock{now: start, start: start}
}

// SetStep sets how far each call to Now moves the clock forward.
func (c *FakeClock) SetStep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = d
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Sleep records d and advances the clock by it without blocking.
func (c *FakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Elapsed returns how far the clock has moved since it was created.
func (c *FakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

// Sleeps returns every duration passed to Sleep, in order.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// SleptAtLeast reports the total of all recorded sleeps of at least min.
func (c *FakeClock) SleptAtLeast(minimum time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total time.Duration
	for _, d := range c.sleeps {
		if d >= minimum {
			total += d
		}
	}
	return total
}

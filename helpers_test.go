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
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/require"
)

const testTimeout = 50 * time.Millisecond

// newScriptedDevice returns a device over a ScriptedTransport and fake clock.
func newScriptedDevice(t *testing.T, opts ...Option) (*Device, *testutil.ScriptedTransport, *testutil.FakeClock) {
	t.Helper()
	transport := testutil.NewScriptedTransport()
	clock := testutil.NewFakeClock()
	device, err := New(transport, append([]Option{WithClock(clock), WithTimeout(testTimeout)}, opts...)...)
	require.NoError(t, err)
	return device, transport, clock
}

// newVirtualDevice returns a device wired to a simulated reader holding cards.
func newVirtualDevice(t *testing.T, cards ...*testutil.VirtualCard) (*Device, *testutil.VirtualRCS620S, *testutil.FakeClock) {
	t.Helper()
	sim := testutil.NewVirtualRCS620S()
	for _, card := range cards {
		sim.AddCard(card)
	}
	clock := testutil.NewFakeClock()
	device, err := New(sim, WithClock(clock), WithTimeout(testTimeout), WithRetryConfig(&RetryConfig{
		MaxAttempts:       2,
		InitialBackoff:    time.Microsecond,
		MaxBackoff:        time.Microsecond,
		BackoffMultiplier: 1,
	}))
	require.NoError(t, err)
	return device, sim, clock
}

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

package testing

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
)

func TestScriptedTransport_RepliesSurviveFlush(t *testing.T) {
	t.Parallel()
	st := NewScriptedTransport()
	st.QueueResponse([]byte{0xD5, 0x19})

	require.NoError(t, st.Flush())
	assert.Zero(t, st.Buffered())

	cmd, err := frame.Encode([]byte{0xD4, 0x18, 0x01})
	require.NoError(t, err)
	_, err = st.Write(cmd)
	require.NoError(t, err)

	buf := make([]byte, 64)
	n, err := st.ReadAvailable(buf)
	require.NoError(t, err)
	assert.Equal(t, frame.AckFrame(), buf[:frame.AckLength])
	payload, err := frame.Decode(buf[frame.AckLength:n])
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x19}, payload)
	assert.Equal(t, 1, st.Flushes())
}

func TestScriptedTransport_AckDoesNotReleaseReply(t *testing.T) {
	t.Parallel()
	st := NewScriptedTransport()
	st.QueueRaw([]byte{0x01, 0x02})

	_, err := st.Write(frame.AckFrame())
	require.NoError(t, err)
	assert.Zero(t, st.Buffered())
	assert.Equal(t, 1, st.Pending())
	assert.Equal(t, 1, st.AckWrites())
}

func TestScriptedTransport_ChunkSize(t *testing.T) {
	t.Parallel()
	st := NewScriptedTransport()
	st.SetChunkSize(1)
	st.QueueRaw([]byte{0x01, 0x02, 0x03})
	_, _ = st.Write([]byte{0xAA})

	buf := make([]byte, 8)
	for i := range 3 {
		n, err := st.ReadAvailable(buf)
		require.NoError(t, err)
		require.Equal(t, 1, n)
		assert.Equal(t, byte(i+1), buf[0])
	}
	n, _ := st.ReadAvailable(buf)
	assert.Zero(t, n)
}

func TestScriptedTransport_Errors(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")

	st := NewScriptedTransport()
	st.SetWriteError(boom)
	_, err := st.Write([]byte{0x00})
	require.ErrorIs(t, err, boom)

	st = NewScriptedTransport()
	st.SetReadError(boom)
	_, err = st.ReadAvailable(make([]byte, 1))
	require.ErrorIs(t, err, boom)

	require.NoError(t, st.Close())
	_, err = st.Write([]byte{0x00})
	require.ErrorIs(t, err, ErrClosed)
}

func TestScriptedTransport_CommandPayloads(t *testing.T) {
	t.Parallel()
	st := NewScriptedTransport()
	for _, p := range [][]byte{{0xD4, 0x18, 0x01}, {0xD4, 0x32, 0x01, 0x00}} {
		encoded, err := frame.Encode(p)
		require.NoError(t, err)
		_, _ = st.Write(encoded)
		_, _ = st.Write(frame.AckFrame())
	}

	assert.Equal(t, [][]byte{{0xD4, 0x18, 0x01}, {0xD4, 0x32, 0x01, 0x00}}, st.CommandPayloads())
	assert.Len(t, st.Writes(), 4)
	assert.Equal(t, 2, st.AckWrites())
}

func TestFakeClock(t *testing.T) {
	t.Parallel()
	c := NewFakeClock()
	start := c.Now()
	assert.Equal(t, start, c.Now(), "no step configured")

	c.Sleep(5 * time.Millisecond)
	c.Sleep(time.Second)
	assert.Equal(t, start.Add(time.Second+5*time.Millisecond), c.Now())
	assert.Equal(t, []time.Duration{5 * time.Millisecond, time.Second}, c.Sleeps())
	assert.Equal(t, time.Second, c.SleptAtLeast(time.Second))

	c.SetStep(time.Millisecond)
	t0 := c.Now()
	t1 := c.Now()
	assert.Equal(t, time.Millisecond, t1.Sub(t0))

	c.Advance(time.Minute)
	assert.GreaterOrEqual(t, c.Elapsed(), time.Minute)
}

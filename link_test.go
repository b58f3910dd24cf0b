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
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
	testutil "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var resetCmd = []byte{0xD4, 0x18, 0x01}

func newTestLink(t *testing.T, timeout time.Duration) (*link, *testutil.ScriptedTransport, *testutil.FakeClock) {
	t.Helper()
	transport := testutil.NewScriptedTransport()
	clock := testutil.NewFakeClock()
	l := newLink(transport, clock, NewTraceBuffer("mock", "test", 16), newLinkMetrics(nil), timeout)
	return l, transport, clock
}

func encodeFrame(t *testing.T, payload []byte) []byte {
	t.Helper()
	encoded, err := frame.Encode(payload)
	require.NoError(t, err)
	return encoded
}

func withAck(parts ...[]byte) []byte {
	out := append([]byte(nil), frame.AckFrame()...)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func requireLinkError(t *testing.T, err error, kind error, state LinkState) *LinkError {
	t.Helper()
	require.ErrorIs(t, err, kind)
	var le *LinkError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, state, le.State)
	return le
}

func TestLink_Exchange(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 100*time.Millisecond)
	transport.QueueResponse([]byte{0xD5, 0x19})

	resp, err := l.exchange("Reset", resetCmd, maxResponse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x19}, resp)
	assert.Equal(t, StateDone, l.state)

	writes := transport.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, encodeFrame(t, resetCmd), writes[0])
	assert.Equal(t, 1, transport.Flushes())
	assert.Zero(t, transport.AckWrites())
	assert.Equal(t, int64(1), l.metrics.exchanges.Count())
}

func TestLink_ExtendedResponse(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0x5A}, 260)
	payload[0], payload[1] = 0xD5, 0x41

	l, transport, _ := newTestLink(t, 100*time.Millisecond)
	transport.QueueResponse(payload)

	resp, err := l.exchange("ReadPage", resetCmd, maxResponse)
	require.NoError(t, err)
	assert.Equal(t, payload, resp)
}

func TestLink_MaxNormalResponse(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0x01}, frame.MaxNormalPayload)
	l, transport, _ := newTestLink(t, 100*time.Millisecond)
	transport.QueueResponse(payload)

	resp, err := l.exchange("op", resetCmd, maxResponse)
	require.NoError(t, err)
	assert.Len(t, resp, frame.MaxNormalPayload)
}

func TestLink_ChunkedReads(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 100*time.Millisecond)
	transport.SetChunkSize(1)
	transport.QueueResponse([]byte{0xD5, 0x4B, 0x01, 0x01, 0x12, 0x01})

	resp, err := l.exchange("PollFeliCa", resetCmd, maxResponse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x4B, 0x01, 0x01, 0x12, 0x01}, resp)
}

func TestLink_Timeouts(t *testing.T) {
	t.Parallel()

	reply := []byte{0xD5, 0x19, 0x00, 0x01, 0x02}
	encoded := []byte{0x00, 0x00, 0xFF, 0x05, 0xFB}
	encoded = append(encoded, reply...)
	encoded = append(encoded, frame.Checksum(reply), 0x00)

	tests := []struct {
		name        string
		raw         []byte
		state       LinkState
		wantPartial []byte
	}{
		{
			name:  "no ACK",
			raw:   nil,
			state: StateAwaitingAck,
		},
		{
			name:  "partial ACK",
			raw:   frame.AckFrame()[:4],
			state: StateAwaitingAck,
		},
		{
			name:  "ACK only",
			raw:   frame.AckFrame(),
			state: StateAwaitingResponseHeader,
		},
		{
			name:  "extended length missing",
			raw:   withAck([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x01}),
			state: StateAwaitingResponseLength,
		},
		{
			name:        "payload cut short",
			raw:         withAck(encoded[:7]),
			state:       StateAwaitingPayload,
			wantPartial: reply[:2],
		},
		{
			name:        "trailer missing",
			raw:         withAck(encoded[:10]),
			state:       StateAwaitingTrailer,
			wantPartial: reply,
		},
		{
			name:        "postamble missing",
			raw:         withAck(encoded[:11]),
			state:       StateAwaitingTrailer,
			wantPartial: reply,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, transport, _ := newTestLink(t, 50*time.Millisecond)
			transport.QueueRaw(tt.raw)

			_, err := l.exchange("Reset", resetCmd, maxResponse)
			le := requireLinkError(t, err, ErrTimeout, tt.state)
			assert.NotErrorIs(t, err, ErrProtocol)
			assert.Equal(t, tt.wantPartial, le.Payload)

			// Exactly one cancel: one ACK write and one flush after the
			// pre-command flush.
			assert.Equal(t, 1, transport.AckWrites())
			assert.Equal(t, 2, transport.Flushes())
			assert.Zero(t, transport.Buffered())
			assert.Equal(t, StateFailed, l.state)
			assert.Equal(t, int64(1), l.metrics.timeouts.Count())
			assert.Equal(t, int64(1), l.metrics.cancels.Count())
		})
	}
}

func TestLink_TimeoutHonoursClock(t *testing.T) {
	t.Parallel()

	l, transport, clock := newTestLink(t, 50*time.Millisecond)
	transport.QueueSilence()

	_, err := l.exchange("Reset", resetCmd, maxResponse)
	require.ErrorIs(t, err, ErrTimeout)

	// 50 poll sleeps of 1 ms plus the 1 ms cancel settle.
	assert.Equal(t, 51*time.Millisecond, clock.Elapsed())
	for _, d := range clock.Sleeps() {
		assert.Equal(t, time.Millisecond, d)
	}
}

func TestLink_ZeroTimeout(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 0)
	transport.QueueResponse([]byte{0xD5, 0x19})

	_, err := l.exchange("Reset", resetCmd, maxResponse)
	requireLinkError(t, err, ErrTimeout, StateAwaitingAck)
	assert.Equal(t, 1, transport.AckWrites())
}

func TestLink_ProtocolErrors(t *testing.T) {
	t.Parallel()

	good := encodeFrame(t, []byte{0xD5, 0x19})
	badDCS := append([]byte(nil), good...)
	badDCS[len(badDCS)-2] ^= 0xFF
	badPostamble := append([]byte(nil), good...)
	badPostamble[len(badPostamble)-1] = 0x01

	tests := []struct {
		cause error
		name  string
		raw   []byte
		state LinkState
	}{
		{
			name:  "NACK instead of ACK",
			raw:   append([]byte{0x00, 0x00, 0xFF, 0xFF, 0x00, 0x00}, good...),
			state: StateAwaitingAck,
			cause: ErrNotAck,
		},
		{
			name:  "bad start code",
			raw:   withAck([]byte{0x00, 0x01, 0xFF, 0x02, 0xFE, 0xD5, 0x19, 0x12, 0x00}),
			state: StateAwaitingResponseHeader,
			cause: frame.ErrBadStartCode,
		},
		{
			name:  "bad length checksum",
			raw:   withAck([]byte{0x00, 0x00, 0xFF, 0x02, 0xFD, 0xD5, 0x19, 0x12, 0x00}),
			state: StateAwaitingResponseHeader,
			cause: frame.ErrLengthChecksum,
		},
		{
			name:  "bad extended length checksum",
			raw:   withAck([]byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x02, 0x00}),
			state: StateAwaitingResponseLength,
			cause: frame.ErrLengthChecksum,
		},
		{
			name:  "bad data checksum",
			raw:   withAck(badDCS),
			state: StateAwaitingTrailer,
			cause: frame.ErrDataChecksum,
		},
		{
			name:  "bad postamble",
			raw:   withAck(badPostamble),
			state: StateAwaitingTrailer,
			cause: frame.ErrBadPostamble,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, transport, _ := newTestLink(t, 50*time.Millisecond)
			transport.QueueRaw(tt.raw)

			_, err := l.exchange("Reset", resetCmd, maxResponse)
			requireLinkError(t, err, ErrProtocol, tt.state)
			require.ErrorIs(t, err, tt.cause)
			assert.NotErrorIs(t, err, ErrTimeout)

			// Protocol errors never cancel.
			assert.Zero(t, transport.AckWrites())
			assert.Equal(t, 1, transport.Flushes())
			assert.Equal(t, int64(1), l.metrics.protocolErrors.Count())
			assert.Zero(t, l.metrics.cancels.Count())
		})
	}
}

func TestLink_OversizeResponseNotRead(t *testing.T) {
	t.Parallel()

	payload := bytes.Repeat([]byte{0xAA}, 20)
	l, transport, _ := newTestLink(t, 50*time.Millisecond)
	transport.QueueResponse(payload)

	_, err := l.exchange("op", resetCmd, 10)
	requireLinkError(t, err, ErrProtocol, StateAwaitingResponseHeader)
	require.ErrorIs(t, err, ErrResponseTooLarge)

	// Nothing past the header was consumed.
	assert.Equal(t, len(payload)+frame.TrailerLength, transport.Buffered())
	assert.Zero(t, transport.AckWrites())
}

func TestLink_CapacityCappedAtBuffer(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 50*time.Millisecond)
	transport.QueueResponse(bytes.Repeat([]byte{0x01}, frame.MaxResponseLength+1))

	_, err := l.exchange("op", resetCmd, 1<<20)
	require.ErrorIs(t, err, ErrResponseTooLarge)
}

func TestLink_TransportErrors(t *testing.T) {
	t.Parallel()

	t.Run("write", func(t *testing.T) {
		t.Parallel()
		l, transport, _ := newTestLink(t, 50*time.Millisecond)
		transport.SetWriteError(io.ErrClosedPipe)

		_, err := l.exchange("Reset", resetCmd, maxResponse)
		requireLinkError(t, err, ErrTransport, StateSending)
		require.ErrorIs(t, err, io.ErrClosedPipe)
		assert.True(t, IsFatal(err))
	})

	t.Run("read", func(t *testing.T) {
		t.Parallel()
		l, transport, _ := newTestLink(t, 50*time.Millisecond)
		readErr := errors.New("usb hiccup")
		transport.QueueResponse([]byte{0xD5, 0x19})
		transport.SetReadError(readErr)

		_, err := l.exchange("Reset", resetCmd, maxResponse)
		requireLinkError(t, err, ErrTransport, StateAwaitingAck)
		require.ErrorIs(t, err, readErr)
		assert.Zero(t, transport.AckWrites())
		assert.Equal(t, int64(1), l.metrics.transportErrors.Count())
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		l, transport, _ := newTestLink(t, 50*time.Millisecond)
		require.NoError(t, transport.Close())

		_, err := l.exchange("Reset", resetCmd, maxResponse)
		requireLinkError(t, err, ErrTransport, StateIdle)
	})
}

func TestLink_CommandTooLarge(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 50*time.Millisecond)
	_, err := l.exchange("op", make([]byte, frame.MaxPayload+1), maxResponse)
	require.ErrorIs(t, err, ErrDataTooLarge)
	require.ErrorIs(t, err, frame.ErrPayloadTooLarge)
	assert.Empty(t, transport.Writes())
}

func TestLink_ExtendedCommand(t *testing.T) {
	t.Parallel()

	cmd := bytes.Repeat([]byte{0x42}, 300)
	l, transport, _ := newTestLink(t, 50*time.Millisecond)
	transport.QueueResponse([]byte{0xD5, 0x43})

	_, err := l.exchange("op", cmd, maxResponse)
	require.NoError(t, err)
	writes := transport.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x00, 0x00, 0xFF, 0xFF, 0xFF, 0x01, 0x2C, 0xD3}, writes[0][:8])
}

func TestLink_RecoversAfterTimeout(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 20*time.Millisecond)
	transport.QueueRaw(frame.AckFrame())
	transport.QueueResponse([]byte{0xD5, 0x19})

	_, err := l.exchange("Reset", resetCmd, maxResponse)
	require.ErrorIs(t, err, ErrTimeout)

	resp, err := l.exchange("Reset", resetCmd, maxResponse)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD5, 0x19}, resp)
}

func TestLink_ErrorCarriesTrace(t *testing.T) {
	t.Parallel()

	l, transport, _ := newTestLink(t, 20*time.Millisecond)
	transport.QueueRaw(frame.AckFrame())

	_, err := l.exchange("Reset", resetCmd, maxResponse)
	require.True(t, HasTrace(err))

	trace := GetTrace(err)
	require.NotNil(t, trace)
	require.GreaterOrEqual(t, len(trace.Trace), 3)
	assert.Equal(t, TraceTX, trace.Trace[0].Direction)
	assert.Equal(t, encodeFrame(t, resetCmd), trace.Trace[0].Data)
	assert.Contains(t, trace.FormatTrace(), "TIMEOUT")
	assert.Equal(t, "test", trace.Port)
}

func TestLinkState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "awaiting ACK", StateAwaitingAck.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "LinkState(42)", LinkState(42).String())
}

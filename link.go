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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
)

// LinkState is the position of the link engine within one exchange.
type LinkState int

// Link engine states, in exchange order. Failed is reachable from every
// waiting state.
const (
	StateIdle LinkState = iota
	StateSending
	StateAwaitingAck
	StateAwaitingResponseHeader
	StateAwaitingResponseLength
	StateAwaitingPayload
	StateAwaitingTrailer
	StateDone
	StateFailed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateAwaitingAck:
		return "awaiting ACK"
	case StateAwaitingResponseHeader:
		return "awaiting response header"
	case StateAwaitingResponseLength:
		return "awaiting extended length"
	case StateAwaitingPayload:
		return "awaiting payload"
	case StateAwaitingTrailer:
		return "awaiting trailer"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("LinkState(%d)", int(s))
	}
}

const (
	// pollInterval is how long a read yields when nothing is buffered.
	pollInterval = time.Millisecond
	// cancelSettle is the pause between the cancel ACK and the flush.
	cancelSettle = time.Millisecond
)

// Link-level causes carried in LinkError.Cause.
var (
	ErrNotAck           = errors.New("expected ACK frame")
	ErrResponseTooLarge = errors.New("declared response length exceeds capacity")
	errReadTimeout      = errors.New("read deadline reached")
)

// link runs one command/response exchange at a time over a Transport.
type link struct {
	transport Transport
	clock     Clock
	trace     *TraceBuffer
	metrics   *linkMetrics
	timeout   time.Duration
	state     LinkState
	header    [frame.HeaderLength + frame.ExtendedLengthFields]byte
	buf       [frame.MaxResponseLength]byte
}

func newLink(transport Transport, clock Clock, trace *TraceBuffer, m *linkMetrics, timeout time.Duration) *link {
	return &link{
		transport: transport,
		clock:     clock,
		trace:     trace,
		metrics:   m,
		timeout:   timeout,
	}
}

// exchange sends command and returns the response payload. capacity bounds
// the declared response length and is itself capped at the scratch buffer
// size. The returned slice aliases the scratch buffer and is only valid until
// the next exchange.
func (l *link) exchange(op string, command []byte, capacity int) ([]byte, error) {
	encoded, err := frame.Encode(command)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrDataTooLarge, err)
	}
	capacity = min(capacity, len(l.buf))

	start := l.clock.Now()
	defer func() {
		l.metrics.latency.Update(l.clock.Now().Sub(start).Microseconds())
	}()
	l.metrics.exchanges.Inc(1)
	l.trace.Clear()

	l.state = StateIdle
	if err := l.transport.Flush(); err != nil {
		return nil, l.fail(op, ErrTransport, err, nil)
	}

	l.state = StateSending
	l.trace.RecordTX(encoded, op)
	if err := l.write(encoded); err != nil {
		return nil, l.fail(op, ErrTransport, err, nil)
	}

	l.state = StateAwaitingAck
	ack := l.header[:frame.AckLength]
	if _, err := l.readFull(ack); err != nil {
		return nil, l.readFailure(op, err, nil)
	}
	l.trace.RecordRX(ack, "ack")
	if !frame.IsAck(ack) {
		return nil, l.fail(op, ErrProtocol, fmt.Errorf("%w: got % X", ErrNotAck, ack), nil)
	}

	n, err := l.readLength(op)
	if err != nil {
		return nil, err
	}
	if n > capacity {
		return nil, l.fail(op, ErrProtocol, fmt.Errorf("%w: %d > %d", ErrResponseTooLarge, n, capacity), nil)
	}

	l.state = StateAwaitingPayload
	payload := l.buf[:n]
	if got, err := l.readFull(payload); err != nil {
		return nil, l.readFailure(op, err, payload[:got])
	}
	l.trace.RecordRX(payload, "payload")

	l.state = StateAwaitingTrailer
	trailer := l.header[:frame.TrailerLength]
	if _, err := l.readFull(trailer); err != nil {
		return nil, l.readFailure(op, err, payload)
	}
	l.trace.RecordRX(trailer, "trailer")
	if err := frame.CheckTrailer(payload, trailer); err != nil {
		return nil, l.fail(op, ErrProtocol, err, payload)
	}

	l.state = StateDone
	return payload, nil
}

// readLength reads the response header and, for extended frames, the three
// extra length bytes, returning the validated payload length.
func (l *link) readLength(op string) (int, error) {
	l.state = StateAwaitingResponseHeader
	hdr := l.header[:frame.HeaderLength]
	if _, err := l.readFull(hdr); err != nil {
		return 0, l.readFailure(op, err, nil)
	}
	l.trace.RecordRX(hdr, "header")
	if !frame.HasStartCode(hdr) {
		return 0, l.fail(op, ErrProtocol, fmt.Errorf("%w: got % X", frame.ErrBadStartCode, hdr[:3]), nil)
	}

	if !frame.IsExtendedMarker(hdr[3], hdr[4]) {
		n, err := frame.NormalLength(hdr[3], hdr[4])
		if err != nil {
			return 0, l.fail(op, ErrProtocol, err, nil)
		}
		return n, nil
	}

	l.state = StateAwaitingResponseLength
	ext := l.header[frame.HeaderLength:]
	if _, err := l.readFull(ext); err != nil {
		return 0, l.readFailure(op, err, nil)
	}
	l.trace.RecordRX(ext, "extended length")
	n, err := frame.ExtendedLength(ext[0], ext[1], ext[2])
	if err != nil {
		return 0, l.fail(op, ErrProtocol, err, nil)
	}
	return n, nil
}

func (l *link) write(p []byte) error {
	n, err := l.transport.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return fmt.Errorf("%w: wrote %d of %d bytes", io.ErrShortWrite, n, len(p))
	}
	return nil
}

// readFull polls the transport until p is full or the timeout elapses. The
// deadline is measured from the start of this read.
func (l *link) readFull(p []byte) (int, error) {
	start := l.clock.Now()
	got := 0
	for got < len(p) {
		if l.clock.Now().Sub(start) >= l.timeout {
			return got, errReadTimeout
		}
		n, err := l.transport.ReadAvailable(p[got:])
		if err != nil {
			return got, err
		}
		got += n
		if n == 0 {
			l.clock.Sleep(pollInterval)
		}
	}
	return got, nil
}

// readFailure turns a readFull error into a LinkError. Only a local timeout
// triggers a cancel.
func (l *link) readFailure(op string, err error, partial []byte) error {
	if errors.Is(err, errReadTimeout) {
		l.trace.RecordTimeout(l.state.String())
		l.cancel()
		return l.fail(op, ErrTimeout, nil, partial)
	}
	return l.fail(op, ErrTransport, err, partial)
}

// cancel tells the reader to abandon the response it is preparing and
// discards whatever it already sent.
func (l *link) cancel() {
	l.metrics.cancels.Inc(1)
	l.trace.RecordTX(frame.AckFrame(), "cancel")
	if err := l.write(frame.AckFrame()); err != nil {
		Debugf("cancel: ACK write failed: %v", err)
	}
	l.clock.Sleep(cancelSettle)
	if err := l.transport.Flush(); err != nil {
		Debugf("cancel: flush failed: %v", err)
	}
}

func (l *link) fail(op string, kind, cause error, payload []byte) error {
	le := &LinkError{Op: op, State: l.state, Err: kind, Cause: cause}
	if payload != nil {
		le.Payload = append([]byte(nil), payload...)
	}
	l.state = StateFailed
	l.metrics.recordFailure(kind)
	Debugf("%v", le)
	return l.trace.WrapError(le)
}

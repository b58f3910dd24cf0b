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
	"strings"
	"time"
)

// TraceDirection is the direction of a traced chunk of wire data.
type TraceDirection string

// Trace directions
const (
	TraceTX TraceDirection = "TX"
	TraceRX TraceDirection = "RX"
)

// traceHexLimit is how many bytes of one entry are printed.
const traceHexLimit = 32

// TraceEntry is one chunk written to or read from the reader.
type TraceEntry struct {
	Timestamp time.Time
	Direction TraceDirection
	Note      string
	Data      []byte
}

func (e TraceEntry) String() string {
	s := fmt.Sprintf("[%s] %s: %s", e.Timestamp.Format("15:04:05.000"), e.Direction, formatHexBytes(e.Data))
	if e.Note != "" {
		s += " (" + e.Note + ")"
	}
	return s
}

// TraceableError carries the wire trace of the exchange that failed.
//
//	var te *rcs620s.TraceableError
//	if errors.As(err, &te) {
//	    log.Printf("wire trace:\n%s", te.FormatTrace())
//	}
type TraceableError struct {
	Err       error
	Transport string
	Port      string
	Trace     []TraceEntry
}

func (e *TraceableError) Error() string {
	return e.Err.Error()
}

func (e *TraceableError) Unwrap() error {
	return e.Err
}

// FormatTrace renders the trace one entry per line, ">" for bytes sent and
// "<" for bytes received.
func (e *TraceableError) FormatTrace() string {
	if len(e.Trace) == 0 {
		return fmt.Sprintf("[%s:%s] (no trace data)", e.Transport, e.Port)
	}

	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "[%s:%s] Wire trace (%d entries):\n", e.Transport, e.Port, len(e.Trace))
	for _, entry := range e.Trace {
		arrow := ">"
		if entry.Direction == TraceRX {
			arrow = "<"
		}
		_, _ = fmt.Fprintf(&sb, "  %s %s", arrow, formatHexBytes(entry.Data))
		if entry.Note != "" {
			_, _ = fmt.Fprintf(&sb, " (%s)", entry.Note)
		}
		_ = sb.WriteByte('\n')
	}
	return sb.String()
}

func formatHexBytes(data []byte) string {
	switch {
	case len(data) == 0:
		return "(empty)"
	case len(data) > traceHexLimit:
		return fmt.Sprintf("% X ... (%d bytes total)", data[:traceHexLimit], len(data))
	default:
		return fmt.Sprintf("% X", data)
	}
}

// TraceBuffer is a ring of the most recent trace entries of one exchange.
// The link clears it when an exchange starts.
type TraceBuffer struct {
	now       func() time.Time
	transport string
	port      string
	ring      []TraceEntry
	head      int
	count     int
}

// NewTraceBuffer returns a buffer keeping the last size entries, 16 if size
// is not positive.
func NewTraceBuffer(transport, port string, size int) *TraceBuffer {
	if size <= 0 {
		size = defaultTraceSize
	}
	return &TraceBuffer{
		now:       time.Now,
		transport: transport,
		port:      port,
		ring:      make([]TraceEntry, size),
	}
}

// RecordTX traces bytes written to the reader.
func (tb *TraceBuffer) RecordTX(data []byte, note string) {
	tb.record(TraceTX, data, note)
}

// RecordRX traces bytes read from the reader.
func (tb *TraceBuffer) RecordRX(data []byte, note string) {
	tb.record(TraceRX, data, note)
}

// RecordTimeout traces a read that ran out of time.
func (tb *TraceBuffer) RecordTimeout(note string) {
	tb.record(TraceRX, nil, "TIMEOUT: "+note)
}

func (tb *TraceBuffer) record(dir TraceDirection, data []byte, note string) {
	idx := (tb.head + tb.count) % len(tb.ring)
	if tb.count == len(tb.ring) {
		tb.head = (tb.head + 1) % len(tb.ring)
	} else {
		tb.count++
	}
	tb.ring[idx] = TraceEntry{
		Timestamp: tb.now(),
		Direction: dir,
		Note:      note,
		Data:      append([]byte(nil), data...),
	}
}

// entries returns the buffered entries oldest first.
func (tb *TraceBuffer) entries() []TraceEntry {
	out := make([]TraceEntry, tb.count)
	for i := range tb.count {
		out[i] = tb.ring[(tb.head+i)%len(tb.ring)]
	}
	return out
}

// WrapError attaches a copy of the buffered entries to err. A nil err stays
// nil.
func (tb *TraceBuffer) WrapError(err error) error {
	if err == nil {
		return nil
	}
	return &TraceableError{
		Err:       err,
		Transport: tb.transport,
		Port:      tb.port,
		Trace:     tb.entries(),
	}
}

// Clear drops all entries.
func (tb *TraceBuffer) Clear() {
	clear(tb.ring)
	tb.head, tb.count = 0, 0
}

// HasTrace reports whether err carries a wire trace.
func HasTrace(err error) bool {
	return GetTrace(err) != nil
}

// GetTrace returns the wire trace carried by err, or nil.
func GetTrace(err error) *TraceableError {
	var te *TraceableError
	if errors.As(err, &te) {
		return te
	}
	return nil
}

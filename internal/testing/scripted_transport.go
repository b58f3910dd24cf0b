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

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
	"github.com/ZaparooProject/go-rcs620s/internal/syncutil"
)

// ErrClosed is returned by the test transports after Close.
var ErrClosed = errors.New("test transport closed")

// ScriptedTransport delivers canned reader output. Each queued reply is made
// readable when the host writes its next non-ACK frame, so replies survive
// the flush the driver performs before every command. Writes and flushes are
// recorded for assertions.
type ScriptedTransport struct {
	writeErr error
	readErr  error
	replies  [][]byte
	inbound  []byte
	writes   [][]byte
	flushes  int
	chunk    int
	mu       syncutil.Mutex
	closed   bool
}

// NewScriptedTransport returns an empty transport.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{}
}

// QueueRaw queues raw bytes to be delivered after the next command write.
func (s *ScriptedTransport) QueueRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, append([]byte(nil), raw...))
}

// QueueResponse queues an ACK followed by a well-formed frame carrying payload.
func (s *ScriptedTransport) QueueResponse(payload []byte) {
	encoded, err := frame.Encode(payload)
	if err != nil {
		panic(err)
	}
	s.QueueRaw(append(append([]byte(nil), frame.AckFrame()...), encoded...))
}

// QueueSilence queues a command that gets no answer at all.
func (s *ScriptedTransport) QueueSilence() {
	s.QueueRaw(nil)
}

// SetChunkSize limits how many bytes one ReadAvailable call returns. Zero
// means everything buffered.
func (s *ScriptedTransport) SetChunkSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunk = n
}

// SetWriteError makes every subsequent Write fail with err.
func (s *ScriptedTransport) SetWriteError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// SetReadError makes every subsequent ReadAvailable fail with err.
func (s *ScriptedTransport) SetReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// Write records p and releases the next queued reply unless p is an ACK.
func (s *ScriptedTransport) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	if !frame.IsAck(p) && len(s.replies) > 0 {
		s.inbound = append(s.inbound, s.replies[0]...)
		s.replies = s.replies[1:]
	}
	return len(p), nil
}

// ReadAvailable returns whatever is buffered, up to the chunk size.
func (s *ScriptedTransport) ReadAvailable(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	if s.readErr != nil {
		return 0, s.readErr
	}
	avail := s.inbound
	if s.chunk > 0 && len(avail) > s.chunk {
		avail = avail[:s.chunk]
	}
	n := copy(p, avail)
	s.inbound = s.inbound[n:]
	return n, nil
}

// Flush discards buffered input.
func (s *ScriptedTransport) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.flushes++
	s.inbound = nil
	return nil
}

// Close marks the transport closed.
func (s *ScriptedTransport) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *ScriptedTransport) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Writes returns a copy of every write, in order.
func (s *ScriptedTransport) Writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.writes))
	copy(out, s.writes)
	return out
}

// CommandPayloads decodes every non-ACK write back into its payload.
func (s *ScriptedTransport) CommandPayloads() [][]byte {
	var out [][]byte
	for _, w := range s.Writes() {
		if frame.IsAck(w) {
			continue
		}
		if payload, err := frame.Decode(w); err == nil {
			out = append(out, payload)
		}
	}
	return out
}

// AckWrites counts how many ACK frames the host sent.
func (s *ScriptedTransport) AckWrites() int {
	n := 0
	for _, w := range s.Writes() {
		if frame.IsAck(w) {
			n++
		}
	}
	return n
}

// Flushes returns the number of Flush calls.
func (s *ScriptedTransport) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

// Buffered returns the number of unread inbound bytes.
func (s *ScriptedTransport) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inbound)
}

// Pending returns the number of replies not yet released.
func (s *ScriptedTransport) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.replies)
}

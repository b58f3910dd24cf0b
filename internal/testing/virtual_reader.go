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
	"bytes"

	"github.com/ZaparooProject/go-rcs620s/internal/frame"
	"github.com/ZaparooProject/go-rcs620s/internal/syncutil"
)

// Reader command codes understood by the simulator.
const (
	cmdInDataExchange      = 0x40
	cmdInCommunicateThru   = 0x42
	cmdInListPassiveTarget = 0x4A
	cmdReset               = 0x18
	cmdRFConfiguration     = 0x32
	cmdTgInitTarget        = 0x8C
	cmdCommunicateThruEX   = 0xA0
)

// Target baud rate / type selectors of InListPassiveTarget.
const (
	brTypeA  = 0x00
	brFeliCa = 0x01
	brTypeB  = 0x03
)

// Status bytes returned inside replies.
const (
	statusOK      = 0x00
	statusTimeout = 0x01
	statusParam   = 0x10
)

// errorFramePayload is the single-byte syntax error reply of the reader.
var errorFramePayload = []byte{0x7F}

// ReaderState is a snapshot of the simulated reader.
type ReaderState struct {
	TargetIDm        []byte
	Commands         []byte
	RFConfigurations int
	Resets           int
	Cancels          int
	Malformed        int
	RFFieldOn        bool
}

// VirtualRCS620S simulates the reader at the wire level. Frames written by
// the host are decoded and answered with an ACK followed by a reply frame,
// readable through ReadAvailable.
type VirtualRCS620S struct {
	selected     *VirtualCard
	cards        []*VirtualCard
	rxBuffer     bytes.Buffer
	txBuffer     bytes.Buffer
	state        ReaderState
	chunk        int
	mu           syncutil.Mutex
	closed       bool
	dropNextACK  bool
	dropNextResp bool
	corruptNext  bool
	errorNext    bool
}

// NewVirtualRCS620S returns a reader with the RF field off and no cards.
func NewVirtualRCS620S() *VirtualRCS620S {
	return &VirtualRCS620S{}
}

// AddCard places a card in the field.
func (v *VirtualRCS620S) AddCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = append(v.cards, card)
}

// RemoveAllCards empties the field.
func (v *VirtualRCS620S) RemoveAllCards() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = nil
	v.selected = nil
}

// SetChunkSize limits how many bytes each ReadAvailable call returns.
func (v *VirtualRCS620S) SetChunkSize(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.chunk = n
}

// DropNextACK makes the next command go unanswered entirely.
func (v *VirtualRCS620S) DropNextACK() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextACK = true
}

// DropNextResponse makes the next command receive its ACK but no reply.
func (v *VirtualRCS620S) DropNextResponse() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropNextResp = true
}

// InjectChecksumError corrupts the data checksum of the next reply.
func (v *VirtualRCS620S) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.corruptNext = true
}

// InjectErrorFrame answers the next command with the syntax error frame.
func (v *VirtualRCS620S) InjectErrorFrame() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errorNext = true
}

// State returns a copy of the reader state.
func (v *VirtualRCS620S) State() ReaderState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Commands = clone(v.state.Commands)
	s.TargetIDm = clone(v.state.TargetIDm)
	return s
}

// Write accepts bytes from the host and answers every complete frame.
func (v *VirtualRCS620S) Write(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	v.rxBuffer.Write(p)
	v.processReceived()
	return len(p), nil
}

// ReadAvailable returns pending reply bytes without blocking.
func (v *VirtualRCS620S) ReadAvailable(p []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return 0, ErrClosed
	}
	if v.chunk > 0 && len(p) > v.chunk {
		p = p[:v.chunk]
	}
	n, _ := v.txBuffer.Read(p)
	return n, nil
}

// Flush discards reply bytes the host has not read.
func (v *VirtualRCS620S) Flush() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return ErrClosed
	}
	v.txBuffer.Reset()
	return nil
}

// Close marks the simulator closed.
func (v *VirtualRCS620S) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	return nil
}

func (v *VirtualRCS620S) processReceived() {
	for {
		data := v.rxBuffer.Bytes()
		start := bytes.Index(data, []byte{frame.Preamble, frame.StartCode1, frame.StartCode2})
		if start < 0 {
			if len(data) > 2 {
				v.state.Malformed++
				v.rxBuffer.Next(len(data) - 2)
			}
			return
		}
		if start > 0 {
			v.state.Malformed++
			v.rxBuffer.Next(start)
			continue
		}
		if len(data) >= frame.AckLength && frame.IsAck(data[:frame.AckLength]) {
			v.rxBuffer.Next(frame.AckLength)
			v.state.Cancels++
			v.txBuffer.Reset()
			continue
		}

		size, ok, valid := frameSize(data)
		if !valid {
			v.state.Malformed++
			v.rxBuffer.Next(3)
			continue
		}
		if !ok || len(data) < size {
			return
		}
		raw := v.rxBuffer.Next(size)
		payload, err := frame.Decode(raw)
		if err != nil {
			v.state.Malformed++
			continue
		}
		v.handleCommand(payload)
	}
}

// frameSize returns the total length of the frame at the start of data once
// enough of the header has arrived to know it. valid is false when the length
// checksum is already known to be wrong.
func frameSize(data []byte) (size int, ok, valid bool) {
	if len(data) < frame.HeaderLength {
		return 0, false, true
	}
	if data[3] == 0x00 && data[4] == 0xFF && len(data) < frame.AckLength {
		return 0, false, true
	}
	if frame.IsExtendedMarker(data[3], data[4]) {
		if len(data) < frame.HeaderLength+frame.ExtendedLengthFields {
			return 0, false, true
		}
		n, err := frame.ExtendedLength(data[5], data[6], data[7])
		if err != nil {
			return 0, false, false
		}
		return frame.HeaderLength + frame.ExtendedLengthFields + n + frame.TrailerLength, true, true
	}
	n, err := frame.NormalLength(data[3], data[4])
	if err != nil {
		return 0, false, false
	}
	return frame.EncodedLength(n), true, true
}

func (v *VirtualRCS620S) handleCommand(payload []byte) {
	if v.dropNextACK {
		v.dropNextACK = false
		return
	}
	v.txBuffer.Write(frame.AckFrame())
	if v.dropNextResp {
		v.dropNextResp = false
		return
	}

	reply := errorFramePayload
	if v.errorNext {
		v.errorNext = false
	} else if len(payload) >= 2 && payload[0] == frame.HostToReader {
		v.state.Commands = append(v.state.Commands, payload[1])
		if data, ok := v.dispatch(payload[1], payload[2:]); ok {
			reply = append([]byte{frame.ReaderToHost, payload[1] + 1}, data...)
		}
	}

	encoded, err := frame.Encode(reply)
	if err != nil {
		return
	}
	if v.corruptNext {
		v.corruptNext = false
		encoded[len(encoded)-2] ^= 0xFF
	}
	v.txBuffer.Write(encoded)
}

func (v *VirtualRCS620S) dispatch(cmd byte, args []byte) ([]byte, bool) {
	switch cmd {
	case cmdRFConfiguration:
		return v.handleRFConfiguration(args)
	case cmdReset:
		v.state.Resets++
		v.selected = nil
		return []byte{}, true
	case cmdTgInitTarget:
		return v.handleTgInitTarget(args)
	case cmdInListPassiveTarget:
		return v.handleInListPassiveTarget(args)
	case cmdCommunicateThruEX:
		return v.handleCommunicateThruEX(args)
	case cmdInDataExchange:
		return v.handleInDataExchange(args)
	case cmdInCommunicateThru:
		return v.handleInCommunicateThru(args)
	default:
		return nil, false
	}
}

func (v *VirtualRCS620S) handleRFConfiguration(args []byte) ([]byte, bool) {
	if len(args) < 2 {
		return nil, false
	}
	v.state.RFConfigurations++
	if args[0] == 0x01 {
		v.state.RFFieldOn = args[1]&0x01 != 0
		if !v.state.RFFieldOn {
			v.selected = nil
		}
	}
	return []byte{}, true
}

func (v *VirtualRCS620S) handleTgInitTarget(args []byte) ([]byte, bool) {
	if len(args) != 35 {
		return nil, false
	}
	v.state.TargetIDm = clone(args[7:15])
	return []byte{}, true
}

func (v *VirtualRCS620S) handleInListPassiveTarget(args []byte) ([]byte, bool) {
	if len(args) < 2 || args[0] != 0x01 {
		return nil, false
	}
	v.state.RFFieldOn = true
	v.selected = nil

	var want func(*VirtualCard) bool
	switch args[1] {
	case brFeliCa:
		want = func(c *VirtualCard) bool { return c.Type == CardFeliCa }
	case brTypeA:
		want = func(c *VirtualCard) bool { return c.Type == CardMIFARE || c.IsNTAG() }
	case brTypeB:
		want = func(c *VirtualCard) bool { return c.Type == CardTypeB }
	default:
		return nil, false
	}

	for _, card := range v.cards {
		if !want(card) {
			continue
		}
		v.selected = card
		return append([]byte{0x01, 0x01}, targetData(card)...), true
	}
	return []byte{0x00}, true
}

// targetData builds the per-target part of an InListPassiveTarget reply.
func targetData(card *VirtualCard) []byte {
	switch {
	case card.Type == CardFeliCa:
		out := []byte{0x12, 0x01}
		out = append(out, card.ID...)
		return append(out, card.PMm...)
	case card.Type == CardTypeB:
		out := []byte{0x50}
		out = append(out, card.ID...)
		out = append(out, 0x00, 0x00, 0x00, 0x00) // application data
		out = append(out, 0x00, 0x81, 0x81)       // protocol info
		return append(out, 0x01, 0x00)            // ATTRIB_RES
	case card.IsNTAG():
		out := []byte{0x00, 0x44, 0x00, byte(len(card.ID))}
		return append(out, card.ID...)
	default:
		out := []byte{0x00, 0x04, 0x08, byte(len(card.ID))}
		return append(out, card.ID...)
	}
}

func (v *VirtualRCS620S) handleCommunicateThruEX(args []byte) ([]byte, bool) {
	if len(args) < 3 {
		return nil, false
	}
	n := int(args[2])
	if n < 1 || len(args) != 2+n {
		return []byte{statusParam}, true
	}
	if v.selected == nil {
		return []byte{statusTimeout}, true
	}
	resp, ok := v.selected.HandleFeliCa(args[3:])
	if !ok {
		return []byte{statusTimeout}, true
	}
	return append([]byte{statusOK, byte(len(resp) + 1)}, resp...), true
}

func (v *VirtualRCS620S) handleInDataExchange(args []byte) ([]byte, bool) {
	if len(args) < 2 || args[0] != 0x01 {
		return nil, false
	}
	if v.selected == nil || args[1] != 0x30 || len(args) != 3 {
		return []byte{statusTimeout}, true
	}
	data, err := v.selected.ReadPages(args[2])
	if err != nil {
		return []byte{statusTimeout}, true
	}
	return append([]byte{statusOK}, data...), true
}

func (v *VirtualRCS620S) handleInCommunicateThru(args []byte) ([]byte, bool) {
	if v.selected == nil || len(args) != 1 || args[0] != 0x60 {
		return []byte{statusTimeout}, true
	}
	version, ok := v.selected.Version()
	if !ok {
		return []byte{statusTimeout}, true
	}
	return append([]byte{statusOK}, version...), true
}

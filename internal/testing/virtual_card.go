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
	"errors"
	"fmt"
)

// CardType selects which discovery command a VirtualCard answers.
type CardType int

// Virtual card kinds.
const (
	CardFeliCa CardType = iota
	CardMIFARE
	CardNTAG213
	CardNTAG215
	CardNTAG216
	CardTypeB
)

// Well-known identifiers used across tests.
var (
	TestFeliCaIDm = []byte{0x01, 0x2E, 0x4C, 0x3B, 0x8A, 0x1F, 0x22, 0x07}
	TestFeliCaPMm = []byte{0x03, 0x01, 0x4B, 0x02, 0x4F, 0x49, 0x93, 0xFF}
	TestNTAGUID   = []byte{0x04, 0x5A, 0x6B, 0x12, 0x8C, 0x3D, 0x80}
	TestMIFAREUID = []byte{0xDE, 0xAD, 0xBE, 0xEF}
	TestTypeBPUPI = []byte{0x9A, 0x41, 0x77, 0x0C}
)

// ntagSpec holds the per-model constants of the NTAG21x family.
type ntagSpec struct {
	pages       int
	storageSize byte
	ccSize      byte
}

var ntagSpecs = map[CardType]ntagSpec{
	CardNTAG213: {pages: 45, storageSize: 0x0F, ccSize: 0x12},
	CardNTAG215: {pages: 135, storageSize: 0x11, ccSize: 0x3E},
	CardNTAG216: {pages: 231, storageSize: 0x13, ccSize: 0x6D},
}

const (
	pageSize      = 4
	readPages     = 4
	firstUserPage = 4
)

var errCardMemory = errors.New("virtual card memory error")

// VirtualCard is a simulated card that a VirtualRCS620S can discover and
// exchange data with.
type VirtualCard struct {
	ID     []byte
	PMm    []byte
	Memory []byte
	Pushed []byte
	staged []byte
	Type   CardType
}

// NewVirtualFeliCa returns a FeliCa card. Nil arguments use the test defaults.
func NewVirtualFeliCa(idm, pmm []byte) *VirtualCard {
	if idm == nil {
		idm = TestFeliCaIDm
	}
	if pmm == nil {
		pmm = TestFeliCaPMm
	}
	return &VirtualCard{Type: CardFeliCa, ID: clone(idm), PMm: clone(pmm)}
}

// NewVirtualMIFARE returns a MIFARE Classic card with a 4-byte UID.
func NewVirtualMIFARE(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestMIFAREUID
	}
	return &VirtualCard{Type: CardMIFARE, ID: clone(uid)}
}

// NewVirtualTypeB returns an ISO14443-B card with the given PUPI.
func NewVirtualTypeB(pupi []byte) *VirtualCard {
	if pupi == nil {
		pupi = TestTypeBPUPI
	}
	return &VirtualCard{Type: CardTypeB, ID: clone(pupi)}
}

// NewVirtualNTAG returns an empty-formatted NTAG21x card of the given model.
func NewVirtualNTAG(model CardType, uid []byte) *VirtualCard {
	spec, ok := ntagSpecs[model]
	if !ok {
		panic(fmt.Sprintf("not an NTAG model: %d", model))
	}
	if uid == nil {
		uid = TestNTAGUID
	}
	card := &VirtualCard{
		Type:   model,
		ID:     clone(uid),
		Memory: make([]byte, spec.pages*pageSize),
	}
	copy(card.Memory[0:3], uid[0:3])
	card.Memory[3] = 0x88 ^ uid[0] ^ uid[1] ^ uid[2]
	copy(card.Memory[4:8], uid[3:7])
	card.Memory[8] = uid[3] ^ uid[4] ^ uid[5] ^ uid[6]
	copy(card.Memory[12:16], []byte{0xE1, 0x10, spec.ccSize, 0x00})
	copy(card.Memory[firstUserPage*pageSize:], []byte{0x03, 0x00, 0xFE})
	return card
}

// IsNTAG reports whether the card is one of the NTAG21x models.
func (c *VirtualCard) IsNTAG() bool {
	_, ok := ntagSpecs[c.Type]
	return ok
}

// SetNDEF stores msg in an NDEF TLV starting at the first user page.
func (c *VirtualCard) SetNDEF(msg []byte) error {
	if !c.IsNTAG() {
		return fmt.Errorf("%w: not an NTAG", errCardMemory)
	}
	var tlv []byte
	if len(msg) < 0xFF {
		tlv = append([]byte{0x03, byte(len(msg))}, msg...)
	} else {
		tlv = append([]byte{0x03, 0xFF, byte(len(msg) >> 8), byte(len(msg))}, msg...)
	}
	tlv = append(tlv, 0xFE)

	start := firstUserPage * pageSize
	if start+len(tlv) > len(c.Memory) {
		return fmt.Errorf("%w: %d bytes do not fit", errCardMemory, len(msg))
	}
	for i := start; i < len(c.Memory); i++ {
		c.Memory[i] = 0
	}
	copy(c.Memory[start:], tlv)
	return nil
}

// ReadPages returns the 16 bytes starting at page, rolling over to page 0
// past the end of memory like the real tag does.
func (c *VirtualCard) ReadPages(page byte) ([]byte, error) {
	if !c.IsNTAG() {
		return nil, fmt.Errorf("%w: not page addressable", errCardMemory)
	}
	total := len(c.Memory) / pageSize
	if int(page) >= total {
		return nil, fmt.Errorf("%w: page %d out of range", errCardMemory, page)
	}
	out := make([]byte, 0, readPages*pageSize)
	for i := range readPages {
		p := (int(page) + i) % total
		out = append(out, c.Memory[p*pageSize:(p+1)*pageSize]...)
	}
	return out, nil
}

// Version returns the 8-byte GET_VERSION reply of an NTAG21x.
func (c *VirtualCard) Version() ([]byte, bool) {
	spec, ok := ntagSpecs[c.Type]
	if !ok {
		return nil, false
	}
	return []byte{0x00, 0x04, 0x04, 0x02, 0x01, 0x00, spec.storageSize, 0x03}, true
}

// HandleFeliCa answers a FeliCa command framed without its length byte. It
// implements the Push (B0) and Activate (A4) pair.
func (c *VirtualCard) HandleFeliCa(cmd []byte) ([]byte, bool) {
	if c.Type != CardFeliCa || len(cmd) < 10 || !bytes.Equal(cmd[1:9], c.ID) {
		return nil, false
	}
	switch cmd[0] {
	case 0xB0:
		n := int(cmd[9])
		if len(cmd) != 10+n {
			return nil, false
		}
		c.staged = clone(cmd[10:])
		return append(append([]byte{0xB1}, c.ID...), byte(n)), true
	case 0xA4:
		c.Pushed = c.staged
		c.staged = nil
		return append(append([]byte{0xA5}, c.ID...), 0x00), true
	default:
		return nil, false
	}
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

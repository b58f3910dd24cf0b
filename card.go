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
	"encoding/hex"
	"fmt"
	"strings"
)

// TagType represents the type of card found by the last discovery
type TagType string

const (
	// TagTypeUnknown means no discovery has succeeded yet.
	TagTypeUnknown TagType = "UNKNOWN"
	// TagTypeFeliCa represents FeliCa cards.
	TagTypeFeliCa TagType = "FELICA"
	// TagTypeMIFARE represents ISO14443-A cards other than Ultralight.
	TagTypeMIFARE TagType = "MIFARE"
	// TagTypeMIFAREUltralight represents MIFARE Ultralight and NTAG21x cards.
	TagTypeMIFAREUltralight TagType = "MIFARE_ULTRALIGHT"
	// TagTypeISO14443B represents ISO14443-B cards.
	TagTypeISO14443B TagType = "ISO14443B"
)

// Manufacturer represents the chip manufacturer identified from the UID.
type Manufacturer string

const (
	// ManufacturerNXP is NXP Semiconductors (0x04).
	ManufacturerNXP Manufacturer = "NXP"
	// ManufacturerST is STMicroelectronics (0x02).
	ManufacturerST Manufacturer = "STMicroelectronics"
	// ManufacturerInfineon is Infineon Technologies (0x05).
	ManufacturerInfineon Manufacturer = "Infineon"
	// ManufacturerUnknown indicates an unrecognized manufacturer code.
	ManufacturerUnknown Manufacturer = "Unknown"
)

// CardIdentity is the result of the last successful discovery.
type CardIdentity struct {
	Type TagType
	// ID is the IDm (FeliCa), UID (Type A) or PUPI (Type B).
	ID []byte
	// PMm is only set for FeliCa.
	PMm []byte
}

// UID returns the ID as an upper-case hex string.
func (c CardIdentity) UID() string {
	return strings.ToUpper(hex.EncodeToString(c.ID))
}

// IsZero reports whether no card has been discovered.
func (c CardIdentity) IsZero() bool {
	return c.Type == "" || c.Type == TagTypeUnknown
}

// Manufacturer returns the chip manufacturer for 7-byte Type A UIDs, where
// the first byte is the ISO/IEC 7816-6 manufacturer code.
func (c CardIdentity) Manufacturer() Manufacturer {
	if len(c.ID) != 7 {
		return ManufacturerUnknown
	}
	switch c.ID[0] {
	case 0x04:
		return ManufacturerNXP
	case 0x02:
		return ManufacturerST
	case 0x05:
		return ManufacturerInfineon
	default:
		return ManufacturerUnknown
	}
}

func (c CardIdentity) String() string {
	if c.IsZero() {
		return "no card"
	}
	if len(c.PMm) > 0 {
		return fmt.Sprintf("%s IDm=%s PMm=%X", c.Type, c.UID(), c.PMm)
	}
	return fmt.Sprintf("%s ID=%s", c.Type, c.UID())
}

// clone returns a deep copy so callers cannot alias device state.
func (c CardIdentity) clone() CardIdentity {
	out := CardIdentity{Type: c.Type}
	if c.ID != nil {
		out.ID = append([]byte(nil), c.ID...)
	}
	if c.PMm != nil {
		out.PMm = append([]byte(nil), c.PMm...)
	}
	return out
}

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

	"github.com/stretchr/testify/assert"
)

func TestCardIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     CardIdentity
		uid    string
		str    string
		manuf  Manufacturer
		isZero bool
	}{
		{
			name:   "zero value",
			id:     CardIdentity{},
			str:    "no card",
			manuf:  ManufacturerUnknown,
			isZero: true,
		},
		{
			name:   "unknown type",
			id:     CardIdentity{Type: TagTypeUnknown},
			str:    "no card",
			manuf:  ManufacturerUnknown,
			isZero: true,
		},
		{
			name:  "FeliCa",
			id:    CardIdentity{Type: TagTypeFeliCa, ID: []byte{0x01, 0x2E, 0x4C, 0x3B, 0x8A, 0x1F, 0x22, 0x07}, PMm: []byte{0x03, 0x01}},
			uid:   "012E4C3B8A1F2207",
			str:   "FELICA IDm=012E4C3B8A1F2207 PMm=0301",
			manuf: ManufacturerUnknown,
		},
		{
			name:  "NXP NTAG",
			id:    CardIdentity{Type: TagTypeMIFAREUltralight, ID: []byte{0x04, 0x5A, 0x6B, 0x12, 0x8C, 0x3D, 0x80}},
			uid:   "045A6B128C3D80",
			str:   "MIFARE_ULTRALIGHT ID=045A6B128C3D80",
			manuf: ManufacturerNXP,
		},
		{
			name:  "ST 7-byte UID",
			id:    CardIdentity{Type: TagTypeMIFARE, ID: []byte{0x02, 0, 0, 0, 0, 0, 0}},
			uid:   "02000000000000",
			str:   "MIFARE ID=02000000000000",
			manuf: ManufacturerST,
		},
		{
			name:  "4-byte UID has no manufacturer",
			id:    CardIdentity{Type: TagTypeMIFARE, ID: []byte{0x04, 0xAD, 0xBE, 0xEF}},
			uid:   "04ADBEEF",
			str:   "MIFARE ID=04ADBEEF",
			manuf: ManufacturerUnknown,
		},
		{
			name:  "Type B",
			id:    CardIdentity{Type: TagTypeISO14443B, ID: []byte{0x9A, 0x41, 0x77, 0x0C}},
			uid:   "9A41770C",
			str:   "ISO14443B ID=9A41770C",
			manuf: ManufacturerUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.uid, tt.id.UID())
			assert.Equal(t, tt.str, tt.id.String())
			assert.Equal(t, tt.manuf, tt.id.Manufacturer())
			assert.Equal(t, tt.isZero, tt.id.IsZero())
		})
	}
}

func TestCardIdentity_Clone(t *testing.T) {
	t.Parallel()

	orig := CardIdentity{Type: TagTypeFeliCa, ID: []byte{1, 2}, PMm: []byte{3, 4}}
	c := orig.clone()
	c.ID[0], c.PMm[0] = 9, 9
	assert.Equal(t, []byte{1, 2}, orig.ID)
	assert.Equal(t, []byte{3, 4}, orig.PMm)

	bare := CardIdentity{Type: TagTypeMIFARE, ID: []byte{1}}.clone()
	assert.Nil(t, bare.PMm)
}

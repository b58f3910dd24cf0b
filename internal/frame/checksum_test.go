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

package frame

import "testing"

func TestChecksum(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{
			name: "empty data",
			data: []byte{},
			want: 0x00,
		},
		{
			name: "single byte",
			data: []byte{0x01},
			want: 0xFF,
		},
		{
			name: "normal length byte",
			data: []byte{0x06},
			want: 0xFA,
		},
		{
			name: "overflow handling",
			data: []byte{0xFF, 0x01},
			want: 0x00, // 255 + 1 = 256, truncated to 0
		},
		{
			name: "extended length bytes",
			data: []byte{0x01, 0x00},
			want: 0xFF,
		},
		{
			name: "RFConfiguration command",
			data: []byte{0xD4, 0x32, 0x81, 0xB7},
			want: 0xC2,
		},
		{
			name: "reset command",
			data: []byte{0xD4, 0x18, 0x01},
			want: 0x13,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum() = %02X, want %02X", got, tt.want)
			}
			if sum := Sum(tt.data) + Checksum(tt.data); sum != 0 {
				t.Errorf("Sum + Checksum = %02X, want 00", sum)
			}
		})
	}
}

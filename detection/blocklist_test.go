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

package detection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPathIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		devicePath  string
		ignorePaths []string
		want        bool
	}{
		{name: "empty ignore list", devicePath: "/dev/ttyUSB0", want: false},
		{name: "empty device path", devicePath: "", ignorePaths: []string{"/dev/ttyUSB0"}, want: false},
		{name: "exact unix path", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"/dev/ttyUSB0"}, want: true},
		{name: "exact windows port", devicePath: "COM3", ignorePaths: []string{"COM3"}, want: true},
		{name: "windows case folding", devicePath: "com3", ignorePaths: []string{"COM3"}, want: true},
		{name: "unix case folding", devicePath: "/dev/ttyAMA0", ignorePaths: []string{"/DEV/TTYAMA0"}, want: true},
		{name: "relative components", devicePath: "/dev/../dev/ttyS0", ignorePaths: []string{"/dev/ttyS0"}, want: true},
		{name: "no match", devicePath: "/dev/ttyUSB1", ignorePaths: []string{"/dev/ttyUSB0", "COM2"}, want: false},
		{name: "skips empty entries", devicePath: "/dev/ttyUSB0", ignorePaths: []string{"", "/dev/ttyUSB0"}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPathIgnored(tt.devicePath, tt.ignorePaths))
		})
	}
}

func TestIsBlocked(t *testing.T) {
	t.Parallel()

	blocklist := []string{"1546:01a7", " 12D1:1506 "}
	tests := []struct {
		vidpid string
		want   bool
	}{
		{"1546:01A7", true},
		{"12d1:1506", true},
		{"0403:6001", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.vidpid, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsBlocked(tt.vidpid, blocklist))
		})
	}
}

func TestFormatVIDPID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0403:6001", FormatVIDPID("0403", "6001"))
	assert.Equal(t, "10C4:EA60", FormatVIDPID(" 10c4", "ea60\n"))
	assert.Empty(t, FormatVIDPID("", "6001"))
	assert.Empty(t, FormatVIDPID("0403", ""))
}

func TestDefaultBlocklist_Normalized(t *testing.T) {
	t.Parallel()

	for _, entry := range DefaultBlocklist() {
		assert.Equal(t, normalizeVIDPID(entry), entry)
		assert.True(t, IsBlocked(entry, DefaultBlocklist()))
	}
}

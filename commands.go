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

import "github.com/ZaparooProject/go-rcs620s/internal/frame"

// RC-S620/S command codes. Replies carry the code plus one.
const (
	cmdReset               = 0x18
	cmdRFConfiguration     = 0x32
	cmdInDataExchange      = 0x40
	cmdInCommunicateThru   = 0x42
	cmdInListPassiveTarget = 0x4A
	cmdTgInitTarget        = 0x8C
	cmdCommunicateThruEX   = 0xA0
)

// RFConfiguration items
const (
	rfItemField          = 0x01
	rfItemMaxRetries     = 0x05
	rfItemTimings        = 0x02
	rfItemAdditionalWait = 0x81
)

// InListPassiveTarget baud rate / modulation selectors
const (
	brTypeA  = 0x00 // 106 kbps ISO/IEC 14443 Type A
	brFeliCa = 0x01 // 212 kbps FeliCa
	brTypeB  = 0x03 // 106 kbps ISO/IEC 14443-3 Type B
)

// Card-level commands carried inside InDataExchange, InCommunicateThru or
// CommunicateThruEX.
const (
	felicaCmdPush          = 0xB0
	felicaCmdPushResponse  = 0xB1
	felicaCmdActivate      = 0xA4
	felicaCmdActivateReply = 0xA5
)

// Response size bounds used as exchange capacities.
const (
	maxResponse        = frame.MaxResponseLength
	maxCardCommandData = 254
	maxPushData        = 224
	felicaIDLength     = 8
	maxTypeAIDLength   = 8
	typeBIDLength      = 4
)

// command assembles a host command payload: D4, code, args.
func command(code byte, args ...byte) []byte {
	cmd := make([]byte, 0, 2+len(args))
	cmd = append(cmd, frame.HostToReader, code)
	return append(cmd, args...)
}

// hasPrefix reports whether resp starts with the reply header for code
// followed by want.
func hasPrefix(resp []byte, code byte, want ...byte) bool {
	if len(resp) < 2+len(want) {
		return false
	}
	if resp[0] != frame.ReaderToHost || resp[1] != code+1 {
		return false
	}
	for i, b := range want {
		if resp[2+i] != b {
			return false
		}
	}
	return true
}

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

// Frame direction constants - the first payload byte of every command and reply
const (
	HostToReader = 0xD4 // Commands from host to RC-S620/S
	ReaderToHost = 0xD5 // Responses from RC-S620/S to host
)

// Frame markers and control bytes
const (
	Preamble       = 0x00 // Frame preamble byte
	StartCode1     = 0x00 // Start code byte 1
	StartCode2     = 0xFF // Start code byte 2
	Postamble      = 0x00 // Frame postamble byte
	ExtendedMarker = 0xFF // LEN and LCS are both 0xFF in an extended frame
)

// Frame size limits
const (
	// MaxNormalPayload is the largest payload carried by a normal frame.
	// A payload of exactly this length still uses the normal form.
	MaxNormalPayload = 255
	// MaxPayload is the largest payload an extended frame can describe.
	MaxPayload = 0xFFFF
	// MaxResponseLength bounds the response payload the reader can address.
	MaxResponseLength = 265

	// HeaderLength is preamble + start code + LEN + LCS.
	HeaderLength = 5
	// ExtendedLengthFields is LENhi + LENlo + LCS following the FF FF marker.
	ExtendedLengthFields = 3
	// TrailerLength is DCS + postamble.
	TrailerLength = 2
	// AckLength is the size of the acknowledgement frame.
	AckLength = 6
)

var ackFrame = [AckLength]byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// AckFrame returns a fresh copy of the acknowledgement frame. It tells the
// other side a frame was received; the host also sends it to make the reader
// abandon a response it is still preparing.
func AckFrame() []byte {
	b := ackFrame
	return b[:]
}

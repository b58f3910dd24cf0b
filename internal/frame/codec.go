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

// Package frame implements the RC-S620/S host frame format.
//
// A normal frame is
//
//	00 00 FF LEN LCS <payload> DCS 00
//
// and an extended frame, used for payloads longer than 255 bytes, is
//
//	00 00 FF FF FF LENhi LENlo LCS <payload> DCS 00
//
// where LCS makes the length bytes sum to zero and DCS makes the payload sum
// to zero (modulo 256).
package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Codec errors
var (
	ErrPayloadTooLarge   = errors.New("payload too large for a frame")
	ErrBadStartCode      = errors.New("missing frame start code")
	ErrLengthChecksum    = errors.New("length checksum mismatch")
	ErrDataChecksum      = errors.New("data checksum mismatch")
	ErrBadPostamble      = errors.New("non-zero postamble")
	ErrTruncated         = errors.New("frame truncated")
	ErrUnexpectedTrailer = errors.New("trailing bytes after frame")
)

// Encode builds a complete frame around payload. Payloads of up to 255 bytes
// use the normal form, longer payloads the extended form.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	out := make([]byte, 0, EncodedLength(len(payload)))
	out = append(out, Preamble, StartCode1, StartCode2)
	out = appendLength(out, len(payload))
	out = append(out, payload...)
	out = append(out, Checksum(payload), Postamble)
	return out, nil
}

// EncodedLength returns the size on the wire of a frame carrying n payload bytes.
func EncodedLength(n int) int {
	if n > MaxNormalPayload {
		return HeaderLength + ExtendedLengthFields + n + TrailerLength
	}
	return HeaderLength + n + TrailerLength
}

func appendLength(out []byte, n int) []byte {
	if n <= MaxNormalPayload {
		l := byte(n)
		return append(out, l, Checksum([]byte{l}))
	}
	hi, lo := byte(n>>8), byte(n)
	return append(out, ExtendedMarker, ExtendedMarker, hi, lo, Checksum([]byte{hi, lo}))
}

// IsAck reports whether b is exactly the acknowledgement frame.
func IsAck(b []byte) bool {
	return bytes.Equal(b, ackFrame[:])
}

// HasStartCode reports whether b begins with the 00 00 FF preamble and start code.
func HasStartCode(b []byte) bool {
	return len(b) >= 3 && b[0] == Preamble && b[1] == StartCode1 && b[2] == StartCode2
}

// IsExtendedMarker reports whether the LEN/LCS pair announces an extended frame.
func IsExtendedMarker(length, lcs byte) bool {
	return length == ExtendedMarker && lcs == ExtendedMarker
}

// NormalLength validates a normal-frame LEN/LCS pair and returns the payload length.
func NormalLength(length, lcs byte) (int, error) {
	if length+lcs != 0 {
		return 0, fmt.Errorf("%w: LEN %02X LCS %02X", ErrLengthChecksum, length, lcs)
	}
	return int(length), nil
}

// ExtendedLength validates the three extended length fields and returns the
// payload length.
func ExtendedLength(hi, lo, lcs byte) (int, error) {
	if hi+lo+lcs != 0 {
		return 0, fmt.Errorf("%w: LEN %02X%02X LCS %02X", ErrLengthChecksum, hi, lo, lcs)
	}
	return int(hi)<<8 | int(lo), nil
}

// Trailer returns the DCS and postamble that must follow payload.
func Trailer(payload []byte) [TrailerLength]byte {
	return [TrailerLength]byte{Checksum(payload), Postamble}
}

// CheckTrailer validates the trailer received after payload.
func CheckTrailer(payload, trailer []byte) error {
	if len(trailer) < TrailerLength {
		return ErrTruncated
	}
	if want := Checksum(payload); trailer[0] != want {
		return fmt.Errorf("%w: got %02X, want %02X", ErrDataChecksum, trailer[0], want)
	}
	if trailer[1] != Postamble {
		return fmt.Errorf("%w: %02X", ErrBadPostamble, trailer[1])
	}
	return nil
}

// Decode parses one complete frame and returns its payload. The returned slice
// aliases raw.
func Decode(raw []byte) ([]byte, error) {
	if len(raw) < HeaderLength {
		return nil, ErrTruncated
	}
	if !HasStartCode(raw) {
		return nil, ErrBadStartCode
	}

	off := HeaderLength
	var n int
	var err error
	if IsExtendedMarker(raw[3], raw[4]) {
		if len(raw) < HeaderLength+ExtendedLengthFields {
			return nil, ErrTruncated
		}
		n, err = ExtendedLength(raw[5], raw[6], raw[7])
		off += ExtendedLengthFields
	} else {
		n, err = NormalLength(raw[3], raw[4])
	}
	if err != nil {
		return nil, err
	}

	end := off + n + TrailerLength
	if len(raw) < end {
		return nil, ErrTruncated
	}
	if len(raw) > end {
		return nil, ErrUnexpectedTrailer
	}

	payload := raw[off : off+n]
	if err := CheckTrailer(payload, raw[off+n:end]); err != nil {
		return nil, err
	}
	return payload, nil
}

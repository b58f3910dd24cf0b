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
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/hsanjuan/go-ndef"
)

// TLV type constants per NFC Forum Type 2 Tag specification
const (
	TLVTypeNull       = 0x00 // NULL TLV, padding byte with no length field
	TLVTypeNDEF       = 0x03 // NDEF Message TLV
	TLVTypeTerminator = 0xFE // Terminator TLV, no length field

	tlvLongLength = 0xFF
)

// ErrInvalidNDEF is returned when NDEF data cannot be decoded.
var ErrInvalidNDEF = errors.New("invalid NDEF format")

// NDEFRecordType represents the type of an NDEF record
type NDEFRecordType string

const (
	// NDEFTypeText represents a text record type
	NDEFTypeText NDEFRecordType = "text"
	// NDEFTypeURI represents a URI record type
	NDEFTypeURI NDEFRecordType = "uri"
	// NDEFTypeSmartPoster represents a smart poster record type
	NDEFTypeSmartPoster NDEFRecordType = "smartposter"
)

// NDEFMessage represents an NDEF message
type NDEFMessage struct {
	Records []NDEFRecord
}

// NDEFRecord represents a single NDEF record
type NDEFRecord struct {
	Text    string
	URI     string
	Type    NDEFRecordType
	Payload []byte
}

// ReadNDEF reads and decodes the NDEF message of the NTAG21x found by the
// last PollTypeA. Pages are read from the start of user memory until the
// NDEF TLV is complete, a terminator TLV is reached or the card ends.
func (d *Device) ReadNDEF(ctx context.Context) (*NDEFMessage, error) {
	if d.identity.Type != TagTypeMIFAREUltralight {
		return nil, fmt.Errorf("ReadNDEF: %w: last discovery found %s", ErrNoIdentity, d.identity.Type)
	}

	totalPages, err := d.TotalPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("ReadNDEF: %w", err)
	}
	if totalPages == 0 {
		return nil, fmt.Errorf("ReadNDEF: %w: card is not an NTAG21x", ErrNoNDEF)
	}

	var data []byte
	for page := ntagUserMemStart; page < totalPages; page += ntagPagesPerRead {
		chunk, err := d.readPages(ctx, byte(page))
		if err != nil {
			return nil, fmt.Errorf("ReadNDEF: %w", err)
		}
		// The last read wraps past the final page; drop the wrapped bytes.
		valid := min(ntagReadLength, (totalPages-page)*ntagPageSize)
		data = append(data, chunk[:valid]...)

		payload, more, err := findNDEFTLV(data)
		if err != nil {
			return nil, fmt.Errorf("ReadNDEF: %w", err)
		}
		if !more {
			return ParseNDEFMessage(payload)
		}
	}
	return nil, fmt.Errorf("ReadNDEF: %w: NDEF TLV runs past the end of the card", ErrInvalidNDEF)
}

// findNDEFTLV walks the TLV blocks of data. It returns the NDEF message
// bytes once the NDEF TLV is complete, more=true if data ends before a
// decision can be made, and ErrNoNDEF if a terminator comes first.
func findNDEFTLV(data []byte) (payload []byte, more bool, err error) {
	offset := 0
	for offset < len(data) {
		tlvType := data[offset]
		switch tlvType {
		case TLVTypeNull:
			offset++
			continue
		case TLVTypeTerminator:
			return nil, false, ErrNoNDEF
		}

		if offset+1 >= len(data) {
			return nil, true, nil
		}
		length, headerSize := int(data[offset+1]), 2
		if length == tlvLongLength {
			if offset+4 > len(data) {
				return nil, true, nil
			}
			length = int(binary.BigEndian.Uint16(data[offset+2 : offset+4]))
			headerSize = 4
		}

		end := offset + headerSize + length
		if tlvType == TLVTypeNDEF {
			if end > len(data) {
				return nil, true, nil
			}
			return data[offset+headerSize : end], false, nil
		}
		offset = end
	}
	return nil, true, nil
}

// ParseNDEFMessage decodes a raw NDEF message (without TLV wrapper) using
// go-ndef. Records of unsupported types are skipped.
func ParseNDEFMessage(data []byte) (*NDEFMessage, error) {
	if len(data) == 0 {
		return nil, ErrNoNDEF
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidNDEF, err)
	}

	result := &NDEFMessage{Records: make([]NDEFRecord, 0, len(msg.Records))}
	for _, rec := range msg.Records {
		converted, err := convertRecord(rec)
		if err != nil {
			Debugf("skipping NDEF record: %v", err)
			continue
		}
		result.Records = append(result.Records, *converted)
	}
	if len(result.Records) == 0 {
		return nil, ErrNoNDEF
	}
	return result, nil
}

// convertRecord converts a go-ndef record to our format
func convertRecord(rec *ndef.Record) (*NDEFRecord, error) {
	payload, err := rec.Payload()
	if err != nil {
		return nil, fmt.Errorf("failed to get NDEF record payload: %w", err)
	}
	result := &NDEFRecord{Payload: payload.Marshal()}

	switch rec.TNF() {
	case ndef.NFCForumWellKnownType:
		switch rec.Type() {
		case "T":
			result.Type = NDEFTypeText
			result.Text = parseTextPayload(result.Payload)
		case "U":
			result.Type = NDEFTypeURI
			result.URI = parseURIPayload(result.Payload)
		case "Sp":
			result.Type = NDEFTypeSmartPoster
		default:
			return nil, fmt.Errorf("unknown well-known type: %s", rec.Type())
		}
	case ndef.MediaType:
		result.Type = NDEFRecordType("media:" + rec.Type())
	case ndef.AbsoluteURI:
		result.Type = NDEFRecordType("uri:" + rec.Type())
	case ndef.NFCForumExternalType:
		result.Type = NDEFRecordType("ext:" + rec.Type())
	default:
		return nil, fmt.Errorf("unsupported TNF %d", rec.TNF())
	}
	return result, nil
}

// textUTF16 is the status-byte flag marking UTF-16 text.
const textUTF16 = 0x80

// parseTextPayload strips the status byte and language code and decodes the
// text as UTF-8 or UTF-16.
func parseTextPayload(payload []byte) string {
	if len(payload) < 1 {
		return ""
	}
	status := payload[0]
	langLen := int(status & 0x3F)
	if len(payload) < 1+langLen {
		return ""
	}
	text := payload[1+langLen:]
	if status&textUTF16 == 0 {
		return string(text)
	}
	return decodeUTF16(text)
}

// decodeUTF16 decodes big-endian UTF-16 unless a byte order mark says
// otherwise. A trailing odd byte is dropped.
func decodeUTF16(b []byte) string {
	var order binary.ByteOrder = binary.BigEndian
	if len(b) >= 2 {
		switch {
		case b[0] == 0xFE && b[1] == 0xFF:
			b = b[2:]
		case b[0] == 0xFF && b[1] == 0xFE:
			order = binary.LittleEndian
			b = b[2:]
		}
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = order.Uint16(b[2*i:])
	}
	return string(utf16.Decode(units))
}

// uriPrefixes are the NFC Forum URI RTD abbreviations.
var uriPrefixes = []string{
	"", "http://www.", "https://www.", "http://", "https://", "tel:", "mailto:",
	"ftp://anonymous:anonymous@", "ftp://ftp.", "ftps://", "sftp://", "smb://",
	"nfs://", "ftp://", "dav://", "news:", "telnet://", "imap:", "rtsp://",
	"urn:", "pop:", "sip:", "sips:", "tftp:", "btspp://", "btl2cap://",
	"btgoep://", "tcpobex://", "irdaobex://", "file://", "urn:epc:id:",
	"urn:epc:tag:", "urn:epc:pat:", "urn:epc:raw:", "urn:epc:", "urn:nfc:",
}

// parseURIPayload expands the prefix code of a URI record.
func parseURIPayload(payload []byte) string {
	if len(payload) < 1 {
		return ""
	}
	prefix := ""
	if int(payload[0]) < len(uriPrefixes) {
		prefix = uriPrefixes[payload[0]]
	}
	return prefix + string(payload[1:])
}

// BuildNDEFMessage encodes text and URI records as a raw NDEF message, the
// inverse of ParseNDEFMessage.
func BuildNDEFMessage(records []NDEFRecord) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("no records to build")
	}

	msg := &ndef.Message{Records: make([]*ndef.Record, 0, len(records))}
	for i := range records {
		var rec *ndef.Record
		switch {
		case records[i].Text != "":
			rec = ndef.NewTextRecord(records[i].Text, "en")
		case records[i].URI != "":
			rec = ndef.NewURIRecord(records[i].URI)
		default:
			return nil, fmt.Errorf("record %d: %w: only text and URI records can be built", i, ErrInvalidParameter)
		}
		rec.SetMB(false)
		rec.SetME(false)
		msg.Records = append(msg.Records, rec)
	}
	msg.Records[0].SetMB(true)
	msg.Records[len(msg.Records)-1].SetME(true)

	payload, err := msg.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to marshal NDEF message: %w", err)
	}
	return payload, nil
}

// String lists the records one per line.
func (m *NDEFMessage) String() string {
	var sb strings.Builder
	for i, rec := range m.Records {
		switch {
		case rec.Text != "":
			_, _ = fmt.Fprintf(&sb, "[%d] %s: %s\n", i, rec.Type, rec.Text)
		case rec.URI != "":
			_, _ = fmt.Fprintf(&sb, "[%d] %s: %s\n", i, rec.Type, rec.URI)
		default:
			_, _ = fmt.Fprintf(&sb, "[%d] %s: %X\n", i, rec.Type, rec.Payload)
		}
	}
	return sb.String()
}

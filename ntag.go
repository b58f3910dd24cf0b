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
	"fmt"
)

// NTAG commands
const (
	ntagCmdRead       = 0x30
	ntagCmdGetVersion = 0x60
)

// NTAG memory structure
const (
	ntagPageSize     = 4  // 4 bytes per page
	ntagUserMemStart = 4  // User memory starts at page 4
	ntagPagesPerRead = 4  // READ returns 4 pages
	ntagReadLength   = 16 // bytes per READ
	ntagVersionLen   = 8

	ntag213TotalPages = 45
	ntag215TotalPages = 135
	ntag216TotalPages = 231

	// GET_VERSION storage size bytes
	ntag213StorageSize = 0x0F
	ntag215StorageSize = 0x11
	ntag216StorageSize = 0x13
)

// NTAGType represents different NTAG variants
type NTAGType uint8

const (
	// NTAGTypeUnknown represents a card that is not an NTAG21x.
	NTAGTypeUnknown NTAGType = iota
	// NTAGType213 represents an NTAG213 chip.
	NTAGType213
	// NTAGType215 represents an NTAG215 chip.
	NTAGType215
	// NTAGType216 represents an NTAG216 chip.
	NTAGType216
)

func (t NTAGType) String() string {
	switch t {
	case NTAGType213:
		return "NTAG213"
	case NTAGType215:
		return "NTAG215"
	case NTAGType216:
		return "NTAG216"
	default:
		return "unknown"
	}
}

// TotalPages returns the page count of the variant, or 0 if unknown.
func (t NTAGType) TotalPages() int {
	switch t {
	case NTAGType213:
		return ntag213TotalPages
	case NTAGType215:
		return ntag215TotalPages
	case NTAGType216:
		return ntag216TotalPages
	default:
		return 0
	}
}

// NTAGVersion holds the version information from GET_VERSION command
type NTAGVersion struct {
	FixedHeader    uint8 // Should be 0x00
	VendorID       uint8 // 0x04 for NXP
	ProductType    uint8 // 0x04 for NTAG
	ProductSubtype uint8
	MajorVersion   uint8
	MinorVersion   uint8
	StorageSize    uint8 // Encoded user memory size
	ProtocolType   uint8 // 0x03 for ISO/IEC 14443-3
}

// NTAGType determines the variant from the storage size byte alone. Vendor
// and product bytes are not checked so compatible clones are accepted.
func (v *NTAGVersion) NTAGType() NTAGType {
	switch v.StorageSize {
	case ntag213StorageSize:
		return NTAGType213
	case ntag215StorageSize:
		return NTAGType215
	case ntag216StorageSize:
		return NTAGType216
	default:
		return NTAGTypeUnknown
	}
}

// GetStorageSize returns the user memory size in bytes. Known NTAG sizes are
// exact, other values use the 2^n lower bound of the encoding.
func (v *NTAGVersion) GetStorageSize() int {
	switch v.StorageSize {
	case ntag213StorageSize:
		return 144
	case ntag215StorageSize:
		return 504
	case ntag216StorageSize:
		return 888
	}
	return 1 << (v.StorageSize >> 1)
}

// ReadPage reads 16 bytes (four pages) starting at page from a MIFARE
// Ultralight or NTAG21x card. Reads past the last page wrap to page 0 on
// the card.
func (d *Device) ReadPage(ctx context.Context, page byte) ([]byte, error) {
	const op = "ReadPage"
	resp, err := d.exchange(ctx, op, command(cmdInDataExchange, 0x01, ntagCmdRead, page), maxResponse)
	if err != nil {
		return nil, err
	}
	if len(resp) == 3 && hasPrefix(resp, cmdInDataExchange) && resp[2] != 0x00 {
		return nil, d.statusError(op, resp[2])
	}
	if len(resp) <= 3 || !hasPrefix(resp, cmdInDataExchange) {
		return nil, d.unexpectedReply(op, resp)
	}
	return append([]byte(nil), resp[3:]...), nil
}

// GetVersion sends GET_VERSION to the card in the field.
func (d *Device) GetVersion(ctx context.Context) (*NTAGVersion, error) {
	version, resp, err := d.readVersion(ctx, "GetVersion")
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, d.unexpectedReply("GetVersion", resp)
	}
	return version, nil
}

// TotalPages returns the page count of an NTAG213/215/216 in the field, or
// 0 with a nil error when the card answers but is not one of them. Link
// failures are returned as errors.
func (d *Device) TotalPages(ctx context.Context) (int, error) {
	version, resp, err := d.readVersion(ctx, "TotalPages")
	if err != nil {
		return 0, err
	}
	if version == nil {
		Debugf("TotalPages: not an NTAG21x: % X", resp)
		return 0, nil
	}
	return version.NTAGType().TotalPages(), nil
}

// readVersion returns a nil version with the raw reply when the reply is
// not an 11-byte GET_VERSION answer.
func (d *Device) readVersion(ctx context.Context, op string) (*NTAGVersion, []byte, error) {
	resp, err := d.exchange(ctx, op, command(cmdInCommunicateThru, ntagCmdGetVersion), maxResponse)
	if err != nil {
		return nil, nil, err
	}
	if len(resp) != 3+ntagVersionLen || !hasPrefix(resp, cmdInCommunicateThru) {
		return nil, append([]byte(nil), resp...), nil
	}
	v := resp[3:]
	return &NTAGVersion{
		FixedHeader:    v[0],
		VendorID:       v[1],
		ProductType:    v[2],
		ProductSubtype: v[3],
		MajorVersion:   v[4],
		MinorVersion:   v[5],
		StorageSize:    v[6],
		ProtocolType:   v[7],
	}, nil, nil
}

// readPages reads ntagPagesPerRead pages at page with the page-read retry
// policy. Only link failures are retried.
func (d *Device) readPages(ctx context.Context, page byte) ([]byte, error) {
	var data []byte
	err := RetryWithConfig(ctx, d.config.RetryConfig, func() error {
		var err error
		data, err = d.ReadPage(ctx, page)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}
	if len(data) < ntagReadLength {
		return nil, fmt.Errorf("read page %d: %w: %d bytes", page, ErrProtocol, len(data))
	}
	return data, nil
}

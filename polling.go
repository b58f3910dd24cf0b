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
	"errors"
	"fmt"
)

// errorFrame is the single-byte payload the reader sends for a command it
// cannot parse.
const errorFrame = 0x7F

// PollFeliCa looks for a FeliCa card answering systemCode (0xFFFF matches
// any). On success the identity holds its IDm and PMm.
func (d *Device) PollFeliCa(ctx context.Context, systemCode uint16) (CardIdentity, error) {
	const op = "PollFeliCa"
	cmd := command(cmdInListPassiveTarget, 0x01, brFeliCa,
		0x00, byte(systemCode>>8), byte(systemCode), 0x00, 0x00)

	resp, err := d.exchange(ctx, op, cmd, maxResponse)
	if err != nil {
		return CardIdentity{}, err
	}
	if noTargets(resp) {
		return CardIdentity{}, fmt.Errorf("%s: %w", op, ErrNoCard)
	}
	if len(resp) != 22 || !hasPrefix(resp, cmdInListPassiveTarget, 0x01, 0x01, 0x12, 0x01) {
		return CardIdentity{}, d.unexpectedReply(op, resp)
	}

	d.setIdentity(CardIdentity{
		Type: TagTypeFeliCa,
		ID:   resp[6:14],
		PMm:  resp[14:22],
	})
	return d.Identity(), nil
}

// PollTypeA looks for an ISO14443-A card. A card reporting ATQA 00 44, SAK
// 00 and a 7-byte UID is MIFARE Ultralight (including NTAG21x); any other
// card is reported as MIFARE.
func (d *Device) PollTypeA(ctx context.Context) (CardIdentity, error) {
	const op = "PollTypeA"
	resp, err := d.exchange(ctx, op, command(cmdInListPassiveTarget, 0x01, brTypeA), maxResponse)
	if err != nil {
		return CardIdentity{}, err
	}
	if noTargets(resp) {
		return CardIdentity{}, fmt.Errorf("%s: %w", op, ErrNoCard)
	}
	if len(resp) < 12 || !hasPrefix(resp, cmdInListPassiveTarget, 0x01, 0x01, 0x00) {
		return CardIdentity{}, d.unexpectedReply(op, resp)
	}

	idLen := int(resp[7])
	if idLen > maxTypeAIDLength || len(resp) < 8+idLen {
		return CardIdentity{}, d.unexpectedReply(op, resp)
	}

	tagType := TagTypeMIFARE
	if resp[4] == 0x00 && resp[5] == 0x44 && resp[6] == 0x00 && resp[7] == 0x07 {
		tagType = TagTypeMIFAREUltralight
	}
	d.setIdentity(CardIdentity{Type: tagType, ID: resp[8 : 8+idLen]})
	return d.Identity(), nil
}

// PollTypeB looks for an ISO14443-B card and records its 4-byte PUPI.
//
// The reader answers an empty field with either the error frame or a reply
// listing zero targets. Both are recognised before the reply shape is
// checked, including when a complete payload arrives with a bad trailer. A
// payload cut short by a timeout is reported as the timeout.
func (d *Device) PollTypeB(ctx context.Context) (CardIdentity, error) {
	const op = "PollTypeB"
	resp, err := d.exchange(ctx, op, command(cmdInListPassiveTarget, 0x01, brTypeB, 0x00), maxResponse)
	if err != nil {
		var le *LinkError
		if errors.As(err, &le) && le.State == StateAwaitingTrailer && typeBNoCard(le.Payload) {
			return CardIdentity{}, fmt.Errorf("%s: %w", op, ErrNoCard)
		}
		return CardIdentity{}, err
	}
	if typeBNoCard(resp) {
		return CardIdentity{}, fmt.Errorf("%s: %w", op, ErrNoCard)
	}
	if len(resp) < 18 || !hasPrefix(resp, cmdInListPassiveTarget, 0x01, 0x01) {
		return CardIdentity{}, d.unexpectedReply(op, resp)
	}

	d.setIdentity(CardIdentity{Type: TagTypeISO14443B, ID: resp[5 : 5+typeBIDLength]})
	return d.Identity(), nil
}

// noTargets reports an InListPassiveTarget reply listing zero targets.
func noTargets(resp []byte) bool {
	return len(resp) == 3 && hasPrefix(resp, cmdInListPassiveTarget, 0x00)
}

func typeBNoCard(resp []byte) bool {
	if len(resp) == 0 || len(resp) > 3 {
		return false
	}
	return resp[0] == errorFrame || (len(resp) == 3 && resp[2] == 0x00)
}

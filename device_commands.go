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

// ErrUnexpectedReply is the cause of a protocol error raised for a reply that
// framed correctly but does not match what the command expects.
var ErrUnexpectedReply = errors.New("unexpected reply")

// cardCommandMaxTimeout saturates the doubled pass-through timeout.
const cardCommandMaxTimeout = 0xFFFF

// InitDevice configures the RF front end: timings, retry counts and the
// additional wait. Each step must be acknowledged with a bare
// RFConfiguration reply.
func (d *Device) InitDevice(ctx context.Context) error {
	steps := [][]byte{
		command(cmdRFConfiguration, rfItemTimings, 0x00, 0x00, 0x00),
		command(cmdRFConfiguration, rfItemMaxRetries, 0x00, 0x00, 0x00),
		command(cmdRFConfiguration, rfItemAdditionalWait, 0xB7),
	}
	for _, cmd := range steps {
		if err := d.simpleCommand(ctx, "InitDevice", cmd); err != nil {
			return err
		}
	}
	return nil
}

// RFOff turns off the RF field.
func (d *Device) RFOff(ctx context.Context) error {
	return d.simpleCommand(ctx, "RFOff", command(cmdRFConfiguration, rfItemField, 0x00))
}

// Reset returns the reader to its idle state.
func (d *Device) Reset(ctx context.Context) error {
	return d.simpleCommand(ctx, "Reset", command(cmdReset, 0x01))
}

// InitTarget puts the reader into FeliCa card emulation with the given IDm,
// PMm and system code.
func (d *Device) InitTarget(ctx context.Context, idm, pmm [8]byte, systemCode [2]byte) error {
	cmd := make([]byte, 0, 37)
	cmd = append(cmd, command(cmdTgInitTarget,
		0x02,                               // activated limit
		0x00, 0x04, 0x00, 0x00, 0x00, 0x40, // 106 kbps parameters
	)...)
	cmd = append(cmd, idm[:]...)        // NFCID2t
	cmd = append(cmd, pmm[:]...)        // PAD
	cmd = append(cmd, systemCode[:]...) // RFU
	cmd = append(cmd, idm[:]...)        // NFCID3t
	cmd = append(cmd, 0x00, 0x00)       // general bytes length, historical bytes length
	return d.simpleCommand(ctx, "InitTarget", cmd)
}

// CardCommand passes cmd to the card in the field and returns its reply. The
// card is given twice the link timeout to answer.
func (d *Device) CardCommand(ctx context.Context, cmd []byte) ([]byte, error) {
	const op = "CardCommand"
	if len(cmd) > maxCardCommandData {
		return nil, fmt.Errorf("%s: %w: %d bytes", op, ErrDataTooLarge, len(cmd))
	}

	t := cardCommandTimeout(d.config.Timeout.Milliseconds())
	req := make([]byte, 0, 5+len(cmd))
	req = append(req, command(cmdCommunicateThruEX, byte(t), byte(t>>8), byte(len(cmd)+1))...)
	req = append(req, cmd...)

	resp, err := d.exchange(ctx, op, req, maxResponse)
	if err != nil {
		return nil, err
	}
	if hasPrefix(resp, cmdCommunicateThruEX) && len(resp) >= 3 && resp[2] != 0x00 {
		return nil, d.statusError(op, resp[2])
	}
	if len(resp) < 4 || !hasPrefix(resp, cmdCommunicateThruEX, 0x00) ||
		resp[3] == 0 || len(resp) != 3+int(resp[3]) {
		return nil, d.unexpectedReply(op, resp)
	}

	out := make([]byte, int(resp[3])-1)
	copy(out, resp[4:])
	return out, nil
}

// cardCommandTimeout doubles the millisecond timeout for the reader's
// half-millisecond unit, saturating at 0xFFFF.
func cardCommandTimeout(ms int64) uint16 {
	if ms >= cardCommandMaxTimeout/2+1 {
		return cardCommandMaxTimeout
	}
	return uint16(ms * 2) //nolint:gosec // bounded above
}

// simpleCommand runs a command whose only valid reply is the bare reply code.
func (d *Device) simpleCommand(ctx context.Context, op string, cmd []byte) error {
	resp, err := d.exchange(ctx, op, cmd, maxResponse)
	if err != nil {
		return err
	}
	if len(resp) != 2 || !hasPrefix(resp, cmd[1]) {
		return d.unexpectedReply(op, resp)
	}
	return nil
}

// unexpectedReply reports a well-framed reply of the wrong shape as a
// protocol error carrying the reply bytes.
func (d *Device) unexpectedReply(op string, resp []byte) error {
	d.metrics.recordFailure(ErrProtocol)
	err := &LinkError{
		Op:      op,
		Err:     ErrProtocol,
		Cause:   fmt.Errorf("%w: % X", ErrUnexpectedReply, resp),
		State:   StateDone,
		Payload: append([]byte(nil), resp...),
	}
	Debugf("%v", err)
	return err
}

func (d *Device) statusError(op string, status byte) error {
	d.metrics.recordFailure(ErrProtocol)
	err := &StatusError{Op: op, Status: status}
	Debugf("%v", err)
	return err
}

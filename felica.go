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
	"bytes"
	"context"
	"fmt"
	"time"
)

// SystemCodeWildcard makes PollFeliCa match a card with any system code.
const SystemCodeWildcard = 0xFFFF

// Push timing. The phone needs the field held after activation before it
// shows the pushed content.
const (
	PushSettleDelay = time.Second
	pushSettleSlice = 10 * time.Millisecond
)

// Push sends data to a mobile FeliCa device found by PollFeliCa (for
// example a URL opened by the phone's browser), activates it and then holds
// the field for PushSettleDelay. The settle delay stops early if ctx ends.
func (d *Device) Push(ctx context.Context, data []byte) error {
	const op = "Push"
	if len(data) > maxPushData {
		return fmt.Errorf("%s: %w: %d bytes, max %d", op, ErrDataTooLarge, len(data), maxPushData)
	}
	if d.identity.Type != TagTypeFeliCa || len(d.identity.ID) != felicaIDLength {
		return fmt.Errorf("%s: %w: last discovery found %s", op, ErrNoIdentity, d.identity.Type)
	}
	idm := d.identity.ID

	cmd := make([]byte, 0, 10+len(data))
	cmd = append(cmd, felicaCmdPush)
	cmd = append(cmd, idm...)
	cmd = append(cmd, byte(len(data)))
	cmd = append(cmd, data...)
	if err := d.felicaCommand(ctx, op, cmd, felicaCmdPushResponse, idm, byte(len(data))); err != nil {
		return err
	}

	cmd = append(cmd[:0], felicaCmdActivate)
	cmd = append(cmd, idm...)
	cmd = append(cmd, 0x00)
	if err := d.felicaCommand(ctx, op, cmd, felicaCmdActivateReply, idm, 0x00); err != nil {
		return err
	}

	return d.settle(ctx, PushSettleDelay)
}

// felicaCommand runs cmd through CardCommand and checks for the 10-byte
// reply code, IDm, trailing byte.
func (d *Device) felicaCommand(ctx context.Context, op string, cmd []byte, code byte, idm []byte, last byte) error {
	resp, err := d.CardCommand(ctx, cmd)
	if err != nil {
		return err
	}
	if len(resp) != 10 || resp[0] != code || !bytes.Equal(resp[1:9], idm) || resp[9] != last {
		return d.unexpectedReply(op, resp)
	}
	return nil
}

// settle sleeps for total through the clock in short slices so a cancelled
// context cuts the wait short.
func (d *Device) settle(ctx context.Context, total time.Duration) error {
	for remaining := total; remaining > 0; remaining -= pushSettleSlice {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("push settle: %w", err)
		}
		d.config.Clock.Sleep(min(remaining, pushSettleSlice))
	}
	return nil
}

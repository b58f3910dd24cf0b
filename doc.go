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

// Package rcs620s drives the Sony RC-S620/S contactless reader module over
// its serial host interface.
//
// A Device owns one Transport and runs one command at a time: the command is
// framed, written, acknowledged by the reader and answered with a response
// frame whose checksums are verified. A reader that stays silent past the
// link timeout is sent an ACK to abandon the command, and the exchange fails
// with ErrTimeout.
//
// Typical use with the UART transport:
//
//	device, err := rcs620s.Connect(ctx, "/dev/ttyUSB0",
//	    rcs620s.WithTransportFactory(uart.NewFactory(uart.DefaultConfig())))
//	if err != nil {
//	    return err
//	}
//	defer device.Close()
//
//	id, err := device.PollFeliCa(ctx, rcs620s.SystemCodeWildcard)
//	if errors.Is(err, rcs620s.ErrNoCard) {
//	    // nothing in the field
//	}
//
// Discovery routines (PollFeliCa, PollTypeA, PollTypeB) record the card they
// find; Push, ReadPage and ReadNDEF act on that card. Errors carry their kind
// (ErrTimeout, ErrProtocol, ErrTransport and friends) for errors.Is, and
// IsRetryable and IsFatal classify them for callers running their own loops.
package rcs620s

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
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"
)

// Failure kinds. Every error returned by the link wraps exactly one of these.
var (
	// ErrTimeout means the reader did not answer within the configured
	// timeout. The link has been resynchronised with a cancel before return.
	ErrTimeout = errors.New("timeout")
	// ErrProtocol means bytes arrived but were structurally or semantically
	// wrong: bad checksum, unexpected code, oversize length, wrong IDm.
	ErrProtocol = errors.New("protocol error")
	// ErrTransport means the byte transport itself failed.
	ErrTransport = errors.New("transport error")
)

// Outcome and argument errors
var (
	ErrNoCard           = errors.New("no card in field")
	ErrNoIdentity       = errors.New("no card identity for this operation")
	ErrNoNDEF           = errors.New("no NDEF message on card")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrDeviceNotFound   = errors.New("device not found")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrDataTooLarge     = errors.New("data too large")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap exposes both the underlying error and ErrTransport.
func (e *TransportError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrTransport}
	}
	return []error{e.Err, ErrTransport}
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTransportWriteError reports a short or failed write (transient).
func NewTransportWriteError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, err, ErrorTypeTransient)
}

// NewTransportReadError reports a failed read (transient).
func NewTransportReadError(op, port string, err error) *TransportError {
	return NewTransportError(op, port, err, ErrorTypeTransient)
}

// NewTransportClosedError reports use of a closed port (permanent).
func NewTransportClosedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportClosed, ErrorTypePermanent)
}

// LinkError is returned by every failed exchange. Err is the failure kind,
// State the engine state the failure happened in, Cause the detail (a frame
// codec error or the transport error). Payload holds the response bytes read
// so far once the response length was known.
type LinkError struct {
	Err     error
	Cause   error
	Op      string
	Payload []byte
	State   LinkState
}

func (e *LinkError) Error() string {
	msg := fmt.Sprintf("%s: %v while %s", e.Op, e.Err, e.State)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes the failure kind and the cause to errors.Is and errors.As.
func (e *LinkError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// StatusError reports a non-zero status byte in an otherwise well-formed
// reply. It is a protocol-level failure.
type StatusError struct {
	Op     string
	Status byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status 0x%02X (%s)", e.Op, e.Status, statusMeaning(e.Status))
}

// Unwrap makes StatusError match ErrProtocol.
func (*StatusError) Unwrap() error {
	return ErrProtocol
}

// IsTimeoutError reports whether the card did not answer in time.
func (e *StatusError) IsTimeoutError() bool {
	return e.Status == 0x01
}

// statusMeaning returns a human-readable meaning for reader status codes.
// The RC-S620/S shares the PN53x status table.
func statusMeaning(code byte) string {
	meanings := map[byte]string{
		0x00: "success",
		0x01: "timeout",
		0x02: "CRC error",
		0x03: "parity error",
		0x04: "erroneous bit count during anti-collision",
		0x05: "framing error",
		0x06: "abnormal bit collision",
		0x07: "communication buffer size insufficient",
		0x09: "RF buffer overflow",
		0x0A: "RF field not activated in time",
		0x0B: "RF protocol error",
		0x0D: "overheating",
		0x0E: "internal buffer overflow",
		0x10: "invalid parameter",
		0x13: "data format does not match",
		0x14: "authentication error",
		0x23: "UID check byte is wrong",
		0x25: "invalid device state",
		0x26: "operation not allowed",
		0x27: "wrong context for command",
		0x29: "target released by initiator",
		0x2A: "card ID mismatch",
		0x2B: "card disappeared",
		0x2D: "over-current event",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	return "unknown error"
}

// IsRetryable returns true if the error is potentially retryable
func IsRetryable(err error) bool {
	if err == nil || IsFatal(err) {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var se *StatusError
	if errors.As(err, &se) {
		return se.IsTimeoutError()
	}

	switch {
	case errors.Is(err, ErrNoCard),
		errors.Is(err, ErrInvalidParameter),
		errors.Is(err, ErrDataTooLarge),
		errors.Is(err, ErrNoIdentity):
		return false
	case errors.Is(err, ErrTimeout),
		errors.Is(err, ErrProtocol),
		errors.Is(err, ErrTransport):
		return true
	default:
		return false
	}
}

// GetErrorType classifies err for retry decisions.
func GetErrorType(err error) ErrorType {
	var te *TransportError
	switch {
	case errors.As(err, &te):
		return te.Type
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case IsRetryable(err):
		return ErrorTypeTransient
	default:
		return ErrorTypePermanent
	}
}

// IsFatal returns true if the error indicates the device/connection is gone
// and the caller should reconnect rather than retry.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors raised when the USB serial
// adapter is unplugged mid-operation.
func isDeviceGoneError(err error) bool {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
	switch errno {
	case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
		return true
	}

	if runtime.GOOS == "windows" {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case errAccessDenied, errGenFailure, errNoSuchDevice:
			return true
		}
	}
	return false
}

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

// Package uart implements the RC-S620/S byte transport over a serial port.
//
// The transport only moves bytes. Framing, ACK handling and timeouts live in
// the driver; ReadAvailable returns after a short poll so the driver's clock
// stays in charge of every deadline.
package uart

import (
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/detection"
	"github.com/ZaparooProject/go-rcs620s/internal/syncutil"
	"go.bug.st/serial"
	"periph.io/x/conn/v3/physic"
	periphuart "periph.io/x/conn/v3/uart"
)

// DefaultBaudRate is the RC-S620/S factory line speed.
const DefaultBaudRate = 115200 * physic.Hertz

// Config holds the serial line settings.
type Config struct {
	// BaudRate must be a whole number of hertz.
	BaudRate physic.Frequency
	// Parity is one of the periph parity modes.
	Parity periphuart.Parity
	// Stop is the number of stop bits.
	Stop periphuart.Stop
	// DataBits is 5 to 8.
	DataBits int
	// PollTimeout bounds how long ReadAvailable waits for the first byte.
	PollTimeout time.Duration
}

// DefaultConfig returns 115200 8N1 with a platform poll timeout.
func DefaultConfig() Config {
	return Config{
		BaudRate:    DefaultBaudRate,
		Parity:      periphuart.NoParity,
		Stop:        periphuart.One,
		DataBits:    8,
		PollTimeout: defaultPollTimeout(),
	}
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// defaultPollTimeout is longer on Windows, where short COM timeouts are
// rounded up by the driver anyway.
func defaultPollTimeout() time.Duration {
	if isWindows() {
		return 10 * time.Millisecond
	}
	return time.Millisecond
}

// mode converts c to go.bug.st/serial settings.
func (c Config) mode() (*serial.Mode, error) {
	if c.BaudRate <= 0 || c.BaudRate%physic.Hertz != 0 {
		return nil, fmt.Errorf("%w: baud rate %s", rcs620s.ErrInvalidParameter, c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 8 {
		return nil, fmt.Errorf("%w: %d data bits", rcs620s.ErrInvalidParameter, c.DataBits)
	}

	m := &serial.Mode{BaudRate: int(c.BaudRate / physic.Hertz), DataBits: c.DataBits}
	switch c.Parity {
	case periphuart.NoParity:
		m.Parity = serial.NoParity
	case periphuart.Odd:
		m.Parity = serial.OddParity
	case periphuart.Even:
		m.Parity = serial.EvenParity
	case periphuart.Mark:
		m.Parity = serial.MarkParity
	case periphuart.Space:
		m.Parity = serial.SpaceParity
	default:
		return nil, fmt.Errorf("%w: parity %q", rcs620s.ErrInvalidParameter, c.Parity)
	}
	switch c.Stop {
	case periphuart.One:
		m.StopBits = serial.OneStopBit
	case periphuart.OneHalf:
		m.StopBits = serial.OnePointFiveStopBits
	case periphuart.Two:
		m.StopBits = serial.TwoStopBits
	default:
		return nil, fmt.Errorf("%w: stop bits %d", rcs620s.ErrInvalidParameter, c.Stop)
	}
	return m, nil
}

// Transport implements rcs620s.Transport over a serial port.
type Transport struct {
	port     serial.Port
	portName string
	mu       syncutil.Mutex
	closed   bool
}

// Open opens portName with cfg.
func Open(portName string, cfg Config) (*Transport, error) {
	mode, err := cfg.mode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, rcs620s.NewTransportError("open", portName, err, rcs620s.ErrorTypePermanent)
	}
	t, err := NewWithPort(port, portName, cfg)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return t, nil
}

// NewWithPort wraps an already open port. It sets the poll timeout and
// discards anything received before the driver takes over.
func NewWithPort(port serial.Port, portName string, cfg Config) (*Transport, error) {
	if port == nil {
		return nil, fmt.Errorf("%w: nil port", rcs620s.ErrInvalidParameter)
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout()
	}
	if err := port.SetReadTimeout(cfg.PollTimeout); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("failed to reset UART input: %w", err)
	}
	return &Transport{port: port, portName: portName}, nil
}

// NewFactory returns a rcs620s.TransportFactory opening ports with cfg.
func NewFactory(cfg Config) rcs620s.TransportFactory {
	return func(path string) (rcs620s.Transport, error) {
		return Open(path, cfg)
	}
}

// NewDeviceFactory returns a rcs620s.TransportFromDeviceFactory for
// auto-detected UART readers.
func NewDeviceFactory(cfg Config) rcs620s.TransportFromDeviceFactory {
	return func(info detection.DeviceInfo) (rcs620s.Transport, error) {
		if info.Transport != "uart" {
			return nil, fmt.Errorf("%w: %s is not a UART device", rcs620s.ErrInvalidParameter, info.Path)
		}
		return Open(info.Path, cfg)
	}
}

// Write sends p and waits for it to leave the output buffer.
func (t *Transport) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, rcs620s.NewTransportClosedError("write", t.portName)
	}

	n, err := t.port.Write(p)
	if err != nil {
		return n, rcs620s.NewTransportWriteError("write", t.portName, err)
	}
	if n != len(p) {
		return n, rcs620s.NewTransportWriteError("write", t.portName,
			fmt.Errorf("%w: %d of %d bytes", io.ErrShortWrite, n, len(p)))
	}
	if err := t.drainWithRetry(); err != nil {
		return n, err
	}
	return n, nil
}

// ReadAvailable returns the bytes that arrive within the poll timeout,
// possibly none.
func (t *Transport) ReadAvailable(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, rcs620s.NewTransportClosedError("read", t.portName)
	}

	n, err := t.port.Read(p)
	if err != nil {
		if isInterruptedSystemCall(err) {
			return n, nil
		}
		return n, rcs620s.NewTransportReadError("read", t.portName, err)
	}
	return n, nil
}

// Flush discards received but unread bytes.
func (t *Transport) Flush() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return rcs620s.NewTransportClosedError("flush", t.portName)
	}
	if err := t.port.ResetInputBuffer(); err != nil {
		return rcs620s.NewTransportReadError("flush", t.portName, err)
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type returns the transport type
func (*Transport) Type() rcs620s.TransportType {
	return rcs620s.TransportUART
}

// PortName returns the device path the transport was opened on.
func (t *Transport) PortName() string {
	return t.portName
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

var errDrainRetries = errors.New("drain interrupted too many times")

// drainWithRetry waits for the output buffer to empty, retrying calls
// interrupted by signals.
func (t *Transport) drainWithRetry() error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := range maxRetries {
		err := t.port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			return rcs620s.NewTransportWriteError("drain", t.portName, err)
		}
		time.Sleep(baseDelay * time.Duration(1<<attempt))
	}
	return rcs620s.NewTransportWriteError("drain", t.portName, errDrainRetries)
}

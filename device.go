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
	"time"

	"github.com/ZaparooProject/go-rcs620s/detection"
	"github.com/rcrowley/go-metrics"
)

// DefaultTimeout is the link timeout of a freshly created device.
const DefaultTimeout = time.Second

// defaultTraceSize is how many wire trace entries a failure carries.
const defaultTraceSize = 16

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// Clock drives read deadlines and delays
	Clock Clock
	// Metrics receives the link counters; nil means a private registry
	Metrics metrics.Registry
	// RetryConfig configures retries of multi-exchange reads
	RetryConfig *RetryConfig
	// Port labels wire traces
	Port string
	// Timeout bounds each read of an exchange
	Timeout time.Duration
	// TraceSize is the wire trace capacity
	TraceSize int
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Clock:       SystemClock{},
		RetryConfig: PageReadRetryConfig(),
		Timeout:     DefaultTimeout,
		TraceSize:   defaultTraceSize,
	}
}

// Device represents an RC-S620/S reader module
//
// Thread Safety: Device is NOT thread-safe. One exchange is in flight at a
// time and the scratch response buffer is reused across exchanges. Callers
// sharing a Device between goroutines must serialise access themselves.
type Device struct {
	transport Transport
	config    *DeviceConfig
	link      *link
	metrics   *linkMetrics
	identity  CardIdentity
	closed    bool
}

// New creates a new RC-S620/S device with the given transport
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}
	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		identity:  CardIdentity{Type: TagTypeUnknown},
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	transportType := TransportMock
	if typer, ok := transport.(TransportTyper); ok {
		transportType = typer.Type()
	}
	device.metrics = newLinkMetrics(device.config.Metrics)
	trace := NewTraceBuffer(string(transportType), device.config.Port, device.config.TraceSize)
	device.link = newLink(transport, device.config.Clock, trace, device.metrics, device.config.Timeout)

	return device, nil
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// SetTimeout sets the link timeout. Zero makes every read time out at once.
func (d *Device) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("%w: negative timeout %v", ErrInvalidParameter, timeout)
	}
	d.config.Timeout = timeout
	if d.link != nil {
		d.link.timeout = timeout
	}
	return nil
}

// Timeout returns the current link timeout
func (d *Device) Timeout() time.Duration {
	return d.config.Timeout
}

// Identity returns a copy of the card found by the last successful discovery
func (d *Device) Identity() CardIdentity {
	return d.identity.clone()
}

// Stats returns a snapshot of the link counters
func (d *Device) Stats() Stats {
	return d.metrics.snapshot()
}

// LinkState returns where the last exchange ended
func (d *Device) LinkState() LinkState {
	return d.link.state
}

// Close closes the device connection
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// exchange runs one command after checking the context and the device
// state. The reply aliases the link buffer.
func (d *Device) exchange(ctx context.Context, op string, cmd []byte, capacity int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if d.closed {
		return nil, NewTransportClosedError(op, d.config.Port)
	}
	return d.link.exchange(op, cmd, capacity)
}

// setIdentity stores a copy of id.
func (d *Device) setIdentity(id CardIdentity) {
	d.identity = id.clone()
	Debugf("discovered %s", d.identity)
}

// TransportFactory is a function type for creating transports
type TransportFactory func(path string) (Transport, error)

// TransportFromDeviceFactory is a function type for creating transports from detected devices
type TransportFromDeviceFactory func(device detection.DeviceInfo) (Transport, error)

// DeviceDetector finds candidate readers for auto-detection
type DeviceDetector func(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error)

// ConnectOption represents a functional option for Connect
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory       TransportFactory
	transportDeviceFactory TransportFromDeviceFactory
	deviceDetector         DeviceDetector
	deviceOptions          []Option
	timeout                time.Duration
	autoDetect             bool
	connectionRetries      int
}

// WithAutoDetection enables automatic device detection instead of using a specific path
func WithAutoDetection() ConnectOption {
	return func(c *connectConfig) error {
		c.autoDetect = true
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectTimeout bounds the whole of Connect, detection and init retries
// included. Zero or less leaves only the caller's context. The link timeout
// of the device is set with WithDeviceOptions(WithTimeout(...)).
func WithConnectTimeout(timeout time.Duration) ConnectOption {
	return func(c *connectConfig) error {
		c.timeout = timeout
		return nil
	}
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportFactory = factory
		return nil
	}
}

// WithTransportFromDeviceFactory sets the transport from device factory function
func WithTransportFromDeviceFactory(factory TransportFromDeviceFactory) ConnectOption {
	return func(c *connectConfig) error {
		c.transportDeviceFactory = factory
		return nil
	}
}

// WithConnectionRetries sets the number of InitDevice attempts
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("connection retries must be at least 1, got %d", maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

// WithDeviceDetector sets a custom device detector function for auto-detection
func WithDeviceDetector(detector DeviceDetector) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceDetector = detector
		return nil
	}
}

// Connect opens a reader from a path or auto-detection and initialises it.
//
//	// Connect to a specific port
//	device, err := rcs620s.Connect(ctx, "/dev/ttyUSB0", rcs620s.WithTransportFactory(factory))
//
//	// Auto-detect
//	device, err := rcs620s.Connect(ctx, "", rcs620s.WithAutoDetection(),
//	    rcs620s.WithTransportFromDeviceFactory(fromDevice))
func Connect(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}
	if config.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.timeout)
		defer cancel()
	}
	if path == "" {
		config.autoDetect = true
	}

	transport, port, err := createTransport(ctx, path, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	device, err := setupDevice(ctx, transport, port, config)
	if err != nil {
		_ = transport.Close()
		return nil, err
	}
	return device, nil
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		connectionRetries: DefaultConnectionRetries,
	}
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}
	return config, nil
}

func createTransport(ctx context.Context, path string, config *connectConfig) (Transport, string, error) {
	if config.autoDetect {
		return createAutoDetectedTransport(ctx, config.transportDeviceFactory, config.deviceDetector)
	}
	if config.transportFactory == nil {
		return nil, "", errors.New("transport factory not provided")
	}
	transport, err := config.transportFactory(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}
	return transport, path, nil
}

func createAutoDetectedTransport(
	ctx context.Context,
	factory TransportFromDeviceFactory,
	detector DeviceDetector,
) (Transport, string, error) {
	if factory == nil {
		return nil, "", errors.New("transport device factory not provided")
	}
	opts := detection.DefaultOptions()
	opts.Mode = detection.Safe

	if detector == nil {
		detector = detection.DetectAll
	}
	devices, err := detector(ctx, &opts)
	if err != nil {
		return nil, "", fmt.Errorf("failed to detect devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, "", ErrDeviceNotFound
	}

	info := devices[0]
	Debugf("using detected %s", info)
	transport, err := factory(info)
	if err != nil {
		return nil, "", err
	}
	return transport, info.Path, nil
}

// setupDevice builds the device and runs InitDevice. A path given by the
// caller is retried with backoff since the adapter may still be enumerating;
// auto-detected devices have already answered a probe.
func setupDevice(ctx context.Context, transport Transport, port string, config *connectConfig) (*Device, error) {
	deviceOpts := append([]Option{WithPortName(port)}, config.deviceOptions...)
	device, err := New(transport, deviceOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	attempts := config.connectionRetries
	if config.autoDetect {
		attempts = 1
	}
	err = RetryWithConfig(ctx, ConnectionRetryConfig(attempts), func() error {
		return device.InitDevice(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize device after %d attempts: %w", attempts, err)
	}
	return device, nil
}

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

// Package uart detects RC-S620/S readers on serial ports. Importing it
// registers the detector with the detection package.
package uart

import (
	"context"
	"fmt"
	"strings"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/detection"
	"github.com/ZaparooProject/go-rcs620s/transport/uart"
	"go.bug.st/serial/enumerator"
)

const (
	transportName = "uart"
	// probeTimeout bounds one probe of one port.
	probeTimeout = 2 * time.Second
	// probeLinkTimeout is the per-exchange timeout while probing.
	probeLinkTimeout = 250 * time.Millisecond
)

// knownBridges are USB serial bridges found on RC-S620/S carrier boards.
var knownBridges = []string{
	"0403:6001", // FTDI FT232R
	"0403:6015", // FTDI FT231X
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
	"067B:2303", // Prolific PL2303
}

var readerKeywords = []string{"rc-s620", "rcs620", "felica", "nfc", "rfid"}

// goodNamePatterns match port names of USB serial adapters on macOS.
var goodNamePatterns = []string{"usbserial", "slab_usbtouart", "wchusbserial"}

// serialPort is an enumerated port with its USB descriptors.
type serialPort struct {
	Path         string
	Name         string
	VIDPID       string
	Product      string
	SerialNumber string
	IsUSB        bool
}

// listPortsFn and probeDeviceFn are swapped out in tests.
var (
	listPortsFn   = listPorts
	probeDeviceFn = probeDevice
)

type detector struct{}

// New returns the serial port detector.
func New() detection.Detector {
	return &detector{}
}

func init() {
	detection.RegisterDetector(New())
}

func (*detector) Transport() string {
	return transportName
}

// Detect lists serial ports, drops blocked and ignored ones, and probes the
// rest as opts.Mode allows.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := listPortsFn()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for i := range ports {
		if ctx.Err() != nil {
			break
		}
		port := &ports[i]
		if !d.candidate(port, opts) {
			continue
		}
		if info, ok := d.processPort(ctx, port, opts); ok {
			devices = append(devices, info)
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (*detector) candidate(port *serialPort, opts *detection.Options) bool {
	if port.VIDPID != "" && detection.IsBlocked(port.VIDPID, opts.Blocklist) {
		return false
	}
	if detection.IsPathIgnored(port.Path, opts.IgnorePaths) {
		return false
	}
	return port.IsUSB || isOnboardUART(port.Path) || isLikelyReader(port)
}

// processPort decides the confidence for one port, probing when the mode
// allows it. A port that fails a probe is dropped.
func (*detector) processPort(ctx context.Context, port *serialPort, opts *detection.Options) (detection.DeviceInfo, bool) {
	likely := isLikelyReader(port)
	info := detection.DeviceInfo{
		Transport:  transportName,
		Path:       port.Path,
		Name:       port.Name,
		Confidence: detection.Low,
		Metadata:   portMetadata(port),
	}
	if likely {
		info.Confidence = detection.Medium
	}

	if opts.Mode == detection.Passive {
		return info, likely
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if !probeDeviceFn(probeCtx, port.Path, opts.Mode) {
		rcs620s.Debugf("detect: no reader answered on %s", port.Path)
		return detection.DeviceInfo{}, false
	}
	info.Confidence = detection.High
	return info, true
}

func portMetadata(port *serialPort) map[string]string {
	md := make(map[string]string)
	if port.VIDPID != "" {
		md["vidpid"] = port.VIDPID
	}
	if port.Product != "" {
		md["product"] = port.Product
	}
	if port.SerialNumber != "" {
		md["serial"] = port.SerialNumber
	}
	return md
}

// isLikelyReader reports whether the port's USB identity matches a bridge or
// descriptor seen on reader boards.
func isLikelyReader(port *serialPort) bool {
	vidpid := strings.ToUpper(port.VIDPID)
	for _, known := range knownBridges {
		if vidpid == known {
			return true
		}
	}

	product := strings.ToLower(port.Product)
	for _, kw := range readerKeywords {
		if strings.Contains(product, kw) {
			return true
		}
	}

	name := strings.ToLower(port.Name)
	for _, p := range goodNamePatterns {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}

// isOnboardUART matches the SoC serial ports of single board computers,
// where the module is often wired directly to the header pins.
func isOnboardUART(path string) bool {
	for _, prefix := range []string{"/dev/ttyAMA", "/dev/ttyS0", "/dev/serial0", "/dev/ttyTHS"} {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// listPorts enumerates serial ports with their USB descriptors.
func listPorts() ([]serialPort, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]serialPort, 0, len(details))
	for _, d := range details {
		port := serialPort{
			Path: d.Name,
			Name: d.Name[strings.LastIndex(d.Name, "/")+1:],
		}
		if d.IsUSB {
			port.IsUSB = true
			port.VIDPID = detection.FormatVIDPID(d.VID, d.PID)
			port.Product = d.Product
			port.SerialNumber = d.SerialNumber
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// probeDevice opens path and sends one command. It makes a single attempt
// so that unrelated serial devices are disturbed as little as possible;
// Connect retries once a reader has been found.
func probeDevice(ctx context.Context, path string, mode detection.Mode) bool {
	if mode == detection.Passive {
		return false
	}

	transport, err := uart.Open(path, uart.DefaultConfig())
	if err != nil {
		return false
	}
	device, err := rcs620s.New(transport,
		rcs620s.WithTimeout(probeLinkTimeout),
		rcs620s.WithPortName(path))
	if err != nil {
		_ = transport.Close()
		return false
	}
	defer func() { _ = device.Close() }()

	return probeWith(ctx, device, mode) == nil
}

// probeWith runs the command mode calls for on an open device.
func probeWith(ctx context.Context, device *rcs620s.Device, mode detection.Mode) error {
	switch mode {
	case detection.Safe:
		return device.RFOff(ctx)
	case detection.Full:
		return device.InitDevice(ctx)
	default:
		return fmt.Errorf("%w: cannot probe in %s mode", rcs620s.ErrInvalidParameter, mode)
	}
}

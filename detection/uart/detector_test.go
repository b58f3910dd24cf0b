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

//nolint:paralleltest // Tests swap the package-level listPortsFn and probeDeviceFn
package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	"github.com/ZaparooProject/go-rcs620s/detection"
	virt "github.com/ZaparooProject/go-rcs620s/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPorts(t *testing.T, ports []serialPort, err error, probe func(context.Context, string, detection.Mode) bool) {
	t.Helper()
	origList, origProbe := listPortsFn, probeDeviceFn
	t.Cleanup(func() {
		listPortsFn, probeDeviceFn = origList, origProbe
	})
	listPortsFn = func() ([]serialPort, error) { return ports, err }
	probeDeviceFn = probe
}

func probeAnswers(paths ...string) func(context.Context, string, detection.Mode) bool {
	return func(_ context.Context, path string, _ detection.Mode) bool {
		for _, p := range paths {
			if p == path {
				return true
			}
		}
		return false
	}
}

var testPorts = []serialPort{
	{Path: "/dev/ttyUSB0", Name: "ttyUSB0", VIDPID: "0403:6015", IsUSB: true},
	{Path: "/dev/ttyUSB1", Name: "ttyUSB1", VIDPID: "1546:01A7", IsUSB: true},
	{Path: "/dev/ttyACM0", Name: "ttyACM0", VIDPID: "2341:0043", IsUSB: true},
	{Path: "/dev/ttyAMA0", Name: "ttyAMA0"},
	{Path: "/dev/ttyS5", Name: "ttyS5"},
}

func TestDetect_SafeModeKeepsAnsweringPorts(t *testing.T) {
	var probed []string
	stubPorts(t, testPorts, nil, func(ctx context.Context, path string, mode detection.Mode) bool {
		probed = append(probed, path)
		assert.Equal(t, detection.Safe, mode)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return path == "/dev/ttyUSB0" || path == "/dev/ttyAMA0"
	})

	opts := detection.DefaultOptions()
	devices, err := New().Detect(context.Background(), &opts)
	require.NoError(t, err)

	// The blocked GPS and the plain ttyS5 are never opened.
	assert.Equal(t, []string{"/dev/ttyUSB0", "/dev/ttyACM0", "/dev/ttyAMA0"}, probed)
	require.Len(t, devices, 2)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, detection.High, devices[0].Confidence)
	assert.Equal(t, "0403:6015", devices[0].Metadata["vidpid"])
	assert.Equal(t, "uart", devices[0].Transport)
	assert.Equal(t, "/dev/ttyAMA0", devices[1].Path)
}

func TestDetect_PassiveModeNeverProbes(t *testing.T) {
	stubPorts(t, testPorts, nil, func(context.Context, string, detection.Mode) bool {
		t.Error("passive detection opened a port")
		return false
	})

	opts := detection.Options{Mode: detection.Passive, Blocklist: detection.DefaultBlocklist()}
	devices, err := New().Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyUSB0", devices[0].Path)
	assert.Equal(t, detection.Medium, devices[0].Confidence)
}

func TestDetect_IgnorePaths(t *testing.T) {
	stubPorts(t, testPorts, nil, probeAnswers("/dev/ttyUSB0", "/dev/ttyAMA0"))

	opts := detection.Options{Mode: detection.Safe, IgnorePaths: []string{"/dev/ttyUSB0"}}
	devices, err := New().Detect(context.Background(), &opts)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "/dev/ttyAMA0", devices[0].Path)
}

func TestDetect_NothingAnswers(t *testing.T) {
	stubPorts(t, testPorts, nil, probeAnswers())

	opts := detection.Options{Mode: detection.Full}
	_, err := New().Detect(context.Background(), &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestDetect_EnumerationError(t *testing.T) {
	boom := errors.New("no sysfs")
	stubPorts(t, nil, boom, probeAnswers())

	opts := detection.DefaultOptions()
	_, err := New().Detect(context.Background(), &opts)
	require.ErrorIs(t, err, boom)
}

func TestDetect_CancelledContext(t *testing.T) {
	stubPorts(t, testPorts, nil, probeAnswers("/dev/ttyUSB0"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := detection.DefaultOptions()
	_, err := New().Detect(ctx, &opts)
	require.ErrorIs(t, err, detection.ErrNoDevicesFound)
}

func TestIsLikelyReader(t *testing.T) {
	tests := []struct {
		name string
		port serialPort
		want bool
	}{
		{"CH340 bridge", serialPort{VIDPID: "1a86:7523"}, true},
		{"FeliCa product string", serialPort{Product: "FeliCa RC-S620/S board"}, true},
		{"macOS usbserial", serialPort{Name: "cu.usbserial-A50285BI"}, true},
		{"arduino", serialPort{VIDPID: "2341:0043", Product: "Arduino Uno"}, false},
		{"bare port", serialPort{Name: "ttyS0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isLikelyReader(&tt.port))
		})
	}
}

func TestTransportName(t *testing.T) {
	assert.Equal(t, "uart", New().Transport())
}

func TestProbeWith(t *testing.T) {
	tests := []struct {
		mode          detection.Mode
		wantRFConfigs int
		wantErr       bool
	}{
		{mode: detection.Safe, wantRFConfigs: 1},
		{mode: detection.Full, wantRFConfigs: 3},
		{mode: detection.Passive, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			sim := virt.NewVirtualRCS620S()
			device, err := rcs620s.New(sim, rcs620s.WithClock(virt.NewFakeClock()),
				rcs620s.WithTimeout(50*time.Millisecond))
			require.NoError(t, err)

			err = probeWith(context.Background(), device, tt.mode)
			if tt.wantErr {
				require.ErrorIs(t, err, rcs620s.ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRFConfigs, sim.State().RFConfigurations)
		})
	}
}

func TestProbeDevice_PassiveDoesNotOpen(t *testing.T) {
	assert.False(t, probeDevice(context.Background(), "/dev/nonexistent-rcs620s", detection.Passive))
	assert.False(t, probeDevice(context.Background(), "/dev/nonexistent-rcs620s", detection.Safe))
}

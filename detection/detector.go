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

// Package detection finds RC-S620/S readers attached to the host.
//
// Transport specific detectors register themselves on import, so a program
// that wants serial port scanning imports detection/uart for its side effect:
//
//	import _ "github.com/ZaparooProject/go-rcs620s/detection/uart"
package detection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-rcs620s/internal/syncutil"
)

// Mode is how far a detector may go to confirm a candidate port.
type Mode int

const (
	// Passive only looks at port metadata and never opens a port.
	Passive Mode = iota
	// Safe opens each candidate and sends a single RF-off command.
	Safe
	// Full runs the complete RF initialisation on each candidate.
	Full
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Confidence is how sure a detector is that a port hosts a reader.
type Confidence int

const (
	// Low means nothing but the port exists.
	Low Confidence = iota
	// Medium means the USB bridge or descriptor matches a known adapter.
	Medium
	// High means the port answered a reader command.
	High
)

// String returns the confidence name.
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected reader.
type DeviceInfo struct {
	// Metadata holds transport specific details such as "vidpid".
	Metadata map[string]string
	// Transport is the transport name, "uart" for serial ports.
	Transport string
	// Path is what the transport factory opens, e.g. /dev/ttyUSB0 or COM3.
	Path string
	// Name is a human readable label.
	Name       string
	Confidence Confidence
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%s device at %s (confidence: %s)", d.Transport, d.Path, d.Confidence)
}

// Options configures a detection run.
type Options struct {
	// Blocklist lists USB VID:PID pairs never to open.
	Blocklist []string
	// IgnorePaths lists port paths to skip.
	IgnorePaths []string
	// Transports limits the run to these detectors; empty means all.
	Transports []string
	CacheTTL   time.Duration
	Timeout    time.Duration
	Mode       Mode
	// EnableCache reuses results younger than CacheTTL.
	EnableCache bool
}

// DefaultOptions returns the options Connect uses for auto-detection.
func DefaultOptions() Options {
	return Options{
		Mode:        Safe,
		Timeout:     5 * time.Second,
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Detector finds readers on one transport.
type Detector interface {
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
	Transport() string
}

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no RC-S620/S devices found")
	ErrNoDetectors         = errors.New("no detectors available for the requested transports")
	ErrDetectionTimeout    = errors.New("detection timeout")
	ErrUnsupportedPlatform = errors.New("platform not supported")
)

// Registry runs a set of detectors and caches their results per transport.
type Registry struct {
	cache     *resultCache
	detectors []Detector
	mu        syncutil.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{cache: newResultCache(time.Now)}
}

// Register adds d. A detector for an already registered transport replaces
// the previous one.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.detectors {
		if existing.Transport() == d.Transport() {
			r.detectors[i] = d
			return
		}
	}
	r.detectors = append(r.detectors, d)
}

func (r *Registry) selectDetectors(transports []string) []Detector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(transports) == 0 {
		return append([]Detector(nil), r.detectors...)
	}
	var out []Detector
	for _, d := range r.detectors {
		for _, t := range transports {
			if d.Transport() == t {
				out = append(out, d)
				break
			}
		}
	}
	return out
}

type detectResult struct {
	err     error
	devices []DeviceInfo
}

// Detect runs the selected detectors concurrently. Devices found by any
// detector are returned even when others fail; with no devices the first
// detector error, or ErrNoDevicesFound, is returned.
func (r *Registry) Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	detectors := r.selectDetectors(opts.Transports)
	if len(detectors) == 0 {
		return nil, ErrNoDetectors
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	results := make(chan detectResult, len(detectors))
	for _, d := range detectors {
		go func() {
			results <- r.runDetector(ctx, d, opts)
		}()
	}

	var found []DeviceInfo
	var errs []error
	for range detectors {
		select {
		case res := <-results:
			if res.err != nil {
				errs = append(errs, res.err)
				continue
			}
			found = append(found, res.devices...)
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		}
	}

	if len(found) > 0 {
		return found, nil
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, ErrNoDevicesFound
}

func (r *Registry) runDetector(ctx context.Context, d Detector, opts *Options) detectResult {
	transport := d.Transport()
	if opts.EnableCache {
		if cached, ok := r.cache.get(transport, opts.CacheTTL); ok {
			// Cached results predate these options.
			return detectResult{devices: filterDevices(cached, opts)}
		}
	}

	devices, err := d.Detect(ctx, opts)
	if err != nil && !errors.Is(err, ErrNoDevicesFound) {
		return detectResult{err: err}
	}

	if opts.EnableCache {
		if len(devices) > 0 {
			r.cache.set(transport, devices)
		} else {
			// A reader that was unplugged must not linger until the TTL.
			r.cache.clear(transport)
		}
	}
	return detectResult{devices: devices}
}

// ClearCache drops cached results for the given transports, or all of them
// when none are named.
func (r *Registry) ClearCache(transports ...string) {
	if len(transports) == 0 {
		r.cache.clearAll()
		return
	}
	for _, t := range transports {
		r.cache.clear(t)
	}
}

func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}
	var out []DeviceInfo
	for _, dev := range devices {
		if IsPathIgnored(dev.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := dev.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		out = append(out, dev)
	}
	return out
}

var defaultRegistry = NewRegistry()

// RegisterDetector adds d to the package registry.
func RegisterDetector(d Detector) {
	defaultRegistry.Register(d)
}

// DetectAll runs every detector in the package registry.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	return defaultRegistry.Detect(ctx, opts)
}

// ClearDetectionCache removes all cached detection results.
func ClearDetectionCache() {
	defaultRegistry.ClearCache()
}

// ClearDetectionCacheForTransport removes cached results for one transport.
func ClearDetectionCacheForTransport(transport string) {
	defaultRegistry.ClearCache(transport)
}

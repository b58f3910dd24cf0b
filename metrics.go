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
	"time"

	"github.com/rcrowley/go-metrics"
)

// Metric names registered per device.
const (
	MetricExchanges       = "rcs620s.link.exchanges"
	MetricTimeouts        = "rcs620s.link.timeouts"
	MetricProtocolErrors  = "rcs620s.link.protocol_errors"
	MetricTransportErrors = "rcs620s.link.transport_errors"
	MetricCancels         = "rcs620s.link.cancels"
	MetricLatency         = "rcs620s.link.latency_us"
)

const latencySampleSize = 256

// linkMetrics counts link outcomes. A histogram rather than a timer keeps the
// driver free of the meter ticker goroutine.
type linkMetrics struct {
	exchanges       metrics.Counter
	timeouts        metrics.Counter
	protocolErrors  metrics.Counter
	transportErrors metrics.Counter
	cancels         metrics.Counter
	latency         metrics.Histogram
}

func newLinkMetrics(r metrics.Registry) *linkMetrics {
	if r == nil {
		r = metrics.NewRegistry()
	}
	return &linkMetrics{
		exchanges:       metrics.GetOrRegisterCounter(MetricExchanges, r),
		timeouts:        metrics.GetOrRegisterCounter(MetricTimeouts, r),
		protocolErrors:  metrics.GetOrRegisterCounter(MetricProtocolErrors, r),
		transportErrors: metrics.GetOrRegisterCounter(MetricTransportErrors, r),
		cancels:         metrics.GetOrRegisterCounter(MetricCancels, r),
		latency: metrics.GetOrRegisterHistogram(MetricLatency, r,
			metrics.NewUniformSample(latencySampleSize)),
	}
}

func (m *linkMetrics) recordFailure(kind error) {
	switch kind {
	case ErrTimeout:
		m.timeouts.Inc(1)
	case ErrProtocol:
		m.protocolErrors.Inc(1)
	case ErrTransport:
		m.transportErrors.Inc(1)
	}
}

// Stats is a snapshot of a device's link counters.
type Stats struct {
	Exchanges       int64
	Timeouts        int64
	ProtocolErrors  int64
	TransportErrors int64
	Cancels         int64
	MeanLatency     time.Duration
	MaxLatency      time.Duration
}

func (m *linkMetrics) snapshot() Stats {
	h := m.latency.Snapshot()
	return Stats{
		Exchanges:       m.exchanges.Count(),
		Timeouts:        m.timeouts.Count(),
		ProtocolErrors:  m.protocolErrors.Count(),
		TransportErrors: m.transportErrors.Count(),
		Cancels:         m.cancels.Count(),
		MeanLatency:     time.Duration(h.Mean() * float64(time.Microsecond)),
		MaxLatency:      time.Duration(h.Max()) * time.Microsecond,
	}
}

//go:build !deadlock

// Package syncutil provides the mutex types used by the UART transport, the
// detection cache and the reader simulator. By default the standard sync types
// are used with zero overhead; build with -tags=deadlock to route them through
// github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// RWMutex wraps sync.RWMutex. Build with -tags=deadlock for deadlock detection.
//
//nolint:gocritic // Intentionally embedding sync.RWMutex to expose its interface
type RWMutex struct {
	sync.RWMutex
}

// DeadlockDetection reports whether lock-order checking is compiled in.
const DeadlockDetection = false

//go:build deadlock

// Package syncutil provides the mutex types used by the UART transport, the
// detection cache and the reader simulator. This file is compiled when building
// with -tags=deadlock and swaps in lock-order checking.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}

// DeadlockDetection reports whether lock-order checking is compiled in.
const DeadlockDetection = true

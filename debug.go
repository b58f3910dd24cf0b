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
	"fmt"
	"log/slog"
	"os"
	"time"
)

// debugEnabled controls whether debug lines reach the logger. The session
// log, when open, records every line regardless.
var debugEnabled = false

// logger receives console debug output.
var logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

func init() {
	if os.Getenv("RCS620S_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		debugEnabled = true
	}
}

// Debugf logs a formatted debug line.
func Debugf(format string, args ...any) {
	debugMessage(fmt.Sprintf(format, args...))
}

// Debugln logs its arguments as one debug line.
func Debugln(args ...any) {
	debugMessage(fmt.Sprint(args...))
}

func debugMessage(message string) {
	if sessionLogWriter != nil {
		timestamp := time.Now().Format("15:04:05.000")
		_, _ = fmt.Fprintf(sessionLogWriter, "%s DEBUG: %s\n", timestamp, message)
	}

	if debugEnabled {
		logger.Log(context.Background(), slog.LevelDebug, message)
	}
}

// SetDebugEnabled allows programmatic control of debug logging
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// SetLogger replaces the logger used for console debug output. A nil logger
// restores the default stderr text handler.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	logger = l
}

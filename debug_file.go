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
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// Session log state
var (
	sessionLogFile   *os.File
	sessionLogPath   string
	sessionLogWriter io.Writer
)

// InitSessionLog creates a session log file. An empty path picks a
// timestamped name in the current directory. Returns the path used.
func InitSessionLog(path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("rcs620s_%s.log", time.Now().Format("20060102_150405"))
	}

	logFile, err := os.Create(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return "", fmt.Errorf("failed to create session log: %w", err)
	}
	if sessionLogFile != nil {
		_ = CloseSessionLog()
	}

	sessionLogFile = logFile
	sessionLogPath = path
	sessionLogWriter = logFile

	writeSessionHeader(logFile)

	return path, nil
}

// CloseSessionLog closes the current session log file.
func CloseSessionLog() error {
	f := sessionLogFile
	if f == nil {
		return nil
	}
	_, _ = fmt.Fprintf(f, "\n%s === Session ended ===\n", time.Now().Format("15:04:05.000"))
	sessionLogFile, sessionLogPath, sessionLogWriter = nil, "", nil
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

// GetSessionLogPath returns the current session log file path.
func GetSessionLogPath() string {
	return sessionLogPath
}

// writeSessionHeader records the host and process the session runs in.
func writeSessionHeader(w io.Writer) {
	fields := [][2]string{
		{"Started", time.Now().Format(time.RFC3339)},
		{"PID", strconv.Itoa(os.Getpid())},
		{"OS", runtime.GOOS + "/" + runtime.GOARCH},
		{"Go Version", runtime.Version()},
		{"Command Line", strings.Join(os.Args, " ")},
	}
	if exe, err := os.Executable(); err == nil {
		fields = append(fields, [2]string{"Executable", exe})
	}

	const title = "=== RC-S620/S Debug Session Log ==="
	_, _ = fmt.Fprintln(w, title)
	for _, f := range fields {
		_, _ = fmt.Fprintf(w, "%s: %s\n", f[0], f[1])
	}
	_, _ = fmt.Fprintf(w, "%s\n\n", strings.Repeat("=", len(title)))
}

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

// Command rcs620s polls an RC-S620/S reader once and prints the card it finds.
//
//	rcs620s -device /dev/ttyUSB0 -mode any -ndef
//	rcs620s -mode felica -push 0102030405
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	rcs620s "github.com/ZaparooProject/go-rcs620s"
	_ "github.com/ZaparooProject/go-rcs620s/detection/uart"
	"github.com/ZaparooProject/go-rcs620s/transport/uart"
	"github.com/lmittmann/tint"
)

type config struct {
	devicePath string
	mode       string
	logFile    string
	push       []byte
	timeout    time.Duration
	systemCode uint16
	readPage   int
	ndef       bool
	debug      bool
}

var errUsage = errors.New("invalid usage")

// connectDeadline bounds detection plus the init retries.
const connectDeadline = 10 * time.Second

func parseFlags(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("rcs620s", flag.ContinueOnError)
	fs.SetOutput(stderr)

	cfg := &config{}
	var systemCode, push string
	fs.StringVar(&cfg.devicePath, "device", "", "Serial port of the reader (auto-detect if empty)")
	fs.DurationVar(&cfg.timeout, "timeout", rcs620s.DefaultTimeout, "Link timeout per exchange")
	fs.StringVar(&cfg.mode, "mode", "any", "Card to poll for: felica, a, b or any")
	fs.StringVar(&systemCode, "system-code", "FFFF", "FeliCa system code to poll for, in hex")
	fs.IntVar(&cfg.readPage, "read", -1, "Read four pages from this page of a Type A card")
	fs.BoolVar(&cfg.ndef, "ndef", false, "Read and print the NDEF message of an NTAG21x")
	fs.StringVar(&push, "push", "", "Hex encoded data to push to a mobile FeliCa device")
	fs.BoolVar(&cfg.debug, "debug", false, "Enable debug output")
	fs.StringVar(&cfg.logFile, "log-file", "", "Write a session log to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	switch cfg.mode {
	case "felica", "a", "b", "any":
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", errUsage, cfg.mode)
	}

	code, err := strconv.ParseUint(systemCode, 16, 16)
	if err != nil {
		return nil, fmt.Errorf("%w: bad system code %q", errUsage, systemCode)
	}
	cfg.systemCode = uint16(code)

	if push != "" {
		if cfg.push, err = hex.DecodeString(push); err != nil {
			return nil, fmt.Errorf("%w: push data is not hex: %w", errUsage, err)
		}
		if cfg.mode == "a" || cfg.mode == "b" {
			return nil, fmt.Errorf("%w: -push needs a FeliCa card", errUsage)
		}
	}
	if cfg.readPage > 0xFF {
		return nil, fmt.Errorf("%w: page %d out of range", errUsage, cfg.readPage)
	}
	if cfg.timeout < 0 {
		return nil, fmt.Errorf("%w: negative timeout", errUsage)
	}
	return cfg, nil
}

func setupLogging(cfg *config, stderr io.Writer) (func(), error) {
	rcs620s.SetLogger(slog.New(tint.NewHandler(stderr, &tint.Options{
		Level:      slog.LevelDebug,
		TimeFormat: "15:04:05.000",
	})))
	rcs620s.SetDebugEnabled(cfg.debug)

	if cfg.logFile == "" {
		return func() {}, nil
	}
	path, err := rcs620s.InitSessionLog(cfg.logFile)
	if err != nil {
		return nil, err
	}
	rcs620s.Debugf("session log at %s", path)
	return func() { _ = rcs620s.CloseSessionLog() }, nil
}

func connect(ctx context.Context, cfg *config) (*rcs620s.Device, error) {
	device, err := rcs620s.Connect(ctx, cfg.devicePath, connectOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RC-S620/S: %w", err)
	}
	return device, nil
}

// connectOptions carries -timeout to the device link and bounds the whole
// connection attempt separately.
func connectOptions(cfg *config) []rcs620s.ConnectOption {
	lineCfg := uart.DefaultConfig()
	opts := []rcs620s.ConnectOption{
		rcs620s.WithDeviceOptions(rcs620s.WithTimeout(cfg.timeout)),
		rcs620s.WithConnectTimeout(connectDeadline),
	}
	if cfg.devicePath == "" {
		return append(opts,
			rcs620s.WithAutoDetection(),
			rcs620s.WithTransportFromDeviceFactory(uart.NewDeviceFactory(lineCfg)))
	}
	return append(opts, rcs620s.WithTransportFactory(uart.NewFactory(lineCfg)))
}

// poll looks for a card as cfg.mode asks. In "any" mode FeliCa is tried
// first, then Type A, then Type B.
func poll(ctx context.Context, device *rcs620s.Device, cfg *config) (rcs620s.CardIdentity, error) {
	pollers := map[string]func() (rcs620s.CardIdentity, error){
		"felica": func() (rcs620s.CardIdentity, error) { return device.PollFeliCa(ctx, cfg.systemCode) },
		"a":      func() (rcs620s.CardIdentity, error) { return device.PollTypeA(ctx) },
		"b":      func() (rcs620s.CardIdentity, error) { return device.PollTypeB(ctx) },
	}
	order := []string{cfg.mode}
	if cfg.mode == "any" {
		order = []string{"felica", "a", "b"}
	}

	for _, mode := range order {
		id, err := pollers[mode]()
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, rcs620s.ErrNoCard) {
			return rcs620s.CardIdentity{}, err
		}
	}
	return rcs620s.CardIdentity{}, rcs620s.ErrNoCard
}

func run(ctx context.Context, device *rcs620s.Device, cfg *config, out io.Writer) (err error) {
	defer func() {
		if offErr := device.RFOff(context.WithoutCancel(ctx)); offErr != nil && err == nil {
			err = fmt.Errorf("failed to turn RF off: %w", offErr)
		}
		if cfg.debug {
			st := device.Stats()
			rcs620s.Debugf("link: %d exchanges, %d timeouts, %d cancels, mean %v",
				st.Exchanges, st.Timeouts, st.Cancels, st.MeanLatency)
		}
	}()

	id, err := poll(ctx, device, cfg)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Card: %s\n", id)
	if m := id.Manufacturer(); m != rcs620s.ManufacturerUnknown {
		_, _ = fmt.Fprintf(out, "Manufacturer: %s\n", m)
	}

	if cfg.readPage >= 0 {
		data, err := device.ReadPage(ctx, byte(cfg.readPage))
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Pages %d-%d: % X\n", cfg.readPage, cfg.readPage+3, data)
	}

	if cfg.ndef {
		msg, err := device.ReadNDEF(ctx)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "NDEF: %s\n", msg)
	}

	if len(cfg.push) > 0 {
		if err := device.Push(ctx, cfg.push); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Pushed %d bytes\n", len(cfg.push))
	}
	return nil
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:], os.Stdout, os.Stderr))
}

func mainWithExitCode(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	closeLog, err := setupLogging(cfg, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := connect(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = device.Close() }()

	err = run(ctx, device, cfg, stdout)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	case errors.Is(err, rcs620s.ErrNoCard):
		_, _ = fmt.Fprintln(stdout, "No card found")
		return 3
	default:
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		if cfg.debug {
			var traced *rcs620s.TraceableError
			if errors.As(err, &traced) {
				_, _ = fmt.Fprintln(stderr, traced.FormatTrace())
			}
		}
		return 1
	}
}

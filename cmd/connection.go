// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/ElwinBoots/vescstat/internal/canbus"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	// First check environment variable
	if pw := os.Getenv("VESCSTAT_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal: read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// busOptions maps the loaded configuration onto transport options.
func busOptions() (canbus.Options, error) {
	if err := cfg.ValidateBus(); err != nil {
		return canbus.Options{}, err
	}

	opts := canbus.Options{
		Kind:          cfg.Bus.Kind,
		Port:          cfg.Bus.Port,
		Baud:          cfg.Bus.Baud,
		Bitrate:       cfg.Bus.Bitrate,
		Interface:     cfg.Bus.Interface,
		URL:           cfg.Bus.URL,
		Username:      cfg.Bus.Username,
		SkipSSLVerify: cfg.Bus.NoSSLVerify,
	}
	return opts, nil
}

// OpenBus opens the configured CAN transport. For WebSocket connections with
// a username the password is asked for once per process.
func OpenBus() (canbus.Bus, string, error) {
	opts, err := busOptions()
	if err != nil {
		return nil, "", err
	}

	if opts.Kind == canbus.KindWebSocket && opts.Username != "" {
		if cachedPassword == "" {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			cachedPassword = pw
		}
		opts.Password = cachedPassword
	}

	bus, info, err := canbus.Open(opts)
	if err != nil {
		return nil, "", err
	}
	logger.Info("bus opened", zap.String("bus", info))
	return bus, info, nil
}

var cachedPassword string

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// closeOnDone closes bus once ctx is cancelled, unblocking Receive.
func closeOnDone(ctx context.Context, bus canbus.Bus) {
	go func() {
		<-ctx.Done()
		bus.Close()
	}()
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw frame log in human-readable format",
	Long: `Continuously decode and display VESC CAN frames as they arrive.

Status broadcasts are decoded into their fields, known commands sent by other
masters are shown as command echoes, and anything else is shown as a hex dump.
Frames with a truncated status payload are reported and skipped.

Supports SLCAN, SocketCAN and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signalContext()
	defer stop()
	closeOnDone(ctx, bus)

	fmt.Printf("vescstat - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	for {
		f, err := bus.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, canbus.ErrClosed) {
				logger.Info("connection closed")
				return nil
			}
			fmt.Printf("[ERROR] %v\n", err)
			continue
		}

		fmt.Print(vesc.FormatFrame(f))
	}
}

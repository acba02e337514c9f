// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var (
	frameTestTimeout int
)

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a VESC status frame",
	Long: `Wait for a decodable VESC status frame on the bus until timeout.

This command opens the configured bus and waits for any status broadcast
(STATUS through STATUS_6) with a complete payload. Other traffic and truncated
status frames are ignored. With --node, only frames from that node count.

Exit codes:
  0 - Status frame received before timeout
  1 - Timeout reached without receiving a status frame
  2 - Connection error

Useful for checking adapter wiring, bitrate and CAN status broadcast settings.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

type frameTestResult struct {
	frame   vesc.Frame
	rec     vesc.Record
	skipped int
}

// waitForStatus receives until a status record from node (or any node when
// node is config.NoNode) decodes cleanly.
func waitForStatus(bus canbus.Bus, node int) (frameTestResult, error) {
	skipped := 0
	for {
		f, err := bus.Receive()
		if err != nil {
			if errors.Is(err, canbus.ErrClosed) {
				return frameTestResult{}, err
			}
			skipped++
			continue
		}

		rec, decodeErr := vesc.DecodeFrame(f)
		if decodeErr != nil || rec == nil || (node >= 0 && int(rec.Node()) != node) {
			skipped++
			continue
		}
		return frameTestResult{frame: f, rec: rec, skipped: skipped}, nil
	}
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	bus, connInfo, err := OpenBus()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer bus.Close()

	fmt.Printf("vescstat - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for VESC status frame...\n\n")

	resultChan := make(chan frameTestResult, 1)
	errChan := make(chan error, 1)

	go func() {
		res, err := waitForStatus(bus, cfg.Node)
		if err != nil {
			errChan <- err
			return
		}
		resultChan <- res
	}()

	select {
	case res := <-resultChan:
		if res.skipped > 0 {
			fmt.Printf("(skipped %d other frames)\n", res.skipped)
		}
		fmt.Printf("SUCCESS: Received status frame\n")
		fmt.Printf("  Type: %s (%d)\n", vesc.FormatStatusType(res.rec.MsgType()), res.rec.MsgType())
		fmt.Printf("  Node: %d\n", res.rec.Node())
		fmt.Printf("  Frame: %s\n", res.frame)
		bus.Close()
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		bus.Close()
		os.Exit(2)

	case <-time.After(time.Duration(frameTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No status frame received within %d seconds\n", frameTestTimeout)
		bus.Close()
		os.Exit(1)
	}

	return nil
}

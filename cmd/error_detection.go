// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var (
	showAll       bool
	statsInterval int
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze malformed frames and implausible telemetry",
	Long: `Track frame errors and anomalous telemetry values with statistics.

This command validates each status record and detects:
  - Status frames with a truncated payload
  - Bus receive errors
  - Anomalous telemetry values (temperatures, input voltage, duty cycle,
    currents above 500 A, ADC voltages outside 0-3.6 V)
  - Statistics and trends (frame rate, error rate, per-node frame counts)

By default, only errors are displayed. Use --show-all to display valid records too.

Records are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all records (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(w io.Writer, f vesc.Frame, err error) {
	timestamp := frameTime(f).Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Fprintf(w, "  Frame: %s\n", f)
	fmt.Fprintf(w, "  >>> FRAME REJECTED <<<\n\n")
}

// printBusError prints a receive failure that produced no frame
func printBusError(w io.Writer, err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(w, "[%s] \033[1;31mBUS ERROR:\033[0m %v\n\n", timestamp, err)
}

// printValidationErrors prints the anomalies found in one record
func printValidationErrors(w io.Writer, f vesc.Frame, rec vesc.Record, errs []vesc.ValidationError) {
	timestamp := frameTime(f).Format("15:04:05.000")

	fmt.Fprintf(w, "[%s] \033[1;33mVALIDATION ERROR:\033[0m %s (%d) node=%d\n",
		timestamp, vesc.FormatStatusType(rec.MsgType()), rec.MsgType(), rec.Node())

	for i, err := range errs {
		switch err.Type {
		case vesc.AnomalyHighCurrent, vesc.AnomalyInvalidVoltage:
			fmt.Fprintf(w, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Fprintf(w, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
	}

	fmt.Fprint(w, vesc.FormatRecord(rec))
	fmt.Fprintln(w)
}

func frameTime(f vesc.Frame) time.Time {
	if f.Timestamp.IsZero() {
		return time.Now()
	}
	return f.Timestamp
}

type receiveResult struct {
	frame vesc.Frame
	err   error
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval <= 0 {
		return fmt.Errorf("invalid --stats-interval %d", statsInterval)
	}

	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signalContext()
	defer stop()
	closeOnDone(ctx, bus)

	fmt.Printf("vescstat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All records\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := vesc.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Receive in the background so the ticker fires on a quiet bus
	frames := make(chan receiveResult, 16)
	go func() {
		defer close(frames)
		for {
			f, err := bus.Receive()
			frames <- receiveResult{frame: f, err: err}
			if err != nil && errors.Is(err, canbus.ErrClosed) {
				return
			}
		}
	}()

	for {
		select {
		case r, ok := <-frames:
			if !ok {
				return nil
			}
			if r.err != nil {
				if errors.Is(r.err, canbus.ErrClosed) {
					fmt.Println()
					fmt.Print(stats.String())
					if ctx.Err() == nil {
						logger.Info("connection closed")
					}
					return nil
				}
				recordBusError(os.Stdout, stats, r.err)
				continue
			}
			processDetection(os.Stdout, stats, r.frame)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// recordBusError accounts and prints a per-frame receive failure.
func recordBusError(w io.Writer, stats *vesc.Statistics, err error) {
	stats.RecordTransportError()
	printBusError(w, err)
}

// processDetection accounts one frame and prints it to w according to
// --show-all.
func processDetection(w io.Writer, stats *vesc.Statistics, f vesc.Frame) {
	rec, decodeErr := vesc.DecodeFrame(f)
	if decodeErr != nil {
		stats.Update(f, nil, decodeErr, nil)
		printDecodeError(w, f, decodeErr)
		return
	}

	var validationErrors []vesc.ValidationError
	if rec != nil {
		validationErrors = vesc.ValidateRecord(rec)
	}
	stats.Update(f, rec, nil, validationErrors)

	switch {
	case len(validationErrors) > 0:
		printValidationErrors(w, f, rec, validationErrors)
	case showAll:
		fmt.Fprint(w, vesc.FormatFrame(f))
	}
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ElwinBoots/vescstat/internal/canbus"
	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var (
	rampMax      float64
	rampSteps    int
	rampInterval time.Duration
	rampCycles   int
)

var rampCmd = &cobra.Command{
	Use:   "ramp",
	Short: "Ramp motor current up and back down",
	Long: `Step the motor current of --node from max/steps up to --max and back down
to zero, holding each step for --interval.

Zero current is always sent when the ramp ends, fails or is interrupted
with Ctrl+C, so the motor is released.`,
	Example: `  vescstat ramp --node 31 --interface can0 --max 1 --steps 5`,
	RunE:    runRamp,
}

func init() {
	rootCmd.AddCommand(rampCmd)
	rampCmd.Flags().Float64Var(&rampMax, "max", 1.0, "Peak current in A")
	rampCmd.Flags().IntVar(&rampSteps, "steps", 5, "Steps from zero to peak")
	rampCmd.Flags().DurationVar(&rampInterval, "interval", 500*time.Millisecond, "Time per step")
	rampCmd.Flags().IntVar(&rampCycles, "cycles", 1, "Number of up/down cycles")
}

// rampProfile returns the setpoints of one cycle: steps values rising to
// peak, then falling back to zero.
func rampProfile(peak float64, steps int) []float64 {
	profile := make([]float64, 0, 2*steps)
	for i := 1; i <= steps; i++ {
		profile = append(profile, peak*float64(i)/float64(steps))
	}
	for i := steps - 1; i >= 0; i-- {
		profile = append(profile, peak*float64(i)/float64(steps))
	}
	return profile
}

// runProfile sends each setpoint as SetCurrent, paced by limiter.
func runProfile(ctx context.Context, bus canbus.Bus, node int, profile []float64, limiter *rate.Limiter) error {
	for _, amps := range profile {
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		frame, err := vesc.Encode(node, vesc.SetCurrent{Amps: amps})
		if err != nil {
			return err
		}
		if err := bus.Send(frame); err != nil {
			return fmt.Errorf("send current %.3f A: %w", amps, err)
		}
		logger.Debug("setpoint", zap.Int("node", node), zap.Float64("amps", amps))
		fmt.Printf("node %d: %6.3f A\n", node, amps)
	}
	return nil
}

func runRamp(cmd *cobra.Command, args []string) error {
	node, err := cfg.RequireNode()
	if err != nil {
		return err
	}
	if rampSteps <= 0 || rampInterval <= 0 || rampCycles <= 0 {
		return fmt.Errorf("--steps, --interval and --cycles must be positive")
	}
	if math.IsNaN(rampMax) || math.Abs(rampMax) > maxSetpointAmps {
		return fmt.Errorf("--max must be between %.0f and %.0f A", -maxSetpointAmps, maxSetpointAmps)
	}

	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("vescstat - Current Ramp\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Node %d: peak %.3f A, %d steps, %s per step\n\n", node, rampMax, rampSteps, rampInterval)

	// Always release the motor
	defer func() {
		frame, err := vesc.Encode(node, vesc.SetCurrent{Amps: 0})
		if err == nil {
			err = bus.Send(frame)
		}
		if err != nil {
			logger.Error("failed to release motor", zap.Int("node", node), zap.Error(err))
			return
		}
		fmt.Printf("node %d: released (0 A)\n", node)
	}()

	limiter := rate.NewLimiter(rate.Every(rampInterval), 1)
	profile := rampProfile(rampMax, rampSteps)
	for i := 0; i < rampCycles; i++ {
		err := runProfile(ctx, bus, node, profile, limiter)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				fmt.Printf("\ninterrupted\n")
				return nil
			}
			return err
		}
	}

	// Hold the last setpoint for one interval
	if err := limiter.Wait(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

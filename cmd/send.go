// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ElwinBoots/vescstat/pkg/vesc"
)

var (
	sendVelocity float64
	sendStore    bool
	sendDryRun   bool
)

var sendCmd = &cobra.Command{
	Use:   "send <command> <value>",
	Short: "Send one command to a VESC node",
	Long: `Encode a single command for the node given with --node and send it.

Commands:
  current          motor current in A (e.g. 2.5)
  rpm              electrical RPM
  position         position in degrees (integer encoding)
  kp, ki, kd       position PID gains
  position_float   position in degrees, with --velocity in deg/s
  velocity         profile velocity limit
  acceleration     profile acceleration limit
  deceleration     profile deceleration limit
  stored_position  stored position in degrees, with --store to persist it

--dry-run prints the encoded frame without opening the bus.`,
	Example: `  vescstat send current 2.5 --node 31 --interface can0
  vescstat send position_float 90 --velocity 180 --node 67 --dry-run`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: vesc.CommandNames(),
	RunE:      runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Float64Var(&sendVelocity, "velocity", 0, "Velocity for position_float (0 omits it)")
	sendCmd.Flags().BoolVar(&sendStore, "store", false, "Persist the position (stored_position only)")
	sendCmd.Flags().BoolVar(&sendDryRun, "dry-run", false, "Print the frame instead of sending it")
}

// buildCommand parses the command name and value arguments.
func buildCommand(name, value string) (vesc.Command, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid value %q: %w", value, err)
	}

	cmd, err := vesc.NewCommand(strings.ToLower(name), vesc.CommandArgs{
		Value:    v,
		Velocity: sendVelocity,
		Store:    sendStore,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (use one of: %s)", err, strings.Join(vesc.CommandNames(), ", "))
	}
	return cmd, nil
}

func runSend(cmd *cobra.Command, args []string) error {
	node, err := cfg.RequireNode()
	if err != nil {
		return err
	}

	command, err := buildCommand(args[0], args[1])
	if err != nil {
		return err
	}

	frame, err := vesc.Encode(node, command)
	if err != nil {
		return err
	}

	if sendDryRun {
		fmt.Printf("%s -> node %d\n", vesc.FormatCommand(command), node)
		fmt.Printf("  Frame: %s\n", frame)
		return nil
	}

	bus, connInfo, err := OpenBus()
	if err != nil {
		return err
	}
	defer bus.Close()

	if err := bus.Send(frame); err != nil {
		return fmt.Errorf("send %s: %w", vesc.FormatCommand(command), err)
	}

	logger.Info("command sent",
		zap.String("bus", connInfo),
		zap.Int("node", node),
		zap.String("command", vesc.FormatCommand(command)),
		zap.Stringer("frame", frame))
	fmt.Printf("Sent %s to node %d (%s)\n", vesc.FormatCommand(command), node, frame)
	return nil
}

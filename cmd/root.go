// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ElwinBoots/vescstat/internal/config"
	"github.com/ElwinBoots/vescstat/internal/logging"
)

var (
	cfgFile string
	v       = config.New()

	// Populated by the persistent pre-run before any command runs
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "vescstat",
	Short: "VESC CAN command and telemetry toolkit",
	Long: `vescstat - A CLI tool for commanding VESC motor controllers and decoding
their CAN status broadcasts.

Provides commands for raw frame logging, a live telemetry monitor, error
detection, sending setpoints, a Prometheus exporter and an MQTT bridge.

Connection modes:
  SLCAN:     --port /dev/ttyACM0 [--baud 115200] [--bitrate 500000]
  SocketCAN: --interface can0
  WebSocket: --url ws://host/path [--username user]

Settings may also come from vescstat.yaml or VESCSTAT_* environment
variables (e.g. VESCSTAT_BUS_INTERFACE=can1).

For WebSocket authentication, the password is read from the VESCSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:           "0.3.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default ./vescstat.yaml)")

	// Bus selection
	flags.String("bus", "", "Bus kind: slcan, socketcan or websocket (inferred when empty)")
	flags.StringP("port", "p", "", "SLCAN serial adapter device")
	flags.IntP("baud", "b", 115200, "Baud rate (slcan only)")
	flags.Int("bitrate", 500000, "CAN bitrate in bit/s (slcan only)")
	flags.StringP("interface", "i", "", "SocketCAN interface (default can0)")

	// WebSocket connection flags
	flags.StringP("url", "u", "", "WebSocket URL (ws:// or wss://)")
	flags.String("username", "", "Username for HTTP Basic auth")
	flags.Bool("no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	flags.IntP("node", "n", config.NoNode, "Target VESC node id (0-255)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.String("log-format", "console", "Log format: console or json")

	for key, name := range map[string]string{
		"bus.kind":          "bus",
		"bus.port":          "port",
		"bus.baud":          "baud",
		"bus.bitrate":       "bitrate",
		"bus.interface":     "interface",
		"bus.url":           "url",
		"bus.username":      "username",
		"bus.no_ssl_verify": "no-ssl-verify",
		"node":              "node",
		"log.level":         "log-level",
		"log.format":        "log-format",
	} {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}

	l, err := logging.New(c.Log)
	if err != nil {
		return err
	}

	cfg = c
	logger = l
	return nil
}

// bindFlag binds a command-local flag to a config key.
func bindFlag(cmd *cobra.Command, key, name string) {
	if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
		panic(err)
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

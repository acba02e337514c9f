// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads vescstat settings from an optional YAML file,
// VESCSTAT_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. VESCSTAT_BUS_PORT.
const EnvPrefix = "VESCSTAT"

// NoNode marks an unset target node.
const NoNode = -1

// BusConfig selects and configures the CAN transport
type BusConfig struct {
	Kind        string `mapstructure:"kind"`
	Port        string `mapstructure:"port"`
	Baud        int    `mapstructure:"baud"`
	Bitrate     int    `mapstructure:"bitrate"`
	Interface   string `mapstructure:"interface"`
	URL         string `mapstructure:"url"`
	Username    string `mapstructure:"username"`
	NoSSLVerify bool   `mapstructure:"no_ssl_verify"`
}

// LogConfig configures the zap logger
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// MetricsConfig configures the Prometheus exporter
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
	Path string `mapstructure:"path"`
}

// MQTTConfig configures the MQTT bridge
type MQTTConfig struct {
	URL      string `mapstructure:"url"`
	ClientID string `mapstructure:"client_id"`
	Prefix   string `mapstructure:"prefix"`
	Format   string `mapstructure:"format"`
	QoS      int    `mapstructure:"qos"`
}

// Config is the top-level configuration
type Config struct {
	Bus     BusConfig     `mapstructure:"bus"`
	Node    int           `mapstructure:"node"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
}

// New returns a viper instance with defaults and environment overrides set.
// Callers bind their flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bus.kind", "")
	v.SetDefault("bus.port", "")
	v.SetDefault("bus.baud", 115200)
	v.SetDefault("bus.bitrate", 500000)
	v.SetDefault("bus.interface", "")
	v.SetDefault("bus.url", "")
	v.SetDefault("bus.username", "")
	v.SetDefault("bus.no_ssl_verify", false)

	v.SetDefault("node", NoNode)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	v.SetDefault("metrics.addr", ":9101")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("mqtt.url", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "")
	v.SetDefault("mqtt.prefix", "vesc")
	v.SetDefault("mqtt.format", "json")
	v.SetDefault("mqtt.qos", 0)
}

// Load reads the config file (path, or vescstat.yaml in the working
// directory or $HOME/.config/vescstat) and unmarshals the merged settings.
// A missing default file is not an error.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vescstat")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "vescstat"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Bus.Kind = cfg.Bus.ResolveKind()
	if cfg.Bus.Kind == "socketcan" && cfg.Bus.Interface == "" {
		cfg.Bus.Interface = "can0"
	}
	return &cfg, nil
}

// ResolveKind returns the configured bus kind, or infers it from the
// connection field that is set. A URL wins over a serial port.
func (b BusConfig) ResolveKind() string {
	if b.Kind != "" {
		return strings.ToLower(b.Kind)
	}
	switch {
	case b.URL != "":
		return "websocket"
	case b.Port != "":
		return "slcan"
	case b.Interface != "":
		return "socketcan"
	}
	return ""
}

// Validate checks ranges and the fields each bus kind requires.
func (c *Config) Validate() error {
	if c.Node < NoNode || c.Node > 255 {
		return fmt.Errorf("node %d out of range (0-255)", c.Node)
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log format %q (use console or json)", c.Log.Format)
	}

	switch c.MQTT.Format {
	case "json", "cbor":
	default:
		return fmt.Errorf("unknown mqtt format %q (use json or cbor)", c.MQTT.Format)
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt qos %d out of range (0-2)", c.MQTT.QoS)
	}

	return nil
}

// ValidateBus checks that a usable transport is configured. Commands that
// open the bus call it in addition to Validate.
func (c *Config) ValidateBus() error {
	switch c.Bus.Kind {
	case "slcan":
		if c.Bus.Port == "" {
			return fmt.Errorf("slcan bus requires --port")
		}
		if c.Bus.Baud <= 0 {
			return fmt.Errorf("invalid baud rate %d", c.Bus.Baud)
		}
		if c.Bus.Bitrate <= 0 {
			return fmt.Errorf("invalid CAN bitrate %d", c.Bus.Bitrate)
		}
	case "socketcan":
		if c.Bus.Interface == "" {
			return fmt.Errorf("socketcan bus requires --interface")
		}
	case "websocket":
		if c.Bus.URL == "" {
			return fmt.Errorf("websocket bus requires --url")
		}
	case "":
		return fmt.Errorf("one of --port, --interface or --url must be specified")
	default:
		return fmt.Errorf("unknown bus kind %q (use slcan, socketcan or websocket)", c.Bus.Kind)
	}
	return nil
}

// RequireNode returns the target node or an error if none was given.
func (c *Config) RequireNode() (int, error) {
	if c.Node == NoNode {
		return 0, fmt.Errorf("a target node is required (--node)")
	}
	return c.Node, nil
}

// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vescstat.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, NoNode, cfg.Node)
	assert.Equal(t, 115200, cfg.Bus.Baud)
	assert.Equal(t, 500000, cfg.Bus.Bitrate)
	assert.Equal(t, "", cfg.Bus.Kind)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "vesc", cfg.MQTT.Prefix)
	assert.NoError(t, cfg.Validate())
	assert.Error(t, cfg.ValidateBus())

	_, err = cfg.RequireNode()
	assert.Error(t, err)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
bus:
  interface: vcan0
node: 67
log:
  level: debug
  format: json
mqtt:
  format: cbor
  qos: 1
`)

	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "socketcan", cfg.Bus.Kind)
	assert.Equal(t, "vcan0", cfg.Bus.Interface)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1, cfg.MQTT.QoS)
	assert.NoError(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateBus())

	node, err := cfg.RequireNode()
	require.NoError(t, err)
	assert.Equal(t, 67, node)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("VESCSTAT_BUS_PORT", "/dev/ttyACM0")
	t.Setenv("VESCSTAT_NODE", "31")
	t.Setenv("VESCSTAT_MQTT_PREFIX", "lab")

	path := writeConfig(t, "bus:\n  port: /dev/ttyUSB9\n")
	cfg, err := Load(New(), path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Bus.Port)
	assert.Equal(t, "slcan", cfg.Bus.Kind)
	assert.Equal(t, 31, cfg.Node)
	assert.Equal(t, "lab", cfg.MQTT.Prefix)
}

func TestLoad_SocketCANDefaultInterface(t *testing.T) {
	cfg, err := Load(New(), writeConfig(t, "bus:\n  kind: SocketCAN\n"))
	require.NoError(t, err)
	assert.Equal(t, "socketcan", cfg.Bus.Kind)
	assert.Equal(t, "can0", cfg.Bus.Interface)
}

func TestResolveKind(t *testing.T) {
	tests := []struct {
		name string
		bus  BusConfig
		want string
	}{
		{"explicit", BusConfig{Kind: "WebSocket", Port: "/dev/ttyACM0"}, "websocket"},
		{"url wins over port", BusConfig{URL: "ws://host/can", Port: "/dev/ttyACM0"}, "websocket"},
		{"port", BusConfig{Port: "/dev/ttyACM0"}, "slcan"},
		{"interface", BusConfig{Interface: "can1"}, "socketcan"},
		{"nothing", BusConfig{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.bus.ResolveKind())
		})
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Bus:  BusConfig{Kind: "slcan", Port: "/dev/ttyACM0", Baud: 115200, Bitrate: 500000},
			Node: 31,
			Log:  LogConfig{Level: "info", Format: "console"},
			MQTT: MQTTConfig{Format: "json"},
		}
	}

	tests := []struct {
		name   string
		modify func(*Config)
		bus    bool
	}{
		{"node too large", func(c *Config) { c.Node = 256 }, false},
		{"node negative", func(c *Config) { c.Node = -2 }, false},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, false},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, false},
		{"mqtt format", func(c *Config) { c.MQTT.Format = "yaml" }, false},
		{"mqtt qos", func(c *Config) { c.MQTT.QoS = 3 }, false},
		{"slcan without port", func(c *Config) { c.Bus.Port = "" }, true},
		{"slcan bad baud", func(c *Config) { c.Bus.Baud = 0 }, true},
		{"slcan bad bitrate", func(c *Config) { c.Bus.Bitrate = -1 }, true},
		{"socketcan without interface", func(c *Config) { c.Bus = BusConfig{Kind: "socketcan"} }, true},
		{"websocket without url", func(c *Config) { c.Bus = BusConfig{Kind: "websocket"} }, true},
		{"unknown kind", func(c *Config) { c.Bus.Kind = "pcan" }, true},
	}

	base := valid()
	require.NoError(t, base.Validate())
	require.NoError(t, base.ValidateBus())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(&cfg)
			if tt.bus {
				assert.NoError(t, cfg.Validate())
				assert.Error(t, cfg.ValidateBus())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

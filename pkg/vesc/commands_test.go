// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"encoding/hex"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestEncode_Layouts(t *testing.T) {
	tests := []struct {
		name    string
		node    int
		cmd     Command
		wantID  uint32
		payload string
	}{
		{"current 2.5A", 31, SetCurrent{Amps: 2.5}, 287, "000009c4"},
		{"current negative", 31, SetCurrent{Amps: -1.5}, 287, "fffffa24"},
		{"current truncates toward zero", 1, SetCurrent{Amps: 0.0015}, 1 | 1<<8, "00000001"},
		{"current negative truncates toward zero", 1, SetCurrent{Amps: -0.0019}, 1 | 1<<8, "ffffffff"},
		{"rpm", 31, SetRPM{RPM: 1000}, 31 | 3<<8, "000003e8"},
		{"rpm fraction truncated", 31, SetRPM{RPM: 1000.9}, 31 | 3<<8, "000003e8"},
		{"rpm negative fraction truncated", 31, SetRPM{RPM: -1500.9}, 31 | 3<<8, "fffffa24"},
		{"position integer", 31, SetPosition{Position: 360}, 31 | 4<<8, "15752a00"},
		{"position integer fraction", 31, SetPosition{Position: 2.5}, 31 | 4<<8, "002625a0"},
		{"kp", 31, SetKp{Gain: 0.05}, 31 | 64<<8, "3d4ccccd"},
		{"ki", 31, SetKi{Gain: 0.0391}, 31 | 65<<8, "3d202752"},
		{"kd", 31, SetKd{Gain: 0.0031}, 31 | 66<<8, "3b4b295f"},
		{"position float without velocity", 67, SetPositionFloat{Position: 5}, 67 | 68<<8, "40a00000"},
		{"position float zero velocity", 67, SetPositionFloat{Position: 5, Velocity: 0}, 67 | 68<<8, "40a00000"},
		{"position float negative velocity", 67, SetPositionFloat{Position: 5, Velocity: -2}, 67 | 68<<8, "40a00000"},
		{"position float with velocity", 67, SetPositionFloat{Position: 5, Velocity: 2}, 67 | 68<<8, "40a0000040000000"},
		{"velocity", 67, SetVelocity{Velocity: 70}, 67 | 69<<8, "428c0000"},
		{"acceleration", 67, SetAcceleration{Acceleration: 200}, 67 | 70<<8, "43480000"},
		{"deceleration", 67, SetDeceleration{Deceleration: 50}, 67 | 71<<8, "42480000"},
		{"stored position no store", 67, SetStoredPosition{Position: 0}, 67 | 72<<8, "0000000000"},
		{"stored position store", 67, SetStoredPosition{Position: 90, Store: true}, 67 | 72<<8, "42b4000001"},
		{"node zero", 0, SetCurrent{Amps: 0}, 1 << 8, "00000000"},
		{"node 255", 255, SetCurrent{Amps: 0}, 255 | 1<<8, "00000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Encode(tt.node, tt.cmd)
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, f.ID)
			assert.True(t, f.Extended)
			assert.Equal(t, mustHex(t, tt.payload), f.Data)
			assert.NoError(t, f.Validate())
		})
	}
}

func TestEncode_RangeErrors(t *testing.T) {
	tests := []struct {
		name  string
		node  int
		cmd   Command
		field string
	}{
		{"node negative", -1, SetCurrent{Amps: 1}, "node"},
		{"node too large", 256, SetKp{Gain: 1}, "node"},
		{"current overflow", 1, SetCurrent{Amps: 3e6}, "current"},
		{"current underflow", 1, SetCurrent{Amps: -3e6}, "current"},
		{"current NaN", 1, SetCurrent{Amps: math.NaN()}, "current"},
		{"rpm infinite", 1, SetRPM{RPM: math.Inf(1)}, "rpm"},
		{"position overflow", 1, SetPosition{Position: 2200}, "position"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.node, tt.cmd)
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrRange))

			var rangeErr *RangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, tt.field, rangeErr.Field)
		})
	}
}

func TestEncode_Int32Limits(t *testing.T) {
	f, err := Encode(1, SetRPM{RPM: math.MaxInt32})
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, "7fffffff"), f.Data)

	f, err = Encode(1, SetRPM{RPM: math.MinInt32})
	require.NoError(t, err)
	assert.Equal(t, mustHex(t, "80000000"), f.Data)
}

func TestEncode_NilCommand(t *testing.T) {
	_, err := Encode(1, nil)
	assert.Error(t, err)
}

func TestEncode_PayloadLengths(t *testing.T) {
	cmds := []Command{
		SetCurrent{}, SetRPM{}, SetPosition{}, SetKp{}, SetKi{}, SetKd{},
		SetVelocity{}, SetAcceleration{}, SetDeceleration{},
	}
	for _, c := range cmds {
		f, err := Encode(10, c)
		require.NoError(t, err)
		assert.Len(t, f.Data, 4, FormatCommandType(c.MsgType()))
		assert.True(t, IsCommandType(c.MsgType()))
		assert.False(t, IsStatusType(c.MsgType()))
	}

	f, err := Encode(10, SetStoredPosition{})
	require.NoError(t, err)
	assert.Len(t, f.Data, 5)
}

func TestDecodeCommand_RoundTrip(t *testing.T) {
	cmds := []Command{
		SetCurrent{Amps: 2.5},
		SetCurrent{Amps: -12.25},
		SetRPM{RPM: -4500},
		SetPosition{Position: 180.5},
		SetKp{Gain: 0.05},
		SetKi{Gain: 0.0391},
		SetKd{Gain: 0.0031},
		SetPositionFloat{Position: 540},
		SetPositionFloat{Position: -12.5, Velocity: 1.5},
		SetVelocity{Velocity: 70},
		SetAcceleration{Acceleration: 200},
		SetDeceleration{Deceleration: 50},
		SetStoredPosition{Position: 90, Store: true},
		SetStoredPosition{Position: 0},
	}

	for _, c := range cmds {
		t.Run(FormatCommand(c), func(t *testing.T) {
			f, err := Encode(67, c)
			require.NoError(t, err)

			decoded, err := DecodeCommand(f.ID, f.Data)
			require.NoError(t, err)
			require.NotNil(t, decoded)
			assert.Equal(t, c.MsgType(), decoded.MsgType())

			switch want := c.(type) {
			case SetCurrent:
				assert.InDelta(t, want.Amps, decoded.(SetCurrent).Amps, 0.001)
			case SetPosition:
				assert.InDelta(t, want.Position, decoded.(SetPosition).Position, 1e-6)
			default:
				assert.Equal(t, c, decoded)
			}
		})
	}
}

func TestDecodeCommand_Unknown(t *testing.T) {
	cmd, err := DecodeCommand(uint32(MsgStatus)<<8|1, make([]byte, 8))
	assert.NoError(t, err)
	assert.Nil(t, cmd)

	cmd, err = DecodeCommand(uint32(2)<<8|1, make([]byte, 8))
	assert.NoError(t, err)
	assert.Nil(t, cmd)
}

func TestDecodeCommand_Truncated(t *testing.T) {
	_, err := DecodeCommand(uint32(CmdSetStoredPosition)<<8|1, make([]byte, 4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormat))

	var formatErr *FormatError
	require.True(t, errors.As(err, &formatErr))
	assert.True(t, formatErr.Command)
	assert.Equal(t, 5, formatErr.Want)
	assert.Contains(t, err.Error(), "SET_STORED_POS")

	_, err = DecodeCommand(uint32(CmdSetCurrent)<<8|1, []byte{1, 2})
	assert.True(t, errors.Is(err, ErrFormat))
}

// Scaling round trip: the decoded value stays within one quantization step.
func TestScaling_RoundTrip(t *testing.T) {
	currents := []float64{-60, -12.3456, -0.0015, 0, 0.5, 2.5, 33.3335, 120}
	for _, amps := range currents {
		f, err := Encode(1, SetCurrent{Amps: amps})
		require.NoError(t, err)
		c, err := DecodeCommand(f.ID, f.Data)
		require.NoError(t, err)
		assert.InDelta(t, amps, c.(SetCurrent).Amps, 1.0/currentScale, "current %v", amps)
	}

	positions := []float64{-720, -0.5, 0, 1.0000015, 90, 359.9999995, 2000}
	for _, pos := range positions {
		f, err := Encode(1, SetPosition{Position: pos})
		require.NoError(t, err)
		c, err := DecodeCommand(f.ID, f.Data)
		require.NoError(t, err)
		assert.InDelta(t, pos, c.(SetPosition).Position, 1.0/positionScale, "position %v", pos)
	}

	rpms := []float64{-50000, -1.5, 0, 999.99, 50000}
	for _, rpm := range rpms {
		f, err := Encode(1, SetRPM{RPM: rpm})
		require.NoError(t, err)
		c, err := DecodeCommand(f.ID, f.Data)
		require.NoError(t, err)
		assert.Equal(t, math.Trunc(rpm), c.(SetRPM).RPM)
	}
}

func TestNewCommand(t *testing.T) {
	names := CommandNames()
	require.Len(t, names, 11)
	assert.Equal(t, "current", names[0])
	assert.Equal(t, "stored_position", names[len(names)-1])

	for _, name := range names {
		cmd, err := NewCommand(name, CommandArgs{Value: 1})
		require.NoError(t, err, name)
		assert.True(t, IsCommandType(cmd.MsgType()), name)
	}

	cmd, err := NewCommand("position_float", CommandArgs{Value: 5, Velocity: 2})
	require.NoError(t, err)
	assert.Equal(t, SetPositionFloat{Position: 5, Velocity: 2}, cmd)

	cmd, err = NewCommand("stored_position", CommandArgs{Value: 90, Store: true})
	require.NoError(t, err)
	assert.Equal(t, SetStoredPosition{Position: 90, Store: true}, cmd)

	_, err = NewCommand("brake", CommandArgs{})
	assert.Error(t, err)
}

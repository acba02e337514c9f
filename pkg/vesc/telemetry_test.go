// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusID(node, msgType uint8) uint32 {
	return uint32(node) | uint32(msgType)<<TypeShift
}

func TestDecode_Status(t *testing.T) {
	rec, err := Decode(statusID(31, MsgStatus), mustHex(t, "00003a98006403e8"))
	require.NoError(t, err)

	s, ok := rec.(Status)
	require.True(t, ok, "got %T", rec)
	assert.Equal(t, uint8(31), s.Node())
	assert.Equal(t, uint8(MsgStatus), s.MsgType())
	assert.Equal(t, int32(15000), s.ERPM)
	assert.InDelta(t, 10.0, s.Current, 1e-9)
	assert.InDelta(t, 1.0, s.DutyCycle, 1e-9)
}

func TestDecode_AllLayouts(t *testing.T) {
	tests := []struct {
		name    string
		msgType uint8
		payload string
		want    Record
	}{
		{
			name:    "status negative",
			msgType: MsgStatus,
			payload: "ffffec78ff9cfe0c",
			want:    Status{NodeID: 5, ERPM: -5000, Current: -10.0, DutyCycle: -0.5},
		},
		{
			name:    "status 2",
			msgType: MsgStatus2,
			payload: "0001e240ffffb1e0",
			want:    Status2{NodeID: 5, AmpHours: 12.3456, AmpHoursCharged: -2.0},
		},
		{
			name:    "status 3",
			msgType: MsgStatus3,
			payload: "0001e240ffffb1e0",
			want:    Status3{NodeID: 5, WattHours: 12.3456, WattHoursCharged: -2.0},
		},
		{
			name:    "status 4",
			msgType: MsgStatus4,
			payload: "01c4ff97ffe900fa",
			want:    Status4{NodeID: 5, TempFET: 45.2, TempMotor: -10.5, CurrentIn: -2.3, PIDPos: 5.0},
		},
		{
			name:    "status 5",
			msgType: MsgStatus5,
			payload: "0000177001e6",
			want:    Status5{NodeID: 5, Tachometer: 1000, VoltageIn: 48.6},
		},
		{
			name:    "status 5 with padding",
			msgType: MsgStatus5,
			payload: "0000177001e60000",
			want:    Status5{NodeID: 5, Tachometer: 1000, VoltageIn: 48.6},
		},
		{
			name:    "status 6",
			msgType: MsgStatus6,
			payload: "067200000ce4fe0c",
			want:    Status6{NodeID: 5, ADC1: 1.65, ADC2: 0, ADC3: 3.3, PPM: -0.5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := Decode(statusID(5, tt.msgType), mustHex(t, tt.payload))
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, tt.want.MsgType(), rec.MsgType())
			assert.Equal(t, uint8(5), rec.Node())

			got, want := Fields(rec), Fields(tt.want)
			require.Len(t, got, len(want))
			for i := range want {
				assert.Equal(t, want[i].Key, got[i].Key)
				assert.InDelta(t, want[i].Value, got[i].Value, 1e-9, want[i].Key)
			}
		})
	}
}

func TestDecode_Truncated(t *testing.T) {
	tests := []struct {
		msgType uint8
		want    int
	}{
		{MsgStatus, 8},
		{MsgStatus2, 8},
		{MsgStatus3, 8},
		{MsgStatus4, 8},
		{MsgStatus5, 6},
		{MsgStatus6, 8},
	}

	for _, tt := range tests {
		t.Run(FormatStatusType(tt.msgType), func(t *testing.T) {
			for n := 0; n < tt.want; n++ {
				rec, err := Decode(statusID(1, tt.msgType), make([]byte, n))
				require.Error(t, err, "length %d", n)
				assert.Nil(t, rec)
				assert.True(t, errors.Is(err, ErrFormat))

				var formatErr *FormatError
				require.True(t, errors.As(err, &formatErr))
				assert.Equal(t, tt.msgType, formatErr.Type)
				assert.Equal(t, n, formatErr.Got)
				assert.Equal(t, tt.want, formatErr.Want)
				assert.False(t, formatErr.Command)
			}

			rec, err := Decode(statusID(1, tt.msgType), make([]byte, tt.want))
			assert.NoError(t, err)
			assert.NotNil(t, rec)
		})
	}
}

func TestDecode_Unrecognized(t *testing.T) {
	for msgType := 0; msgType <= MaxMsgType; msgType++ {
		if IsStatusType(uint8(msgType)) {
			continue
		}
		rec, err := Decode(statusID(1, uint8(msgType)), make([]byte, 8))
		require.NoError(t, err, "type %d", msgType)
		require.Nil(t, rec, "type %d", msgType)

		// short payloads on unmapped types are not errors either
		rec, err = Decode(statusID(1, uint8(msgType)), nil)
		require.NoError(t, err)
		require.Nil(t, rec)
	}
}

func TestDecode_CommandEchoIsNotStatus(t *testing.T) {
	f, err := Encode(31, SetCurrent{Amps: 2.5})
	require.NoError(t, err)

	rec, err := DecodeFrame(f)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestDecode_HighBitsTolerated(t *testing.T) {
	rec, err := Decode(0x1F000000|statusID(7, MsgStatus), mustHex(t, "00003a98006403e8"))
	require.NoError(t, err)
	assert.Equal(t, uint8(7), rec.Node())
}

func TestRecordFromFields(t *testing.T) {
	orig := Status4{NodeID: 9, TempFET: 40.1, TempMotor: 55, CurrentIn: 3.2, PIDPos: 1.5}
	var values []float64
	for _, f := range Fields(orig) {
		values = append(values, f.Value)
	}
	rec, err := RecordFromFields(9, MsgStatus4, values)
	require.NoError(t, err)
	assert.Equal(t, orig, rec)

	rec, err = RecordFromFields(9, MsgStatus4, values[:2])
	assert.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = RecordFromFields(9, CmdSetCurrent, values)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRecordFromFields_OutOfRange(t *testing.T) {
	rec, err := RecordFromFields(1, MsgStatus, []float64{1e12, 0, 0})
	assert.Nil(t, rec)
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "erpm", rangeErr.Field)

	rec, err = RecordFromFields(1, MsgStatus, []float64{-1500.9, 2, 0.5})
	require.NoError(t, err)
	assert.Equal(t, int32(-1500), rec.(Status).ERPM)

	_, err = RecordFromFields(1, MsgStatus4, []float64{20, math.Inf(1), 0, 0})
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, "temp_motor", rangeErr.Field)

	_, err = RecordFromFields(1, MsgStatus6, []float64{0, 0, 0, math.NaN()})
	assert.ErrorIs(t, err, ErrRange)
}

func TestFieldMap(t *testing.T) {
	m := FieldMap(Status5{NodeID: 3, Tachometer: 10, VoltageIn: 24.5})
	assert.Equal(t, uint8(3), m["node"])
	assert.Equal(t, "status_5", m["type"])
	assert.Equal(t, 24.5, m["voltage_in"])
}

func TestDecodeFrame_StandardFrameIgnored(t *testing.T) {
	// 0x91F is STATUS from node 31 only as an extended identifier
	f := Frame{ID: 0x91F, Data: mustHex(t, "00003a98006403e8")}
	rec, err := DecodeFrame(f)
	assert.NoError(t, err)
	assert.Nil(t, rec)

	f = Frame{ID: 0x91F, Data: []byte{1}}
	rec, err = DecodeFrame(f)
	assert.NoError(t, err)
	assert.Nil(t, rec)
}

func TestFrame_IsCommand(t *testing.T) {
	echo, err := Encode(31, SetCurrent{Amps: 1})
	require.NoError(t, err)
	assert.True(t, echo.IsCommand())

	echo.Extended = false
	assert.False(t, echo.IsCommand())
	assert.False(t, Frame{ID: statusID(31, MsgStatus), Extended: true}.IsCommand())
}

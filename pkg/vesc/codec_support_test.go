// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================
// Formatter
// ============================================================

func TestFormatFrame_Status(t *testing.T) {
	f := Frame{ID: statusID(31, MsgStatus), Data: mustHex(t, "00003a98006403e8"), Extended: true}
	out := FormatFrame(f)
	assert.True(t, strings.HasPrefix(out, "STATUS (9) node=31\n"), out)
	assert.Contains(t, out, "erpm:")
	assert.Contains(t, out, "15000 rpm")
	assert.Contains(t, out, "10 A")
}

func TestFormatFrame_Timestamp(t *testing.T) {
	ts := time.Date(2025, 1, 2, 13, 4, 5, 250*int(time.Millisecond), time.UTC)
	f := Frame{ID: statusID(1, MsgStatus5), Data: mustHex(t, "0000177001e6"), Extended: true, Timestamp: ts}
	out := FormatFrame(f)
	assert.True(t, strings.HasPrefix(out, "[13:04:05.250] STATUS_5 (27) node=1"), out)
	assert.Contains(t, out, "48.6 V")
}

func TestFormatFrame_CommandEcho(t *testing.T) {
	f, err := Encode(31, SetCurrent{Amps: 2.5})
	require.NoError(t, err)
	assert.Equal(t, "SET_CURRENT 2.500 A node=31 (command echo)\n", FormatFrame(f))
}

func TestFormatFrame_StandardFrame(t *testing.T) {
	// CANopen TPDO1 of node 1 decomposes to SetCurrent when read as 29-bit
	f := Frame{ID: 0x181, Data: []byte{0x00, 0x00, 0x09, 0xC4}}
	assert.Equal(t, "STANDARD 0x181 len=4\n  Payload: 00 00 09 C4 \n", FormatFrame(f))
}

func TestFormatFrame_Unknown(t *testing.T) {
	f := Frame{ID: statusID(4, 2), Data: []byte{0xDE, 0xAD}, Extended: true}
	assert.Equal(t, "UNKNOWN (2) node=4 len=2\n  Payload: DE AD \n", FormatFrame(f))

	f.Data = nil
	assert.Contains(t, FormatFrame(f), "(no payload)")
}

func TestFormatFrame_DecodeError(t *testing.T) {
	f := Frame{ID: statusID(4, MsgStatus4), Data: []byte{1, 2, 3}, Extended: true}
	out := FormatFrame(f)
	assert.Contains(t, out, "error:")
	assert.Contains(t, out, "STATUS_4")
}

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		cmd  Command
		want string
	}{
		{SetRPM{RPM: 1500}, "SET_RPM 1500"},
		{SetPosition{Position: 90}, "SET_POS 90.000000"},
		{SetKp{Gain: 0.05}, "SET_KP 0.05"},
		{SetPositionFloat{Position: 5}, "SET_POS_FLOAT 5"},
		{SetPositionFloat{Position: 5, Velocity: 2}, "SET_POS_FLOAT 5 vel=2"},
		{SetStoredPosition{Position: 90, Store: true}, "SET_STORED_POS 90 store=true"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatCommand(tt.cmd))
		})
	}
}

func TestFormatTypeNames(t *testing.T) {
	assert.Equal(t, "STATUS_6", FormatStatusType(MsgStatus6))
	assert.Equal(t, "UNKNOWN", FormatStatusType(CmdSetCurrent))
	assert.Equal(t, "SET_DECELERATION", FormatCommandType(CmdSetDeceleration))
	assert.Equal(t, "UNKNOWN", FormatCommandType(MsgStatus))
	assert.Equal(t, "status_2", StatusTopicName(MsgStatus2))
}

// ============================================================
// Validator
// ============================================================

func TestValidateRecord(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want []AnomalyType
	}{
		{"status ok", Status{NodeID: 1, ERPM: 5000, Current: 20, DutyCycle: 0.5}, nil},
		{"duty too high", Status{NodeID: 1, DutyCycle: 1.2}, []AnomalyType{AnomalyInvalidDuty}},
		{"current too high", Status{NodeID: 1, Current: -600}, []AnomalyType{AnomalyHighCurrent}},
		{"temps ok", Status4{NodeID: 1, TempFET: 45, TempMotor: -10}, nil},
		{"fet too hot", Status4{NodeID: 1, TempFET: 151, TempMotor: 30}, []AnomalyType{AnomalyInvalidTemp}},
		{"both temps bad", Status4{NodeID: 1, TempFET: -50, TempMotor: 200}, []AnomalyType{AnomalyInvalidTemp, AnomalyInvalidTemp}},
		{"input current", Status4{NodeID: 1, TempFET: 20, TempMotor: 20, CurrentIn: 900}, []AnomalyType{AnomalyHighCurrent}},
		{"voltage ok", Status5{NodeID: 1, VoltageIn: 48.6}, nil},
		{"voltage negative", Status5{NodeID: 1, VoltageIn: -1}, []AnomalyType{AnomalyInvalidVoltage}},
		{"voltage too high", Status5{NodeID: 1, VoltageIn: 120}, []AnomalyType{AnomalyInvalidVoltage}},
		{"adc ok", Status6{NodeID: 1, ADC1: 1.65, ADC3: 3.3, PPM: -0.5}, nil},
		{"adc out of range", Status6{NodeID: 1, ADC1: -0.1, ADC2: 4}, []AnomalyType{AnomalyInvalidADC, AnomalyInvalidADC}},
		{"counters unchecked", Status2{NodeID: 1, AmpHours: -1e6}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateRecord(tt.rec)
			var got []AnomalyType
			for _, e := range errs {
				got = append(got, e.Type)
				assert.NotEmpty(t, e.Error())
				assert.Equal(t, tt.rec.Node(), e.Details["node"])
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// ============================================================
// Statistics
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()

	statusFrame := Frame{ID: statusID(3, MsgStatus), Data: make([]byte, 8), Extended: true}
	s.Update(statusFrame, Status{NodeID: 3}, nil, nil)
	s.Update(statusFrame, Status{NodeID: 3, DutyCycle: 2}, nil, []ValidationError{{Type: AnomalyInvalidDuty}})

	otherNode := Frame{ID: statusID(7, MsgStatus5), Data: make([]byte, 6), Extended: true}
	s.Update(otherNode, Status5{NodeID: 7}, nil, nil)

	echo, err := Encode(3, SetRPM{RPM: 100})
	require.NoError(t, err)
	s.Update(echo, nil, nil, nil)

	s.Update(Frame{ID: statusID(3, 2), Extended: true}, nil, nil, nil)
	s.Update(statusFrame, nil, &FormatError{Type: MsgStatus, Got: 2, Want: 8}, nil)
	s.Update(statusFrame, nil, errors.New("bus gone"), nil)
	s.RecordTransportError()

	assert.Equal(t, uint64(7), s.TotalFrames)
	assert.Equal(t, uint64(3), s.StatusFrames)
	assert.Equal(t, uint64(2), s.ValidRecords)
	assert.Equal(t, uint64(1), s.CommandFrames)
	assert.Equal(t, uint64(1), s.UnknownFrames)
	assert.Equal(t, uint64(1), s.FormatErrors)
	assert.Equal(t, uint64(2), s.TransportErrors)
	assert.Equal(t, uint64(1), s.AnomalousValues)
	assert.Equal(t, uint64(1), s.InvalidDuty)
	assert.Equal(t, uint64(4), s.Errors())
	assert.Equal(t, []uint8{3, 7}, s.Nodes())
	assert.Equal(t, uint64(2), s.NodeFrames[3])

	summary := s.String()
	assert.Contains(t, summary, "Total Frames:")
	assert.Contains(t, summary, "Format Errors:")
	assert.Contains(t, summary, "Invalid Duty:")
	assert.Contains(t, summary, "Node   7:")

	s.Reset()
	assert.Zero(t, s.TotalFrames)
	assert.Empty(t, s.Nodes())
}

func TestStatistics_StandardFrameIsUnknown(t *testing.T) {
	s := NewStatistics()
	s.Update(Frame{ID: 0x181, Data: []byte{0x00, 0x00, 0x09, 0xC4}}, nil, nil, nil)

	assert.Equal(t, uint64(1), s.TotalFrames)
	assert.Equal(t, uint64(0), s.CommandFrames)
	assert.Equal(t, uint64(1), s.UnknownFrames)
}

// ============================================================
// CBOR
// ============================================================

func TestRecordCBOR_RoundTrip(t *testing.T) {
	records := []Record{
		Status{NodeID: 31, ERPM: -15000, Current: 10, DutyCycle: 0.75},
		Status2{NodeID: 1, AmpHours: 12.3456, AmpHoursCharged: 0.5},
		Status3{NodeID: 2, WattHours: 100.25, WattHoursCharged: 3},
		Status4{NodeID: 3, TempFET: 45.2, TempMotor: -10.5, CurrentIn: -2.3, PIDPos: 5},
		Status5{NodeID: 4, Tachometer: 1000, VoltageIn: 48.6},
		Status6{NodeID: 255, ADC1: 1.65, ADC2: 0, ADC3: 3.3, PPM: -0.5},
	}

	for _, rec := range records {
		t.Run(StatusTopicName(rec.MsgType()), func(t *testing.T) {
			data, err := MarshalRecordCBOR(rec)
			require.NoError(t, err)

			got, err := UnmarshalRecordCBOR(data)
			require.NoError(t, err)
			assert.Equal(t, rec, got)
		})
	}
}

func TestUnmarshalRecordCBOR_Invalid(t *testing.T) {
	mustCBOR := func(v interface{}) []byte {
		data, err := cbor.Marshal(v)
		require.NoError(t, err)
		return data
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not cbor", []byte{0xFF, 0xFF}},
		{"wrong arity", mustCBOR([]interface{}{uint64(9)})},
		{"bad type", mustCBOR([]interface{}{"status", map[int]interface{}{0: 1}})},
		{"not a map", mustCBOR([]interface{}{uint64(9), "x"})},
		{"missing node", mustCBOR([]interface{}{uint64(9), map[int]interface{}{1: 1.0, 2: 2.0, 3: 3.0}})},
		{"node too large", mustCBOR([]interface{}{uint64(9), map[int]interface{}{0: 300, 1: 1.0, 2: 2.0, 3: 3.0}})},
		{"too few fields", mustCBOR([]interface{}{uint64(9), map[int]interface{}{0: 1, 1: 1.0}})},
		{"command type", mustCBOR([]interface{}{uint64(CmdSetCurrent), map[int]interface{}{0: 1, 1: 1.0}})},
		{"erpm overflow", mustCBOR([]interface{}{uint64(MsgStatus), map[int]interface{}{0: 1, 1: 1e12, 2: 0.0, 3: 0.0}})},
		{"nan field", mustCBOR([]interface{}{uint64(MsgStatus5), map[int]interface{}{0: 1, 1: 0.0, 2: math.NaN()}})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRecordCBOR(tt.data)
			assert.Error(t, err)
		})
	}
}

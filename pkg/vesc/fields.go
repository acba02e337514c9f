// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"math"
	"strings"
)

// Field is one named, scaled value of a Record.
type Field struct {
	Key   string
	Value float64
	Unit  string
}

// Fields returns the values of r in wire order.
func Fields(r Record) []Field {
	switch s := r.(type) {
	case Status:
		return []Field{
			{"erpm", float64(s.ERPM), "rpm"},
			{"current", s.Current, "A"},
			{"duty_cycle", s.DutyCycle, ""},
		}
	case Status2:
		return []Field{
			{"amp_hours", s.AmpHours, "Ah"},
			{"amp_hours_charged", s.AmpHoursCharged, "Ah"},
		}
	case Status3:
		return []Field{
			{"watt_hours", s.WattHours, "Wh"},
			{"watt_hours_charged", s.WattHoursCharged, "Wh"},
		}
	case Status4:
		return []Field{
			{"temp_fet", s.TempFET, "°C"},
			{"temp_motor", s.TempMotor, "°C"},
			{"current_in", s.CurrentIn, "A"},
			{"pid_pos", s.PIDPos, ""},
		}
	case Status5:
		return []Field{
			{"tachometer", s.Tachometer, ""},
			{"voltage_in", s.VoltageIn, "V"},
		}
	case Status6:
		return []Field{
			{"adc1", s.ADC1, "V"},
			{"adc2", s.ADC2, "V"},
			{"adc3", s.ADC3, "V"},
			{"ppm", s.PPM, ""},
		}
	}
	return nil
}

// RecordFromFields rebuilds a record of msgType from values in wire order.
// It returns (nil, nil) if msgType is not a status type or values is too
// short, and a *RangeError for non-finite values or an ERPM outside int32.
func RecordFromFields(node, msgType uint8, values []float64) (Record, error) {
	need := map[uint8]int{
		MsgStatus: 3, MsgStatus2: 2, MsgStatus3: 2,
		MsgStatus4: 4, MsgStatus5: 2, MsgStatus6: 4,
	}
	n, ok := need[msgType]
	if !ok || len(values) < n {
		return nil, nil
	}
	for i, v := range values[:n] {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &RangeError{Field: fieldKey(msgType, i), Value: v}
		}
	}

	switch msgType {
	case MsgStatus:
		erpm, err := scaleInt32("erpm", values[0], 1)
		if err != nil {
			return nil, err
		}
		return Status{NodeID: node, ERPM: erpm, Current: values[1], DutyCycle: values[2]}, nil
	case MsgStatus2:
		return Status2{NodeID: node, AmpHours: values[0], AmpHoursCharged: values[1]}, nil
	case MsgStatus3:
		return Status3{NodeID: node, WattHours: values[0], WattHoursCharged: values[1]}, nil
	case MsgStatus4:
		return Status4{NodeID: node, TempFET: values[0], TempMotor: values[1], CurrentIn: values[2], PIDPos: values[3]}, nil
	case MsgStatus5:
		return Status5{NodeID: node, Tachometer: values[0], VoltageIn: values[1]}, nil
	case MsgStatus6:
		return Status6{NodeID: node, ADC1: values[0], ADC2: values[1], ADC3: values[2], PPM: values[3]}, nil
	}
	return nil, nil
}

// fieldKey names value i of msgType for error messages.
func fieldKey(msgType uint8, i int) string {
	var zero Record
	switch msgType {
	case MsgStatus:
		zero = Status{}
	case MsgStatus2:
		zero = Status2{}
	case MsgStatus3:
		zero = Status3{}
	case MsgStatus4:
		zero = Status4{}
	case MsgStatus5:
		zero = Status5{}
	case MsgStatus6:
		zero = Status6{}
	}
	if fields := Fields(zero); i < len(fields) {
		return fields[i].Key
	}
	return "value"
}

// FieldMap returns the record as a flat map including "node" and "type",
// the shape used for JSON output.
func FieldMap(r Record) map[string]interface{} {
	m := map[string]interface{}{
		"node": r.Node(),
		"type": StatusTopicName(r.MsgType()),
	}
	for _, f := range Fields(r) {
		m[f.Key] = f.Value
	}
	return m
}

// StatusTopicName returns the lower-case status name, e.g. "status_4".
func StatusTopicName(msgType uint8) string {
	return strings.ToLower(FormatStatusType(msgType))
}

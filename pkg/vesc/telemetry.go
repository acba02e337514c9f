// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

// Record is a decoded status broadcast. It is implemented only by the
// Status* types in this package.
type Record interface {
	// Node returns the id of the controller that sent the frame.
	Node() uint8
	// MsgType returns the Status-table type id.
	MsgType() uint8
	isRecord()
}

// Status is STATUS (9).
type Status struct {
	NodeID    uint8
	ERPM      int32   // electrical RPM
	Current   float64 // A
	DutyCycle float64 // -1..1
}

// Status2 is STATUS_2 (14).
type Status2 struct {
	NodeID          uint8
	AmpHours        float64
	AmpHoursCharged float64
}

// Status3 is STATUS_3 (15).
type Status3 struct {
	NodeID           uint8
	WattHours        float64
	WattHoursCharged float64
}

// Status4 is STATUS_4 (16).
type Status4 struct {
	NodeID    uint8
	TempFET   float64 // °C
	TempMotor float64 // °C
	CurrentIn float64 // A
	PIDPos    float64
}

// Status5 is STATUS_5 (27).
type Status5 struct {
	NodeID     uint8
	Tachometer float64
	VoltageIn  float64 // V
}

// Status6 is STATUS_6 (28).
type Status6 struct {
	NodeID uint8
	ADC1   float64
	ADC2   float64
	ADC3   float64
	PPM    float64
}

func (s Status) Node() uint8  { return s.NodeID }
func (s Status2) Node() uint8 { return s.NodeID }
func (s Status3) Node() uint8 { return s.NodeID }
func (s Status4) Node() uint8 { return s.NodeID }
func (s Status5) Node() uint8 { return s.NodeID }
func (s Status6) Node() uint8 { return s.NodeID }

func (Status) MsgType() uint8  { return MsgStatus }
func (Status2) MsgType() uint8 { return MsgStatus2 }
func (Status3) MsgType() uint8 { return MsgStatus3 }
func (Status4) MsgType() uint8 { return MsgStatus4 }
func (Status5) MsgType() uint8 { return MsgStatus5 }
func (Status6) MsgType() uint8 { return MsgStatus6 }

func (Status) isRecord()  {}
func (Status2) isRecord() {}
func (Status3) isRecord() {}
func (Status4) isRecord() {}
func (Status5) isRecord() {}
func (Status6) isRecord() {}

// Decode interprets a received frame against the Status table.
//
// Frames whose type id is not a status broadcast (command echoes, foreign
// traffic) yield (nil, nil). A payload shorter than the layout yields a
// *FormatError; trailing bytes beyond the layout are ignored.
func Decode(id uint32, payload []byte) (Record, error) {
	node, msgType := DecomposeID(id)
	want, ok := statusWidths[msgType]
	if !ok {
		return nil, nil
	}
	if len(payload) < want {
		return nil, &FormatError{Type: msgType, Got: len(payload), Want: want}
	}

	switch msgType {
	case MsgStatus:
		return Status{
			NodeID:    node,
			ERPM:      readInt32(payload, 0),
			Current:   float64(readInt16(payload, 4)) / currentDiv,
			DutyCycle: float64(readInt16(payload, 6)) / dutyDiv,
		}, nil
	case MsgStatus2:
		return Status2{
			NodeID:          node,
			AmpHours:        float64(readInt32(payload, 0)) / ampHoursDiv,
			AmpHoursCharged: float64(readInt32(payload, 4)) / ampHoursDiv,
		}, nil
	case MsgStatus3:
		return Status3{
			NodeID:           node,
			WattHours:        float64(readInt32(payload, 0)) / wattHoursDiv,
			WattHoursCharged: float64(readInt32(payload, 4)) / wattHoursDiv,
		}, nil
	case MsgStatus4:
		return Status4{
			NodeID:    node,
			TempFET:   float64(readInt16(payload, 0)) / tempDiv,
			TempMotor: float64(readInt16(payload, 2)) / tempDiv,
			CurrentIn: float64(readInt16(payload, 4)) / currentDiv,
			PIDPos:    float64(readInt16(payload, 6)) / pidPosDiv,
		}, nil
	case MsgStatus5:
		return Status5{
			NodeID:     node,
			Tachometer: float64(readInt32(payload, 0)) / tachometerDiv,
			VoltageIn:  float64(readInt16(payload, 4)) / voltageDiv,
		}, nil
	case MsgStatus6:
		return Status6{
			NodeID: node,
			ADC1:   float64(readInt16(payload, 0)) / adcDiv,
			ADC2:   float64(readInt16(payload, 2)) / adcDiv,
			ADC3:   float64(readInt16(payload, 4)) / adcDiv,
			PPM:    float64(readInt16(payload, 6)) / adcDiv,
		}, nil
	}
	return nil, nil
}

// DecodeFrame is Decode for a Frame value. Standard 11-bit frames belong to
// other protocols on the bus and decode to (nil, nil).
func DecodeFrame(f Frame) (Record, error) {
	if !f.Extended {
		return nil, nil
	}
	return Decode(f.ID, f.Data)
}

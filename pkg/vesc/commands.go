// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"encoding/binary"
	"errors"
	"math"
)

// Command is one of the closed set of outbound commands below.
// Encode turns it into a frame for a given node.
type Command interface {
	// MsgType returns the Command-table type id.
	MsgType() uint8
	appendPayload(b []byte) ([]byte, error)
}

// SetCurrent sets the motor current in amperes (sent as milliamps).
type SetCurrent struct {
	Amps float64
}

// SetRPM sets the electrical RPM. Fractions are truncated toward zero.
type SetRPM struct {
	RPM float64
}

// SetPosition sets the position using the integer encoding
// (value × 1,000,000).
type SetPosition struct {
	Position float64
}

// SetKp sets the position loop proportional gain.
type SetKp struct {
	Gain float32
}

// SetKi sets the position loop integral gain.
type SetKi struct {
	Gain float32
}

// SetKd sets the position loop derivative gain.
type SetKd struct {
	Gain float32
}

// SetPositionFloat sets the position as an IEEE float. The velocity is only
// put on the wire when it is strictly positive, giving a 4 or 8 byte payload.
type SetPositionFloat struct {
	Position float32
	Velocity float32
}

// SetVelocity sets the profile velocity.
type SetVelocity struct {
	Velocity float32
}

// SetAcceleration sets the profile acceleration.
type SetAcceleration struct {
	Acceleration float32
}

// SetDeceleration sets the profile deceleration.
type SetDeceleration struct {
	Deceleration float32
}

// SetStoredPosition overwrites the controller's current position. When Store
// is true the controller also persists it.
type SetStoredPosition struct {
	Position float32
	Store    bool
}

func (SetCurrent) MsgType() uint8        { return CmdSetCurrent }
func (SetRPM) MsgType() uint8            { return CmdSetRPM }
func (SetPosition) MsgType() uint8       { return CmdSetPosition }
func (SetKp) MsgType() uint8             { return CmdSetKp }
func (SetKi) MsgType() uint8             { return CmdSetKi }
func (SetKd) MsgType() uint8             { return CmdSetKd }
func (SetPositionFloat) MsgType() uint8  { return CmdSetPositionFloat }
func (SetVelocity) MsgType() uint8       { return CmdSetVelocity }
func (SetAcceleration) MsgType() uint8   { return CmdSetAcceleration }
func (SetDeceleration) MsgType() uint8   { return CmdSetDeceleration }
func (SetStoredPosition) MsgType() uint8 { return CmdSetStoredPosition }

func (c SetCurrent) appendPayload(b []byte) ([]byte, error) {
	v, err := scaleInt32("current", c.Amps, currentScale)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint32(b, uint32(v)), nil
}

func (c SetRPM) appendPayload(b []byte) ([]byte, error) {
	v, err := scaleInt32("rpm", c.RPM, 1)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint32(b, uint32(v)), nil
}

func (c SetPosition) appendPayload(b []byte) ([]byte, error) {
	v, err := scaleInt32("position", c.Position, positionScale)
	if err != nil {
		return nil, err
	}
	return binary.BigEndian.AppendUint32(b, uint32(v)), nil
}

func (c SetKp) appendPayload(b []byte) ([]byte, error) { return appendFloat32(b, c.Gain), nil }
func (c SetKi) appendPayload(b []byte) ([]byte, error) { return appendFloat32(b, c.Gain), nil }
func (c SetKd) appendPayload(b []byte) ([]byte, error) { return appendFloat32(b, c.Gain), nil }

func (c SetPositionFloat) appendPayload(b []byte) ([]byte, error) {
	b = appendFloat32(b, c.Position)
	if c.Velocity > 0 {
		b = appendFloat32(b, c.Velocity)
	}
	return b, nil
}

func (c SetVelocity) appendPayload(b []byte) ([]byte, error) {
	return appendFloat32(b, c.Velocity), nil
}

func (c SetAcceleration) appendPayload(b []byte) ([]byte, error) {
	return appendFloat32(b, c.Acceleration), nil
}

func (c SetDeceleration) appendPayload(b []byte) ([]byte, error) {
	return appendFloat32(b, c.Deceleration), nil
}

func (c SetStoredPosition) appendPayload(b []byte) ([]byte, error) {
	b = appendFloat32(b, c.Position)
	var store int8
	if c.Store {
		store = 1
	}
	return append(b, byte(store)), nil
}

var errNilCommand = errors.New("vesc: nil command")

// Encode builds the frame that sends cmd to node.
// It fails with a RangeError when node is outside [0,255] or a scaled
// integer field does not fit in int32.
func Encode(node int, cmd Command) (Frame, error) {
	if cmd == nil {
		return Frame{}, errNilCommand
	}
	id, err := ComposeID(node, int(cmd.MsgType()))
	if err != nil {
		return Frame{}, err
	}
	data, err := cmd.appendPayload(make([]byte, 0, MaxDataSize))
	if err != nil {
		return Frame{}, err
	}
	return Frame{ID: id, Data: data, Extended: true}, nil
}

// DecodeCommand interprets a frame against the Command table. It returns
// (nil, nil) when the type id is not a known command.
func DecodeCommand(id uint32, payload []byte) (Command, error) {
	_, msgType := DecomposeID(id)
	want := commandWidth(msgType)
	if want == 0 {
		return nil, nil
	}
	if len(payload) < want {
		return nil, &FormatError{Type: msgType, Command: true, Got: len(payload), Want: want}
	}

	switch msgType {
	case CmdSetCurrent:
		return SetCurrent{Amps: float64(readInt32(payload, 0)) / currentScale}, nil
	case CmdSetRPM:
		return SetRPM{RPM: float64(readInt32(payload, 0))}, nil
	case CmdSetPosition:
		return SetPosition{Position: float64(readInt32(payload, 0)) / positionScale}, nil
	case CmdSetKp:
		return SetKp{Gain: readFloat32(payload, 0)}, nil
	case CmdSetKi:
		return SetKi{Gain: readFloat32(payload, 0)}, nil
	case CmdSetKd:
		return SetKd{Gain: readFloat32(payload, 0)}, nil
	case CmdSetPositionFloat:
		c := SetPositionFloat{Position: readFloat32(payload, 0)}
		if len(payload) >= positionVelocityPayload {
			c.Velocity = readFloat32(payload, 4)
		}
		return c, nil
	case CmdSetVelocity:
		return SetVelocity{Velocity: readFloat32(payload, 0)}, nil
	case CmdSetAcceleration:
		return SetAcceleration{Acceleration: readFloat32(payload, 0)}, nil
	case CmdSetDeceleration:
		return SetDeceleration{Deceleration: readFloat32(payload, 0)}, nil
	case CmdSetStoredPosition:
		return SetStoredPosition{Position: readFloat32(payload, 0), Store: int8(payload[4]) != 0}, nil
	}
	return nil, nil
}

// commandWidth returns the minimum payload length of a command type, or 0
// if the type is not in the Command table.
func commandWidth(msgType uint8) int {
	switch msgType {
	case CmdSetStoredPosition:
		return storedPositionPayloadSize
	default:
		if IsCommandType(msgType) {
			return scalarPayloadSize
		}
	}
	return 0
}

// scaleInt32 multiplies v by factor and truncates toward zero.
func scaleInt32(field string, v, factor float64) (int32, error) {
	scaled := math.Trunc(v * factor)
	if math.IsNaN(scaled) || scaled > math.MaxInt32 || scaled < math.MinInt32 {
		return 0, &RangeError{Field: field, Value: v}
	}
	return int32(scaled), nil
}

func appendFloat32(b []byte, v float32) []byte {
	return binary.BigEndian.AppendUint32(b, math.Float32bits(v))
}

func readInt32(b []byte, off int) int32 {
	return int32(binary.BigEndian.Uint32(b[off : off+4]))
}

func readInt16(b []byte, off int) int16 {
	return int16(binary.BigEndian.Uint16(b[off : off+2]))
}

func readFloat32(b []byte, off int) float32 {
	return math.Float32frombits(binary.BigEndian.Uint32(b[off : off+4]))
}

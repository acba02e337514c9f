// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package vesc implements the VESC CAN command and status protocol.
//
// Every frame uses a 29-bit extended identifier that carries the node id in
// bits 0-7 and the message type in bits 8-15. The payload layout is fixed by
// the message type. Outbound commands and inbound status broadcasts live in
// two separate tables; a type id is only meaningful together with the table
// it was looked up in.
//
// The package is a pure codec: it never touches a bus and keeps no state, so
// Encode and Decode may be called from any number of goroutines.
package vesc

// Identifier layout
const (
	NodeMask    = 0xFF
	TypeShift   = 8
	MaxNodeID   = 0xFF
	MaxMsgType  = 0xFF
	MaxExtID    = 0x1FFFFFFF // 29-bit extended identifier
	MaxDataSize = 8          // classical CAN payload
)

// Command types (host → controller)
const (
	CmdSetCurrent        = 1
	CmdSetRPM            = 3
	CmdSetPosition       = 4
	CmdSetKp             = 64
	CmdSetKi             = 65
	CmdSetKd             = 66
	CmdSetPositionFloat  = 68
	CmdSetVelocity       = 69
	CmdSetAcceleration   = 70
	CmdSetDeceleration   = 71
	CmdSetStoredPosition = 72
)

// Status types (controller → host, periodic broadcast)
const (
	MsgStatus  = 9
	MsgStatus2 = 14
	MsgStatus3 = 15
	MsgStatus4 = 16
	MsgStatus5 = 27
	MsgStatus6 = 28
)

// Command scaling factors
const (
	currentScale  = 1000.0    // A -> mA
	positionScale = 1000000.0 // deg -> micro-deg
)

// Status divisors
const (
	currentDiv    = 10.0
	dutyDiv       = 1000.0
	ampHoursDiv   = 10000.0
	wattHoursDiv  = 10000.0
	tempDiv       = 10.0
	pidPosDiv     = 50.0
	tachometerDiv = 6.0
	voltageDiv    = 10.0
	adcDiv        = 1000.0
)

// Fixed payload widths
const (
	scalarPayloadSize         = 4
	positionVelocityPayload   = 8
	storedPositionPayloadSize = 5
	statusPayloadSize         = 8
	status5PayloadSize        = 6
)

// statusWidths is the Status table: type id -> minimum payload length.
var statusWidths = map[uint8]int{
	MsgStatus:  statusPayloadSize,
	MsgStatus2: statusPayloadSize,
	MsgStatus3: statusPayloadSize,
	MsgStatus4: statusPayloadSize,
	MsgStatus5: status5PayloadSize,
	MsgStatus6: statusPayloadSize,
}

// IsStatusType reports whether msgType is in the Status table.
func IsStatusType(msgType uint8) bool {
	_, ok := statusWidths[msgType]
	return ok
}

// IsCommandType reports whether msgType is in the Command table.
func IsCommandType(msgType uint8) bool {
	switch msgType {
	case CmdSetCurrent, CmdSetRPM, CmdSetPosition,
		CmdSetKp, CmdSetKi, CmdSetKd,
		CmdSetPositionFloat, CmdSetVelocity, CmdSetAcceleration,
		CmdSetDeceleration, CmdSetStoredPosition:
		return true
	}
	return false
}

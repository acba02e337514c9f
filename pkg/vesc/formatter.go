// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatStatusType returns the name of a Status-table type id
func FormatStatusType(msgType uint8) string {
	switch msgType {
	case MsgStatus:
		return "STATUS"
	case MsgStatus2:
		return "STATUS_2"
	case MsgStatus3:
		return "STATUS_3"
	case MsgStatus4:
		return "STATUS_4"
	case MsgStatus5:
		return "STATUS_5"
	case MsgStatus6:
		return "STATUS_6"
	default:
		return "UNKNOWN"
	}
}

// FormatCommandType returns the name of a Command-table type id
func FormatCommandType(msgType uint8) string {
	switch msgType {
	case CmdSetCurrent:
		return "SET_CURRENT"
	case CmdSetRPM:
		return "SET_RPM"
	case CmdSetPosition:
		return "SET_POS"
	case CmdSetKp:
		return "SET_KP"
	case CmdSetKi:
		return "SET_KI"
	case CmdSetKd:
		return "SET_KD"
	case CmdSetPositionFloat:
		return "SET_POS_FLOAT"
	case CmdSetVelocity:
		return "SET_VELOCITY"
	case CmdSetAcceleration:
		return "SET_ACCELERATION"
	case CmdSetDeceleration:
		return "SET_DECELERATION"
	case CmdSetStoredPosition:
		return "SET_STORED_POS"
	default:
		return "UNKNOWN"
	}
}

// FormatRecord formats a decoded status record into a human-readable string
func FormatRecord(r Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d) node=%d\n", FormatStatusType(r.MsgType()), r.MsgType(), r.Node())
	for _, f := range Fields(r) {
		fmt.Fprintf(&b, "  %-18s %s\n", f.Key+":", formatValue(f))
	}
	return b.String()
}

// FormatCommand formats a command for logging
func FormatCommand(c Command) string {
	name := FormatCommandType(c.MsgType())
	switch v := c.(type) {
	case SetCurrent:
		return fmt.Sprintf("%s %.3f A", name, v.Amps)
	case SetRPM:
		return fmt.Sprintf("%s %.0f", name, v.RPM)
	case SetPosition:
		return fmt.Sprintf("%s %.6f", name, v.Position)
	case SetKp:
		return fmt.Sprintf("%s %g", name, v.Gain)
	case SetKi:
		return fmt.Sprintf("%s %g", name, v.Gain)
	case SetKd:
		return fmt.Sprintf("%s %g", name, v.Gain)
	case SetPositionFloat:
		if v.Velocity > 0 {
			return fmt.Sprintf("%s %g vel=%g", name, v.Position, v.Velocity)
		}
		return fmt.Sprintf("%s %g", name, v.Position)
	case SetVelocity:
		return fmt.Sprintf("%s %g", name, v.Velocity)
	case SetAcceleration:
		return fmt.Sprintf("%s %g", name, v.Acceleration)
	case SetDeceleration:
		return fmt.Sprintf("%s %g", name, v.Deceleration)
	case SetStoredPosition:
		return fmt.Sprintf("%s %g store=%t", name, v.Position, v.Store)
	}
	return name
}

// FormatFrame renders any frame: status records are decoded, known commands
// are shown as command echoes and everything else, standard frames included,
// falls back to a hex dump.
func FormatFrame(f Frame) string {
	timestamp := ""
	if !f.Timestamp.IsZero() {
		timestamp = "[" + f.Timestamp.Format("15:04:05.000") + "] "
	}

	if !f.Extended {
		return fmt.Sprintf("%sSTANDARD 0x%03X len=%d\n%s", timestamp, f.ID, len(f.Data), formatHexDump(f.Data))
	}

	rec, err := DecodeFrame(f)
	if err != nil {
		return fmt.Sprintf("%s%s\n  error: %v\n", timestamp, f, err)
	}
	if rec != nil {
		return timestamp + FormatRecord(rec)
	}

	cmd, err := DecodeCommand(f.ID, f.Data)
	if err == nil && cmd != nil {
		return fmt.Sprintf("%s%s node=%d (command echo)\n", timestamp, FormatCommand(cmd), f.Node())
	}

	return fmt.Sprintf("%sUNKNOWN (%d) node=%d len=%d\n%s", timestamp, f.Type(), f.Node(), len(f.Data), formatHexDump(f.Data))
}

func formatValue(f Field) string {
	v := strconv.FormatFloat(f.Value, 'f', -1, 64)
	if f.Unit == "" {
		return v
	}
	return v + " " + f.Unit
}

func formatHexDump(data []byte) string {
	if len(data) == 0 {
		return "  (no payload)\n"
	}
	var b strings.Builder
	b.WriteString("  Payload: ")
	for _, d := range data {
		fmt.Fprintf(&b, "%02X ", d)
	}
	b.WriteString("\n")
	return b.String()
}

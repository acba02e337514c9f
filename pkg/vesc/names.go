// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"sort"
)

// CommandArgs carries the operands of a command selected by name.
// Velocity is used by position_float, Store by stored_position.
type CommandArgs struct {
	Value    float64
	Velocity float64
	Store    bool
}

var commandNames = map[string]uint8{
	"current":         CmdSetCurrent,
	"rpm":             CmdSetRPM,
	"position":        CmdSetPosition,
	"kp":              CmdSetKp,
	"ki":              CmdSetKi,
	"kd":              CmdSetKd,
	"position_float":  CmdSetPositionFloat,
	"velocity":        CmdSetVelocity,
	"acceleration":    CmdSetAcceleration,
	"deceleration":    CmdSetDeceleration,
	"stored_position": CmdSetStoredPosition,
}

// CommandNames returns the accepted command names ordered by type id.
func CommandNames() []string {
	names := make([]string, 0, len(commandNames))
	for name := range commandNames {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return commandNames[names[i]] < commandNames[names[j]]
	})
	return names
}

// NewCommand builds the command called name, e.g. "current" or "kp".
func NewCommand(name string, args CommandArgs) (Command, error) {
	msgType, ok := commandNames[name]
	if !ok {
		return nil, fmt.Errorf("unknown command %q", name)
	}

	switch msgType {
	case CmdSetCurrent:
		return SetCurrent{Amps: args.Value}, nil
	case CmdSetRPM:
		return SetRPM{RPM: args.Value}, nil
	case CmdSetPosition:
		return SetPosition{Position: args.Value}, nil
	case CmdSetKp:
		return SetKp{Gain: float32(args.Value)}, nil
	case CmdSetKi:
		return SetKi{Gain: float32(args.Value)}, nil
	case CmdSetKd:
		return SetKd{Gain: float32(args.Value)}, nil
	case CmdSetPositionFloat:
		return SetPositionFloat{Position: float32(args.Value), Velocity: float32(args.Velocity)}, nil
	case CmdSetVelocity:
		return SetVelocity{Velocity: float32(args.Value)}, nil
	case CmdSetAcceleration:
		return SetAcceleration{Acceleration: float32(args.Value)}, nil
	case CmdSetDeceleration:
		return SetDeceleration{Deceleration: float32(args.Value)}, nil
	case CmdSetStoredPosition:
		return SetStoredPosition{Position: float32(args.Value), Store: args.Store}, nil
	}
	return nil, fmt.Errorf("unknown command %q", name)
}

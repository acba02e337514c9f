// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidID  = errors.New("vesc: invalid frame identifier")
	ErrInvalidLen = errors.New("vesc: invalid data length")
)

// Frame is a classical CAN frame as produced by Encode or handed to Decode.
type Frame struct {
	ID       uint32
	Data     []byte
	Extended bool

	// Timestamp is set by transports on receive; zero for encoded frames.
	Timestamp time.Time
}

// Node returns the node id carried in the identifier
func (f Frame) Node() uint8 {
	node, _ := DecomposeID(f.ID)
	return node
}

// Type returns the message type carried in the identifier
func (f Frame) Type() uint8 {
	_, msgType := DecomposeID(f.ID)
	return msgType
}

// IsCommand reports whether the frame carries a Command table type id.
// VESC only uses 29-bit identifiers, so standard frames never match.
func (f Frame) IsCommand() bool {
	return f.Extended && IsCommandType(f.Type())
}

// Validate returns an error if the frame cannot be put on a classical CAN bus.
func (f Frame) Validate() error {
	if len(f.Data) > MaxDataSize {
		return ErrInvalidLen
	}
	if f.Extended {
		if f.ID > MaxExtID {
			return ErrInvalidID
		}
	} else if f.ID > 0x7FF {
		return ErrInvalidID
	}
	return nil
}

// String renders the frame as `ID#DATA` in candump notation.
func (f Frame) String() string {
	var b strings.Builder
	if f.Extended {
		fmt.Fprintf(&b, "%08X#", f.ID)
	} else {
		fmt.Fprintf(&b, "%03X#", f.ID)
	}
	for _, d := range f.Data {
		fmt.Fprintf(&b, "%02X", d)
	}
	return b.String()
}

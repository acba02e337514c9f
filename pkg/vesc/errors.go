// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"fmt"
)

var (
	// ErrRange is wrapped by every RangeError.
	ErrRange = errors.New("vesc: value out of range")
	// ErrFormat is wrapped by every FormatError.
	ErrFormat = errors.New("vesc: malformed payload")
)

// RangeError reports an argument that cannot be represented on the wire:
// a node or type id outside [0,255], or a scaled value outside int32.
type RangeError struct {
	Field string
	Value float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("vesc: %s out of range: %v", e.Field, e.Value)
}

// Unwrap returns ErrRange.
func (e *RangeError) Unwrap() error {
	return ErrRange
}

// FormatError reports a payload shorter than its message layout requires.
// Command is set when the type was looked up in the Command table.
type FormatError struct {
	Type    uint8
	Command bool
	Got     int
	Want    int
}

func (e *FormatError) Error() string {
	name := FormatStatusType(e.Type)
	if e.Command {
		name = FormatCommandType(e.Type)
	}
	return fmt.Sprintf("vesc: truncated %s (type %d): got %d bytes, want %d",
		name, e.Type, e.Got, e.Want)
}

// Unwrap returns ErrFormat.
func (e *FormatError) Unwrap() error {
	return ErrFormat
}

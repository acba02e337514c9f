// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Statistics tracks frame statistics and error rates. It is not safe for
// concurrent use; callers own one per receive loop.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames     uint64
	StatusFrames    uint64
	CommandFrames   uint64
	UnknownFrames   uint64
	ValidRecords    uint64
	FormatErrors    uint64
	TransportErrors uint64
	AnomalousValues uint64
	InvalidTemp     uint64
	InvalidVoltage  uint64
	InvalidDuty     uint64
	HighCurrent     uint64
	InvalidADC      uint64

	// Per-node status frame counts
	NodeFrames map[uint8]uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
		NodeFrames:     make(map[uint8]uint64),
	}
}

// Update records one received frame together with its decode outcome.
// rec is nil for frames outside the Status table.
func (s *Statistics) Update(f Frame, rec Record, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		if errors.Is(decodeErr, ErrFormat) {
			s.FormatErrors++
		} else {
			s.TransportErrors++
		}
		return
	}

	if rec == nil {
		if f.IsCommand() {
			s.CommandFrames++
		} else {
			s.UnknownFrames++
		}
		return
	}

	s.StatusFrames++
	s.NodeFrames[rec.Node()]++

	if len(validationErrors) == 0 {
		s.ValidRecords++
		return
	}
	for _, err := range validationErrors {
		s.AnomalousValues++
		switch err.Type {
		case AnomalyInvalidTemp:
			s.InvalidTemp++
		case AnomalyInvalidVoltage:
			s.InvalidVoltage++
		case AnomalyInvalidDuty:
			s.InvalidDuty++
		case AnomalyHighCurrent:
			s.HighCurrent++
		case AnomalyInvalidADC:
			s.InvalidADC++
		}
	}
}

// RecordTransportError counts a receive failure that produced no frame.
func (s *Statistics) RecordTransportError() {
	s.TransportErrors++
	s.LastUpdateTime = time.Now()
}

// Errors returns the total number of errors and anomalies
func (s *Statistics) Errors() uint64 {
	return s.FormatErrors + s.TransportErrors + s.AnomalousValues
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

// Nodes returns the ids of all nodes seen, sorted
func (s *Statistics) Nodes() []uint8 {
	nodes := make([]uint8, 0, len(s.NodeFrames))
	for n := range s.NodeFrames {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
	return nodes
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalFrames == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Status Frames:   %8d (%.1f%%)\n", s.StatusFrames, percent(s.StatusFrames))
	result += fmt.Sprintf("Valid Records:   %8d (%.1f%%)\n", s.ValidRecords, percent(s.ValidRecords))

	if s.CommandFrames > 0 {
		result += fmt.Sprintf("Command Echoes:  %8d (%.1f%%)\n", s.CommandFrames, percent(s.CommandFrames))
	}
	if s.UnknownFrames > 0 {
		result += fmt.Sprintf("Unknown Frames:  %8d (%.1f%%)\n", s.UnknownFrames, percent(s.UnknownFrames))
	}
	if s.FormatErrors > 0 {
		result += fmt.Sprintf("Format Errors:   %8d (%.1f%%)\n", s.FormatErrors, percent(s.FormatErrors))
	}
	if s.TransportErrors > 0 {
		result += fmt.Sprintf("Bus Errors:      %8d\n", s.TransportErrors)
	}
	if s.AnomalousValues > 0 {
		result += fmt.Sprintf("Anomalous Values:%8d\n", s.AnomalousValues)
		if s.InvalidTemp > 0 {
			result += fmt.Sprintf("  Invalid Temp:     %5d\n", s.InvalidTemp)
		}
		if s.InvalidVoltage > 0 {
			result += fmt.Sprintf("  Invalid Voltage:  %5d\n", s.InvalidVoltage)
		}
		if s.InvalidDuty > 0 {
			result += fmt.Sprintf("  Invalid Duty:     %5d\n", s.InvalidDuty)
		}
		if s.HighCurrent > 0 {
			result += fmt.Sprintf("  High Current:     %5d\n", s.HighCurrent)
		}
		if s.InvalidADC > 0 {
			result += fmt.Sprintf("  Invalid ADC:      %5d\n", s.InvalidADC)
		}
	}

	for _, n := range s.Nodes() {
		result += fmt.Sprintf("Node %3d:        %8d frames\n", n, s.NodeFrames[n])
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}

// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import (
	"fmt"
	"math"
)

// AnomalyType represents different types of telemetry anomalies
type AnomalyType int

const (
	AnomalyFormatError AnomalyType = iota
	AnomalyInvalidTemp
	AnomalyInvalidVoltage
	AnomalyInvalidDuty
	AnomalyHighCurrent
	AnomalyInvalidADC
)

// Plausibility limits used by ValidateRecord
const (
	MinTemp       = -40.0
	MaxTemp       = 150.0
	MaxVoltageIn  = 100.0
	MaxCurrent    = 500.0
	MaxADCVoltage = 3.6
)

// ValidationError represents a telemetry validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateRecord checks a decoded record for physically implausible values.
// Returns a slice of validation errors (empty if the record is plausible).
func ValidateRecord(r Record) []ValidationError {
	errors := []ValidationError{}

	switch s := r.(type) {
	case Status:
		if math.Abs(s.DutyCycle) > 1.0 {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidDuty,
				Message: fmt.Sprintf("Duty cycle out of range (%.3f, valid: -1 to 1)", s.DutyCycle),
				Details: map[string]interface{}{"node": s.NodeID, "value": s.DutyCycle},
			})
		}
		if math.Abs(s.Current) > MaxCurrent {
			errors = append(errors, highCurrent(s.NodeID, "current", s.Current))
		}

	case Status4:
		errors = append(errors, checkTemp(s.NodeID, "temp_fet", s.TempFET)...)
		errors = append(errors, checkTemp(s.NodeID, "temp_motor", s.TempMotor)...)
		if math.Abs(s.CurrentIn) > MaxCurrent {
			errors = append(errors, highCurrent(s.NodeID, "current_in", s.CurrentIn))
		}

	case Status5:
		if s.VoltageIn < 0 || s.VoltageIn > MaxVoltageIn {
			errors = append(errors, ValidationError{
				Type:    AnomalyInvalidVoltage,
				Message: fmt.Sprintf("Input voltage out of range (%.1f V, valid: 0 to %.0f V)", s.VoltageIn, MaxVoltageIn),
				Details: map[string]interface{}{"node": s.NodeID, "value": s.VoltageIn, "max": MaxVoltageIn},
			})
		}

	case Status6:
		for _, f := range Fields(s)[:3] {
			if f.Value < 0 || f.Value > MaxADCVoltage {
				errors = append(errors, ValidationError{
					Type:    AnomalyInvalidADC,
					Message: fmt.Sprintf("%s out of range (%.3f V, valid: 0 to %.1f V)", f.Key, f.Value, MaxADCVoltage),
					Details: map[string]interface{}{"node": s.NodeID, "field": f.Key, "value": f.Value},
				})
			}
		}
	}

	return errors
}

func checkTemp(node uint8, field string, temp float64) []ValidationError {
	if temp >= MinTemp && temp <= MaxTemp {
		return nil
	}
	return []ValidationError{{
		Type:    AnomalyInvalidTemp,
		Message: fmt.Sprintf("%s out of range (%.1f°C, valid: %.0f to %.0f°C)", field, temp, MinTemp, MaxTemp),
		Details: map[string]interface{}{"node": node, "field": field, "value": temp, "min": MinTemp, "max": MaxTemp},
	}}
}

func highCurrent(node uint8, field string, current float64) ValidationError {
	return ValidationError{
		Type:    AnomalyHighCurrent,
		Message: fmt.Sprintf("High %s (%.1f A, max %.0f A)", field, current, MaxCurrent),
		Details: map[string]interface{}{"node": node, "field": field, "value": current, "max": MaxCurrent},
	}
}

/*
Package filter turns free-text queries into structured metadata constraints
and applies those constraints to catalog tools.

A Set holds at most one value per key: voltage, torque, IP rating and
application type. The zero Set is unconstrained.
*/
package filter

import (
	"encoding/json"

	"go.uber.org/zap/zapcore"
)

// Application types recognised by the extractor.
const (
	ManualPortable = "Manual / Portable"
	Automation     = "Automation"
	Manual         = "Manual"
	ControlSystem  = "Control System"
	Verification   = "Quality / Verification"
)

// Filter keys as they appear on the wire.
const (
	KeyVoltage         = "voltage"
	KeyTorque          = "torque"
	KeyIPRating        = "ip_rating"
	KeyApplicationType = "application_type"
)

// Set is a group of optional metadata constraints. Empty fields are unconstrained.
type Set struct {
	Voltage         string `json:"voltage,omitempty"`
	Torque          *int   `json:"torque,omitempty"`
	IPRating        string `json:"ip_rating,omitempty"`
	ApplicationType string `json:"application_type,omitempty"`
}

// IsEmpty reports whether no constraint is set.
func (s Set) IsEmpty() bool {
	return s.Voltage == "" && s.Torque == nil && s.IPRating == "" && s.ApplicationType == ""
}

// Has reports whether the given key is constrained.
func (s Set) Has(key string) bool {
	switch key {
	case KeyVoltage:
		return s.Voltage != ""
	case KeyTorque:
		return s.Torque != nil
	case KeyIPRating:
		return s.IPRating != ""
	case KeyApplicationType:
		return s.ApplicationType != ""
	}
	return false
}

// Merge returns s overlaid by other: keys set in other win.
func (s Set) Merge(other Set) Set {
	out := s.Clone()
	if other.Voltage != "" {
		out.Voltage = other.Voltage
	}
	if other.Torque != nil {
		out = out.WithTorque(*other.Torque)
	}
	if other.IPRating != "" {
		out.IPRating = other.IPRating
	}
	if other.ApplicationType != "" {
		out.ApplicationType = other.ApplicationType
	}
	return out
}

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := s
	if s.Torque != nil {
		v := *s.Torque
		out.Torque = &v
	}
	return out
}

// Len returns the number of constrained keys.
func (s Set) Len() int {
	n := 0
	for _, k := range []string{KeyVoltage, KeyTorque, KeyIPRating, KeyApplicationType} {
		if s.Has(k) {
			n++
		}
	}
	return n
}

// String renders the set as indented JSON.
func (s Set) String() string {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// TorqueValue returns the torque constraint, or 0 when absent.
func (s Set) TorqueValue() int {
	if s.Torque == nil {
		return 0
	}
	return *s.Torque
}

// WithTorque returns a copy of s with the torque constraint set.
func (s Set) WithTorque(nm int) Set {
	out := s.Clone()
	out.Torque = &nm
	return out
}

// MarshalLogObject lets a Set be logged with zap.Object.
func (s Set) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	if s.Voltage != "" {
		enc.AddString(KeyVoltage, s.Voltage)
	}
	if s.Torque != nil {
		enc.AddInt(KeyTorque, s.TorqueValue())
	}
	if s.IPRating != "" {
		enc.AddString(KeyIPRating, s.IPRating)
	}
	if s.ApplicationType != "" {
		enc.AddString(KeyApplicationType, s.ApplicationType)
	}
	return nil
}

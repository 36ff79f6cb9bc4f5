package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// SaveGpaRequest is the body of POST /save-gpa. Decoding enforces the wire
// types: registrationNumber must be a string, gpas an object of numbers.
type SaveGpaRequest struct {
	RegistrationNumber string             `json:"registrationNumber"`
	Gpas               map[string]float64 `json:"gpas"`

	hasRegistrationNumber bool
}

type saveGpaWire struct {
	RegistrationNumber json.RawMessage `json:"registrationNumber"`
	Gpas               json.RawMessage `json:"gpas"`
}

func (r *SaveGpaRequest) UnmarshalJSON(data []byte) error {
	var wire saveGpaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	if wire.RegistrationNumber != nil {
		if firstByte(wire.RegistrationNumber) != '"' {
			return errors.New("registrationNumber must be a string")
		}
		if err := json.Unmarshal(wire.RegistrationNumber, &r.RegistrationNumber); err != nil {
			return fmt.Errorf("registrationNumber: %w", err)
		}
		r.hasRegistrationNumber = true
	}

	if wire.Gpas != nil {
		if firstByte(wire.Gpas) != '{' {
			return errors.New("gpas must be an object")
		}
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(wire.Gpas, &raw); err != nil {
			return fmt.Errorf("gpas: %w", err)
		}
		gpas := make(map[string]float64, len(raw))
		for semester, value := range raw {
			if !isNumber(value) {
				return fmt.Errorf("gpa for %q must be a number", semester)
			}
			var gpa float64
			if err := json.Unmarshal(value, &gpa); err != nil {
				return fmt.Errorf("gpa for %q: %w", semester, err)
			}
			gpas[semester] = gpa
		}
		r.Gpas = gpas
	}
	return nil
}

// Validate reports missing fields. Type mismatches are rejected while
// decoding.
func (r *SaveGpaRequest) Validate() error {
	var errs []error
	if !r.hasRegistrationNumber {
		errs = append(errs, errors.New("registrationNumber is required"))
	}
	if r.Gpas == nil {
		errs = append(errs, errors.New("gpas is required"))
	}
	return errors.Join(errs...)
}

func firstByte(raw json.RawMessage) byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return 0
	}
	return trimmed[0]
}

func isNumber(raw json.RawMessage) bool {
	b := firstByte(raw)
	return b == '-' || (b >= '0' && b <= '9')
}

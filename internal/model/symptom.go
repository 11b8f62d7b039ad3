package model

import (
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityCritical Severity = "critical"
)

// Rank orders severities mild(1) < moderate(2) < severe(3) < critical(4).
// Unknown values rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityMild:
		return 1
	case SeverityModerate:
		return 2
	case SeveritySevere:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

func (s Severity) Valid() bool {
	return s.Rank() > 0
}

func ParseSeverity(s string) (Severity, error) {
	sev := Severity(strings.ToLower(strings.TrimSpace(s)))
	if !sev.Valid() {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// Symptom is a single reported symptom.
type Symptom struct {
	Name        string   `json:"name" validate:"required,max=200"`
	Severity    Severity `json:"severity" validate:"required,oneof=mild moderate severe critical"`
	Duration    string   `json:"duration,omitempty" validate:"max=100"`
	Description string   `json:"description,omitempty" validate:"max=1000"`
	Location    string   `json:"location,omitempty" validate:"max=200"`
}

// PatientContext is read-only demographic and history data for one request.
type PatientContext struct {
	Age            int      `json:"age" validate:"gte=0,lte=150"`
	Gender         string   `json:"gender" validate:"required,max=50"`
	MedicalHistory []string `json:"medical_history,omitempty" validate:"dive,max=200"`
	Medications    []string `json:"medications,omitempty" validate:"dive,max=200"`
	Allergies      []string `json:"allergies,omitempty" validate:"dive,max=200"`
}

// SymptomInput is the request accepted by the diagnosis pipeline.
type SymptomInput struct {
	Symptoms        []Symptom      `json:"symptoms" validate:"required,min=1,max=50,dive"`
	PatientInfo     PatientContext `json:"patient_info"`
	ChiefComplaint  string         `json:"chief_complaint" validate:"max=2000"`
	AdditionalNotes string         `json:"additional_notes,omitempty" validate:"max=4000"`
}

// SymptomNames returns the symptom names in input order.
func SymptomNames(symptoms []Symptom) []string {
	names := make([]string, len(symptoms))
	for i, s := range symptoms {
		names[i] = s.Name
	}
	return names
}

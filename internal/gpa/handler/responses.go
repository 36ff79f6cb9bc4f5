package handler

import "time"

// MsgSaved confirms a successful upsert.
const MsgSaved = "GPA data saved successfully"

type SaveGpaResponse struct {
	Message string `json:"message"`
}

// RecordResponse is the body of GET /get-gpa/{registrationNumber}.
type RecordResponse struct {
	RegistrationNumber string             `json:"registrationNumber"`
	Gpas               map[string]float64 `json:"gpas"`
	CreatedAt          *time.Time         `json:"createdAt,omitempty"`
	UpdatedAt          *time.Time         `json:"updatedAt,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

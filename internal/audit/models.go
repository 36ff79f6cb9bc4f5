package audit

import "time"

// AuditEvent names an audited action.
type AuditEvent string

const (
	// EventGpaSaved is emitted after a successful upsert.
	EventGpaSaved AuditEvent = "gpa_saved"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so sinks can fan out.
type Event struct {
	Timestamp          time.Time `json:"timestamp"`
	Action             string    `json:"action"`
	RegistrationNumber string    `json:"registration_number"`
	Semesters          []string  `json:"semesters"`
	Policy             string    `json:"policy,omitempty"`
	RequestID          string    `json:"request_id,omitempty"`
	ClientIP           string    `json:"client_ip,omitempty"`
}

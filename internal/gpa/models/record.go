package models

import (
	"fmt"
	"maps"
	"sort"
	"strings"
	"time"
)

// Record is one student's stored GPA data, keyed by registration number.
type Record struct {
	RegistrationNumber string             `json:"registrationNumber" bson:"registrationNumber"`
	Gpas               map[string]float64 `json:"gpas" bson:"gpas"`
	CreatedAt          time.Time          `json:"createdAt,omitzero" bson:"createdAt,omitempty"`
	UpdatedAt          time.Time          `json:"updatedAt,omitzero" bson:"updatedAt,omitempty"`
}

// Semesters returns the record's semester labels in sorted order.
func (r *Record) Semesters() []string {
	return SortedSemesters(r.Gpas)
}

// UpsertPolicy decides what a second upsert does to an existing mapping.
type UpsertPolicy string

const (
	// PolicyMerge sets every supplied semester and leaves the others untouched.
	PolicyMerge UpsertPolicy = "merge"
	// PolicyReplace discards the stored mapping in favour of the supplied one.
	PolicyReplace UpsertPolicy = "replace"
)

// ParseUpsertPolicy parses a configured policy name. Empty means merge.
func ParseUpsertPolicy(s string) (UpsertPolicy, error) {
	switch UpsertPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyMerge:
		return PolicyMerge, nil
	case PolicyReplace:
		return PolicyReplace, nil
	default:
		return "", fmt.Errorf("unknown upsert policy %q", s)
	}
}

// ValidateSemester rejects labels the document backends cannot store as map
// keys: empty labels, labels containing '.', and labels starting with '$'.
func ValidateSemester(semester string) error {
	switch {
	case semester == "":
		return fmt.Errorf("semester label must not be empty")
	case strings.Contains(semester, "."):
		return fmt.Errorf("semester label %q must not contain '.'", semester)
	case strings.HasPrefix(semester, "$"):
		return fmt.Errorf("semester label %q must not start with '$'", semester)
	}
	return nil
}

// MergeGpas overlays patch onto base and returns the result. Neither input
// is modified.
func MergeGpas(base, patch map[string]float64) map[string]float64 {
	merged := make(map[string]float64, len(base)+len(patch))
	maps.Copy(merged, base)
	maps.Copy(merged, patch)
	return merged
}

// SortedSemesters returns the keys of gpas in sorted order.
func SortedSemesters(gpas map[string]float64) []string {
	keys := make([]string, 0, len(gpas))
	for k := range gpas {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

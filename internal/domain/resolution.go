package domain

import "time"

// ResolutionStatus is the outcome of resolving a universal product code.
type ResolutionStatus string

// Resolution status constants.
const (
	ResolutionFound    ResolutionStatus = "found"
	ResolutionNotFound ResolutionStatus = "not_found"
	ResolutionMultiple ResolutionStatus = "multiple"
	ResolutionPending  ResolutionStatus = "pending"
)

// ResolutionRecord is the persistent outcome of resolving one universal
// product code to zero, one, or many catalog codes. Records are created on
// first lookup miss, updated on later lookups, and never deleted.
//
// Invariants: ResolvedCode is non-empty iff Status is ResolutionFound;
// Candidates is non-empty iff Status is ResolutionMultiple.
type ResolutionRecord struct {
	InputCode    string           `db:"input_code"    json:"input_code"`
	ResolvedCode string           `db:"resolved_code" json:"resolved_code,omitempty"`
	Status       ResolutionStatus `db:"status"        json:"status"`
	Candidates   []string         `db:"-"             json:"candidates,omitempty"`
	ResolvedAt   time.Time        `db:"resolved_at"   json:"resolved_at"`
	// LookupCount increments on every repeat lookup, including cache hits.
	// The increment is atomic at the store, never read-modify-write.
	LookupCount int64 `db:"lookup_count" json:"lookup_count"`
}

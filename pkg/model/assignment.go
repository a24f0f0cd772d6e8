package model

import "fmt"

// Assignment is a (clinician, row, date) booking. At most one record exists
// per (RowID, DateISO, ClinicianID, Seq).
type Assignment struct {
	ID           string `json:"id"`
	RowID        string `json:"rowId"` // "<sectionID>::<subshiftID>"
	DateISO      string `json:"dateISO"`
	ClinicianID  string `json:"clinicianId"`
	Seq          int    `json:"seq,omitempty"` // head index for multi-head slots
	Manual       bool   `json:"manual,omitempty"`
}

// CanonicalID builds the "a-<row>-<date>-<clinician>-<seq>" assignment ID.
func CanonicalID(rowID, dateISO, clinicianID string, seq int) string {
	return fmt.Sprintf("a-%s-%s-%s-%d", rowID, dateISO, clinicianID, seq)
}

// WithCanonicalID returns a copy of a with ID set to its canonical form.
func (a Assignment) WithCanonicalID() Assignment {
	a.ID = CanonicalID(a.RowID, a.DateISO, a.ClinicianID, a.Seq)
	return a
}

// SectionID returns the section component of the assignment's row ID.
func (a Assignment) SectionID() string {
	sectionID, _ := SplitRuntimeRowID(a.RowID)
	return sectionID
}

package model

// DefaultLocationID is the location every snapshot is guaranteed to carry;
// the Calendar Projector and the normalizer fall back to it whenever a
// section references an unknown location.
const DefaultLocationID = "loc-default"

// Location is a physical site a Section's slots run at.
type Location struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

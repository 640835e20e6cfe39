package model

import "time"

// StoredRecord is a record as persisted in a subject's history.
type StoredRecord struct {
	ID        string     `json:"id"`
	Subject   string     `json:"subject"`
	Record    Record     `json:"record"`
	CreatedAt time.Time  `json:"created_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// Export is the portable dump of a store: history plus the latest snapshot of
// every subject.
type Export struct {
	Records   []StoredRecord `json:"records"`
	Snapshots []Snapshot     `json:"snapshots"`
}

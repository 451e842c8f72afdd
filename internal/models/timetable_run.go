package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// TimetableRunStatus represents lifecycle phases for a scheduling run.
type TimetableRunStatus string

const (
	TimetableRunStatusCompleted TimetableRunStatus = "COMPLETED"
	TimetableRunStatusExporting TimetableRunStatus = "EXPORTING"
	TimetableRunStatusExported  TimetableRunStatus = "EXPORTED"
	TimetableRunStatusFailed    TimetableRunStatus = "FAILED"
)

// TimetableRun is the persisted header of one successful scheduling run.
type TimetableRun struct {
	ID               string             `db:"id" json:"id"`
	Fingerprint      string             `db:"fingerprint" json:"fingerprint"`
	Status           TimetableRunStatus `db:"status" json:"status"`
	BorrowedRoomUsed bool               `db:"borrowed_room_used" json:"borrowed_room_used"`
	Attempts         int                `db:"attempts" json:"attempts"`
	AssignmentCount  int                `db:"assignment_count" json:"assignment_count"`
	Meta             types.JSONText     `db:"meta" json:"meta"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`
}

// TimetableRunMeta stores the run parameters persisted as JSONB.
type TimetableRunMeta struct {
	Days            []Weekday `json:"days"`
	StartHour       int       `json:"start_hour"`
	EndHour         int       `json:"end_hour"`
	RespectCapacity bool      `json:"respect_capacity"`
	AnchorDate      string    `json:"anchor_date"`
	BorrowedRoomID  string    `json:"borrowed_room_id,omitempty"`
	Rooms           []Room    `json:"rooms,omitempty"` // final room set, borrowed room included
}

// ExportLink points at one rendered artifact of a run.
type ExportLink struct {
	Artifact  string     `json:"artifact"`
	Format    string     `json:"format"`
	Path      string     `json:"path"`
	URL       string     `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TimetableResult is the full outcome of a run as returned to callers and kept in the result store.
type TimetableResult struct {
	Run         TimetableRun         `json:"run"`
	Meta        TimetableRunMeta     `json:"meta"`
	Projections TimetableProjections `json:"projections"`
	Exports     []ExportLink         `json:"exports,omitempty"`
	Cached      bool                 `json:"cached"`
}

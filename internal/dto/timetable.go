package dto

import "github.com/noah-isme/sma-timetable/internal/models"

// AssignTimetableRequest carries one scheduling run's inputs. Nil optional fields fall back to server defaults.
type AssignTimetableRequest struct {
	Rooms           []models.Room   `json:"rooms" validate:"required,min=1,dive"`
	Courses         []models.Course `json:"courses" validate:"dive"`
	Days            []string        `json:"days" validate:"omitempty,dive,required"`
	StartHour       *int            `json:"startHour" validate:"omitempty,min=0,max=23"`
	EndHour         *int            `json:"endHour" validate:"omitempty,min=1,max=24"`
	RespectCapacity *bool           `json:"respectCapacity"`
	AnchorDate      string          `json:"anchorDate"`
	BorrowedRoomID  string          `json:"borrowedRoomId"`
}

// AssignTimetableResponse is the API view of a completed run.
type AssignTimetableResponse struct {
	RunID            string                      `json:"runId"`
	Fingerprint      string                      `json:"fingerprint"`
	Status           models.TimetableRunStatus   `json:"status"`
	BorrowedRoomUsed bool                        `json:"borrowedRoomUsed"`
	Attempts         int                         `json:"attempts"`
	Cached           bool                        `json:"cached"`
	Meta             models.TimetableRunMeta     `json:"meta"`
	Projections      models.TimetableProjections `json:"projections"`
	Exports          []models.ExportLink         `json:"exports,omitempty"`
}

// TimetableExportsResponse lists the artifacts rendered for a run.
type TimetableExportsResponse struct {
	RunID   string                    `json:"runId"`
	Status  models.TimetableRunStatus `json:"status"`
	Exports []models.ExportLink       `json:"exports"`
}

// NewAssignTimetableResponse flattens a result for transport.
func NewAssignTimetableResponse(result *models.TimetableResult) AssignTimetableResponse {
	if result == nil {
		return AssignTimetableResponse{}
	}
	return AssignTimetableResponse{
		RunID:            result.Run.ID,
		Fingerprint:      result.Run.Fingerprint,
		Status:           result.Run.Status,
		BorrowedRoomUsed: result.Run.BorrowedRoomUsed,
		Attempts:         result.Run.Attempts,
		Cached:           result.Cached,
		Meta:             result.Meta,
		Projections:      result.Projections,
		Exports:          result.Exports,
	}
}

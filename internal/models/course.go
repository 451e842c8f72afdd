package models

import (
	"encoding/json"
	"strings"
)

// DefaultPriority is assigned to courses that do not carry an explicit rank.
const DefaultPriority = 1

// LabFlag marks a course that must be taught in a lab room. It renders as Y/N in CSV output.
type LabFlag bool

// String renders the flag as Y or N.
func (f LabFlag) String() string {
	if f {
		return "Y"
	}
	return "N"
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (f LabFlag) MarshalCSV() (string, error) {
	return f.String(), nil
}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (f *LabFlag) UnmarshalCSV(raw string) error {
	*f = ParseLabFlag(raw)
	return nil
}

// ParseLabFlag accepts Y/N, yes/no, true/false, 1/0 and the registrar's "실습" (practice) marker.
func ParseLabFlag(raw string) LabFlag {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "y", "yes", "true", "1", "lab":
		return true
	}
	return LabFlag(strings.Contains(value, "실습"))
}

// Course is a unit of weekly teaching demand.
type Course struct {
	ID           string  `json:"course_id" validate:"required"`
	Name         string  `json:"name"`
	WeeklyBlocks int     `json:"hours_per_week" validate:"min=0"`
	Instructor   string  `json:"instructor"`
	RequiresLab  LabFlag `json:"requires_lab"`
	Enrollment   int     `json:"enrollment" validate:"min=0"`
	Priority     int     `json:"priority"`
	Department   string  `json:"department,omitempty"`
}

// UnmarshalJSON defaults an absent priority to DefaultPriority, matching the course CSV loader.
func (c *Course) UnmarshalJSON(data []byte) error {
	type plain Course
	aux := struct {
		*plain
		Priority *int `json:"priority"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Priority = DefaultPriority
	if aux.Priority != nil {
		c.Priority = *aux.Priority
	}
	return nil
}

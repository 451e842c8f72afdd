package models

// Assignment binds one course block to one room and slot. Display fields are denormalized
// from the course and room so projections never need to look them up again.
type Assignment struct {
	CourseID    string   `json:"course_id" csv:"course_id" db:"course_id"`
	Name        string   `json:"name" csv:"name" db:"name"`
	Instructor  string   `json:"instructor" csv:"instructor" db:"instructor"`
	Enrollment  int      `json:"enrollment" csv:"enrollment" db:"enrollment"`
	RequiresLab LabFlag  `json:"requires_lab" csv:"requires_lab" db:"requires_lab"`
	RoomID      string   `json:"room_id" csv:"room_id" db:"room_id"`
	RoomType    RoomType `json:"room_type" csv:"room_type" db:"room_type"`
	Day         Weekday  `json:"day" csv:"day" db:"day"`
	Start       string   `json:"start" csv:"start" db:"start_label"`
	End         string   `json:"end" csv:"end" db:"end_label"`
	Hours       int      `json:"hours" csv:"hours" db:"hours"`
}

// NewAssignment builds the record for one block of course placed in room at slot.
func NewAssignment(course Course, room Room, slot Slot) Assignment {
	return Assignment{
		CourseID:    course.ID,
		Name:        course.Name,
		Instructor:  course.Instructor,
		Enrollment:  course.Enrollment,
		RequiresLab: course.RequiresLab,
		RoomID:      room.ID,
		RoomType:    room.Type,
		Day:         slot.Day,
		Start:       slot.Start,
		End:         slot.End,
		Hours:       1,
	}
}

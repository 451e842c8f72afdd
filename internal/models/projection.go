package models

// VacancyRow is a (room, slot) pair left free by a schedule.
type VacancyRow struct {
	RoomID string  `json:"room_id" csv:"room_id"`
	Day    Weekday `json:"day" csv:"day"`
	Start  string  `json:"start" csv:"start"`
	End    string  `json:"end" csv:"end"`
}

// CalendarRow follows the column layout of the Google Calendar CSV import format.
type CalendarRow struct {
	Subject     string `json:"subject" csv:"Subject"`
	StartDate   string `json:"start_date" csv:"Start Date"`
	StartTime   string `json:"start_time" csv:"Start Time"`
	EndDate     string `json:"end_date" csv:"End Date"`
	EndTime     string `json:"end_time" csv:"End Time"`
	AllDayEvent string `json:"all_day_event" csv:"All Day Event"`
	Description string `json:"description" csv:"Description"`
	Location    string `json:"location" csv:"Location"`
}

// UtilizationRow reports how many grid slots of a room are occupied.
type UtilizationRow struct {
	RoomID          string  `json:"room_id" csv:"room_id"`
	UsedBlocks      int     `json:"used_blocks" csv:"used_blocks"`
	TotalBlocks     int     `json:"total_blocks" csv:"total_blocks"`
	UtilizationRate float64 `json:"utilization_rate" csv:"utilization_rate"`
}

// UtilizationSummary aggregates utilization rates across rooms.
type UtilizationSummary struct {
	Rooms  int     `json:"rooms"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// TimetableProjections groups the read-only views derived from one final assignment set.
type TimetableProjections struct {
	Assigned    []Assignment       `json:"assigned"`
	Vacancies   []VacancyRow       `json:"vacancies"`
	Calendar    []CalendarRow      `json:"calendar"`
	Utilization []UtilizationRow   `json:"utilization"`
	Summary     UtilizationSummary `json:"utilization_summary"`
}

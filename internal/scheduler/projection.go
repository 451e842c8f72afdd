package scheduler

import (
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const (
	calendarDateLayout = "2006-01-02"
	calendarTimeLayout = "15:04"
)

// DefaultAnchorDate is the Monday used when no valid anchor is supplied.
var DefaultAnchorDate = time.Date(2025, time.November, 3, 0, 0, 0, 0, time.UTC)

// ParseAnchorDate parses a YYYY-MM-DD anchor. On failure it returns DefaultAnchorDate and false.
// The anchor is used as given; callers are expected to pass a Monday.
func ParseAnchorDate(raw string) (time.Time, bool) {
	anchor, err := time.Parse(calendarDateLayout, raw)
	if err != nil {
		return DefaultAnchorDate, false
	}
	return anchor, true
}

// BuildProjections derives every read-only view of a result.
func BuildProjections(result *Result, grid *Grid, anchor time.Time) models.TimetableProjections {
	assigned := AssignedSchedule(result.Assignments)
	utilization := Utilization(result.Assignments, grid, result.Rooms)
	return models.TimetableProjections{
		Assigned:    assigned,
		Vacancies:   Vacancies(result.Assignments, grid, result.Rooms),
		Calendar:    CalendarRows(assigned, anchor),
		Utilization: utilization,
		Summary:     SummarizeUtilization(utilization),
	}
}

// AssignedSchedule returns a copy sorted by weekday, start, room, course name and course id.
func AssignedSchedule(assignments []models.Assignment) []models.Assignment {
	out := make([]models.Assignment, len(assignments))
	copy(out, assignments)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Day != b.Day {
			return a.Day.Offset() < b.Day.Offset()
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		if a.RoomID != b.RoomID {
			return a.RoomID < b.RoomID
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.CourseID < b.CourseID
	})
	return out
}

// Vacancies lists every unoccupied (room, slot), room-major in room order and grid order within a room.
func Vacancies(assignments []models.Assignment, grid *Grid, rooms []models.Room) []models.VacancyRow {
	occupied := make(map[slotKey]struct{}, len(assignments))
	for _, a := range assignments {
		occupied[slotKey{RoomID: a.RoomID, Day: a.Day, Start: a.Start}] = struct{}{}
	}

	size := len(rooms)*grid.Len() - len(occupied)
	if size < 0 {
		size = 0
	}
	rows := make([]models.VacancyRow, 0, size)
	for _, room := range rooms {
		for _, slot := range grid.slots {
			if _, taken := occupied[slotKey{RoomID: room.ID, Day: slot.Day, Start: slot.Start}]; taken {
				continue
			}
			rows = append(rows, models.VacancyRow{RoomID: room.ID, Day: slot.Day, Start: slot.Start, End: slot.End})
		}
	}
	return rows
}

// CalendarRows maps assignments onto concrete dates of the week starting at anchor.
func CalendarRows(assignments []models.Assignment, anchor time.Time) []models.CalendarRow {
	loc := anchor.Location()
	rows := make([]models.CalendarRow, 0, len(assignments))
	for _, a := range assignments {
		offset := a.Day.Offset()
		if offset < 0 {
			offset = 0
		}
		day := time.Date(anchor.Year(), anchor.Month(), anchor.Day()+offset, 0, 0, 0, 0, loc)

		startHour, err := models.ParseHourLabel(a.Start)
		if err != nil {
			continue
		}
		endHour, err := models.ParseHourLabel(a.End)
		if err != nil {
			endHour = startHour + a.Hours
		}
		start := time.Date(day.Year(), day.Month(), day.Day(), startHour, 0, 0, 0, loc)
		end := time.Date(day.Year(), day.Month(), day.Day(), endHour, 0, 0, 0, loc)

		rows = append(rows, models.CalendarRow{
			Subject:     fmt.Sprintf("%s (%s)", a.Name, a.CourseID),
			StartDate:   start.Format(calendarDateLayout),
			StartTime:   start.Format(calendarTimeLayout),
			EndDate:     end.Format(calendarDateLayout),
			EndTime:     end.Format(calendarTimeLayout),
			AllDayEvent: "False",
			Description: fmt.Sprintf("Instructor: %s; Enrollment: %d; Lab: %s", a.Instructor, a.Enrollment, a.RequiresLab),
			Location:    fmt.Sprintf("%s (%s)", a.RoomID, a.RoomType),
		})
	}
	return rows
}

// Utilization reports used/total blocks per room in room order. Rooms without assignments report zero.
func Utilization(assignments []models.Assignment, grid *Grid, rooms []models.Room) []models.UtilizationRow {
	used := make(map[string]int, len(rooms))
	for _, a := range assignments {
		used[a.RoomID]++
	}

	total := grid.Len()
	rows := make([]models.UtilizationRow, 0, len(rooms))
	for _, room := range rooms {
		row := models.UtilizationRow{RoomID: room.ID, UsedBlocks: used[room.ID], TotalBlocks: total}
		if total > 0 {
			row.UtilizationRate = float64(row.UsedBlocks) / float64(total)
		}
		rows = append(rows, row)
	}
	return rows
}

// SummarizeUtilization computes mean, sample standard deviation, min and max of room rates.
func SummarizeUtilization(rows []models.UtilizationRow) models.UtilizationSummary {
	summary := models.UtilizationSummary{Rooms: len(rows)}
	if len(rows) == 0 {
		return summary
	}
	rates := make([]float64, len(rows))
	for i, row := range rows {
		rates[i] = row.UtilizationRate
	}
	summary.Min = floats.Min(rates)
	summary.Max = floats.Max(rates)
	if len(rates) < 2 {
		summary.Mean = rates[0]
		return summary
	}
	mean, std := stat.MeanStdDev(rates, nil)
	summary.Mean = mean
	if !math.IsNaN(std) {
		summary.StdDev = std
	}
	return summary
}

package models

import (
	"fmt"
	"strings"
)

// Weekday labels a teaching day. Labels match the three-letter form used in every artifact.
type Weekday string

const (
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
	Sunday    Weekday = "Sun"
)

// DefaultWeek is the fixed Monday-Friday teaching week.
var DefaultWeek = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

var weekdayOffsets = map[Weekday]int{
	Monday:    0,
	Tuesday:   1,
	Wednesday: 2,
	Thursday:  3,
	Friday:    4,
	Saturday:  5,
	Sunday:    6,
}

var weekdayNames = map[string]Weekday{
	"MON":       Monday,
	"MONDAY":    Monday,
	"TUE":       Tuesday,
	"TUESDAY":   Tuesday,
	"WED":       Wednesday,
	"WEDNESDAY": Wednesday,
	"THU":       Thursday,
	"THURSDAY":  Thursday,
	"FRI":       Friday,
	"FRIDAY":    Friday,
	"SAT":       Saturday,
	"SATURDAY":  Saturday,
	"SUN":       Sunday,
	"SUNDAY":    Sunday,
}

// Offset returns the number of days after Monday, or -1 for an unknown label.
func (d Weekday) Offset() int {
	if offset, ok := weekdayOffsets[d]; ok {
		return offset
	}
	return -1
}

// Valid reports whether d is one of the seven known labels.
func (d Weekday) Valid() bool {
	return d.Offset() >= 0
}

// ParseWeekday accepts short or long English day names in any case.
func ParseWeekday(raw string) (Weekday, error) {
	day, ok := weekdayNames[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("unknown weekday %q", raw)
	}
	return day, nil
}

// ParseWeekdays parses a list of day names, skipping blanks.
func ParseWeekdays(raw []string) ([]Weekday, error) {
	days := make([]Weekday, 0, len(raw))
	for _, item := range raw {
		if strings.TrimSpace(item) == "" {
			continue
		}
		day, err := ParseWeekday(item)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, nil
}

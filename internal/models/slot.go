package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Slot is one (day, hour) cell of the weekly grid. Slots are coordinates only; no room owns them.
type Slot struct {
	Day   Weekday `json:"day" csv:"day"`
	Start string  `json:"start" csv:"start"`
	End   string  `json:"end" csv:"end"`
	Hour  int     `json:"-" csv:"-"`
}

// HourLabel renders an hour boundary as HH:00.
func HourLabel(hour int) string {
	return fmt.Sprintf("%02d:00", hour)
}

// ParseHourLabel extracts the hour of an HH:MM label.
func ParseHourLabel(label string) (int, error) {
	head, _, _ := strings.Cut(strings.TrimSpace(label), ":")
	hour, err := strconv.Atoi(head)
	if err != nil {
		return 0, fmt.Errorf("invalid hour label %q: %w", label, err)
	}
	if hour < 0 || hour > 24 {
		return 0, fmt.Errorf("hour label %q out of range", label)
	}
	return hour, nil
}

package scheduler

import (
	"fmt"
	"sort"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Grid is the ordered set of one-hour slots of a teaching week. It is immutable once built.
type Grid struct {
	days      []models.Weekday
	startHour int
	endHour   int
	slots     []models.Slot
}

// NewGrid materializes slots day-major then hour-major. Days are ordered Monday first.
func NewGrid(days []models.Weekday, startHour, endHour int) (*Grid, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: at least one day is required", ErrInvalidGrid)
	}
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return nil, fmt.Errorf("%w: hour window %d-%d must satisfy 0 <= start < end <= 24", ErrInvalidGrid, startHour, endHour)
	}

	ordered := make([]models.Weekday, 0, len(days))
	seen := make(map[models.Weekday]struct{}, len(days))
	for _, day := range days {
		if !day.Valid() {
			return nil, fmt.Errorf("%w: unknown day %q", ErrInvalidGrid, day)
		}
		if _, dup := seen[day]; dup {
			return nil, fmt.Errorf("%w: duplicate day %q", ErrInvalidGrid, day)
		}
		seen[day] = struct{}{}
		ordered = append(ordered, day)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Offset() < ordered[j].Offset()
	})

	slots := make([]models.Slot, 0, len(ordered)*(endHour-startHour))
	for _, day := range ordered {
		for hour := startHour; hour < endHour; hour++ {
			slots = append(slots, models.Slot{
				Day:   day,
				Start: models.HourLabel(hour),
				End:   models.HourLabel(hour + 1),
				Hour:  hour,
			})
		}
	}

	return &Grid{days: ordered, startHour: startHour, endHour: endHour, slots: slots}, nil
}

// NewDefaultGrid builds a Monday-Friday grid for the given hour window.
func NewDefaultGrid(startHour, endHour int) (*Grid, error) {
	return NewGrid(models.DefaultWeek, startHour, endHour)
}

// Slots returns a copy of every slot in grid order.
func (g *Grid) Slots() []models.Slot {
	out := make([]models.Slot, len(g.slots))
	copy(out, g.slots)
	return out
}

// Days returns the grid days in order.
func (g *Grid) Days() []models.Weekday {
	out := make([]models.Weekday, len(g.days))
	copy(out, g.days)
	return out
}

// Hours returns the start labels of one day's slots.
func (g *Grid) Hours() []string {
	out := make([]string, 0, g.endHour-g.startHour)
	for hour := g.startHour; hour < g.endHour; hour++ {
		out = append(out, models.HourLabel(hour))
	}
	return out
}

// Len is the number of slots in the grid.
func (g *Grid) Len() int { return len(g.slots) }

// StartHour is the first hour of each day.
func (g *Grid) StartHour() int { return g.startHour }

// EndHour is the exclusive end hour of each day.
func (g *Grid) EndHour() int { return g.endHour }

package scheduler

import "github.com/noah-isme/sma-timetable/internal/models"

type slotKey struct {
	RoomID string
	Day    models.Weekday
	Start  string
}

// Availability tracks which (room, slot) pairs are still free during one allocation attempt.
// It is not safe for concurrent use and must not be shared between attempts.
type Availability struct {
	free map[slotKey]bool
	open int
}

// NewAvailability marks every slot of every room as free.
func NewAvailability(rooms []models.Room, grid *Grid) *Availability {
	a := &Availability{free: make(map[slotKey]bool, len(rooms)*grid.Len())}
	for _, room := range rooms {
		for _, slot := range grid.slots {
			key := slotKey{RoomID: room.ID, Day: slot.Day, Start: slot.Start}
			if _, exists := a.free[key]; exists {
				continue
			}
			a.free[key] = true
			a.open++
		}
	}
	return a
}

// IsFree reports whether the pair is free. Pairs outside the grid or room set are never free.
func (a *Availability) IsFree(roomID string, day models.Weekday, start string) bool {
	return a.free[slotKey{RoomID: roomID, Day: day, Start: start}]
}

// Occupy claims a free pair and reports whether the claim succeeded.
func (a *Availability) Occupy(roomID string, day models.Weekday, start string) bool {
	key := slotKey{RoomID: roomID, Day: day, Start: start}
	if !a.free[key] {
		return false
	}
	a.free[key] = false
	a.open--
	return true
}

// FreeCount is the number of pairs still free.
func (a *Availability) FreeCount() int { return a.open }

package scheduler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// DefaultBorrowedRoomID names the lecture room borrowed from another department when the base rooms fall short.
const DefaultBorrowedRoomID = "외부대여-타강의실1"

// ReliefOptions configures Schedule.
type ReliefOptions struct {
	Options
	BorrowedRoomID string
}

// Result is the final assignment set of a successful run.
type Result struct {
	Assignments      []models.Assignment
	Rooms            []models.Room
	BorrowedRoomUsed bool
	Attempts         int
}

// BorrowedRoom builds the synthetic lecture room added by the relief attempt.
func BorrowedRoom(id string) models.Room {
	if id == "" {
		id = DefaultBorrowedRoomID
	}
	return models.Room{ID: id, Type: models.RoomTypeLecture, Capacity: models.UnboundedCapacity}
}

// Schedule runs the base attempt and, if it leaves a course short, exactly one retry with a borrowed room.
// A failed retry yields an *InfeasibleError.
func Schedule(grid *Grid, rooms []models.Room, courses []models.Course, opts ReliefOptions, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	allocator := NewAllocator(grid, opts.Options, logger)

	base := make([]models.Room, len(rooms))
	copy(base, rooms)

	assignments, baseErr := allocator.Allocate(base, courses)
	if baseErr == nil {
		return &Result{Assignments: assignments, Rooms: base, Attempts: 1}, nil
	}
	if !errors.Is(baseErr, ErrNoSchedule) {
		return nil, baseErr
	}

	borrowed := BorrowedRoom(uniqueRoomID(base, opts.BorrowedRoomID))
	relief := make([]models.Room, 0, len(base)+1)
	relief = append(relief, base...)
	relief = append(relief, borrowed)

	logger.Warn("base rooms insufficient, retrying with borrowed room",
		zap.String("borrowed_room", borrowed.ID),
		zap.Error(baseErr),
	)

	assignments, reliefErr := allocator.Allocate(relief, courses)
	if reliefErr != nil {
		if !errors.Is(reliefErr, ErrNoSchedule) {
			return nil, reliefErr
		}
		return nil, &InfeasibleError{Base: baseErr, Relief: reliefErr}
	}
	return &Result{Assignments: assignments, Rooms: relief, BorrowedRoomUsed: true, Attempts: 2}, nil
}

// uniqueRoomID keeps the borrowed room from aliasing a real room's availability keys.
func uniqueRoomID(rooms []models.Room, id string) string {
	if id == "" {
		id = DefaultBorrowedRoomID
	}
	taken := make(map[string]struct{}, len(rooms))
	for _, room := range rooms {
		taken[room.ID] = struct{}{}
	}
	candidate := id
	for n := 2; ; n++ {
		if _, exists := taken[candidate]; !exists {
			return candidate
		}
		candidate = fmt.Sprintf("%s-%d", id, n)
	}
}

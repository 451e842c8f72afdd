package scheduler

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// Options tunes eligibility checks of an allocation attempt.
type Options struct {
	RespectCapacity bool
}

// Allocator places course blocks greedily onto a grid.
type Allocator struct {
	grid   *Grid
	opts   Options
	logger *zap.Logger
}

// NewAllocator constructs an allocator bound to grid.
func NewAllocator(grid *Grid, opts Options, logger *zap.Logger) *Allocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Allocator{grid: grid, opts: opts, logger: logger}
}

// Allocate runs one attempt on a fresh availability. Either every course receives exactly its weekly
// blocks or the attempt returns an *UnplacedCourseError and no assignments.
func (a *Allocator) Allocate(rooms []models.Room, courses []models.Course) ([]models.Assignment, error) {
	if a.grid == nil {
		return nil, fmt.Errorf("%w: allocator has no grid", ErrInvalidGrid)
	}

	total := 0
	for _, course := range courses {
		if course.WeeklyBlocks > 0 {
			total += course.WeeklyBlocks
		}
	}

	avail := NewAvailability(rooms, a.grid)
	assignments := make([]models.Assignment, 0, total)
	for _, course := range OrderCourses(courses) {
		placed := a.fill(avail, rooms, course, &assignments)
		if placed < course.WeeklyBlocks {
			a.logger.Debug("course not fully placed",
				zap.String("course_id", course.ID),
				zap.Int("required", course.WeeklyBlocks),
				zap.Int("placed", placed),
				zap.Int("free_pairs", avail.FreeCount()),
			)
			return nil, &UnplacedCourseError{CourseID: course.ID, Required: course.WeeklyBlocks, Placed: placed}
		}
	}
	return assignments, nil
}

// fill scans days, then hours, then rooms and claims at most one room per slot for the course.
func (a *Allocator) fill(avail *Availability, rooms []models.Room, course models.Course, out *[]models.Assignment) int {
	placed := 0
	for _, slot := range a.grid.slots {
		if placed >= course.WeeklyBlocks {
			break
		}
		for _, room := range rooms {
			if !RoomEligible(room, course, a.opts.RespectCapacity) {
				continue
			}
			if !avail.Occupy(room.ID, slot.Day, slot.Start) {
				continue
			}
			*out = append(*out, models.NewAssignment(course, room, slot))
			placed++
			break
		}
	}
	return placed
}

// RoomEligible applies the strict lab partition and, when enabled, the capacity check.
func RoomEligible(room models.Room, course models.Course, respectCapacity bool) bool {
	if bool(course.RequiresLab) != room.IsLab() {
		return false
	}
	if respectCapacity && room.Capacity < course.Enrollment {
		return false
	}
	return true
}

// OrderCourses returns a copy of courses sorted by priority ascending, weekly blocks descending,
// lab courses first, then course id.
func OrderCourses(courses []models.Course) []models.Course {
	ordered := make([]models.Course, len(courses))
	copy(ordered, courses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return courseLess(ordered[i], ordered[j])
	})
	return ordered
}

func courseLess(a, b models.Course) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.WeeklyBlocks != b.WeeklyBlocks {
		return a.WeeklyBlocks > b.WeeklyBlocks
	}
	if a.RequiresLab != b.RequiresLab {
		return bool(a.RequiresLab)
	}
	return a.ID < b.ID
}

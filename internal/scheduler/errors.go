package scheduler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSchedule is returned by an allocation attempt that left at least one course short.
	ErrNoSchedule = errors.New("no complete schedule for the given rooms")
	// ErrInfeasible is returned when the relief attempt with a borrowed room also failed.
	ErrInfeasible = errors.New("timetable infeasible even with a borrowed room")
	// ErrInvalidGrid reports a malformed day set or hour window.
	ErrInvalidGrid = errors.New("invalid time-slot grid")
)

// UnplacedCourseError identifies the first course an attempt could not fully place.
type UnplacedCourseError struct {
	CourseID string
	Required int
	Placed   int
}

func (e *UnplacedCourseError) Error() string {
	return fmt.Sprintf("course %s: placed %d of %d weekly blocks", e.CourseID, e.Placed, e.Required)
}

// Unwrap exposes ErrNoSchedule to errors.Is.
func (e *UnplacedCourseError) Unwrap() error {
	return ErrNoSchedule
}

// InfeasibleError carries the failures of both attempts.
type InfeasibleError struct {
	Base   error
	Relief error
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("%s: base attempt: %v; relief attempt: %v", ErrInfeasible.Error(), e.Base, e.Relief)
}

// Unwrap exposes ErrInfeasible and the relief failure.
func (e *InfeasibleError) Unwrap() []error {
	return []error{ErrInfeasible, e.Relief}
}

package schedule

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfigMissing indicates the attendance window configuration has not
// been loaded; routing must refuse until it is.
var ErrConfigMissing = errors.New("attendance window configuration unavailable")

// Route selects which remote operation a scan is sent to.
type Route string

const (
	RouteCheckIn  Route = "checkin"
	RouteCheckOut Route = "checkout"
)

// TimeOfDay is a wall-clock boundary with second granularity and no date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses an "HH:MM:SS" string as delivered by the backend.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// SecondOfDay returns the boundary as seconds since midnight.
func (t TimeOfDay) SecondOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// WindowConfig holds the four daily boundaries fetched from the backend.
// LateThreshold and AbsenceThreshold are carried for completeness but do not
// influence routing: the backend uses them to classify attendance status.
type WindowConfig struct {
	CheckInStart     TimeOfDay
	LateThreshold    TimeOfDay
	AbsenceThreshold TimeOfDay
	CheckOutStart    TimeOfDay
}

// ParseWindowConfig builds a WindowConfig from the backend's HH:MM:SS fields.
func ParseWindowConfig(checkIn, late, absence, checkOut string) (WindowConfig, error) {
	var cfg WindowConfig
	var err error
	if cfg.CheckInStart, err = ParseTimeOfDay(checkIn); err != nil {
		return WindowConfig{}, err
	}
	if cfg.LateThreshold, err = ParseTimeOfDay(late); err != nil {
		return WindowConfig{}, err
	}
	if cfg.AbsenceThreshold, err = ParseTimeOfDay(absence); err != nil {
		return WindowConfig{}, err
	}
	if cfg.CheckOutStart, err = ParseTimeOfDay(checkOut); err != nil {
		return WindowConfig{}, err
	}
	return cfg, nil
}

// ClassifyRoute routes a scan taken at the given instant. Scans inside
// [CheckInStart, CheckOutStart) go to check-in, everything else to check-out.
// A misordered configuration yields an empty check-in window rather than an
// error.
func ClassifyRoute(cfg *WindowConfig, at time.Time) (Route, error) {
	if cfg == nil {
		return "", ErrConfigMissing
	}
	sec := at.Hour()*3600 + at.Minute()*60 + at.Second()
	if sec >= cfg.CheckInStart.SecondOfDay() && sec < cfg.CheckOutStart.SecondOfDay() {
		return RouteCheckIn, nil
	}
	return RouteCheckOut, nil
}

package availability

import (
	"errors"
	"time"

	"bookingtms/internal/widgetconfig"
)

// ErrAvailabilityUnknown is returned when the capacity snapshot cannot be read.
// Callers must not treat it as an empty or fully-available day.
var ErrAvailabilityUnknown = errors.New("availability temporarily unknown")

// Booking statuses as stored on the bookings table
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusNoShow    = "no-show"
)

// Slot is one fixed-length bookable window. Computed on demand, never persisted.
type Slot struct {
	Date                 widgetconfig.Date         `json:"date"`
	StartTime            widgetconfig.TimeOfDay    `json:"start_time"`
	EndTime              widgetconfig.TimeOfDay    `json:"end_time"`
	Start                time.Time                 `json:"start"`
	End                  time.Time                 `json:"end"`
	CapacityRemaining    int                       `json:"capacity_remaining"`
	Bookable             bool                      `json:"bookable"`
	TicketTypesAvailable []widgetconfig.TicketType `json:"ticket_types_available"`
}

// BookedInterval is one existing booking consuming capacity
type BookedInterval struct {
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Players int       `json:"players"`
	Status  string    `json:"status"`
}

// Snapshot is a point-in-time read of the bookings overlapping one date
type Snapshot struct {
	Version  string           `json:"version"`
	Bookings []BookedInterval `json:"bookings"`
}

// CapacityPolicy decides which booking statuses consume capacity
type CapacityPolicy struct {
	CountNoShows bool
}

// Counts reports whether a booking in the given status consumes capacity
func (p CapacityPolicy) Counts(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed:
		return true
	case StatusNoShow:
		return p.CountNoShows
	default:
		return false
	}
}

// CountedStatuses returns the statuses that consume capacity under this policy
func (p CapacityPolicy) CountedStatuses() []string {
	statuses := []string{StatusPending, StatusConfirmed}
	if p.CountNoShows {
		statuses = append(statuses, StatusNoShow)
	}
	return statuses
}

// DayAvailability is the response for one date
type DayAvailability struct {
	Date     widgetconfig.Date `json:"date"`
	Timezone string            `json:"timezone"`
	Slots    []Slot            `json:"slots"`
}

package availability

import (
	"time"

	"bookingtms/internal/widgetconfig"
)

// Engine turns a normalized configuration and a capacity snapshot into slots.
// It performs no I/O; the same inputs always produce the same slots.
type Engine struct {
	policy CapacityPolicy
}

func NewEngine(policy CapacityPolicy) *Engine {
	return &Engine{policy: policy}
}

// Policy returns the capacity policy the engine counts with
func (e *Engine) Policy() CapacityPolicy {
	return e.policy
}

// ComputeSlots returns the bookable-window slots of date in ascending start order
func (e *Engine) ComputeSlots(cfg *widgetconfig.WidgetConfig, date widgetconfig.Date, snap Snapshot, now time.Time) []Slot {
	return ApplyAdvanceWindow(cfg, date, e.BuildSlots(cfg, date, snap), now)
}

// BuildSlots lays out every slot of the effective window and its remaining capacity.
// A trailing remainder shorter than the interval is dropped, never clipped.
// Slots whose start or end falls in a daylight-saving gap or overlap are skipped,
// so every slot lasts exactly the interval.
// The result does not depend on the current time and is safe to memoize per snapshot version.
func (e *Engine) BuildSlots(cfg *widgetconfig.WidgetConfig, date widgetconfig.Date, snap Snapshot) []Slot {
	slots := []Slot{}

	window, open := cfg.EffectiveWindow(date)
	if !open {
		return slots
	}

	stride := widgetconfig.TimeOfDay(cfg.SlotIntervalMinutes)
	if stride <= 0 {
		return slots
	}
	loc := location(cfg)
	interval := cfg.SlotInterval()

	for s := window.Start; s+stride <= window.End; s += stride {
		start := date.At(s, loc)
		end := start.Add(interval)
		if !onWallClock(start, date, s, loc) || !onWallClock(end, date, s+stride, loc) {
			continue
		}

		remaining := cfg.MaxPlayers - e.consumed(snap, start, end)
		if remaining < 0 {
			remaining = 0
		}

		slot := Slot{
			Date:                 date,
			StartTime:            s,
			EndTime:              s + stride,
			Start:                start,
			End:                  end,
			CapacityRemaining:    remaining,
			Bookable:             remaining > 0,
			TicketTypesAvailable: []widgetconfig.TicketType{},
		}
		if slot.Bookable {
			slot.TicketTypesAvailable = cfg.TicketTypes
		}
		slots = append(slots, slot)
	}
	return slots
}

// ApplyAdvanceWindow drops slots starting outside [now+minLead, now+maxLead],
// and every slot of today when same-day booking is disabled.
func ApplyAdvanceWindow(cfg *widgetconfig.WidgetConfig, date widgetconfig.Date, slots []Slot, now time.Time) []Slot {
	out := []Slot{}
	if !cfg.Advance.SameDayAllowed && widgetconfig.DateOf(now.In(location(cfg))) == date {
		return out
	}

	earliest := now.Add(cfg.Advance.MinLead)
	latest := now.Add(cfg.Advance.MaxLead)
	for _, s := range slots {
		if s.Start.Before(earliest) || s.Start.After(latest) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// consumed sums the players of counted bookings overlapping [start, end)
func (e *Engine) consumed(snap Snapshot, start, end time.Time) int {
	total := 0
	for _, b := range snap.Bookings {
		if !e.policy.Counts(b.Status) {
			continue
		}
		if b.Start.Before(end) && start.Before(b.End) {
			total += b.Players
		}
	}
	return total
}

// onWallClock reports whether t reads as tod on date in loc. 24:00 reads as midnight of the next day.
func onWallClock(t time.Time, date widgetconfig.Date, tod widgetconfig.TimeOfDay, loc *time.Location) bool {
	want := time.Date(date.Year, date.Month, date.Day, 0, 0, 0, 0, time.UTC).Add(time.Duration(tod) * time.Minute)
	got := t.In(loc)
	return got.Year() == want.Year() && got.Month() == want.Month() && got.Day() == want.Day() &&
		got.Hour() == want.Hour() && got.Minute() == want.Minute()
}

func location(cfg *widgetconfig.WidgetConfig) *time.Location {
	if cfg.Location == nil {
		return time.UTC
	}
	return cfg.Location
}

// DayBounds returns the instants bounding date in the venue's time zone
func DayBounds(cfg *widgetconfig.WidgetConfig, date widgetconfig.Date) (time.Time, time.Time) {
	loc := location(cfg)
	return date.At(0, loc), date.At(24*60, loc)
}

// FindSlot returns the slot starting at start, if present
func FindSlot(slots []Slot, start time.Time) (Slot, bool) {
	for _, s := range slots {
		if s.Start.Equal(start) {
			return s, true
		}
	}
	return Slot{}, false
}

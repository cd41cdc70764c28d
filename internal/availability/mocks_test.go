package availability

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

type fakeReader struct {
	mu       sync.Mutex
	bookings []BookedInterval
	failures int // number of calls that fail before succeeding
	err      error
	calls    int
	statuses []string
}

func (r *fakeReader) ReadBookings(ctx context.Context, widgetID uuid.UUID, from, to time.Time, statuses []string) ([]BookedInterval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.statuses = statuses
	if r.calls <= r.failures {
		return nil, r.err
	}
	var out []BookedInterval
	for _, b := range r.bookings {
		if b.Start.Before(to) && from.Before(b.End) {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeMemo struct {
	mu       sync.Mutex
	versions map[string]int
	lists    map[string][]Slot
	stores   int
}

func newFakeMemo() *fakeMemo {
	return &fakeMemo{versions: make(map[string]int), lists: make(map[string][]Slot)}
}

func (m *fakeMemo) Version(ctx context.Context, widgetID, date string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strconv.Itoa(m.versions[widgetID+date]), nil
}

func (m *fakeMemo) Load(ctx context.Context, widgetID, date, fingerprint, version string) ([]Slot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.lists[widgetID+date+fingerprint+version]
	return s, ok
}

func (m *fakeMemo) Store(ctx context.Context, widgetID, date, fingerprint, version string, slots []Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if strconv.Itoa(m.versions[widgetID+date]) != version {
		return nil
	}
	m.lists[widgetID+date+fingerprint+version] = slots
	m.stores++
	return nil
}

func (m *fakeMemo) Bump(ctx context.Context, widgetID, date string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[widgetID+date]++
	return strconv.Itoa(m.versions[widgetID+date]), nil
}

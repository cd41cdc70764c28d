package widgetconfig

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// fakeRepository is an in-memory Repository
type fakeRepository struct {
	mu      sync.Mutex
	widgets map[uuid.UUID]*Widget
	updates int
	err     error
}

func newFakeRepository(widgets ...*Widget) *fakeRepository {
	r := &fakeRepository{widgets: make(map[uuid.UUID]*Widget)}
	for _, w := range widgets {
		r.widgets[w.ID] = w
	}
	return r
}

func (r *fakeRepository) Create(ctx context.Context, widget *Widget) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if widget.ID == uuid.Nil {
		widget.ID = uuid.New()
	}
	r.widgets[widget.ID] = widget
	return nil
}

func (r *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	w, ok := r.widgets[id]
	if !ok {
		return nil, ErrWidgetNotFound
	}
	cp := *w
	return &cp, nil
}

func (r *fakeRepository) GetByEmbedKey(ctx context.Context, embedKey string) (*Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, w := range r.widgets {
		if w.EmbedKey == embedKey && w.Active {
			cp := *w
			return &cp, nil
		}
	}
	return nil, ErrWidgetNotFound
}

func (r *fakeRepository) List(ctx context.Context, venueID *uuid.UUID) ([]Widget, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Widget
	for _, w := range r.widgets {
		if venueID == nil || w.VenueID == *venueID {
			out = append(out, *w)
		}
	}
	return out, r.err
}

func (r *fakeRepository) UpdateConfig(ctx context.Context, id uuid.UUID, raw RawConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	w, ok := r.widgets[id]
	if !ok {
		return ErrWidgetNotFound
	}
	w.Config = raw
	r.updates++
	return nil
}

package embed

import (
	"context"

	"bookingtms/internal/embedkey"
	"bookingtms/internal/widgetconfig"

	"github.com/google/uuid"
)

type fakeResolver struct {
	widgets map[string]*widgetconfig.Widget
	err     error
}

func (r *fakeResolver) Resolve(ctx context.Context, key string) (*widgetconfig.Widget, error) {
	if err := embedkey.AssertValid(key); err != nil {
		return nil, err
	}
	if r.err != nil {
		return nil, r.err
	}
	w, ok := r.widgets[key]
	if !ok {
		return nil, embedkey.ErrEmbedKeyNotFound
	}
	return w, nil
}

type fakeLookup struct {
	widgets map[string]*widgetconfig.Widget
}

func (l *fakeLookup) GetWidget(ctx context.Context, id string) (*widgetconfig.Widget, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, widgetconfig.ErrInvalidWidgetID
	}
	w, ok := l.widgets[id]
	if !ok {
		return nil, widgetconfig.ErrWidgetNotFound
	}
	return w, nil
}

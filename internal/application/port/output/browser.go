package output

import (
	"context"

	"zenix/internal/domain/entity"
)

type TabPort interface {
	ActiveTab(ctx context.Context) (entity.Tab, error)
}

type PageContentProvider interface {
	// Extract returns the cleaned HTML of the active document.
	Extract(ctx context.Context) (entity.PageContent, error)
	// ExtractText returns the main readable text of the active document.
	ExtractText(ctx context.Context) (entity.PageContent, error)
}

// SelectionSurface is the in-page half of element selection: the overlay,
// the indicator and the listeners that feed SelectionEvents.
type SelectionSurface interface {
	Location() string
	Mount(ctx context.Context, events SelectionEvents) error
	MoveHighlight(rect entity.Rect) error
	// Unmount must be idempotent.
	Unmount() error
}

type SelectionEvents interface {
	Hover(rect entity.Rect)
	Click(snapshot entity.ElementSnapshot)
	Key(key string)
}

type HTMLSanitizer interface {
	Sanitize(html string, maxLen int) string
	PlainText(html string, maxLen int) string
}

package output

import "zenix/internal/domain/entity"

// PanelView renders the side panel. Calls come from a single goroutine.
type PanelView interface {
	ShowMessage(role entity.MessageRole, text string)
	ShowThinking()
	UpdateStream(displayText string)
	CompleteStream(displayText string, truncated bool)
	RemoveThinking()
	ShowError(message string)
	ShowNotice(message string)

	SetInputEnabled(enabled bool)
	SetSelectionMode(active bool)
	ShowSelectedElement(el *entity.SelectedElement)
	ShowPage(url string)
	Reset()
}

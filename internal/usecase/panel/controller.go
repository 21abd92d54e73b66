// Package panel is the side panel: it sends questions to the background,
// renders relay notifications and keeps the per-page conversation.
package panel

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

const (
	MsgConfigureKey    = "Please configure your Google AI API key in settings first."
	MsgSendFailed      = "Sorry, I encountered an error. Please try again."
	MsgEnterKey        = "Please enter an API key"
	MsgSettingsSaved   = "Settings saved successfully!"
	MsgSettingsFailed  = "Error saving settings. Please try again."
	MsgSelectionFailed = "Failed to start element selection. Please try again."
	MsgSelectionClear  = "Selection cleared. Returning to full page context."
	MsgChatWaiting     = "New chat started. You can ask again once the previous answer stops."
)

var (
	ErrStreamInProgress = errors.New("a response is still streaming")
	ErrEmptyAPIKey      = errors.New("api key is empty")
)

type Controller struct {
	mu            sync.Mutex
	view          output.PanelView
	bus           output.MessageBus
	conversations output.ConversationStore
	settings      output.SettingsStore
	logger        output.LoggerPort

	url      string
	history  entity.History
	selected *entity.SelectedElement

	streaming   bool
	placeholder bool
	// streamID is the run being shown and streamURL the page it answers.
	// An empty streamID while streaming means the run is not known yet.
	streamID  string
	streamURL string
	// finishedID is the last run that ended; its stragglers are ignored.
	finishedID string
	// abandoned holds runs dropped by NewChat that have not ended yet.
	// Input stays disabled until they do, so one run is in flight at a time.
	abandoned map[string]bool
}

func NewController(
	view output.PanelView,
	bus output.MessageBus,
	conversations output.ConversationStore,
	settings output.SettingsStore,
	logger output.LoggerPort,
) *Controller {
	return &Controller{
		view:          view,
		bus:           bus,
		conversations: conversations,
		settings:      settings,
		logger:        logger.WithField("component", "panel"),
		abandoned:     make(map[string]bool),
	}
}

// Listen subscribes the controller to the panel endpoint.
func (c *Controller) Listen() (func(), error) {
	return c.bus.Subscribe(output.EndpointPanel, c.HandleMessage)
}

// Open shows the conversation stored for url.
func (c *Controller) Open(ctx context.Context, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.switchPage(ctx, url)
}

func (c *Controller) History() []entity.ConversationTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]entity.ConversationTurn(nil), c.history...)
}

func (c *Controller) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streaming
}

func (c *Controller) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Send asks about the current page. Without a stored API key nothing leaves
// the panel and a CredentialMissing fault is returned.
func (c *Controller) Send(ctx context.Context, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}

	key, err := c.settings.APIKey(ctx)
	if err != nil {
		c.logger.Error("Failed to read API key", "error", err)
	}

	c.mu.Lock()
	if c.streaming {
		c.mu.Unlock()
		return ErrStreamInProgress
	}
	if key == "" {
		c.view.ShowMessage(entity.RoleAssistant, MsgConfigureKey)
		c.view.SetInputEnabled(true)
		c.mu.Unlock()
		return fault.New(fault.CredentialMissing, MsgConfigureKey)
	}

	prior := append([]entity.ConversationTurn(nil), c.history...)
	c.view.ShowMessage(entity.RoleUser, message)
	c.history = c.history.Append(entity.ConversationTurn{Role: entity.RoleUser, Content: message})
	c.persist(ctx)

	id := uuid.NewString()
	c.streaming = true
	c.placeholder = true
	c.streamID = id
	c.streamURL = c.url
	c.view.SetInputEnabled(false)
	c.view.ShowThinking()
	c.mu.Unlock()

	if err := c.bus.Send(ctx, output.EndpointBackground, entity.AskAIStream(message, prior).ForStream(id)); err != nil {
		c.logger.Error("Failed to reach background", "error", err)
		c.mu.Lock()
		defer c.mu.Unlock()
		c.view.RemoveThinking()
		c.view.ShowMessage(entity.RoleAssistant, MsgSendFailed)
		c.endStream()
		return err
	}
	return nil
}

func (c *Controller) HandleMessage(ctx context.Context, env entity.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch env.Action {
	case entity.ActionStreamChunk:
		if c.follow(env) {
			c.onChunk(env)
		}
	case entity.ActionStreamComplete:
		if c.follow(env) {
			c.onComplete(ctx, env)
		}
	case entity.ActionStreamError:
		if c.follow(env) {
			c.onError(env)
		}
	case entity.ActionTabChanged:
		if env.URL != c.url {
			c.switchPage(ctx, env.URL)
		}
	case entity.ActionElementSelectionComplete:
		c.view.SetSelectionMode(false)
		if env.Content == nil {
			return
		}
		el := *env.Content
		c.selected = &el
		c.view.ShowSelectedElement(&el)
		c.view.ShowNotice("Element selected: <" + el.Describe() + ">. Your next questions will focus on this element.")
	case entity.ActionElementSelectionCancelled:
		c.view.SetSelectionMode(false)
	case entity.ActionSelectionError:
		c.view.SetSelectionMode(false)
		msg := env.Error
		if msg == "" {
			msg = MsgSelectionFailed
		}
		c.view.ShowError(msg)
	default:
		c.logger.Debug("Ignoring message", "action", env.Action)
	}
}

// follow reports whether env belongs to the run the panel is showing. Runs
// abandoned by NewChat are swallowed here, and input comes back when the
// last of them ends. A run the panel did not start is adopted.
func (c *Controller) follow(env entity.Envelope) bool {
	id := env.StreamID
	terminal := env.Action != entity.ActionStreamChunk
	if id == "" {
		if !c.streaming {
			c.streamURL = c.url
		}
		return true
	}
	if c.abandoned[id] {
		if terminal {
			delete(c.abandoned, id)
			c.finishedID = id
			if len(c.abandoned) == 0 && c.streamID == "" {
				c.endStream()
			}
		}
		return false
	}
	if id == c.finishedID {
		return false
	}
	switch c.streamID {
	case id:
		return true
	case "":
		if len(c.abandoned) > 0 {
			return false
		}
		c.streamID = id
		c.streamURL = c.url
		return true
	default:
		c.logger.Debug("Ignoring notification of another stream", "stream_id", id, "current", c.streamID)
		return false
	}
}

func (c *Controller) onChunk(env entity.Envelope) {
	if c.streamURL != c.url {
		return
	}
	if !c.placeholder {
		// reopened while a stream was running; the cumulative text catches up
		c.placeholder = true
		c.streaming = true
		c.view.SetInputEnabled(false)
		c.view.ShowThinking()
	}
	c.view.UpdateStream(env.DisplayText)
}

// onComplete records the answer under the page it was asked on, which is
// not the shown page when the tab changed mid-stream.
func (c *Controller) onComplete(ctx context.Context, env entity.Envelope) {
	if c.streamURL == c.url {
		if c.placeholder {
			c.view.CompleteStream(env.DisplayText, env.Truncated)
		}
		if last, ok := c.history.Last(); ok && last.Role == entity.RoleUser && env.FullText != "" {
			if !c.placeholder {
				c.view.ShowMessage(entity.RoleAssistant, env.DisplayText)
			}
			c.history = c.history.Append(entity.ConversationTurn{Role: entity.RoleAssistant, Content: env.FullText})
			c.persist(ctx)
		}
	} else {
		c.answerElsewhere(ctx, c.streamURL, env.FullText)
	}
	c.endStream()
}

func (c *Controller) answerElsewhere(ctx context.Context, url, answer string) {
	if url == "" || answer == "" {
		return
	}
	turns, err := c.conversations.Load(ctx, url)
	if err != nil {
		c.logger.Error("Failed to load conversation", "url", url, "error", err)
		return
	}
	history := entity.History(turns)
	if last, ok := history.Last(); !ok || last.Role != entity.RoleUser {
		return
	}
	history = history.Append(entity.ConversationTurn{Role: entity.RoleAssistant, Content: answer})
	if err := c.conversations.Save(ctx, url, history); err != nil {
		c.logger.Error("Failed to save conversation", "url", url, "error", err)
	}
}

func (c *Controller) onError(env entity.Envelope) {
	if c.placeholder {
		c.view.RemoveThinking()
	}
	msg := env.Error
	if msg == "" {
		msg = MsgSendFailed
	}
	c.view.ShowError(msg)
	c.endStream()
}

// endStream closes the shown run and gives input back unless an abandoned
// run is still going.
func (c *Controller) endStream() {
	if c.streamID != "" {
		c.finishedID = c.streamID
	}
	c.streamID = ""
	c.streamURL = ""
	c.placeholder = false
	if len(c.abandoned) > 0 {
		return
	}
	c.streaming = false
	c.view.SetInputEnabled(true)
}

// StartSelection asks the background to put the active page in selection mode.
func (c *Controller) StartSelection(ctx context.Context) error {
	c.mu.Lock()
	c.view.SetSelectionMode(true)
	c.mu.Unlock()

	if err := c.bus.Send(ctx, output.EndpointBackground, entity.StartElementSelection()); err != nil {
		c.mu.Lock()
		c.view.SetSelectionMode(false)
		c.view.ShowError(MsgSelectionFailed)
		c.mu.Unlock()
		return err
	}
	return nil
}

// ClearSelection returns to whole-page context.
func (c *Controller) ClearSelection(ctx context.Context) error {
	c.mu.Lock()
	c.selected = nil
	c.view.ShowSelectedElement(nil)
	c.mu.Unlock()

	err := c.bus.Send(ctx, output.EndpointBackground, entity.ClearSelectedElement())

	c.mu.Lock()
	c.view.ShowNotice(MsgSelectionClear)
	c.mu.Unlock()
	return err
}

func (c *Controller) Selected() (entity.SelectedElement, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return entity.SelectedElement{}, false
	}
	return *c.selected, true
}

// NewChat forgets the conversation of the current page. A running stream is
// abandoned and its remaining notifications ignored.
func (c *Controller) NewChat(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = nil
	c.view.Reset()
	if c.streaming && c.streamURL == c.url {
		c.abandon()
	}
	if c.url == "" {
		return nil
	}
	if err := c.conversations.Delete(ctx, c.url); err != nil {
		c.logger.Error("Failed to delete conversation", "url", c.url, "error", err)
		return err
	}
	return nil
}

// abandon stops showing the current run. Input stays off until it ends.
// Caller holds mu.
func (c *Controller) abandon() {
	if c.streamID != "" {
		c.abandoned[c.streamID] = true
	}
	c.streamID = ""
	c.streamURL = ""
	c.placeholder = false
	if len(c.abandoned) == 0 {
		// nothing identifies the run, so nothing can hold input back
		c.streaming = false
		c.view.SetInputEnabled(true)
		return
	}
	c.view.ShowNotice(MsgChatWaiting)
}

// SaveSettings stores a new API key.
func (c *Controller) SaveSettings(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)

	c.mu.Lock()
	defer c.mu.Unlock()

	if key == "" {
		c.view.ShowError(MsgEnterKey)
		return ErrEmptyAPIKey
	}
	if err := c.settings.SetAPIKey(ctx, key); err != nil {
		c.logger.Error("Failed to save settings", "error", err)
		c.view.ShowError(MsgSettingsFailed)
		return err
	}
	c.view.ShowNotice(MsgSettingsSaved)
	return nil
}

// switchPage saves the current conversation and loads the one for url.
// Caller holds mu.
func (c *Controller) switchPage(ctx context.Context, url string) {
	if c.url != "" {
		c.persist(ctx)
	}
	c.url = url
	c.history = nil
	// a running stream keeps going; it is drawn again if its page comes back
	c.placeholder = false
	c.view.Reset()
	c.view.ShowPage(url)

	if url == "" {
		return
	}
	turns, err := c.conversations.Load(ctx, url)
	if err != nil {
		c.logger.Error("Failed to load conversation", "url", url, "error", err)
		return
	}
	c.history = entity.History(turns).Window()
	for _, turn := range c.history {
		c.view.ShowMessage(entity.NormalizeRole(turn.Role), turn.Content)
	}
}

func (c *Controller) persist(ctx context.Context) {
	if c.url == "" {
		return
	}
	if err := c.conversations.Save(ctx, c.url, c.history); err != nil {
		c.logger.Error("Failed to save conversation", "url", c.url, "error", err)
	}
}

// Package selection runs the element picker inside one page.
package selection

import (
	"context"
	"errors"
	"strings"
	"sync"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

type State int

const (
	Idle State = iota
	Active
	Selected
	Cancelled
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Selected:
		return "selected"
	case Cancelled:
		return "cancelled"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

var _ output.SelectionEvents = (*Controller)(nil)

// Controller owns the selection session of a single page. It reports the
// outcome to the background and always tears the surface down first.
type Controller struct {
	mu        sync.Mutex
	state     State
	last      State
	surface   output.SelectionSurface
	sanitizer output.HTMLSanitizer
	bus       output.MessageBus
	logger    output.LoggerPort
	ctx       context.Context
}

func NewController(surface output.SelectionSurface, sanitizer output.HTMLSanitizer, bus output.MessageBus, logger output.LoggerPort) *Controller {
	return &Controller{
		surface:   surface,
		sanitizer: sanitizer,
		bus:       bus,
		logger:    logger.WithField("component", "selection"),
		ctx:       context.Background(),
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastOutcome is the state the most recent session resolved to.
func (c *Controller) LastOutcome() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Start enters selection mode. Non-web documents fail with NoActiveDocument
// and never become Active. A Start while Active is ignored.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Active {
		c.logger.Warn("Selection already active, ignoring start")
		return nil
	}

	location := c.surface.Location()
	if !entity.IsWebURL(location) {
		c.state = Errored
		c.last = Errored
		c.logger.Warn("Selection refused on non-web document", "location", location)
		return fault.New(fault.NoActiveDocument, fault.MsgSelectionWebOnly)
	}

	if err := c.surface.Mount(ctx, c); err != nil {
		c.state = Errored
		c.last = Errored
		c.logger.Error("Failed to mount selection surface", "error", err)
		return err
	}

	c.ctx = ctx
	c.state = Active
	c.logger.Info("Selection started", "location", location)
	return nil
}

func (c *Controller) Hover(rect entity.Rect) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Active {
		return
	}
	if err := c.surface.MoveHighlight(rect); err != nil {
		c.logger.Debug("Highlight move failed", "error", err)
	}
}

func (c *Controller) Click(snapshot entity.ElementSnapshot) {
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return
	}
	el := c.sanitize(snapshot)
	c.resolve(Selected)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Info("Element selected", "element", el.Describe(), "content_len", len(el.Content))
	c.signal(ctx, entity.ElementSelected(el))
}

func (c *Controller) Key(key string) {
	if key != "Escape" && key != "Esc" {
		return
	}
	c.mu.Lock()
	if c.state != Active {
		c.mu.Unlock()
		return
	}
	c.resolve(Cancelled)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Info("Selection cancelled")
	c.signal(ctx, entity.SelectionCancelled())
}

// Cancel leaves selection mode on request of the background. Nothing is signaled.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Active {
		c.resolve(Cancelled)
	}
}

// Unload is called when the page navigates away or closes.
func (c *Controller) Unload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Active {
		c.teardown()
	}
	c.state = Idle
}

// HandleMessage serves the content endpoint of this page.
func (c *Controller) HandleMessage(ctx context.Context, env entity.Envelope) {
	switch env.Action {
	case entity.ActionStartSelection:
		if err := c.Start(ctx); err != nil {
			msg := fault.MsgSelectionFailed
			var f *fault.Fault
			if errors.As(err, &f) && f.Kind == fault.NoActiveDocument {
				msg = f.UserMessage()
			}
			c.signal(ctx, entity.SelectionError(msg))
		}
	case entity.ActionCancelSelection:
		c.Cancel()
	default:
		c.logger.Debug("Ignoring message", "action", env.Action)
	}
}

// resolve tears down and returns to Idle. Caller holds mu.
func (c *Controller) resolve(outcome State) {
	c.state = outcome
	c.teardown()
	c.last = outcome
	c.state = Idle
}

func (c *Controller) teardown() {
	if err := c.surface.Unmount(); err != nil {
		c.logger.Warn("Selection teardown incomplete", "error", err)
	}
}

func (c *Controller) sanitize(s entity.ElementSnapshot) entity.SelectedElement {
	url := s.URL
	if url == "" {
		url = c.surface.Location()
	}
	return entity.SelectedElement{
		TagName:     strings.ToLower(s.TagName),
		ID:          s.ID,
		Classes:     strings.TrimSpace(s.Classes),
		Content:     c.sanitizer.Sanitize(s.HTML, entity.MaxElementContentLen),
		TextContent: s.TextContent,
		URL:         url,
	}.Truncated()
}

func (c *Controller) signal(ctx context.Context, env entity.Envelope) {
	err := c.bus.Send(ctx, output.EndpointBackground, env)
	switch {
	case err == nil:
	case errors.Is(err, output.ErrNoReceiver):
		c.logger.Debug("Background not listening", "action", env.Action)
	default:
		c.logger.Warn("Failed to signal background", "action", env.Action, "error", err)
	}
}

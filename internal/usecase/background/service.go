// Package background is the long-lived context between the panel, the pages
// and the model proxy. It owns the selected element and starts relay runs.
package background

import (
	"context"
	"errors"
	"sync"

	"zenix/internal/application/port/input"
	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

type ContentMode string

const (
	ContentHTML ContentMode = "html"
	ContentText ContentMode = "text"
)

// SelectionSlot holds the element the next prompt focuses on.
type SelectionSlot struct {
	mu sync.Mutex
	el *entity.SelectedElement
}

func (s *SelectionSlot) Set(el entity.SelectedElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.el = &el
}

func (s *SelectionSlot) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.el = nil
}

// Get returns a copy of the selected element, if any.
func (s *SelectionSlot) Get() (entity.SelectedElement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.el == nil {
		return entity.SelectedElement{}, false
	}
	return *s.el, true
}

type Service struct {
	settings output.SettingsStore
	tabs     output.TabPort
	pages    output.PageContentProvider
	relay    input.StreamRelay
	bus      output.MessageBus
	logger   output.LoggerPort
	mode     ContentMode

	slot SelectionSlot

	// streamCtx bounds every relay run; it is the lifetime of the background.
	streamCtx context.Context
	streams   sync.WaitGroup
}

type Option func(*Service)

func WithContentMode(mode ContentMode) Option {
	return func(s *Service) { s.mode = mode }
}

func NewService(
	settings output.SettingsStore,
	tabs output.TabPort,
	pages output.PageContentProvider,
	relay input.StreamRelay,
	bus output.MessageBus,
	logger output.LoggerPort,
	opts ...Option,
) *Service {
	s := &Service{
		settings:  settings,
		tabs:      tabs,
		pages:     pages,
		relay:     relay,
		bus:       bus,
		logger:    logger.WithField("component", "background"),
		mode:      ContentHTML,
		streamCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen subscribes the service to the background endpoint. Streams started
// afterwards live as long as ctx.
func (s *Service) Listen(ctx context.Context) (func(), error) {
	s.streamCtx = ctx
	return s.bus.Subscribe(output.EndpointBackground, s.HandleMessage)
}

// Wait blocks until every relay run started so far has finished.
func (s *Service) Wait() {
	s.streams.Wait()
}

func (s *Service) Selection() (entity.SelectedElement, bool) {
	return s.slot.Get()
}

func (s *Service) HandleMessage(ctx context.Context, env entity.Envelope) {
	switch env.Action {
	case entity.ActionAskAIStream:
		s.askAIStream(ctx, env)
	case entity.ActionStartElementSelection:
		s.startElementSelection(ctx)
	case entity.ActionElementSelected:
		if env.Content == nil {
			s.logger.Warn("elementSelected without content")
			return
		}
		s.slot.Set(*env.Content)
		s.logger.Info("Element stored", "element", env.Content.Describe(), "url", env.Content.URL)
		s.notify(ctx, entity.ElementSelectionComplete(*env.Content))
	case entity.ActionSelectionCancelled:
		s.slot.Clear()
		s.notify(ctx, entity.ElementSelectionCancelled())
	case entity.ActionSelectionError:
		s.notify(ctx, entity.SelectionError(env.Error))
	case entity.ActionClearSelectedElement:
		s.slot.Clear()
		s.logger.Info("Selection cleared")
	default:
		s.logger.Debug("Ignoring message", "action", env.Action)
	}
}

// TabChanged tells the panel the active document changed.
func (s *Service) TabChanged(ctx context.Context, tab entity.Tab) {
	s.logger.Debug("Tab changed", "tab_id", tab.ID, "url", tab.URL)
	s.notify(ctx, entity.TabChanged(tab))
}

// WatchTabs forwards tab changes until ctx is done or tabs is closed.
func (s *Service) WatchTabs(ctx context.Context, tabs <-chan entity.Tab) {
	for {
		select {
		case <-ctx.Done():
			return
		case tab, ok := <-tabs:
			if !ok {
				return
			}
			s.TabChanged(ctx, tab)
		}
	}
}

func (s *Service) askAIStream(ctx context.Context, env entity.Envelope) {
	key, err := s.settings.APIKey(ctx)
	if err != nil {
		s.logger.Error("Failed to read API key", "error", err)
		s.notify(ctx, entity.StreamError(fault.Classify(err).UserMessage()).ForStream(env.StreamID))
		return
	}
	if key == "" {
		s.notify(ctx, entity.StreamError(fault.MsgCredentialMissing).ForStream(env.StreamID))
		return
	}

	page, err := s.pageContent(ctx)
	if err != nil {
		s.logger.Warn("No page content for request", "error", err)
		s.notify(ctx, entity.StreamError(fault.Classify(err).UserMessage()).ForStream(env.StreamID))
		return
	}

	s.streams.Add(1)
	h := s.relay.Start(s.streamCtx, entity.ChatRequest{
		StreamID:       env.StreamID,
		Message:        env.Message,
		WebpageContent: &page,
		History:        env.History,
		APIKey:         key,
	})
	s.logger.Info("Stream requested", "stream_id", h.ID(), "url", page.URL, "selected", page.IsSelectedElement)

	go func() {
		defer s.streams.Done()
		<-h.Done()
	}()
}

// pageContent prefers the selected element over the active document.
func (s *Service) pageContent(ctx context.Context) (entity.PageContent, error) {
	if el, ok := s.slot.Get(); ok {
		return entity.PageContentFromSelection(el), nil
	}
	if s.mode == ContentText {
		return s.pages.ExtractText(ctx)
	}
	return s.pages.Extract(ctx)
}

func (s *Service) startElementSelection(ctx context.Context) {
	tab, err := s.tabs.ActiveTab(ctx)
	if err != nil || !tab.IsWebDocument() {
		s.logger.Warn("Selection unavailable", "url", tab.URL, "error", err)
		s.notify(ctx, entity.SelectionError(fault.MsgSelectionWebOnly))
		return
	}

	if err := s.bus.Send(ctx, output.ContentEndpoint(tab.ID), entity.StartSelection()); err != nil {
		s.logger.Error("Failed to reach content script", "tab_id", tab.ID, "error", err)
		s.notify(ctx, entity.SelectionError(fault.MsgSelectionFailed))
	}
}

// notify sends to the panel, which may not be open.
func (s *Service) notify(ctx context.Context, env entity.Envelope) {
	err := s.bus.Send(ctx, output.EndpointPanel, env)
	switch {
	case err == nil:
	case errors.Is(err, output.ErrNoReceiver):
		s.logger.Debug("Panel not listening", "action", env.Action)
	default:
		s.logger.Warn("Panel notification dropped", "action", env.Action, "error", err)
	}
}

package di

import (
	"context"
	"fmt"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/infrastructure/browser/rod"
	"zenix/internal/infrastructure/browser/rodwrapper"
	"zenix/internal/infrastructure/messaging"
	"zenix/internal/usecase/background"
	"zenix/internal/usecase/gateway"
	"zenix/internal/usecase/relay"
	"zenix/internal/usecase/selection"
)

// Session is one browser tab with its background and content contexts
// connected through a hub. A panel attaches to Hub separately.
type Session struct {
	Hub        *messaging.Hub
	Browser    *rod.BrowserAdapter
	Background *background.Service
	Selection  *selection.Controller

	logger output.LoggerPort
	stops  []func()
}

type SessionOptions struct {
	// Local runs the chat service in process instead of calling the proxy.
	Local bool
}

func (c *Container) NewSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	cleaner := rodwrapper.NewCleaner(nil)
	browser, err := rod.NewBrowserAdapter(ctx, c.Config.Browser, cleaner, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	hub := messaging.NewHub(c.Logger.WithField("component", "hub"))
	gw := gateway.New(c.FrameSource(opts.Local), c.Logger.WithField("component", "gateway"))
	rl := relay.New(gw, hub, c.Logger, relay.WithMetrics(c.Metrics))

	bg := background.NewService(
		c.Store,
		browser,
		browser,
		rl,
		hub,
		c.Logger,
		background.WithContentMode(background.ContentMode(c.Config.ContentMode)),
	)
	sel := selection.NewController(browser.Surface(), cleaner, hub, c.Logger)

	return &Session{
		Hub:        hub,
		Browser:    browser,
		Background: bg,
		Selection:  sel,
		logger:     c.Logger.WithField("component", "session"),
	}, nil
}

// Run wires the contexts together and blocks until ctx is done. Navigation
// tears down any selection on the old document before the panel hears of
// the new one.
func (s *Session) Run(ctx context.Context) error {
	stopBg, err := s.Background.Listen(ctx)
	if err != nil {
		return fmt.Errorf("background listen: %w", err)
	}
	s.stops = append(s.stops, stopBg)

	tab, err := s.Browser.ActiveTab(ctx)
	if err != nil {
		return fmt.Errorf("read active tab: %w", err)
	}
	stopContent, err := s.Hub.Subscribe(output.ContentEndpoint(tab.ID), s.Selection.HandleMessage)
	if err != nil {
		return fmt.Errorf("content listen: %w", err)
	}
	s.stops = append(s.stops, stopContent)

	navigations := s.Browser.WatchNavigation(ctx)
	tabs := make(chan entity.Tab)
	go func() {
		defer close(tabs)
		for tab := range navigations {
			s.Selection.Unload()
			select {
			case tabs <- tab:
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("Session running", "url", tab.URL)
	s.Background.WatchTabs(ctx, tabs)
	return nil
}

// Close stops listening, waits for running streams and shuts the browser.
func (s *Session) Close() {
	for i := len(s.stops) - 1; i >= 0; i-- {
		s.stops[i]()
	}
	s.stops = nil
	s.Background.Wait()
	s.Hub.Close()
	s.Browser.Close()
}

package rod

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
)

var (
	_ output.TabPort             = (*BrowserAdapter)(nil)
	_ output.PageContentProvider = (*BrowserAdapter)(nil)
)

const (
	defaultTimeout = 10 * time.Second
	// the adapter drives a single tab
	tabID = 1
)

// mainContentSelectors are tried in order by ExtractText.
var mainContentSelectors = []string{
	"main",
	"article",
	`[role="main"]`,
	".content",
	".post-content",
	".entry-content",
	"#content",
	"#main",
}

type BrowserAdapter struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
	timeout  time.Duration
	cleaner  output.HTMLSanitizer
	logger   output.LoggerPort

	mu     sync.Mutex
	closed bool
}

type BrowserConfig struct {
	Headless  bool          `yaml:"headless" split_words:"true"`
	Timeout   time.Duration `yaml:"timeout" split_words:"true"`
	NoSandbox bool          `yaml:"no_sandbox" split_words:"true"`
	DevTools  bool          `yaml:"devtools" split_words:"true"`
	// Bin points at a Chrome binary; empty lets rod download or find one.
	Bin string `yaml:"bin" split_words:"true"`
}

func DefaultConfig() BrowserConfig {
	return BrowserConfig{
		Headless: false,
		Timeout:  defaultTimeout,
	}
}

func NewBrowserAdapter(ctx context.Context, cfg BrowserConfig, cleaner output.HTMLSanitizer, logger output.LoggerPort) (*BrowserAdapter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	l := launcher.New().
		Context(ctx).
		Headless(cfg.Headless).
		Devtools(cfg.DevTools).
		NoSandbox(cfg.NoSandbox).
		Delete("use-mock-keychain")
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	logger.Info("Browser launched", "headless", cfg.Headless)
	return &BrowserAdapter{
		browser:  browser,
		launcher: l,
		page:     page,
		timeout:  cfg.Timeout,
		cleaner:  cleaner,
		logger:   logger.WithField("component", "browser"),
	}, nil
}

func (b *BrowserAdapter) Navigate(ctx context.Context, url string) error {
	page := b.page.Context(ctx).Timeout(b.timeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page did not load: %w", err)
	}
	return nil
}

func (b *BrowserAdapter) ActiveTab(ctx context.Context) (entity.Tab, error) {
	if !b.IsReady() {
		return entity.Tab{}, fmt.Errorf("browser is closed")
	}
	info, err := b.page.Context(ctx).Info()
	if err != nil {
		return entity.Tab{}, fmt.Errorf("failed to read page info: %w", err)
	}
	return entity.Tab{ID: tabID, URL: info.URL, Title: info.Title}, nil
}

// Extract returns the cleaned body markup of the active document.
func (b *BrowserAdapter) Extract(ctx context.Context) (entity.PageContent, error) {
	pc, doc, err := b.snapshot(ctx)
	if err != nil {
		return entity.PageContent{}, err
	}
	inner, err := doc.Find("body").Html()
	if err != nil {
		return entity.PageContent{}, fmt.Errorf("failed to read body: %w", err)
	}
	pc.Content = b.cleaner.Sanitize(inner, entity.MaxPageHTMLLen)
	return pc, nil
}

// ExtractText returns the readable text of the main content area, or of the
// whole body when the page has none.
func (b *BrowserAdapter) ExtractText(ctx context.Context) (entity.PageContent, error) {
	pc, doc, err := b.snapshot(ctx)
	if err != nil {
		return entity.PageContent{}, err
	}
	markup, err := goquery.OuterHtml(mainContent(doc))
	if err != nil {
		return entity.PageContent{}, fmt.Errorf("failed to read content: %w", err)
	}
	pc.Content = b.cleaner.PlainText(markup, entity.MaxPageTextLen)
	return pc, nil
}

// snapshot reads the document once and fills everything but Content.
func (b *BrowserAdapter) snapshot(ctx context.Context) (entity.PageContent, *goquery.Document, error) {
	tab, err := b.ActiveTab(ctx)
	if err != nil {
		return entity.PageContent{}, nil, err
	}
	if !tab.IsWebDocument() {
		return entity.PageContent{}, nil, fault.New(fault.NoActiveDocument, fault.MsgNoActiveDocument)
	}

	html, err := b.page.Context(ctx).Timeout(b.timeout).HTML()
	if err != nil {
		return entity.PageContent{}, nil, fmt.Errorf("failed to get HTML: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return entity.PageContent{}, nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	title := tab.Title
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return entity.PageContent{
		Title:       title,
		Description: metaDescription(doc),
		URL:         tab.URL,
	}, doc, nil
}

func metaDescription(doc *goquery.Document) string {
	content, _ := doc.Find(`meta[name="description"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, selector := range mainContentSelectors {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			return sel
		}
	}
	return doc.Find("body").First()
}

// WatchNavigation reports every top-level navigation of the tab until ctx
// is done. The channel is closed afterwards.
func (b *BrowserAdapter) WatchNavigation(ctx context.Context) <-chan entity.Tab {
	out := make(chan entity.Tab, 8)
	wait := b.page.Context(ctx).EachEvent(func(ev *proto.PageFrameNavigated) {
		if ev.Frame == nil || ev.Frame.ParentID != "" {
			return
		}
		tab := entity.Tab{ID: tabID, URL: ev.Frame.URL}
		select {
		case out <- tab:
		default:
			b.logger.Warn("Navigation event dropped", "url", tab.URL)
		}
	})
	go func() {
		defer close(out)
		wait()
	}()
	return out
}

// Surface returns the selection surface of the tab.
func (b *BrowserAdapter) Surface() *SelectionSurface {
	return NewSelectionSurface(b.page, b.logger)
}

func (b *BrowserAdapter) CurrentURL() string {
	info, err := b.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (b *BrowserAdapter) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed && b.page != nil
}

func (b *BrowserAdapter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	if b.browser != nil {
		_ = b.browser.Close()
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

package rod

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod/lib/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"zenix/internal/domain/entity"
	"zenix/internal/domain/fault"
	"zenix/internal/infrastructure/browser/rodwrapper"
	"zenix/internal/infrastructure/logger"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Headless)
	assert.Equal(t, defaultTimeout, cfg.Timeout)
	assert.False(t, cfg.NoSandbox, "Should be secure by default")
	assert.False(t, cfg.DevTools)
}

func TestMetaDescription(t *testing.T) {
	assert.Equal(t, "Plans for every team", metaDescription(parse(t, ArticleHTML)))
	assert.Empty(t, metaDescription(parse(t, NoMainHTML)))
}

func TestMainContent(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"main wins over article", `<body><article>A</article><main>M</main></body>`, "M"},
		{"article", `<body><nav>N</nav><article>A</article></body>`, "A"},
		{"role main", `<body><div role="main">R</div></body>`, "R"},
		{"post content class", `<body><div class="post-content">P</div></body>`, "P"},
		{"content id", `<body><div id="content">C</div><div id="main">X</div></body>`, "C"},
		{"body fallback", `<body><div>B</div></body>`, "B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mainContent(parse(t, "<html>"+tt.html+"</html>"))
			assert.Equal(t, tt.want, strings.TrimSpace(got.Text()))
		})
	}
}

func TestDecodePageEvent(t *testing.T) {
	t.Run("hover", func(t *testing.T) {
		ev, ok := decodePageEvent(gson.New(map[string]interface{}{
			"type": "hover",
			"rect": map[string]interface{}{"top": 10.5, "left": 4, "width": 100, "height": 20},
		}))
		require.True(t, ok)
		assert.Equal(t, entity.Rect{Top: 10.5, Left: 4, Width: 100, Height: 20}, ev.rect)
	})

	t.Run("click", func(t *testing.T) {
		ev, ok := decodePageEvent(gson.New(map[string]interface{}{
			"type": "click",
			"element": map[string]interface{}{
				"tagName":   "DIV",
				"id":        "card",
				"className": "card",
				"outerHTML": `<div id="card" class="card">Card</div>`,
				"url":       "https://example.com/",
			},
		}))
		require.True(t, ok)
		assert.Equal(t, "DIV", ev.snapshot.TagName)
		assert.Equal(t, "card", ev.snapshot.ID)
		assert.Equal(t, "https://example.com/", ev.snapshot.URL)
		assert.Empty(t, ev.snapshot.TextContent)
	})

	t.Run("key", func(t *testing.T) {
		ev, ok := decodePageEvent(gson.New(map[string]interface{}{"type": "key", "key": "Escape"}))
		require.True(t, ok)
		assert.Equal(t, "Escape", ev.key)
	})

	t.Run("unknown", func(t *testing.T) {
		_, ok := decodePageEvent(gson.New(map[string]interface{}{"type": "scroll"}))
		assert.False(t, ok)
	})
}

func newTestAdapter(t *testing.T) *BrowserAdapter {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	cfg := DefaultConfig()
	cfg.Headless = true
	cfg.NoSandbox = true

	adapter, err := NewBrowserAdapter(context.Background(), cfg, rodwrapper.NewCleaner(nil), logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(adapter.Close)
	return adapter
}

func serve(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBrowserAdapter_IsReady(t *testing.T) {
	adapter := newTestAdapter(t)

	assert.True(t, adapter.IsReady())
	adapter.Close()
	assert.False(t, adapter.IsReady())

	_, err := adapter.ActiveTab(context.Background())
	assert.Error(t, err)
}

func TestBrowserAdapter_ActiveTab(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": ArticleHTML})
	ctx := context.Background()

	require.NoError(t, adapter.Navigate(ctx, server.URL))

	tab, err := adapter.ActiveTab(ctx)
	require.NoError(t, err)
	assert.Equal(t, tabID, tab.ID)
	assert.Equal(t, server.URL+"/", tab.URL)
	assert.Equal(t, "Pricing Plans", tab.Title)
	assert.True(t, tab.IsWebDocument())
}

func TestBrowserAdapter_Extract(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": ArticleHTML})
	ctx := context.Background()
	require.NoError(t, adapter.Navigate(ctx, server.URL))

	pc, err := adapter.Extract(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Pricing Plans", pc.Title)
	assert.Equal(t, "Plans for every team", pc.Description)
	assert.Equal(t, server.URL+"/", pc.URL)
	assert.False(t, pc.IsSelectedElement)
	assert.Contains(t, pc.Content, "Starter is $10 per month.")
	assert.Contains(t, pc.Content, "<h1>Pricing</h1>")
	assert.NotContains(t, pc.Content, "tracking")
	assert.NotContains(t, pc.Content, "class=")
	assert.NotContains(t, pc.Content, "style=")
	assert.LessOrEqual(t, len(pc.Content), entity.MaxPageHTMLLen)
}

func TestBrowserAdapter_ExtractText(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": ArticleHTML, "/plain": NoMainHTML})
	ctx := context.Background()

	require.NoError(t, adapter.Navigate(ctx, server.URL))
	pc, err := adapter.ExtractText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Pricing Starter is $10 per month.", pc.Content)
	assert.NotContains(t, pc.Content, "Footer")

	require.NoError(t, adapter.Navigate(ctx, server.URL+"/plain"))
	pc, err = adapter.ExtractText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First line Second line", pc.Content)
}

func TestBrowserAdapter_Extract_NonWebDocument(t *testing.T) {
	adapter := newTestAdapter(t)

	_, err := adapter.Extract(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.New(fault.NoActiveDocument, ""))
}

func TestBrowserAdapter_WatchNavigation(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": ArticleHTML, "/plain": NoMainHTML})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tabs := adapter.WatchNavigation(ctx)
	require.NoError(t, adapter.Navigate(ctx, server.URL+"/plain"))

	select {
	case tab := <-tabs:
		assert.Equal(t, server.URL+"/plain", tab.URL)
	case <-time.After(5 * time.Second):
		t.Fatal("no navigation event")
	}

	cancel()
	for range tabs {
	}
}

type recordedEvents struct {
	mu     sync.Mutex
	hovers []entity.Rect
	clicks chan entity.ElementSnapshot
	keys   chan string
}

func newRecordedEvents() *recordedEvents {
	return &recordedEvents{
		clicks: make(chan entity.ElementSnapshot, 4),
		keys:   make(chan string, 4),
	}
}

func (r *recordedEvents) Hover(rect entity.Rect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hovers = append(r.hovers, rect)
}

func (r *recordedEvents) Click(s entity.ElementSnapshot) { r.clicks <- s }
func (r *recordedEvents) Key(key string)                 { r.keys <- key }

func TestSelectionSurface_Click(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": SelectableHTML, "/elsewhere": NoMainHTML})
	ctx := context.Background()
	require.NoError(t, adapter.Navigate(ctx, server.URL))

	surface := adapter.Surface()
	assert.Equal(t, server.URL+"/", surface.Location())

	events := newRecordedEvents()
	require.NoError(t, surface.Mount(ctx, events))

	count, err := adapter.page.Eval(`() => document.querySelectorAll('#zenix-selection-overlay, #zenix-selection-indicator').length`)
	require.NoError(t, err)
	assert.Equal(t, 2, count.Value.Int())

	adapter.page.MustElement("#link").MustClick()

	select {
	case snap := <-events.clicks:
		assert.Equal(t, "A", snap.TagName)
		assert.Equal(t, "link", snap.ID)
		assert.Contains(t, snap.HTML, "Go elsewhere")
	case <-time.After(5 * time.Second):
		t.Fatal("no click event")
	}
	// the click never reached the link
	assert.Equal(t, server.URL+"/", adapter.CurrentURL())

	require.NoError(t, surface.Unmount())
	require.NoError(t, surface.Unmount())

	count, err = adapter.page.Eval(`() => document.querySelectorAll('#zenix-selection-overlay, #zenix-selection-indicator').length`)
	require.NoError(t, err)
	assert.Equal(t, 0, count.Value.Int())
}

func TestSelectionSurface_EscapeAndHighlight(t *testing.T) {
	adapter := newTestAdapter(t)
	server := serve(t, map[string]string{"/": SelectableHTML})
	ctx := context.Background()
	require.NoError(t, adapter.Navigate(ctx, server.URL))

	surface := adapter.Surface()
	events := newRecordedEvents()
	require.NoError(t, surface.Mount(ctx, events))
	defer surface.Unmount()

	require.NoError(t, surface.MoveHighlight(entity.Rect{Top: 5, Left: 6, Width: 70, Height: 8}))
	width, err := adapter.page.Eval(`() => document.getElementById('zenix-selection-overlay').style.width`)
	require.NoError(t, err)
	assert.Equal(t, "70px", width.Value.Str())

	require.NoError(t, adapter.page.Keyboard.Type(input.Escape))
	select {
	case key := <-events.keys:
		assert.Equal(t, "Escape", key)
	case <-time.After(5 * time.Second):
		t.Fatal("no key event")
	}
}

package rod

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/ysmood/gson"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var _ output.SelectionSurface = (*SelectionSurface)(nil)

const (
	bindingName = "__zenixSelect"
	eventBuffer = 64
)

// mountJS installs the overlay, the indicator and capture listeners. Every
// node and listener is kept on window.__zenix so unmountJS can undo it.
const mountJS = `(binding) => {
  if (window.__zenix) return;
  const overlay = document.createElement('div');
  overlay.id = 'zenix-selection-overlay';
  overlay.style.cssText = 'position:absolute;pointer-events:none;z-index:2147483646;' +
    'border:2px solid #4f46e5;background:rgba(79,70,229,0.12);transition:all 60ms ease-out;display:none';
  const indicator = document.createElement('div');
  indicator.id = 'zenix-selection-indicator';
  indicator.textContent = 'Click an element to select it, Esc to cancel';
  indicator.style.cssText = 'position:fixed;top:12px;left:50%;transform:translateX(-50%);z-index:2147483647;' +
    'padding:6px 12px;border-radius:6px;background:#111827;color:#fff;font:13px sans-serif;pointer-events:none';
  document.body.appendChild(overlay);
  document.body.appendChild(indicator);
  const prevCursor = document.body.style.cursor;
  document.body.style.cursor = 'crosshair';

  const send = (payload) => { try { window[binding](payload); } catch (e) {} };
  const rectOf = (el) => {
    const r = el.getBoundingClientRect();
    return { top: r.top + window.scrollY, left: r.left + window.scrollX, width: r.width, height: r.height };
  };
  const own = (el) => el === overlay || el === indicator;

  const onMove = (e) => {
    if (own(e.target)) return;
    send({ type: 'hover', rect: rectOf(e.target) });
  };
  const onClick = (e) => {
    if (own(e.target)) return;
    e.preventDefault();
    e.stopPropagation();
    e.stopImmediatePropagation();
    const el = e.target;
    send({ type: 'click', element: {
      tagName: el.tagName || '',
      id: el.id || '',
      className: typeof el.className === 'string' ? el.className : '',
      outerHTML: el.outerHTML || '',
      textContent: (el.textContent || '').trim(),
      url: location.href,
    }});
  };
  const onKey = (e) => {
    if (e.key === 'Escape' || e.key === 'Esc') {
      e.preventDefault();
      e.stopPropagation();
    }
    send({ type: 'key', key: e.key });
  };

  document.addEventListener('mousemove', onMove, true);
  document.addEventListener('click', onClick, true);
  document.addEventListener('keydown', onKey, true);
  window.__zenix = { overlay, indicator, prevCursor, onMove, onClick, onKey };
}`

const unmountJS = `() => {
  const z = window.__zenix;
  if (!z) return;
  document.removeEventListener('mousemove', z.onMove, true);
  document.removeEventListener('click', z.onClick, true);
  document.removeEventListener('keydown', z.onKey, true);
  z.overlay.remove();
  z.indicator.remove();
  document.body.style.cursor = z.prevCursor;
  delete window.__zenix;
}`

const highlightJS = `(top, left, width, height) => {
  const z = window.__zenix;
  if (!z) return;
  const s = z.overlay.style;
  s.display = 'block';
  s.top = top + 'px';
  s.left = left + 'px';
  s.width = width + 'px';
  s.height = height + 'px';
}`

// SelectionSurface is the in-page part of element selection on a rod page.
// Binding calls are queued and dispatched from a separate goroutine so the
// controller may unmount from inside an event.
type SelectionSurface struct {
	page   *rod.Page
	logger output.LoggerPort

	mu      sync.Mutex
	mounted bool
	stop    func() error
	done    chan struct{}
}

func NewSelectionSurface(page *rod.Page, logger output.LoggerPort) *SelectionSurface {
	return &SelectionSurface{
		page:   page,
		logger: logger.WithField("component", "selection_surface"),
	}
}

func (s *SelectionSurface) Location() string {
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (s *SelectionSurface) Mount(ctx context.Context, events output.SelectionEvents) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mounted {
		return nil
	}

	queue := make(chan pageEvent, eventBuffer)
	done := make(chan struct{})

	stop, err := s.page.Expose(bindingName, func(payload gson.JSON) (interface{}, error) {
		ev, ok := decodePageEvent(payload)
		if !ok {
			return nil, nil
		}
		select {
		case queue <- ev:
		case <-done:
		default:
			// hover floods are harmless to drop
			if ev.kind != "hover" {
				s.logger.Warn("Selection event dropped", "type", ev.kind)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose selection binding: %w", err)
	}

	if _, err := s.page.Context(ctx).Eval(mountJS, bindingName); err != nil {
		_ = stop()
		return fmt.Errorf("failed to mount selection overlay: %w", err)
	}

	s.mounted = true
	s.stop = stop
	s.done = done
	go dispatch(queue, done, events)
	return nil
}

func (s *SelectionSurface) MoveHighlight(rect entity.Rect) error {
	s.mu.Lock()
	mounted := s.mounted
	s.mu.Unlock()
	if !mounted {
		return nil
	}
	_, err := s.page.Eval(highlightJS, rect.Top, rect.Left, rect.Width, rect.Height)
	return err
}

// Unmount removes overlay, indicator, cursor and listeners. It returns
// without waiting for the dispatcher, which may be the caller.
func (s *SelectionSurface) Unmount() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return nil
	}
	s.mounted = false
	close(s.done)

	var errs []error
	if _, err := s.page.Eval(unmountJS); err != nil {
		errs = append(errs, fmt.Errorf("remove overlay: %w", err))
	}
	if s.stop != nil {
		if err := s.stop(); err != nil {
			errs = append(errs, fmt.Errorf("remove binding: %w", err))
		}
		s.stop = nil
	}
	return errors.Join(errs...)
}

type pageEvent struct {
	kind     string
	rect     entity.Rect
	key      string
	snapshot entity.ElementSnapshot
}

func decodePageEvent(payload gson.JSON) (pageEvent, bool) {
	ev := pageEvent{kind: str(payload, "type")}
	switch ev.kind {
	case "hover":
		ev.rect = entity.Rect{
			Top:    num(payload, "rect.top"),
			Left:   num(payload, "rect.left"),
			Width:  num(payload, "rect.width"),
			Height: num(payload, "rect.height"),
		}
	case "click":
		ev.snapshot = entity.ElementSnapshot{
			TagName:     str(payload, "element.tagName"),
			ID:          str(payload, "element.id"),
			Classes:     str(payload, "element.className"),
			HTML:        str(payload, "element.outerHTML"),
			TextContent: str(payload, "element.textContent"),
			URL:         str(payload, "element.url"),
		}
	case "key":
		ev.key = str(payload, "key")
	default:
		return ev, false
	}
	return ev, true
}

func dispatch(queue <-chan pageEvent, done <-chan struct{}, events output.SelectionEvents) {
	for {
		select {
		case <-done:
			return
		case ev := <-queue:
			switch ev.kind {
			case "hover":
				events.Hover(ev.rect)
			case "click":
				events.Click(ev.snapshot)
			case "key":
				events.Key(ev.key)
			}
		}
	}
}

func str(j gson.JSON, path string) string {
	v := j.Get(path)
	if v.Nil() {
		return ""
	}
	return v.Str()
}

func num(j gson.JSON, path string) float64 {
	v := j.Get(path)
	if v.Nil() {
		return 0
	}
	return v.Num()
}

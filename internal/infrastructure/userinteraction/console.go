package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var _ output.PanelView = (*Console)(nil)

const thinkingText = "Thinking..."

// Console renders the panel in a terminal. Streams are printed
// incrementally from the cumulative display text.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	lines  chan lineResult
	reader *bufio.Reader

	printed   string
	thinking  bool
	inputOpen bool

	user      *color.Color
	assistant *color.Color
	dim       *color.Color
	errc      *color.Color
	notice    *color.Color
	header    *color.Color
}

type lineResult struct {
	line string
	err  error
}

func NewConsole(in io.Reader, out io.Writer, colored bool) *Console {
	c := &Console{
		out:       out,
		reader:    bufio.NewReader(in),
		user:      color.New(color.FgCyan, color.Bold),
		assistant: color.New(color.FgGreen),
		dim:       color.New(color.Faint),
		errc:      color.New(color.FgRed),
		notice:    color.New(color.FgYellow),
		header:    color.New(color.FgMagenta, color.Bold),
	}
	for _, col := range []*color.Color{c.user, c.assistant, c.dim, c.errc, c.notice, c.header} {
		if colored {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// ReadLine waits for the next line of input. It returns io.EOF when the
// input is closed and ctx.Err() when ctx is done first.
func (c *Console) ReadLine(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.lines == nil {
		c.lines = make(chan lineResult)
		go c.readLoop()
	}
	lines := c.lines
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r, ok := <-lines:
		if !ok {
			return "", io.EOF
		}
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return strings.TrimSpace(r.line), nil
	}
}

func (c *Console) readLoop() {
	defer close(c.lines)
	for {
		line, err := c.reader.ReadString('\n')
		if line != "" || err != nil {
			c.lines <- lineResult{line: line, err: err}
		}
		if err != nil {
			return
		}
	}
}

func (c *Console) ShowMessage(role entity.MessageRole, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if role == entity.RoleUser {
		c.user.Fprint(c.out, "You: ")
		fmt.Fprintln(c.out, text)
		return
	}
	c.assistant.Fprint(c.out, "Zenix: ")
	fmt.Fprintln(c.out, text)
}

func (c *Console) ShowThinking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thinking = true
	c.printed = ""
	c.assistant.Fprint(c.out, "Zenix: ")
	c.dim.Fprint(c.out, thinkingText)
}

func (c *Console) UpdateStream(displayText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamTo(displayText)
}

// streamTo prints what displayText adds to the text already on screen.
// Caller holds mu.
func (c *Console) streamTo(displayText string) {
	if c.thinking {
		c.clearThinking()
	}
	if !strings.HasPrefix(displayText, c.printed) {
		fmt.Fprintln(c.out)
		c.assistant.Fprint(c.out, "Zenix: ")
		c.printed = ""
	}
	fmt.Fprint(c.out, displayText[len(c.printed):])
	c.printed = displayText
}

func (c *Console) CompleteStream(displayText string, truncated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.streamTo(displayText)
	fmt.Fprintln(c.out)
	if truncated {
		c.dim.Fprintln(c.out, "(response cut short after the maximum number of steps)")
	}
	c.printed = ""
}

func (c *Console) RemoveThinking() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.thinking {
		c.clearThinking()
		fmt.Fprint(c.out, "\r\033[K")
	} else if c.printed != "" {
		fmt.Fprintln(c.out)
	}
	c.printed = ""
}

// clearThinking erases the thinking marker. Caller holds mu.
func (c *Console) clearThinking() {
	c.thinking = false
	fmt.Fprint(c.out, strings.Repeat("\b \b", len(thinkingText)))
}

func (c *Console) ShowError(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errc.Fprint(c.out, "Error: ")
	fmt.Fprintln(c.out, message)
}

func (c *Console) ShowNotice(message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notice.Fprintln(c.out, message)
}

func (c *Console) SetInputEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enabled && !c.inputOpen {
		c.user.Fprint(c.out, "> ")
	}
	c.inputOpen = enabled
}

func (c *Console) SetSelectionMode(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if active {
		c.notice.Fprintln(c.out, "Click an element in the browser to select it, Esc to cancel.")
	}
}

func (c *Console) ShowSelectedElement(el *entity.SelectedElement) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el == nil {
		return
	}
	c.header.Fprint(c.out, "Selected: ")
	fmt.Fprintf(c.out, "<%s>", el.Describe())
	if text := truncate(el.TextContent, 80); text != "" {
		c.dim.Fprintf(c.out, " %s", text)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) ShowPage(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if url == "" {
		url = "(no page)"
	}
	c.header.Fprintf(c.out, "\n━━━ %s ━━━\n", url)
}

func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.printed = ""
	c.thinking = false
}

func truncate(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

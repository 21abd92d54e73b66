package rodwrapper

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	nethtml "golang.org/x/net/html"

	"zenix/internal/application/port/output"
)

var _ output.HTMLSanitizer = (*Cleaner)(nil)

type CleanConfig struct {
	TagsToRemove  []string
	AttrsToRemove []string
	// RemoveStylesheetLinks drops <link rel="stylesheet">; other links stay.
	RemoveStylesheetLinks bool
	DropEventHandlers     bool
}

// DefaultCleanConfig strips what carries no meaning for the model: scripts,
// styles and presentation attributes.
var DefaultCleanConfig = CleanConfig{
	TagsToRemove:          []string{"script", "style", "noscript"},
	AttrsToRemove:         []string{"class", "style"},
	RemoveStylesheetLinks: true,
	DropEventHandlers:     true,
}

// Cleaner turns page markup into prompt input.
type Cleaner struct {
	cfg    CleanConfig
	strict *bluemonday.Policy
}

func NewCleaner(cfg *CleanConfig) *Cleaner {
	if cfg == nil {
		cfg = &DefaultCleanConfig
	}
	return &Cleaner{cfg: *cfg, strict: bluemonday.StrictPolicy()}
}

// Sanitize cleans an HTML fragment, collapses whitespace and cuts the result
// to maxLen characters.
func (c *Cleaner) Sanitize(rawHTML string, maxLen int) string {
	return truncate(collapse(c.clean(rawHTML)), maxLen)
}

// PlainText drops all markup and keeps the readable text.
func (c *Cleaner) PlainText(rawHTML string, maxLen int) string {
	text := html.UnescapeString(c.strict.Sanitize(rawHTML))
	return truncate(collapse(text), maxLen)
}

func (c *Cleaner) clean(rawHTML string) string {
	body := &nethtml.Node{Type: nethtml.ElementNode, Data: "body"}
	nodes, err := nethtml.ParseFragment(strings.NewReader(rawHTML), body)
	if err != nil {
		return rawHTML
	}

	var sb strings.Builder
	for _, n := range nodes {
		if c.removable(n) {
			continue
		}
		c.cleanNode(n)
		_ = nethtml.Render(&sb, n)
	}
	return sb.String()
}

// cleanNode drops comments and unwanted elements below n and filters attributes.
func (c *Cleaner) cleanNode(n *nethtml.Node) {
	if n.Type != nethtml.ElementNode {
		return
	}
	n.Attr = c.filterAttributes(n.Attr)

	for child := n.FirstChild; child != nil; {
		next := child.NextSibling
		if c.removable(child) {
			n.RemoveChild(child)
		} else {
			c.cleanNode(child)
		}
		child = next
	}
}

func (c *Cleaner) removable(n *nethtml.Node) bool {
	switch n.Type {
	case nethtml.CommentNode:
		return true
	case nethtml.ElementNode:
		if isOneOf(n.Data, c.cfg.TagsToRemove...) {
			return true
		}
		return c.cfg.RemoveStylesheetLinks && n.Data == "link" && attr(n, "rel") == "stylesheet"
	}
	return false
}

func (c *Cleaner) filterAttributes(attrs []nethtml.Attribute) []nethtml.Attribute {
	var kept []nethtml.Attribute
	for _, a := range attrs {
		if isOneOf(a.Key, c.cfg.AttrsToRemove...) {
			continue
		}
		if c.cfg.DropEventHandlers && strings.HasPrefix(a.Key, "on") {
			continue
		}
		kept = append(kept, a)
	}
	return kept
}

func attr(n *nethtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.ToLower(strings.TrimSpace(a.Val))
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate cuts s to n characters without splitting a rune.
func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func isOneOf(s string, candidates ...string) bool {
	for _, c := range candidates {
		if s == c {
			return true
		}
	}
	return false
}

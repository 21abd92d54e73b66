package entity

import (
	"net/url"
	"strings"
)

const (
	MaxPageHTMLLen       = 10000
	MaxPageTextLen       = 8000
	MaxElementContentLen = 15000
	MaxElementTextLen    = 5000
)

// PageContent is an immutable snapshot of the page (or selected element)
// the user is asking about.
type PageContent struct {
	Title             string `json:"title"`
	Description       string `json:"description"`
	URL               string `json:"url"`
	Content           string `json:"content"`
	IsSelectedElement bool   `json:"isSelectedElement,omitempty"`
}

// SelectedElement is the sanitized snapshot of an element picked in selection mode.
type SelectedElement struct {
	TagName     string `json:"tagName"`
	ID          string `json:"id"`
	Classes     string `json:"classes"`
	Content     string `json:"content"`
	TextContent string `json:"textContent"`
	URL         string `json:"url"`
}

// ElementSnapshot is what the page reports on a selection click, before sanitizing.
type ElementSnapshot struct {
	TagName     string
	ID          string
	Classes     string
	HTML        string
	TextContent string
	URL         string
}

// Truncated applies the content and text length caps.
func (s SelectedElement) Truncated() SelectedElement {
	s.Content = Truncate(s.Content, MaxElementContentLen)
	s.TextContent = Truncate(strings.TrimSpace(s.TextContent), MaxElementTextLen)
	return s
}

// Describe renders the element as tag#id or tag.firstClass.
func (s SelectedElement) Describe() string {
	desc := s.TagName
	if s.ID != "" {
		return desc + "#" + s.ID
	}
	if fields := strings.Fields(s.Classes); len(fields) > 0 {
		desc += "." + fields[0]
	}
	return desc
}

// PageContentFromSelection builds the prompt input for a selected element.
func PageContentFromSelection(s SelectedElement) PageContent {
	title := "Selected: " + s.TagName
	if s.ID != "" {
		title += "#" + s.ID
	}
	return PageContent{
		Title:             title,
		Description:       "Selected element from " + s.URL,
		URL:               s.URL,
		Content:           s.Content,
		IsSelectedElement: true,
	}
}

type Tab struct {
	ID    int    `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

func (t Tab) IsWebDocument() bool {
	return IsWebURL(t.URL)
}

// IsWebURL reports whether raw is an http or https address.
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Rect is an element bounding box in document coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Truncate cuts s to at most n characters.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

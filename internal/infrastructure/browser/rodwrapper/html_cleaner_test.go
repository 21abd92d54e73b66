package rodwrapper

import (
	"strings"
	"testing"
)

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}

func TestSanitize_RemovesScriptStyle(t *testing.T) {
	html := `
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
    <noscript>enable js</noscript>`

	out := NewCleaner(nil).Sanitize(html, 10000)

	if contains(out, "<script") || contains(out, "<style") || contains(out, "alert") || contains(out, "enable js") {
		t.Errorf("script/style tags must be removed, output: %s", out)
	}
	if !contains(out, `<div id="main">Hello</div>`) {
		t.Errorf("expected to keep normal elements, output: %s", out)
	}
}

func TestSanitize_RemovesComments(t *testing.T) {
	out := NewCleaner(nil).Sanitize(`<!-- comment --><div>Text<!-- inner --></div>`, 10000)

	if contains(out, "comment") || contains(out, "inner") {
		t.Errorf("HTML comments must be removed, output: %s", out)
	}
}

func TestSanitize_RemovesClassAndStyle(t *testing.T) {
	html := `<div style="color:red" class="ok"><a href="https://example.com" class="link" id="x" onclick="go()">Go</a></div>`

	out := NewCleaner(nil).Sanitize(html, 10000)

	if contains(out, "style=") || contains(out, "class=") {
		t.Errorf("class and style attributes must be removed, output: %s", out)
	}
	if contains(out, "onclick") {
		t.Errorf("event handlers must be removed, output: %s", out)
	}
	if !contains(out, `href="https://example.com"`) || !contains(out, `id="x"`) {
		t.Errorf("href and id must be kept, output: %s", out)
	}
}

func TestSanitize_OnlyStylesheetLinksRemoved(t *testing.T) {
	html := `<link rel="stylesheet" href="x.css"><link rel="canonical" href="https://example.com/"><p>Hi</p>`

	out := NewCleaner(nil).Sanitize(html, 10000)

	if contains(out, "x.css") {
		t.Errorf("stylesheet link must be removed, output: %s", out)
	}
	if !contains(out, "canonical") {
		t.Errorf("other links must remain, output: %s", out)
	}
}

func TestSanitize_CollapsesWhitespace(t *testing.T) {
	out := NewCleaner(nil).Sanitize("<ul>\n\t<li>Basic</li>\n\n   <li>Pro</li>\n</ul>", 10000)

	if out != "<ul> <li>Basic</li> <li>Pro</li> </ul>" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestSanitize_Truncation(t *testing.T) {
	var big strings.Builder
	for i := 0; i < 2000; i++ {
		big.WriteString("<div>test</div>")
	}

	out := NewCleaner(nil).Sanitize(big.String(), 10000)

	if len(out) != 10000 {
		t.Errorf("output must be cut to 10000 chars, got %d", len(out))
	}
}

func TestPlainText(t *testing.T) {
	html := `<main><h1>Pricing plans</h1>
	<script>console.log('x')</script>
	<p>Basic &amp; Pro</p></main>`

	out := NewCleaner(nil).PlainText(html, 8000)

	if contains(out, "<") || contains(out, "console.log") {
		t.Errorf("markup and scripts must be dropped, output: %q", out)
	}
	if out != "Pricing plans Basic & Pro" {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestPlainText_Truncation(t *testing.T) {
	out := NewCleaner(nil).PlainText("<p>"+strings.Repeat("word ", 4000)+"</p>", 8000)

	if len(out) != 8000 {
		t.Errorf("output must be cut to 8000 chars, got %d", len(out))
	}
}

package markup

import (
	"strings"
	"testing"
)

func TestRenderParagraph(t *testing.T) {
	rendered := NewRenderer(nil).Render("hello")
	if !strings.Contains(rendered, "<p>hello</p>") {
		t.Fatalf("expected paragraph markup, got %q", rendered)
	}
}

func TestRenderSupportsExtendedSyntax(t *testing.T) {
	renderer := NewRenderer(nil)

	table := renderer.Render("| a | b |\n|---|---|\n| 1 | 2 |")
	if !strings.Contains(table, "<table>") {
		t.Fatalf("expected table markup, got %q", table)
	}

	code := renderer.Render("```go\nfmt.Println(1)\n```")
	if !strings.Contains(code, "<pre><code") {
		t.Fatalf("expected fenced code block, got %q", code)
	}

	wrapped := renderer.Render("line one\nline two")
	if !strings.Contains(wrapped, "<br") {
		t.Fatalf("expected hard line break, got %q", wrapped)
	}
}

func TestRenderStripsScripts(t *testing.T) {
	rendered := NewRenderer(nil).Render("<script>alert(1)</script>[x](javascript:alert(1))")
	if strings.Contains(rendered, "<script") {
		t.Fatalf("expected script tag to be removed, got %q", rendered)
	}
	if strings.Contains(rendered, "javascript:") {
		t.Fatalf("expected javascript url to be removed, got %q", rendered)
	}
}

func TestRenderImageEmbed(t *testing.T) {
	rendered := NewRenderer(nil).Render(ImageEmbed("/static/uploads/cat.png"))
	if !strings.Contains(rendered, `<img src="/static/uploads/cat.png"`) {
		t.Fatalf("expected image tag, got %q", rendered)
	}
	if ImageEmbed("/u.png") != "![image](/u.png)" {
		t.Fatalf("unexpected embed syntax %q", ImageEmbed("/u.png"))
	}
}

func TestRenderToleratesMalformedInput(t *testing.T) {
	renderer := NewRenderer(nil)
	inputs := []string{
		"",
		"**unclosed",
		"[broken](",
		"```\nno fence end",
		"| a |\n|--|--|--|\n",
		"<div><span>",
		"\x00\xff\xfe",
		strings.Repeat(">", 500) + " deep quote",
		strings.Repeat("[", 1000),
	}
	for _, input := range inputs {
		rendered := renderer.Render(input)
		if strings.Contains(rendered, "<div>") {
			t.Fatalf("expected raw html to be dropped for %q, got %q", input, rendered)
		}
	}
}

func TestEscapedParagraph(t *testing.T) {
	if got := escapedParagraph("<b>&"); got != "<p>&lt;b&gt;&amp;</p>" {
		t.Fatalf("unexpected escaped output %q", got)
	}
}

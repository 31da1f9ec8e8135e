package browser

import (
	"strings"
	"testing"
)

func TestSanitizeHTML(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxBytes  int
		wantTitle string
		wantDesc  string
		wantHTML  []string // substrings that should be present
		wantNot   []string // substrings that should NOT be present
		truncated bool
	}{
		{
			name: "script and style removal",
			input: `<html>
				<head>
					<title>Test Page</title>
					<meta name="description" content="Test description">
					<script>alert('evil');</script>
					<style>body { color: red; }</style>
				</head>
				<body>
					<h1 id="main-title">Hello World</h1>
					<p class="intro">This is a test.</p>
				</body>
			</html>`,
			maxBytes:  10000,
			wantTitle: "Test Page",
			wantDesc:  "Test description",
			wantHTML:  []string{`<h1 id="main-title">Hello World</h1>`, `<p class="intro">This is a test.</p>`},
			wantNot:   []string{"<script", "alert", "<style", "color: red"},
		},
		{
			name: "semantic structure survives",
			input: `<html><body>
				<header><nav><a href="/home">Home</a></nav></header>
				<main>
					<section id="content">
						<article><h2>Article Title</h2></article>
					</section>
				</main>
				<footer><p>Footer</p></footer>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{"<header>", "<nav>", "<main>", `<section id="content">`, "<article>", "<footer>"},
		},
		{
			name: "targeting attributes survive",
			input: `<html><body>
				<form action="/submit" method="post">
					<input type="text" name="username" id="user-input" placeholder="Enter name" data-test="username-field">
					<button type="submit" class="btn-primary">Submit</button>
				</form>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{
				`<form action="/submit" method="post">`,
				`type="text"`,
				`name="username"`,
				`id="user-input"`,
				`placeholder="Enter name"`,
				`data-test="username-field"`,
				`class="btn-primary"`,
			},
		},
		{
			name: "event handlers and styles dropped",
			input: `<html><body>
				<div onclick="steal()" style="display:none" id="keep">Content</div>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{`<div id="keep">Content</div>`},
			wantNot:  []string{"onclick", "steal", "style="},
		},
		{
			name: "noise elements removed entirely",
			input: `<html><body>
				<div>Content</div>
				<script src="app.js"></script>
				<noscript>No JS</noscript>
				<iframe src="ad.html"></iframe>
				<svg><circle/></svg>
				<template><span>hidden</span></template>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{"<div>Content</div>"},
			wantNot:  []string{"<script", "<noscript", "<iframe", "<svg", "No JS", "hidden"},
		},
		{
			name: "whitespace collapsed",
			input: `<html><body>
				<p>spread

					across     lines</p>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{"<p>spread across lines</p>"},
		},
		{
			name: "truncates at the byte cap",
			input: `<html><body>
				<p>First paragraph with some content.</p>
				<p>Second paragraph with more content.</p>
				<p>Third paragraph that should not appear.</p>
			</body></html>`,
			maxBytes:  100,
			wantHTML:  []string{"First paragraph"},
			wantNot:   []string{"should not appear"},
			truncated: true,
		},
		{
			name: "links keep href and target",
			input: `<html><body>
				<a href="https://example.com" target="_blank" class="external" onmouseover="track()">Link Text</a>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{`href="https://example.com"`, `target="_blank"`, `class="external"`, "Link Text"},
			wantNot:  []string{"onmouseover"},
		},
		{
			name: "void elements have no closing tag",
			input: `<html><body>
				<img src="test.jpg" alt="Test image">
				<br>
				<input type="text" name="field">
				<hr>
			</body></html>`,
			maxBytes: 10000,
			wantHTML: []string{`<img src="test.jpg" alt="Test image">`, "<br>", `<input type="text" name="field">`, "<hr>"},
			wantNot:  []string{"</img>", "</br>", "</input>", "</hr>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := sanitizeHTML(tt.input, tt.maxBytes)
			if err != nil {
				t.Fatalf("sanitizeHTML() error = %v", err)
			}

			if result.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", result.Title, tt.wantTitle)
			}
			if result.Description != tt.wantDesc {
				t.Errorf("Description = %q, want %q", result.Description, tt.wantDesc)
			}
			if result.Truncated != tt.truncated {
				t.Errorf("Truncated = %v, want %v", result.Truncated, tt.truncated)
			}

			for _, want := range tt.wantHTML {
				if !strings.Contains(result.HTML, want) {
					t.Errorf("HTML missing expected substring: %q\nGot: %s", want, result.HTML)
				}
			}
			for _, notWant := range tt.wantNot {
				if strings.Contains(result.HTML, notWant) {
					t.Errorf("HTML contains unwanted substring: %q\nGot: %s", notWant, result.HTML)
				}
			}
		})
	}
}

func TestSanitizeKeepsOutputBounded(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 500; i++ {
		b.WriteString("<p>some repeated filler content for the page body</p>")
	}
	b.WriteString("</body></html>")

	result, err := sanitizeHTML(b.String(), 2000)
	if err != nil {
		t.Fatalf("sanitizeHTML() error = %v", err)
	}
	if !result.Truncated {
		t.Error("Truncated = false, want true")
	}
	// The cap bounds content size, closing tags push slightly past it.
	if len(result.HTML) > 3000 {
		t.Errorf("HTML length = %d, want well under 3000", len(result.HTML))
	}
}

func TestKeepAttribute(t *testing.T) {
	tests := []struct {
		tag  string
		attr string
		want bool
	}{
		{"div", "id", true},
		{"div", "class", true},
		{"div", "style", false},
		{"div", "onclick", false},
		{"div", "data-test", true},
		{"div", "aria-label", true},
		{"a", "href", true},
		{"a", "target", true},
		{"a", "onmouseover", false},
		{"img", "src", true},
		{"img", "alt", true},
		{"input", "name", true},
		{"input", "type", true},
		{"input", "placeholder", true},
		{"option", "value", true},
		{"label", "for", true},
		{"form", "action", true},
		{"form", "method", true},
	}

	for _, tt := range tests {
		t.Run(tt.tag+"_"+tt.attr, func(t *testing.T) {
			if got := keepAttribute(tt.tag, tt.attr); got != tt.want {
				t.Errorf("keepAttribute(%q, %q) = %v, want %v", tt.tag, tt.attr, got, tt.want)
			}
		})
	}
}

func TestSkippedTags(t *testing.T) {
	for _, tag := range []string{"script", "style", "noscript", "iframe", "svg", "template"} {
		if !skippedTags[tag] {
			t.Errorf("skippedTags[%q] = false, want true", tag)
		}
	}
	for _, tag := range []string{"div", "p", "span", "a"} {
		if skippedTags[tag] {
			t.Errorf("skippedTags[%q] = true, want false", tag)
		}
	}
}

package browser

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// SanitizedPage is page HTML reduced to what a model needs to choose the
// next action: semantic structure and targeting attributes, no scripts,
// styles, or event handlers, capped in size.
type SanitizedPage struct {
	HTML        string
	Title       string
	Description string
	Truncated   bool
}

// sanitizeHTML parses raw page HTML and rewrites it compactly. The output
// is capped at maxBytes and Truncated reports whether the cap was hit.
func sanitizeHTML(rawHTML string, maxBytes int) (*SanitizedPage, error) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	w := &sanitizer{limit: maxBytes}
	w.walk(doc)

	return &SanitizedPage{
		HTML:        w.out.String(),
		Title:       findTitle(doc),
		Description: findMetaDescription(doc),
		Truncated:   w.truncated,
	}, nil
}

// sanitizer walks the parsed tree and writes the reduced form. Output is
// compact: no indentation, whitespace runs collapsed, because every byte
// here competes for prompt budget.
type sanitizer struct {
	out       strings.Builder
	size      int
	limit     int
	truncated bool
}

func (w *sanitizer) walk(n *html.Node) {
	if w.truncated {
		return
	}

	switch n.Type {
	case html.CommentNode:
		return
	case html.TextNode:
		w.writeText(n.Data)
		return
	case html.ElementNode:
		tag := strings.ToLower(n.Data)
		if skippedTags[tag] {
			return
		}
		w.writeElement(n, tag)
		return
	}

	// Document and fragment nodes, descend only.
	for c := n.FirstChild; c != nil && !w.truncated; c = c.NextSibling {
		w.walk(c)
	}
}

func (w *sanitizer) writeText(data string) {
	text := normalizeSpace(data)
	if text == "" {
		return
	}
	if w.size+len(text) > w.limit {
		remaining := w.limit - w.size
		if remaining > 0 {
			w.out.WriteString(text[:remaining])
		}
		w.out.WriteString("...")
		w.size = w.limit
		w.truncated = true
		return
	}
	w.out.WriteString(text)
	w.size += len(text)
}

func (w *sanitizer) writeElement(n *html.Node, tag string) {
	w.out.WriteString("<")
	w.out.WriteString(tag)
	w.size += len(tag) + 2

	for _, attr := range n.Attr {
		if !keepAttribute(tag, attr.Key) {
			continue
		}
		val := html.EscapeString(attr.Val)
		fmt.Fprintf(&w.out, ` %s="%s"`, attr.Key, val)
		w.size += len(attr.Key) + len(val) + 4
	}
	w.out.WriteString(">")

	if w.size >= w.limit {
		w.truncated = true
	}
	for c := n.FirstChild; c != nil && !w.truncated; c = c.NextSibling {
		w.walk(c)
	}

	if voidTags[tag] {
		return
	}
	w.out.WriteString("</")
	w.out.WriteString(tag)
	w.out.WriteString(">")
	w.size += len(tag) + 3
	if blockTags[tag] {
		w.out.WriteString("\n")
	}
}

// skippedTags are removed entirely, content included.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"iframe":   true,
	"embed":    true,
	"object":   true,
	"svg":      true,
	"template": true,
}

// blockTags get a newline after their closing tag so the output stays
// readable without indentation.
var blockTags = map[string]bool{
	"div":        true,
	"p":          true,
	"section":    true,
	"article":    true,
	"header":     true,
	"footer":     true,
	"nav":        true,
	"main":       true,
	"aside":      true,
	"h1":         true,
	"h2":         true,
	"h3":         true,
	"h4":         true,
	"h5":         true,
	"h6":         true,
	"ul":         true,
	"ol":         true,
	"li":         true,
	"table":      true,
	"tr":         true,
	"form":       true,
	"fieldset":   true,
	"blockquote": true,
	"pre":        true,
}

// voidTags never get a closing tag.
var voidTags = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

// keepAttribute reports whether an attribute survives sanitization. Kept
// attributes are the ones that identify or describe an element for
// targeting: ids, classes, roles, labels, data attributes, and the
// tag-specific essentials.
func keepAttribute(tag, name string) bool {
	name = strings.ToLower(name)

	switch name {
	case "id", "class", "role", "aria-label", "aria-describedby", "title":
		return true
	}
	if strings.HasPrefix(name, "data-") {
		return true
	}

	switch tag {
	case "a":
		return name == "href" || name == "target"
	case "img":
		return name == "src" || name == "alt"
	case "input", "textarea", "select":
		return name == "name" || name == "type" || name == "placeholder" || name == "value"
	case "option":
		return name == "value" || name == "selected"
	case "button":
		return name == "type" || name == "name"
	case "form":
		return name == "action" || name == "method"
	case "label":
		return name == "for"
	}
	return false
}

// findTitle returns the text of the first <title> element.
func findTitle(doc *html.Node) string {
	var title string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				title = strings.TrimSpace(n.FirstChild.Data)
			}
			return
		}
		for c := n.FirstChild; c != nil && title == ""; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return title
}

// findMetaDescription returns the content of <meta name="description">.
func findMetaDescription(doc *html.Node) string {
	var description string
	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "meta" {
			var isDescription bool
			var content string
			for _, attr := range n.Attr {
				if attr.Key == "name" && attr.Val == "description" {
					isDescription = true
				}
				if attr.Key == "content" {
					content = attr.Val
				}
			}
			if isDescription && content != "" {
				description = strings.TrimSpace(content)
				return
			}
		}
		for c := n.FirstChild; c != nil && description == ""; c = c.NextSibling {
			traverse(c)
		}
	}
	traverse(doc)
	return description
}

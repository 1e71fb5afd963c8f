// Package render turns conversation state into terminal text for the inspector.
package render

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
)

var urlToken = regexp.MustCompile(`(?i)^[a-z][a-z0-9+\-.]*://\S+$`)

// HTMLToText renders a message body fragment as plain text. Blockquotes and regions carrying
// quoteClass are prefixed with "> ". Links are returned in document order.
func HTMLToText(fragment, quoteClass string) (string, []string) {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{Type: html.ElementNode, Data: "body"})
	if err != nil {
		return fragment, nil
	}
	t := &textWriter{quoteClass: quoteClass}
	for _, n := range nodes {
		t.visit(n)
	}
	lines := strings.Split(normalizeNewlines(t.b.String()), "\n")
	for i, ln := range lines {
		lines[i] = strings.TrimRight(ln, " ")
	}
	return strings.TrimSpace(normalizeNewlines(strings.Join(lines, "\n"))), t.links
}

type textWriter struct {
	b          strings.Builder
	links      []string
	quoteDepth int
	quoteClass string
}

func (t *textWriter) visit(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		t.text(n.Data)
		return
	case html.ElementNode:
	default:
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			t.visit(c)
		}
		return
	}

	quoted := n.Data == "blockquote" || hasClass(n, t.quoteClass)
	if quoted {
		t.newline()
		t.quoteDepth++
		defer func() {
			t.quoteDepth--
			t.newline()
		}()
	}

	switch n.Data {
	case "head", "style", "script", "title", "meta", "link":
		return
	case "br":
		t.b.WriteByte('\n')
		return
	case "hr":
		t.b.WriteString("\n-----\n")
		return
	case "img":
		if alt := attr(n, "alt"); alt != "" {
			t.text("[image: " + alt + "]")
		} else {
			t.text("[image]")
		}
		return
	case "a":
		if href := attr(n, "href"); href != "" {
			t.links = append(t.links, href)
		}
	case "li":
		t.newline()
		t.b.WriteString("- ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		t.visit(c)
	}
	switch n.Data {
	case "p", "h1", "h2", "h3", "h4", "h5", "h6":
		t.b.WriteString("\n\n")
	case "div", "section", "tr", "ul", "ol":
		t.newline()
	}
}

func (t *textWriter) newline() {
	s := t.b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		t.b.WriteByte('\n')
	}
}

func (t *textWriter) text(s string) {
	s = sanitizeForTerminal(s)
	if s == "" {
		return
	}
	cur := t.b.String()
	lineStart := cur == "" || strings.HasSuffix(cur, "\n")
	if lineStart || strings.HasSuffix(cur, " ") {
		s = strings.TrimLeft(s, " ")
	}
	if s == "" {
		return
	}
	if lineStart && t.quoteDepth > 0 {
		t.b.WriteString(strings.Repeat("> ", min(t.quoteDepth, 3)))
	}
	t.b.WriteString(s)
}

// WrapText wraps lines to width display columns, keeping "> " quote prefixes and never
// breaking URLs.
func WrapText(input string, width int) string {
	if width <= 0 {
		return input
	}
	lines := strings.Split(normalizeNewlines(input), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		prefix := ""
		trimmed := line
		for strings.HasPrefix(trimmed, "> ") {
			prefix += "> "
			trimmed = strings.TrimPrefix(trimmed, "> ")
		}
		tokens := strings.Fields(trimmed)
		if len(tokens) == 0 {
			out = append(out, strings.TrimRight(prefix, " "))
			continue
		}
		cur := prefix
		for _, tok := range tokens {
			switch {
			case cur == prefix:
				cur += tok
			case runewidth.StringWidth(cur)+1+runewidth.StringWidth(tok) <= width:
				cur += " " + tok
			default:
				out = append(out, cur)
				cur = prefix + tok
			}
			// hard cut very long tokens that are not links
			for runewidth.StringWidth(cur) > width && !urlToken.MatchString(tok) && runewidth.StringWidth(prefix) < width-1 {
				head := runewidth.Truncate(cur, width, "")
				out = append(out, head)
				cur = prefix + cur[len(head):]
			}
		}
		out = append(out, cur)
	}
	return strings.Join(out, "\n")
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	// collapse 3+ blank lines into 2
	for strings.Contains(s, "\n\n\n") {
		s = strings.ReplaceAll(s, "\n\n\n", "\n\n")
	}
	return s
}

// sanitizeForTerminal drops control characters and collapses whitespace runs the way html
// rendering does, keeping one space at either edge
func sanitizeForTerminal(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	body := strings.Join(strings.Fields(s), " ")
	if body == "" {
		if s == "" {
			return ""
		}
		return " "
	}
	if strings.HasPrefix(s, " ") {
		body = " " + body
	}
	if strings.HasSuffix(s, " ") {
		body += " "
	}
	return body
}

func hasClass(n *html.Node, class string) bool {
	if class == "" {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

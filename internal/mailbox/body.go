package mailbox

import (
	"bytes"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// BodyHTML returns the message body as an html fragment for a content region.
// Quoted replies are wrapped or marked with quoteClass so the view can fold them.
func (m *Message) BodyHTML(quoteClass string) string {
	if strings.TrimSpace(m.HTML) != "" {
		if out, err := markQuotedHTML(m.HTML, quoteClass); err == nil {
			return out
		}
	}
	return TextToHTML(m.Text, quoteClass)
}

// TextToHTML converts a plain text body. Runs of lines starting with '>' become one quoted
// region and bare URLs become links.
func TextToHTML(text, quoteClass string) string {
	text = strings.ReplaceAll(strings.ReplaceAll(text, "\r\n", "\n"), "\r", "\n")
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}

	var b strings.Builder
	var quoted []string
	flush := func() {
		if len(quoted) == 0 {
			return
		}
		b.WriteString(`<div class="` + xhtml.EscapeString(quoteClass) + `">`)
		b.WriteString(strings.Join(quoted, "<br>"))
		b.WriteString("</div>")
		quoted = quoted[:0]
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ">") {
			quoted = append(quoted, linkify(line))
			continue
		}
		flush()
		b.WriteString(linkify(line))
		if i < len(lines)-1 {
			b.WriteString("<br>")
		}
	}
	flush()
	return b.String()
}

func linkify(line string) string {
	var b strings.Builder
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(line, -1) {
		b.WriteString(xhtml.EscapeString(line[last:loc[0]]))
		u := strings.TrimRight(line[loc[0]:loc[1]], ".,;:)")
		b.WriteString(`<a href="` + xhtml.EscapeString(u) + `">` + xhtml.EscapeString(u) + `</a>`)
		last = loc[0] + len(u)
	}
	b.WriteString(xhtml.EscapeString(line[last:]))
	return b.String()
}

// markQuotedHTML returns the inner html of body with cite blockquotes and gmail quotes marked.
// Scripts are dropped.
func markQuotedHTML(src, quoteClass string) (string, error) {
	doc, err := xhtml.Parse(strings.NewReader(src))
	if err != nil {
		return "", err
	}
	body := findBody(doc)
	if body == nil {
		return "", nil
	}

	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		for c := n.FirstChild; c != nil; {
			next := c.NextSibling
			if c.Type == xhtml.ElementNode && c.DataAtom == atom.Script {
				n.RemoveChild(c)
				c = next
				continue
			}
			if c.Type == xhtml.ElementNode && isQuote(c) {
				addClass(c, quoteClass)
				// nested quotes fold with their outer region
				c = next
				continue
			}
			walk(c)
			c = next
		}
	}
	walk(body)

	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := xhtml.Render(&buf, c); err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(buf.String()), nil
}

func findBody(n *xhtml.Node) *xhtml.Node {
	if n.Type == xhtml.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

func isQuote(n *xhtml.Node) bool {
	if n.DataAtom == atom.Blockquote && attr(n, "type") == "cite" {
		return true
	}
	for _, cls := range strings.Fields(attr(n, "class")) {
		if cls == "gmail_quote" {
			return true
		}
	}
	return false
}

func attr(n *xhtml.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func addClass(n *xhtml.Node, class string) {
	for i, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return
			}
		}
		n.Attr[i].Val = strings.TrimSpace(a.Val + " " + class)
		return
	}
	n.Attr = append(n.Attr, xhtml.Attribute{Key: "class", Val: class})
}

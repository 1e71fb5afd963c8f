package host

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// minHidden is the smallest run of messages folded into a super-collapsed placeholder
const minHidden = 2

// Heights are the pixel heights of the native overlays the page reserves room for
type Heights struct {
	ConversationHeader int `json:"conversation_header"`
	CollapsedHeader    int `json:"collapsed_header"`
	ExpandedHeader     int `json:"expanded_header"`
	Footer             int `json:"footer"`
	SuperCollapsed     int `json:"super_collapsed"`
}

// DefaultHeights returns the overlay heights of the inspector
func DefaultHeights() Heights {
	return Heights{
		ConversationHeader: 48,
		CollapsedHeader:    32,
		ExpandedHeader:     56,
		Footer:             8,
		SuperCollapsed:     24,
	}
}

// PageMessage is one message as laid out on the page
type PageMessage struct {
	ID         string
	BodyHTML   string
	ShowImages bool
}

// Range is a run of messages [Start, End) hidden behind the placeholder keyed by Index
type Range struct {
	Index int
	Start int
	End   int
}

// Plan decides the initial state of n messages: the last one is expanded, and when enough
// messages sit between the first and the second to last they are folded into one range.
func Plan(n int) (expanded []bool, ranges []Range) {
	expanded = make([]bool, n)
	if n == 0 {
		return expanded, nil
	}
	expanded[n-1] = true
	if hidden := n - 3; hidden >= minHidden {
		ranges = append(ranges, Range{Index: 1, Start: 1, End: n - 2})
	}
	return expanded, ranges
}

// Page builds conversation markup following a set of conventions
type Page struct {
	conv    content.Conventions
	heights Heights
}

// NewPage creates a page builder
func NewPage(conv content.Conventions, heights Heights) *Page {
	return &Page{conv: conv.Merge(content.DefaultConventions()), heights: heights}
}

// Render returns the full page for msgs laid out per expanded and ranges
func (p *Page) Render(msgs []PageMessage, expanded []bool, ranges []Range) (string, error) {
	root := element(atom.Html)
	head := element(atom.Head)
	head.AppendChild(element(atom.Meta,
		"id", p.conv.ViewportMetaID,
		"name", "viewport",
		"content", "width=device-width",
		p.conv.ZoomOnAttr, "user-scalable=yes",
		p.conv.ZoomOffAttr, "user-scalable=no",
	))
	root.AppendChild(head)

	body := element(atom.Body)
	root.AppendChild(body)
	body.AppendChild(element(atom.Div,
		"id", p.conv.ConversationHeaderID,
		"style", px(p.heights.ConversationHeader),
	))

	for i := 0; i < len(msgs); i++ {
		if r, ok := rangeAt(ranges, i); ok {
			body.AppendChild(element(atom.Div,
				"class", p.conv.SuperCollapsedClass,
				p.conv.SuperCollapsedIndexAttr, fmt.Sprint(r.Index),
				"style", px(p.heights.SuperCollapsed),
			))
			i = r.End - 1
			continue
		}
		block, err := p.block(msgs[i], i < len(expanded) && expanded[i])
		if err != nil {
			return "", err
		}
		body.AppendChild(block)
	}
	return render(root)
}

// Blocks renders message blocks on their own, for staging
func (p *Page) Blocks(msgs []PageMessage, expanded bool) (string, error) {
	var out strings.Builder
	for _, m := range msgs {
		block, err := p.block(m, expanded)
		if err != nil {
			return "", err
		}
		s, err := render(block)
		if err != nil {
			return "", err
		}
		out.WriteString(s)
	}
	return out.String(), nil
}

func (p *Page) block(m PageMessage, expanded bool) (*html.Node, error) {
	classes := []string{p.conv.MessageClass}
	header := p.heights.CollapsedHeader
	display := "none"
	if expanded {
		classes = append(classes, p.conv.ExpandedClass)
		header = p.heights.ExpandedHeader
		display = "block"
	}
	block := element(atom.Div, "id", p.conv.MessageDOMID(m.ID), "class", strings.Join(classes, " "))
	block.AppendChild(element(atom.Div, "class", p.conv.HeaderSpacerClass, "style", px(header)))

	contentClasses := []string{p.conv.ContentClass, p.conv.CollapsibleClass}
	if m.ShowImages {
		contentClasses = append(contentClasses, p.conv.ShowImagesClass)
	}
	region := element(atom.Div, "class", strings.Join(contentClasses, " "), "style", "display: "+display)
	nodes, err := html.ParseFragment(strings.NewReader(m.BodyHTML), region)
	if err != nil {
		return nil, fmt.Errorf("parse body of %s: %w", m.ID, err)
	}
	for _, n := range nodes {
		region.AppendChild(n)
	}
	block.AppendChild(region)

	block.AppendChild(element(atom.Div,
		"class", p.conv.FooterSpacerClass+" "+p.conv.CollapsibleClass,
		"style", fmt.Sprintf("display: %s; height: %dpx", display, p.heights.Footer),
	))
	return block, nil
}

func rangeAt(ranges []Range, i int) (Range, bool) {
	for _, r := range ranges {
		if r.Start == i && r.End > r.Start {
			return r, true
		}
	}
	return Range{}, false
}

func element(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func px(h int) string {
	return fmt.Sprintf("height: %dpx", h)
}

func render(n *html.Node) (string, error) {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", err
	}
	return buf.String(), nil
}

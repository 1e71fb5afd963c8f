// Package layout computes deterministic block-flow geometry for a content tree.
//
// The model is deliberately small: every element stacks vertically inside its parent,
// text wraps at word boundaries using fixed-width cells, images take the size of their
// width/height attributes, and an inline zoom style scales an element and its subtree.
// It provides the measurements the conversation view needs (offsets along the offset-parent
// chain, heights, natural content width) without a browser.
package layout

import (
	"math"
	"strconv"
	"strings"

	"github.com/ajramos/convview/internal/content"
	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"
)

// Metrics holds the fixed measurements of the layout model
type Metrics struct {
	ViewportWidth  float64 `json:"viewport_width"`
	ViewportHeight float64 `json:"viewport_height"`
	CharWidth      float64 `json:"char_width"`
	LineHeight     float64 `json:"line_height"`
}

// DefaultMetrics returns a phone-sized viewport
func DefaultMetrics() Metrics {
	return Metrics{ViewportWidth: 360, ViewportHeight: 640, CharWidth: 7, LineHeight: 18}
}

// Tree is the content the engine lays out
type Tree interface {
	Body() *html.Node
	Generation() uint64
}

// Box is the rendered geometry of one element, in page pixels
type Box struct {
	Node        *html.Node
	Parent      *Box
	Left        float64 // relative to Parent
	Top         float64 // relative to Parent
	Width       float64
	Height      float64
	ScrollWidth float64
	absTop      float64
	absLeft     float64
}

// Engine lays out a Tree on demand and caches the result until the tree changes
type Engine struct {
	tree    Tree
	metrics Metrics
	gen     uint64
	valid   bool
	boxes   map[*html.Node]*Box
	height  float64
}

// NewEngine creates a layout engine for tree
func NewEngine(tree Tree, metrics Metrics) *Engine {
	if metrics.CharWidth <= 0 {
		metrics.CharWidth = DefaultMetrics().CharWidth
	}
	if metrics.LineHeight <= 0 {
		metrics.LineHeight = DefaultMetrics().LineHeight
	}
	if metrics.ViewportWidth <= 0 {
		metrics.ViewportWidth = DefaultMetrics().ViewportWidth
	}
	if metrics.ViewportHeight <= 0 {
		metrics.ViewportHeight = DefaultMetrics().ViewportHeight
	}
	return &Engine{tree: tree, metrics: metrics}
}

// Metrics returns the engine's fixed measurements
func (e *Engine) Metrics() Metrics { return e.metrics }

// Box returns the box of n. ok is false for nodes that are not rendered
// (detached, inside a hidden subtree, or not elements).
func (e *Engine) Box(n *html.Node) (*Box, bool) {
	e.ensure()
	b, ok := e.boxes[n]
	return b, ok
}

// OffsetParent returns the node whose box n's offsets are relative to
func (e *Engine) OffsetParent(n *html.Node) *html.Node {
	if b, ok := e.Box(n); ok && b.Parent != nil {
		return b.Parent.Node
	}
	return nil
}

// OffsetLeft returns n's left offset relative to its offset parent
func (e *Engine) OffsetLeft(n *html.Node) float64 {
	if b, ok := e.Box(n); ok {
		return b.Left
	}
	return 0
}

// OffsetTop returns n's top offset relative to its offset parent
func (e *Engine) OffsetTop(n *html.Node) float64 {
	if b, ok := e.Box(n); ok {
		return b.Top
	}
	return 0
}

// OffsetHeight returns n's rendered height
func (e *Engine) OffsetHeight(n *html.Node) float64 {
	if b, ok := e.Box(n); ok {
		return b.Height
	}
	return 0
}

// ScrollWidth returns n's natural content width as rendered, including overflow
func (e *Engine) ScrollWidth(n *html.Node) float64 {
	if b, ok := e.Box(n); ok {
		return b.ScrollWidth
	}
	return 0
}

// ViewportWidth returns the rendered width of the body
func (e *Engine) ViewportWidth() float64 {
	return e.metrics.ViewportWidth
}

// ViewportHeight returns the height of the visible area
func (e *Engine) ViewportHeight() float64 {
	return e.metrics.ViewportHeight
}

// ScrollHeight returns the total height of the document
func (e *Engine) ScrollHeight() float64 {
	e.ensure()
	return e.height
}

func (e *Engine) ensure() {
	if e.valid && e.gen == e.tree.Generation() {
		return
	}
	e.boxes = make(map[*html.Node]*Box)
	e.height = 0
	if body := e.tree.Body(); body != nil {
		_, h, _ := e.place(body, nil, 0, 0, 1, e.metrics.ViewportWidth)
		e.height = h
	}
	e.gen = e.tree.Generation()
	e.valid = true
}

var skipped = map[string]bool{
	"head": true, "script": true, "style": true, "meta": true, "title": true, "link": true, "template": true,
}

var inline = map[string]bool{
	"a": true, "span": true, "b": true, "i": true, "u": true, "em": true, "strong": true, "font": true,
	"small": true, "big": true, "code": true, "sub": true, "sup": true, "label": true, "s": true,
}

// place lays out n with its top-left corner at absolute (absLeft, absTop). scale is the cumulative
// zoom of n's ancestors and avail the width available in the parent's coordinate space.
// It returns n's box, its height in parent units and its natural width in parent units.
func (e *Engine) place(n *html.Node, parent *Box, absLeft, absTop, scale, avail float64) (*Box, float64, float64) {
	box := &Box{Node: n, Parent: parent, absTop: absTop, absLeft: absLeft}
	if parent != nil {
		box.Top = absTop - parent.absTop
		box.Left = absLeft - parent.absLeft
	}
	e.boxes[n] = box
	if content.Hidden(n) {
		return box, 0, 0
	}

	zoom := 1.0
	if z, err := strconv.ParseFloat(content.StyleValue(n, "zoom"), 64); err == nil && z > 0 && !math.IsInf(z, 0) {
		zoom = z
	}

	width := avail
	if w, ok := explicitSize(n, "width"); ok {
		width = w * zoom
	}
	inner := width / zoom
	childScale := scale * zoom

	y := 0.0
	natural := inner
	run := textRun{}
	flush := func() {
		y += run.height(inner, e.metrics)
		if w := run.longest * e.metrics.CharWidth; w > natural {
			natural = w
		}
		run = textRun{}
	}

	if content.IsTag(n, "img") {
		if _, ok := explicitSize(n, "width"); !ok {
			width, inner, natural = 0, 0, 0
		}
	} else {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.TextNode:
				run.add(c.Data)
			case c.Type != html.ElementNode:
			case skipped[strings.ToLower(c.Data)]:
			case content.IsTag(c, "br"):
				if run.cells == 0 {
					y += e.metrics.LineHeight
				}
				flush()
			case inline[strings.ToLower(c.Data)] && !hasBlockContent(c):
				run.add(textOf(c))
			default:
				flush()
				_, h, w := e.place(c, box, absLeft, absTop+y*childScale, childScale, inner)
				y += h
				if w > natural {
					natural = w
				}
			}
		}
		flush()
	}

	if h, ok := explicitSize(n, "height"); ok {
		y = h
	}
	box.Width = width * scale
	box.Height = y * childScale
	box.ScrollWidth = natural * childScale
	return box, y * zoom, natural * zoom
}

func explicitSize(n *html.Node, prop string) (float64, bool) {
	if v, ok := content.Pixels(content.StyleValue(n, prop)); ok {
		return v, true
	}
	if content.IsTag(n, "img") || content.IsTag(n, "table") || content.IsTag(n, "td") {
		if raw, ok := content.Attr(n, prop); ok {
			return content.Pixels(raw)
		}
	}
	return 0, false
}

func hasBlockContent(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if !inline[strings.ToLower(c.Data)] || hasBlockContent(c) {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			return
		}
		if content.IsTag(n, "br") {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// textRun accumulates inline text between block boxes, measured in cells
type textRun struct {
	cells   float64
	longest float64
}

func (r *textRun) add(s string) {
	for _, word := range strings.Fields(s) {
		w := float64(runewidth.StringWidth(word))
		if w > r.longest {
			r.longest = w
		}
		if r.cells > 0 {
			r.cells++
		}
		r.cells += w
	}
}

func (r *textRun) lineCount(width float64) int {
	if r.cells == 0 {
		return 0
	}
	if width <= 0 {
		return 1
	}
	return int(math.Ceil(r.cells / width))
}

func (r *textRun) height(width float64, m Metrics) float64 {
	lines := r.lineCount(width / m.CharWidth)
	return float64(lines) * m.LineHeight
}

package conversation

import (
	"log"
	"math"
	"strconv"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// Report is the overlay geometry of the expanded messages. Entry i describes the gap the
// native overlay may draw over above expanded message i: from Tops[i] down to Bottoms[i], the
// bottom edge of that message's header spacer. The final entry is a sentinel whose bottom is
// the total document height.
type Report struct {
	Tops    []float64
	Bottoms []float64
}

// Len returns the number of entries including the sentinel
func (r Report) Len() int { return len(r.Tops) }

// Strings formats the report for the host call surface, which only carries text
func (r Report) Strings() (tops, bottoms []string) {
	return formatPixels(r.Tops), formatPixels(r.Bottoms)
}

func formatPixels(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strconv.Itoa(int(math.Round(v)))
	}
	return out
}

// GeometryReporter measures expanded messages and sends the result to the host
type GeometryReporter struct {
	doc    *content.Document
	layout Layout
	conv   content.Conventions
	host   Host
	logger *log.Logger

	last  Report
	count int
}

// NewGeometryReporter creates a reporter over doc
func NewGeometryReporter(doc *content.Document, layout Layout, conv content.Conventions, host Host, logger *log.Logger) *GeometryReporter {
	return &GeometryReporter{doc: doc, layout: layout, conv: conv, host: host, logger: logger}
}

// ComputeOffset returns the position of n relative to the top-left of the document,
// summing offsets along the offset-parent chain.
func (g *GeometryReporter) ComputeOffset(n *html.Node) (left, top float64) {
	for cur := n; cur != nil; cur = g.layout.OffsetParent(cur) {
		left += g.layout.OffsetLeft(cur)
		top += g.layout.OffsetTop(cur)
	}
	return left, top
}

// ExpandedRegions returns the content region of every expanded message, in document order
func (g *GeometryReporter) ExpandedRegions() []*html.Node {
	expr := "//*[" + content.ClassPredicate(g.conv.MessageClass) + " and " +
		content.ClassPredicate(g.conv.ExpandedClass) + "]/*[" + content.ClassPredicate(g.conv.ContentClass) + "]"
	return g.doc.Query(g.doc.Root(), expr)
}

// Measure computes the current report without sending it
func (g *GeometryReporter) Measure() Report {
	regions := g.ExpandedRegions()
	r := Report{
		Tops:    make([]float64, 0, len(regions)+1),
		Bottoms: make([]float64, 0, len(regions)+1),
	}
	prevBodyBottom := 0.0
	for _, region := range regions {
		r.Tops = append(r.Tops, prevBodyBottom)
		r.Bottoms = append(r.Bottoms, g.bottomEdge(g.headerSpacer(region)))

		if footer := content.NextElementSibling(region); footer != nil {
			_, prevBodyBottom = g.ComputeOffset(footer)
		} else {
			prevBodyBottom = g.bottomEdge(region)
		}
	}
	r.Tops = append(r.Tops, prevBodyBottom)
	r.Bottoms = append(r.Bottoms, g.layout.ScrollHeight())
	return r
}

// Report measures the expanded messages and sends the result to the host
func (g *GeometryReporter) Report() Report {
	r := g.Measure()
	g.last = r
	g.count++
	if g.host != nil {
		tops, bottoms := r.Strings()
		g.host.OnGeometryChange(tops, bottoms)
	}
	return r
}

// Last returns the most recently sent report
func (g *GeometryReporter) Last() Report { return g.last }

// Count returns how many reports have been sent
func (g *GeometryReporter) Count() int { return g.count }

func (g *GeometryReporter) headerSpacer(region *html.Node) *html.Node {
	if prev := content.PreviousElementSibling(region); prev != nil {
		return prev
	}
	return content.ChildWithClass(region.Parent, g.conv.HeaderSpacerClass)
}

func (g *GeometryReporter) bottomEdge(n *html.Node) float64 {
	if n == nil {
		return 0
	}
	_, top := g.ComputeOffset(n)
	return top + g.layout.OffsetHeight(n)
}

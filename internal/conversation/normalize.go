package conversation

import (
	"log"
	"strconv"
	"strings"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// WidthNormalizer scales regions so their content fits the viewport
type WidthNormalizer struct {
	doc      *content.Document
	layout   Layout
	conv     content.Conventions
	reporter *GeometryReporter
	logger   *log.Logger
}

// NewWidthNormalizer creates a normalizer. reporter supplies the set of expanded regions.
func NewWidthNormalizer(doc *content.Document, layout Layout, conv content.Conventions, reporter *GeometryReporter, logger *log.Logger) *WidthNormalizer {
	return &WidthNormalizer{doc: doc, layout: layout, conv: conv, reporter: reporter, logger: logger}
}

// NormalizeWidths sets each region's zoom to viewport width over natural width.
// The previous zoom is reset before measuring, so repeated calls settle on the same scale.
// Regions that measure zero wide, such as hidden or detached ones, keep the neutral zoom.
func (w *WidthNormalizer) NormalizeWidths(regions []*html.Node) {
	viewport := w.layout.ViewportWidth()
	for _, region := range regions {
		if region == nil {
			continue
		}
		if content.StyleValue(region, "zoom") != "" {
			w.doc.SetStyle(region, "zoom", "1")
		}
		natural := w.layout.ScrollWidth(region)
		if natural <= 0 {
			continue
		}
		w.doc.SetStyle(region, "zoom", strconv.FormatFloat(viewport/natural, 'f', -1, 64))
	}
}

// Scale returns the zoom currently applied to region
func Scale(region *html.Node) float64 {
	z, err := strconv.ParseFloat(content.StyleValue(region, "zoom"), 64)
	if err != nil || z <= 0 {
		return 1
	}
	return z
}

// NormalizeAllExpanded normalizes every expanded message and switches the viewport zoom
// policy off when the conversation has no visible text.
func (w *WidthNormalizer) NormalizeAllExpanded() {
	regions := w.reporter.ExpandedRegions()
	empty := true
	for _, r := range regions {
		if strings.TrimSpace(w.doc.Text(r)) != "" {
			empty = false
			break
		}
	}
	w.NormalizeWidths(regions)
	w.applyViewportPolicy(empty)
}

// applyViewportPolicy rewrites the viewport meta content as base plus the selected zoom value.
// The base is stashed on first use so repeated calls do not accumulate values.
func (w *WidthNormalizer) applyViewportPolicy(empty bool) {
	meta := w.doc.ByID(w.conv.ViewportMetaID)
	if meta == nil {
		if w.logger != nil {
			w.logger.Printf("conversation: no viewport meta %q", w.conv.ViewportMetaID)
		}
		return
	}
	base, ok := content.Attr(meta, w.conv.ViewportBaseAttr)
	if !ok {
		base, _ = content.Attr(meta, "content")
		w.doc.SetAttr(meta, w.conv.ViewportBaseAttr, base)
	}
	policy := w.conv.ZoomOnAttr
	if empty {
		policy = w.conv.ZoomOffAttr
	}
	values := []string{}
	if base != "" {
		values = append(values, base)
	}
	if v, _ := content.Attr(meta, policy); v != "" {
		values = append(values, v)
	}
	w.doc.SetAttr(meta, "content", strings.Join(values, ","))
}

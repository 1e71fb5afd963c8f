package conversation

import (
	"fmt"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// QuotedState is the visibility of a quoted-text region
type QuotedState int

const (
	Hidden QuotedState = iota
	Shown
)

func (s QuotedState) String() string {
	if s == Shown {
		return "shown"
	}
	return "hidden"
}

// ScanAndWrapQuotedText finds every quoted-text region under root (root included) and puts a
// toggle control immediately before it. Regions start hidden; with showElided they are shown
// straight away and renormalized, without a geometry report. Regions that already have a
// control are left alone. It returns the controls it created.
func (m *Mutator) ScanAndWrapQuotedText(root *html.Node, showElided bool) []*html.Node {
	if root == nil {
		return nil
	}
	regions := m.doc.FindByClass(root, m.conv.QuotedTextClass)
	if content.HasClass(root, m.conv.QuotedTextClass) {
		regions = append([]*html.Node{root}, regions...)
	}

	var created []*html.Node
	for _, region := range regions {
		if region.Parent == nil || m.controlFor(region) != nil {
			continue
		}
		control := m.doc.CreateElement("div")
		m.doc.SetAttr(control, "class", m.conv.ToggleClass)
		m.doc.InsertBefore(region.Parent, control, region)
		m.toggles[control] = region
		created = append(created, control)

		state := Hidden
		if showElided {
			state = Shown
		}
		m.setQuotedState(control, region, state)
	}
	return created
}

// ToggleQuotedText flips the region bound to control, then reports geometry.
// Two calls in a row restore the original visibility and label.
func (m *Mutator) ToggleQuotedText(control *html.Node) error {
	region, ok := m.toggles[control]
	if !ok || !content.Attached(control, m.doc.Root()) {
		return fmt.Errorf("toggle quoted text: %w", ErrToggleNotFound)
	}
	next := Shown
	if QuotedStateOf(region) == Shown {
		next = Hidden
	}
	m.setQuotedState(control, region, next)
	m.reporter.Report()
	return nil
}

// QuotedStateOf returns the visibility of a quoted-text region
func QuotedStateOf(region *html.Node) QuotedState {
	if content.Hidden(region) {
		return Hidden
	}
	return Shown
}

// Toggles returns the live controls under top, in document order
func (m *Mutator) Toggles(top *html.Node) []*html.Node {
	var out []*html.Node
	for _, c := range m.doc.FindByClass(top, m.conv.ToggleClass) {
		if _, ok := m.toggles[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// RegionFor returns the quoted-text region bound to control
func (m *Mutator) RegionFor(control *html.Node) (*html.Node, bool) {
	r, ok := m.toggles[control]
	return r, ok
}

// pruneToggles forgets controls that are no longer in the document
func (m *Mutator) pruneToggles() {
	for control := range m.toggles {
		if !content.Attached(control, m.doc.Root()) {
			delete(m.toggles, control)
		}
	}
}

func (m *Mutator) controlFor(region *html.Node) *html.Node {
	prev := content.PreviousElementSibling(region)
	if prev == nil {
		return nil
	}
	if bound, ok := m.toggles[prev]; ok && bound == region {
		return prev
	}
	return nil
}

func (m *Mutator) setQuotedState(control, region *html.Node, state QuotedState) {
	if state == Shown {
		m.doc.SetText(control, m.conv.HideQuotedLabel)
		m.doc.SetStyle(region, "display", "block")
		// revealed content can be wider than the viewport
		m.normalizer.NormalizeWidths([]*html.Node{region})
		return
	}
	m.doc.SetText(control, m.conv.ShowQuotedLabel)
	m.doc.SetStyle(region, "display", "none")
}

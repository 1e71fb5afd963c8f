package tui

import (
	"fmt"
	"strings"

	"github.com/ajramos/convview/internal/content"
	"github.com/ajramos/convview/internal/host"
	"github.com/ajramos/convview/internal/render"
	"github.com/derailed/tview"
)

// refreshList redraws the message table from the harness. Must run on the ui goroutine.
func (a *App) refreshList() {
	states := a.harness.Messages()
	a.mu.Lock()
	a.states = states
	a.mu.Unlock()

	row, _ := a.list.GetSelection()
	a.list.Clear()
	_, _, width, _ := a.list.GetInnerRect()
	if width <= 0 {
		width = 80
	}
	for i, m := range states {
		text, color := a.renderer.FormatRow(m, width)
		a.list.SetCell(i, 0, tview.NewTableCell(tview.Escape(text)).SetTextColor(color).SetExpansion(1))
	}
	if row >= len(states) {
		row = len(states) - 1
	}
	if row < 0 {
		row = 0
	}
	if len(states) > 0 {
		a.list.Select(row, 0)
		a.showBody(row)
	}
}

// stateAt returns the state of the message shown on row
func (a *App) stateAt(row int) (host.MessageState, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if row < 0 || row >= len(a.states) {
		return host.MessageState{}, false
	}
	return a.states[row], true
}

func (a *App) showBody(row int) {
	a.mu.Lock()
	if row < 0 || row >= len(a.states) {
		a.mu.Unlock()
		return
	}
	m := a.states[row]
	a.mu.Unlock()

	_, _, width, _ := a.body.GetInnerRect()
	a.body.SetTitle(fmt.Sprintf(" %s ", tview.Escape(m.Subject)))
	a.body.SetText(bodyPreview(a.harness.FetchMessageBody(m.DOMID), a.quoteClass(), width))
	a.body.ScrollToBeginning()
}

func (a *App) quoteClass() string {
	return content.DefaultConventions().QuotedTextClass
}

func (a *App) showGeometry(tops, bottoms []string) {
	a.mu.Lock()
	states := append([]host.MessageState(nil), a.states...)
	a.mu.Unlock()
	a.geometry.SetText(geometryText(states, tops, bottoms))
}

// bodyPreview renders a body fragment as wrapped text with its links listed below
func bodyPreview(bodyHTML, quoteClass string, width int) string {
	text, links := render.HTMLToText(bodyHTML, quoteClass)
	if width > 0 {
		text = render.WrapText(text, width)
	}
	if len(links) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nLinks:\n")
	for i, l := range links {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, l)
	}
	return strings.TrimRight(b.String(), "\n")
}

// geometryText pairs each reported overlay with the expanded message it belongs to.
// Reports list expanded messages in document order.
func geometryText(states []host.MessageState, tops, bottoms []string) string {
	var expanded []host.MessageState
	for _, m := range states {
		if m.Expanded && !m.Hidden {
			expanded = append(expanded, m)
		}
	}
	var b strings.Builder
	for i := range tops {
		name := fmt.Sprintf("#%d", i)
		if i < len(expanded) {
			name = expanded[i].Sender
		}
		bottom := ""
		if i < len(bottoms) {
			bottom = bottoms[i]
		}
		fmt.Fprintf(&b, "%-18s top %6s  bottom %6s\n", name, tops[i], bottom)
	}
	if b.Len() == 0 {
		return "no expanded messages"
	}
	return strings.TrimRight(b.String(), "\n")
}

// rangeFor returns the super-collapsed range covering message i
func rangeFor(ranges []host.Range, i int) (host.Range, bool) {
	for _, r := range ranges {
		if i >= r.Start && i < r.End {
			return r, true
		}
	}
	return host.Range{}, false
}

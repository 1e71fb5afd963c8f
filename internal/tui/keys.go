package tui

import (
	"context"
	"fmt"

	"github.com/derailed/tcell/v2"
)

const headerStep = 8

func (a *App) bindKeys() {
	a.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// the selection is read here, on the ui goroutine; commands run in the background
		row, _ := a.list.GetSelection()
		if event.Key() == tcell.KeyEnter {
			go a.toggleSelected(row)
			return nil
		}
		if event.Rune() == 0 {
			return event
		}
		switch event.Rune() {
		case 'q':
			go a.quit()
			return nil
		case 'i':
			go a.showImagesSelected(row)
			return nil
		case 'x':
			go a.expandRangeSelected(row)
			return nil
		case 'r':
			go a.reloadSelected(row)
			return nil
		case 't':
			go a.toggleQuotedSelected(row)
			return nil
		case '+':
			go a.resizeHeader(headerStep)
			return nil
		case '-':
			go a.resizeHeader(-headerStep)
			return nil
		}
		return event
	})
}

// run executes a harness command off the ui goroutine and refreshes the list afterwards
func (a *App) run(op string, fn func(ctx context.Context) error) {
	if err := fn(a.ctx); err != nil {
		a.status.HandleError(fmt.Errorf("%s: %w", op, err), op+" failed")
		return
	}
	a.QueueUpdateDraw(a.refreshList)
}

func (a *App) toggleSelected(row int) {
	m, ok := a.stateAt(row)
	if !ok {
		return
	}
	if m.Hidden {
		a.expandRangeSelected(row)
		return
	}
	a.logf("toggle %s", m.DOMID)
	a.run("toggle message", func(ctx context.Context) error { return a.harness.ToggleExpanded(ctx, m.DOMID) })
}

func (a *App) showImagesSelected(row int) {
	m, ok := a.stateAt(row)
	if !ok || m.Hidden {
		return
	}
	if m.ShowImages {
		a.status.ShowInfo("images already shown")
		return
	}
	a.run("show images", func(ctx context.Context) error { return a.harness.ShowImages(ctx, m.DOMID) })
}

func (a *App) expandRangeSelected(row int) {
	r, ok := rangeFor(a.harness.Ranges(), row)
	if !ok {
		a.status.ShowInfo("no folded messages here")
		return
	}
	a.run("expand folded messages", func(ctx context.Context) error { return a.harness.ExpandRange(ctx, r.Index) })
}

func (a *App) reloadSelected(row int) {
	m, ok := a.stateAt(row)
	if !ok || m.Hidden {
		return
	}
	a.run("reload message", func(ctx context.Context) error { return a.harness.Reload(ctx, m.DOMID) })
}

func (a *App) toggleQuotedSelected(row int) {
	m, ok := a.stateAt(row)
	if !ok || !m.Expanded || m.Hidden {
		return
	}
	a.run("toggle quoted text", func(ctx context.Context) error { return a.harness.ToggleQuoted(ctx, m.DOMID, 0) })
}

func (a *App) resizeHeader(delta int) {
	a.mu.Lock()
	height := a.headerHeight + delta
	if height < 0 {
		height = 0
	}
	a.headerHeight = height
	a.mu.Unlock()
	a.run("resize header", func(ctx context.Context) error { return a.harness.ResizeHeader(ctx, height) })
}

func (a *App) quit() {
	if a.bridge != nil {
		if snap, err := a.bridge.Snapshot(a.ctx); err == nil && snap.ScrollHeight > 0 {
			percent := snap.ScrollY / snap.ScrollHeight
			if err := a.harness.SaveScroll(a.ctx, percent); err != nil {
				a.logf("save scroll: %v", err)
			}
		}
	}
	a.Stop()
}

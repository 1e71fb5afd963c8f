// Package tui is a terminal inspector for the conversation view. It lists the messages of an
// open conversation with their expanded and hidden state, previews bodies and shows the
// overlay geometry the view reports.
package tui

import (
	"context"
	"log"
	"os"
	"sync"

	"github.com/ajramos/convview/internal/bridge"
	"github.com/ajramos/convview/internal/config"
	"github.com/ajramos/convview/internal/host"
	"github.com/ajramos/convview/internal/render"
	"github.com/ajramos/convview/internal/version"
	"github.com/derailed/tcell/v2"
	"github.com/derailed/tview"
)

// Controller is the part of the host harness the inspector drives
type Controller interface {
	Open(ctx context.Context, conversationID string) error
	Messages() []host.MessageState
	Ranges() []host.Range
	SetExpanded(ctx context.Context, domID string, expanded bool) error
	ToggleExpanded(ctx context.Context, domID string) error
	ExpandRange(ctx context.Context, index int) error
	ShowImages(ctx context.Context, domID string) error
	Reload(ctx context.Context, domIDs ...string) error
	ToggleQuoted(ctx context.Context, domID string, n int) error
	ResizeHeader(ctx context.Context, height int) error
	SaveScroll(ctx context.Context, percent float64) error
	FetchMessageBody(domID string) string
	Geometry() (tops, bottoms []string)
	OnGeometry(fn func(tops, bottoms []string))
}

// App is the inspector application
type App struct {
	*tview.Application
	Config *config.Config

	ctx    context.Context
	cancel context.CancelFunc

	harness  Controller
	bridge   *bridge.Bridge
	renderer *render.MessageRenderer
	status   *StatusBar

	list     *tview.Table
	body     *tview.TextView
	geometry *tview.TextView
	root     *tview.Flex

	mu             sync.Mutex
	conversationID string
	states         []host.MessageState
	headerHeight   int

	logger  *log.Logger
	logFile *os.File
}

// NewApp creates the inspector. The harness must already be attached to b.
func NewApp(cfg *config.Config, harness Controller, b *bridge.Bridge, logger *log.Logger) *App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		Application:  tview.NewApplication(),
		Config:       cfg,
		ctx:          ctx,
		cancel:       cancel,
		harness:      harness,
		bridge:       b,
		renderer:     render.NewMessageRenderer(),
		logger:       logger,
		headerHeight: cfg.Heights.ConversationHeader,
	}
	a.initLogger()
	a.renderer.UpdateFromConfig(cfg.Colors)
	a.initComponents()
	a.bindKeys()

	harness.OnGeometry(func(tops, bottoms []string) {
		// reports arrive on the view's loop; hand them to the ui goroutine
		a.QueueUpdateDraw(func() { a.showGeometry(tops, bottoms) })
	})
	return a
}

func (a *App) colors() *config.ColorsConfig {
	if a.Config.Colors != nil {
		return a.Config.Colors
	}
	return config.DefaultColors()
}

func (a *App) initComponents() {
	colors := a.colors()

	a.list = tview.NewTable().SetSelectable(true, false)
	a.list.SetBackgroundColor(colors.Body.BgColor.Color())
	a.list.SetBorder(true).
		SetBorderColor(colors.Frame.BorderColor.Color()).
		SetBorderAttributes(tcell.AttrBold).
		SetTitle(" Messages ").
		SetTitleColor(colors.Frame.TitleColor.Color()).
		SetTitleAlign(tview.AlignCenter)
	a.list.SetSelectionChangedFunc(func(row, _ int) { a.showBody(row) })

	a.body = tview.NewTextView().SetDynamicColors(false).SetWrap(true).SetScrollable(true)
	a.body.SetBackgroundColor(colors.Body.BgColor.Color())
	a.body.SetTextColor(colors.Body.FgColor.Color())
	a.body.SetBorder(true).
		SetBorderColor(colors.Frame.BorderColor.Color()).
		SetTitle(" Body ").
		SetTitleColor(colors.Frame.TitleColor.Color())

	a.geometry = tview.NewTextView().SetDynamicColors(false)
	a.geometry.SetBackgroundColor(colors.Body.BgColor.Color())
	a.geometry.SetTextColor(colors.Body.GeometryColor.Color())
	a.geometry.SetBorder(true).
		SetBorderColor(colors.Frame.BorderColor.Color()).
		SetTitle(" Overlays ").
		SetTitleColor(colors.Frame.TitleColor.Color())

	statusView := tview.NewTextView().SetDynamicColors(false)
	statusView.SetBackgroundColor(colors.Frame.FocusColor.Color())
	a.status = NewStatusBar(a.Application, statusView, a.logger)

	right := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(a.body, 0, 3, false).
		AddItem(a.geometry, 8, 0, false)
	main := tview.NewFlex().
		AddItem(a.list, 0, 1, true).
		AddItem(right, 0, 1, false)
	a.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(main, 0, 1, true).
		AddItem(statusView, 1, 0, false)
}

// Run opens the conversation and starts the ui loop
func (a *App) Run(conversationID string) error {
	defer a.closeLogger()
	a.SetRoot(a.root, true).SetFocus(a.list)
	a.status.SetBaseline(version.GetVersionString())

	a.mu.Lock()
	a.conversationID = conversationID
	a.mu.Unlock()

	go func() {
		if err := a.harness.Open(a.ctx, conversationID); err != nil {
			a.status.HandleError(err, "could not open conversation")
			return
		}
		if err := a.bridge.Settle(a.ctx, 10); err != nil {
			a.logf("settle: %v", err)
		}
		a.QueueUpdateDraw(a.refreshList)
		a.status.ShowSuccess("conversation loaded")
	}()

	return a.Application.Run()
}

// Stop cancels pending commands and stops the ui
func (a *App) Stop() {
	a.cancel()
	a.Application.Stop()
}

func (a *App) logf(format string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Printf(format, args...)
	}
}

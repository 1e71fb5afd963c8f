package tui

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/ajramos/convview/internal/config"
	"github.com/ajramos/convview/internal/host"
	"github.com/derailed/tview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHarness struct {
	mu       sync.Mutex
	states   []host.MessageState
	ranges   []host.Range
	calls    []string
	failNext error
	listener func(tops, bottoms []string)
}

func (f *fakeHarness) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeHarness) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeHarness) Open(ctx context.Context, id string) error { return f.record("open " + id) }
func (f *fakeHarness) Messages() []host.MessageState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]host.MessageState(nil), f.states...)
}
func (f *fakeHarness) Ranges() []host.Range { return f.ranges }
func (f *fakeHarness) SetExpanded(ctx context.Context, id string, expanded bool) error {
	return f.record("set " + id)
}
func (f *fakeHarness) ToggleExpanded(ctx context.Context, id string) error {
	return f.record("toggle " + id)
}
func (f *fakeHarness) ExpandRange(ctx context.Context, index int) error {
	return f.record("range " + string(rune('0'+index)))
}
func (f *fakeHarness) ShowImages(ctx context.Context, id string) error {
	return f.record("images " + id)
}
func (f *fakeHarness) Reload(ctx context.Context, ids ...string) error {
	return f.record("reload " + ids[0])
}
func (f *fakeHarness) ToggleQuoted(ctx context.Context, id string, n int) error {
	return f.record("quoted " + id)
}
func (f *fakeHarness) ResizeHeader(ctx context.Context, height int) error {
	return f.record("header")
}
func (f *fakeHarness) SaveScroll(ctx context.Context, percent float64) error {
	return f.record("scroll")
}
func (f *fakeHarness) FetchMessageBody(id string) string {
	return "<p>body of " + id + "</p>"
}
func (f *fakeHarness) Geometry() (tops, bottoms []string) { return nil, nil }
func (f *fakeHarness) OnGeometry(fn func(tops, bottoms []string)) {
	f.listener = fn
}

func newTestApp(t *testing.T) (*App, *fakeHarness) {
	t.Helper()
	f := &fakeHarness{
		states: []host.MessageState{
			{DOMID: "m1", Sender: "Alice", Subject: "Plans"},
			{DOMID: "m2", Sender: "Bob", Subject: "Re: Plans", Hidden: true},
			{DOMID: "m3", Sender: "Carol", Subject: "Re: Plans", Hidden: true},
			{DOMID: "m4", Sender: "Dan", Subject: "Re: Plans"},
			{DOMID: "m5", Sender: "Eve", Subject: "Re: Plans", Expanded: true},
		},
		ranges: []host.Range{{Index: 1, Start: 1, End: 3}},
	}
	a := NewApp(config.DefaultConfig(), f, nil, log.New(io.Discard, "", 0))
	t.Cleanup(a.cancel)
	a.refreshList()
	return a, f
}

func TestAppListsMessages(t *testing.T) {
	a, f := newTestApp(t)

	assert.Equal(t, 5, a.list.GetRowCount())
	assert.Contains(t, a.list.GetCell(0, 0).Text, "Alice")
	assert.Contains(t, a.body.GetText(true), "body of m1")
	require.NotNil(t, f.listener)
}

func TestAppCommands(t *testing.T) {
	a, f := newTestApp(t)

	a.toggleSelected(0)
	a.toggleSelected(1) // hidden rows expand their range
	a.showImagesSelected(4)
	a.reloadSelected(3)
	a.toggleQuotedSelected(4)
	a.toggleQuotedSelected(0) // collapsed messages have no visible quotes
	a.expandRangeSelected(4)  // not folded
	a.resizeHeader(-headerStep)

	assert.Equal(t, []string{"toggle m1", "range 1", "images m5", "reload m4", "quoted m5", "header"}, f.Calls())
	assert.Equal(t, config.DefaultConfig().Heights.ConversationHeader-headerStep, a.headerHeight)
}

func TestAppCommandErrorShowsStatus(t *testing.T) {
	a, f := newTestApp(t)
	f.failNext = errors.New("boom")

	a.toggleSelected(0)
	assert.Contains(t, a.status.Text(), "toggle message failed")
}

func TestGeometryText(t *testing.T) {
	states := []host.MessageState{
		{Sender: "Alice"},
		{Sender: "Bob", Expanded: true},
		{Sender: "Carol", Expanded: true, Hidden: true},
		{Sender: "Dan", Expanded: true},
	}
	text := geometryText(states, []string{"10", "200"}, []string{"150", "400"})
	assert.Equal(t, "Bob                top     10  bottom    150\nDan                top    200  bottom    400", text)
	assert.Equal(t, "no expanded messages", geometryText(nil, nil, nil))
}

func TestRangeFor(t *testing.T) {
	ranges := []host.Range{{Index: 1, Start: 1, End: 4}}
	r, ok := rangeFor(ranges, 3)
	assert.True(t, ok)
	assert.Equal(t, 1, r.Index)
	_, ok = rangeFor(ranges, 4)
	assert.False(t, ok)
	_, ok = rangeFor(ranges, 0)
	assert.False(t, ok)
}

func TestBodyPreview(t *testing.T) {
	out := bodyPreview(`<p>see <a href="https://x.test">this</a></p>`, "elided-text", 0)
	assert.Equal(t, "see this\n\nLinks:\n[1] https://x.test", out)
}

func TestStatusBar(t *testing.T) {
	view := tview.NewTextView()
	s := NewStatusBar(nil, view, nil)
	s.SetBaseline("convview")
	assert.Equal(t, "convview", view.GetText(true))

	s.ShowSuccess("saved")
	assert.Equal(t, "✅ saved", s.Text())
	s.clear("✅ other")
	assert.Equal(t, "✅ saved", s.Text())
	s.clear("✅ saved")
	assert.Equal(t, "convview", s.Text())

	s.HandleError(nil, "ignored")
	assert.Equal(t, "convview", s.Text())
}

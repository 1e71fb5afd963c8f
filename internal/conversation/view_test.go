package conversation

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/ajramos/convview/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

func region(t *testing.T, v *View, blockID string) *html.Node {
	t.Helper()
	r := content.ChildWithClass(v.Document().ByID(blockID), v.Conventions().ContentClass)
	require.NotNil(t, r, "content region of %s", blockID)
	return r
}

func TestLoadRunsInitialPass(t *testing.T) {
	host := newMockHost(0.5)
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view

	tops, bottoms := host.lastReport()
	assert.Equal(t, []string{"0", "100", "245"}, tops)
	assert.Equal(t, []string{"40", "145", "245"}, bottoms)
	assert.Equal(t, 1, host.reports())
	host.AssertCalled(t, "OnContentReady")

	assert.Equal(t, 122.0, v.ScrollY())
	assert.Len(t, v.Toggles(), 3)

	meta := v.Document().ByID("meta-viewport")
	got, _ := content.Attr(meta, "content")
	assert.Equal(t, "width=device-width,user-scalable=yes", got)
}

func TestScrollNotRestoredWhenContentFits(t *testing.T) {
	host := newMockHost(0.5)
	f := load(t, `<html><body><div style="height: 20px"></div></body></html>`, host, DefaultPolicy())
	assert.Equal(t, 0.0, f.view.ScrollY())
}

func TestCommandsBeforeLoad(t *testing.T) {
	v := New(newMockHost(0), Options{})
	assert.ErrorIs(t, v.SetMessageBodyVisible("msg1", true, 10), ErrNotLoaded)
	assert.ErrorIs(t, v.ReplaceSuperCollapsedBlock(1), ErrNotLoaded)
	assert.ErrorIs(t, v.UnblockImages("msg1"), ErrNotLoaded)
	assert.Empty(t, v.Toggles())
	assert.Equal(t, Snapshot{}, v.Snapshot())
}

func TestComputeOffsetFollowsOffsetParents(t *testing.T) {
	f := load(t, conversationPage, newMockHost(0), DefaultPolicy())
	v := f.view

	left, top := v.Reporter().ComputeOffset(region(t, v, "msg5"))
	assert.Equal(t, 0.0, left)
	assert.Equal(t, 145.0, top)

	footer := content.ChildWithClass(v.Document().ByID("msg1"), "mail-message-footer")
	_, top = v.Reporter().ComputeOffset(footer)
	assert.Equal(t, 100.0, top)
}

func TestReportHasSentinelEntry(t *testing.T) {
	f := load(t, conversationPage, newMockHost(0), DefaultPolicy())
	r := f.view.Reporter().Measure()

	expanded := len(f.view.Reporter().ExpandedRegions())
	require.Equal(t, 2, expanded)
	assert.Equal(t, expanded+1, r.Len())
	assert.Len(t, r.Bottoms, expanded+1)
	assert.Equal(t, f.view.Layout().ScrollHeight(), r.Bottoms[len(r.Bottoms)-1])
}

func TestSetMessageBodyVisibleExpandsCollapsedMessage(t *testing.T) {
	host := newMockHost(0)
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view
	before := host.reports()

	require.NoError(t, v.SetMessageBodyVisible("msg2", true, 40))

	block := v.Document().ByID("msg2")
	assert.True(t, content.HasClass(block, "expanded"))
	for _, c := range v.Document().FindByClass(block, "collapsible") {
		assert.Equal(t, "block", content.StyleValue(c, "display"))
	}
	spacer := content.ChildWithClass(block, "mail-message-header")
	assert.Equal(t, "40px", content.StyleValue(spacer, "height"))
	assert.Equal(t, 0.25, Scale(region(t, v, "msg2")))

	assert.Equal(t, before+1, host.reports())
	tops, bottoms := host.lastReport()
	assert.Len(t, tops, 4)
	assert.Len(t, bottoms, 4)

	// setting the same state again keeps the block expanded
	require.NoError(t, v.SetMessageBodyVisible("msg2", true, 40))
	assert.True(t, content.HasClass(block, "expanded"))
	assert.Equal(t, 0.25, Scale(region(t, v, "msg2")))

	require.NoError(t, v.SetMessageBodyVisible("msg2", false, 10))
	assert.False(t, content.HasClass(block, "expanded"))
	assert.True(t, content.Hidden(region(t, v, "msg2")))
	tops, _ = host.lastReport()
	assert.Len(t, tops, 3)
}

func TestSetMessageBodyVisibleLookupMiss(t *testing.T) {
	host := newMockHost(0)
	f := load(t, conversationPage, host, DefaultPolicy())
	gen := f.view.Document().Generation()
	before := host.reports()

	err := f.view.SetMessageBodyVisible("nope", true, 40)
	assert.ErrorIs(t, err, ErrBlockNotFound)
	assert.True(t, IsLookupMiss(err))

	err = f.view.SetMessageBodyVisible("conversation-header", true, 40)
	assert.ErrorIs(t, err, ErrNoCollapsible)

	assert.Equal(t, gen, f.view.Document().Generation())
	assert.Equal(t, before, host.reports())
}

func TestSpacerHeights(t *testing.T) {
	host := newMockHost(0)
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view

	require.NoError(t, v.SetConversationHeaderSpacerHeight(50))
	_, bottoms := host.lastReport()
	assert.Equal(t, "60", bottoms[0])

	require.NoError(t, v.SetMessageHeaderSpacerHeight("msg5", 30))
	_, bottoms = host.lastReport()
	assert.Equal(t, "185", bottoms[1])

	before := host.reports()
	assert.ErrorIs(t, v.SetMessageHeaderSpacerHeight("nope", 30), ErrSpacerNotFound)
	assert.Equal(t, before, host.reports())
}

func TestReplaceSuperCollapsedBlock(t *testing.T) {
	host := newMockHost(0)
	host.On("FetchTempMessageBodies").Return(`<div id="msg3" class="mail-message"><div class="mail-message-header" style="height: 10px"></div><div class="mail-message-content collapsible" style="display: none">three<div class="elided-text">q3</div><img src="http://x/3.png"></div></div>` +
		`<div id="msg4" class="mail-message"><div class="mail-message-header" style="height: 10px"></div><div class="mail-message-content collapsible" style="display: none">four</div></div>`)
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view
	doc := v.Document()
	before := host.reports()

	require.NoError(t, v.ReplaceSuperCollapsedBlock(3))

	assert.Empty(t, doc.FindByClass(doc.Root(), "mail-super-collapsed-block"))
	msg3, msg4 := doc.ByID("msg3"), doc.ByID("msg4")
	require.NotNil(t, msg3)
	require.NotNil(t, msg4)
	assert.Equal(t, msg3, content.NextElementSibling(doc.ByID("msg2")))
	assert.Equal(t, msg4, content.NextElementSibling(msg3))
	assert.Equal(t, doc.ByID("msg5"), content.NextElementSibling(msg4))

	quote := doc.FindByClass(msg3, "elided-text")
	require.Len(t, quote, 1)
	assert.Equal(t, Hidden, QuotedStateOf(quote[0]))
	assert.True(t, content.HasClass(content.PreviousElementSibling(quote[0]), "mail-elided-text"))

	img := doc.Images(msg3)[0]
	assert.True(t, v.Gate().Blocked(img))
	assert.Equal(t, before+1, host.reports())
}

func TestReplaceSuperCollapsedBlockUnknownIndex(t *testing.T) {
	host := newMockHost(0)
	f := load(t, conversationPage, host, DefaultPolicy())
	gen := f.view.Document().Generation()
	before := host.reports()

	err := f.view.ReplaceSuperCollapsedBlock(7)
	assert.ErrorIs(t, err, ErrPlaceholderNotFound)

	host.AssertNotCalled(t, "FetchTempMessageBodies")
	assert.Equal(t, gen, f.view.Document().Generation())
	assert.Equal(t, before, host.reports())
}

func TestReplaceMessageBodies(t *testing.T) {
	host := newMockHost(0)
	host.On("FetchMessageBody", "msg1").Return(`<p>new body</p><div class="elided-text">new quote</div><img src="https://x/new.png">`)
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view
	before := host.reports()

	err := v.ReplaceMessageBodies([]string{"msg1", "nope"})
	assert.ErrorIs(t, err, ErrRegionNotFound)
	assert.True(t, IsLookupMiss(err))
	host.AssertNotCalled(t, "FetchMessageBody", "nope")
	assert.Equal(t, before+1, host.reports(), "one report for the whole batch")

	r := region(t, v, "msg1")
	assert.Contains(t, v.Document().Text(r), "new body")
	controls := v.Toggles()
	assert.Len(t, controls, 3, "stale control dropped, new control added")

	quote := v.Document().FindByClass(r, "elided-text")[0]
	assert.Equal(t, Shown, QuotedStateOf(quote))
	assert.Equal(t, "Hide quoted text", v.Document().Text(content.PreviousElementSibling(quote)))

	img := v.Document().Images(r)[0]
	src, _ := content.Attr(img, "blocked-src")
	assert.Equal(t, "https://x/new.png", src)
}

func TestAppendMessageHTML(t *testing.T) {
	host := newMockHost(0)
	host.On("FetchTempMessageBodies").Return(`<div id="msg9" class="mail-message expanded"><div class="mail-message-header" style="height: 10px"></div><div class="mail-message-content">appended<div class="elided-text">q</div></div></div>`).Once()
	host.On("FetchTempMessageBodies").Return("  ").Once()
	f := load(t, conversationPage, host, DefaultPolicy())
	v := f.view
	doc := v.Document()

	require.NoError(t, v.AppendMessageHTML())
	var last *html.Node
	for c := doc.Body().LastChild; c != nil; c = c.PrevSibling {
		if c.Type == html.ElementNode {
			last = c
			break
		}
	}
	assert.Equal(t, doc.ByID("msg9"), last)
	quote := doc.FindByClass(doc.ByID("msg9"), "elided-text")[0]
	assert.Equal(t, Shown, QuotedStateOf(quote))
	tops, _ := host.lastReport()
	assert.Len(t, tops, 4)

	before := host.reports()
	assert.ErrorIs(t, v.AppendMessageHTML(), ErrEmptyFragment)
	assert.Equal(t, before, host.reports())
}

func TestSnapshot(t *testing.T) {
	f := load(t, conversationPage, newMockHost(0), DefaultPolicy())
	s := f.view.Snapshot()
	assert.Equal(t, []string{"msg1", "msg5"}, s.Expanded)
	assert.Equal(t, 2, s.Blocked)
	assert.Equal(t, 3, s.Toggles)
	assert.Equal(t, 1, s.Reports)
	assert.Equal(t, []string{"0", "100", "245"}, s.Tops)
	assert.True(t, strings.Contains(f.view.Markup(), `blocked-src="http://example.com/q.png"`))
}

func TestLookupMissesAreLogged(t *testing.T) {
	var buf bytes.Buffer
	host := newMockHost(0)
	v := New(host, Options{Metrics: testMetrics, Dispatcher: &queueDispatcher{}, Logger: log.New(&buf, "", 0)})
	require.NoError(t, v.Load(conversationPage))
	before := host.reports()

	err := v.UnblockImages("missing")
	assert.ErrorIs(t, err, ErrBlockNotFound)
	assert.Contains(t, buf.String(), `unblock images in "missing": message block not found`)
	assert.Equal(t, before, host.reports())
	host.AssertExpectations(t)
}

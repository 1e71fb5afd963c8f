package content

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

// queueDispatcher collects posted work until the test runs it
type queueDispatcher struct {
	tasks []func()
}

func (q *queueDispatcher) Post(fn func()) bool {
	q.tasks = append(q.tasks, fn)
	return true
}

func (q *queueDispatcher) runAll() {
	for len(q.tasks) > 0 {
		fn := q.tasks[0]
		q.tasks = q.tasks[1:]
		fn()
	}
}

type fakeLoader struct {
	requested []string
	err       error
}

func (f *fakeLoader) Load(src string, done func(width, height int, err error)) {
	f.requested = append(f.requested, src)
	done(120, 40, f.err)
}

const page = `<html><head></head><body>
<div id="m1" class="mail-message expanded">
  <div class="mail-message-header" style="height: 10px"></div>
  <div class="mail-message-content collapsible"><p>hello <b>world</b></p><img src="http://x/a.png"></div>
</div>
<div id="it's" class="mail-message"></div>
</body></html>`

func TestParseAndQueries(t *testing.T) {
	doc, err := Parse(page, Options{})
	require.NoError(t, err)

	block := doc.ByID("m1")
	require.NotNil(t, block)
	assert.True(t, HasClass(block, "expanded"))
	assert.NotNil(t, doc.ByID("it's"), "ids with quotes must be addressable")
	assert.Nil(t, doc.ByID("missing"))

	contents := doc.FindByClass(doc.Root(), "mail-message-content")
	require.Len(t, contents, 1)
	assert.Equal(t, "hello world", strings.TrimSpace(doc.Text(contents[0])))
	assert.Len(t, doc.Images(block), 1)
	assert.Equal(t, contents[0], ChildWithClass(block, "mail-message-content"))
}

func TestClassAndStyleMutationsBumpGeneration(t *testing.T) {
	doc, err := Parse(page, Options{})
	require.NoError(t, err)
	block := doc.ByID("m1")

	g := doc.Generation()
	doc.SetClass(block, "expanded", false)
	assert.False(t, HasClass(block, "expanded"))
	assert.True(t, HasClass(block, "mail-message"))
	assert.Greater(t, doc.Generation(), g)

	spacer := ChildWithClass(block, "mail-message-header")
	doc.SetStyle(spacer, "height", "40px")
	doc.SetStyle(spacer, "display", "none")
	assert.Equal(t, "40px", StyleValue(spacer, "height"))
	assert.True(t, Hidden(spacer))
	doc.SetStyle(spacer, "display", "")
	assert.False(t, Hidden(spacer))
	v, _ := Attr(spacer, "style")
	assert.Equal(t, "height: 40px", v)
}

func TestParseFragmentAndMove(t *testing.T) {
	doc, err := Parse(page, Options{})
	require.NoError(t, err)

	frag, err := doc.ParseFragment(`<div id="a"></div><div id="b"></div>`)
	require.NoError(t, err)
	assert.Nil(t, frag.Parent)

	ref := doc.ByID("it's")
	doc.MoveChildrenBefore(frag, ref)
	assert.Nil(t, frag.FirstChild)

	a, b := doc.ByID("a"), doc.ByID("b")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, b, NextElementSibling(a))
	assert.Equal(t, ref, NextElementSibling(b))
}

func TestSetInnerHTML(t *testing.T) {
	doc, err := Parse(page, Options{})
	require.NoError(t, err)
	region := ChildWithClass(doc.ByID("m1"), "mail-message-content")

	require.NoError(t, doc.SetInnerHTML(region, `<span>replaced</span>`))
	assert.Equal(t, "replaced", doc.Text(region))
	assert.Empty(t, doc.Images(region))
}

func TestSetSrcFiresHandlerBoundBeforeAssignment(t *testing.T) {
	disp := &queueDispatcher{}
	loader := &fakeLoader{}
	doc, err := Parse(page, Options{Dispatcher: disp, Loader: loader})
	require.NoError(t, err)
	img := doc.Images(doc.Root())[0]

	var fired []*html.Node
	doc.OnLoad(img, func(n *html.Node) { fired = append(fired, n) })
	doc.SetSrc(img, "http://x/a.png")
	disp.runAll()

	assert.Equal(t, []*html.Node{img}, fired)
	w, _ := Attr(img, "width")
	assert.Equal(t, "120", w)

	// a handler bound after assignment does not see the in-flight load
	fired = nil
	doc.OnLoad(img, nil)
	doc.SetSrc(img, "http://x/b.png")
	doc.OnLoad(img, func(n *html.Node) { t.Fatal("late handler must not fire") })
	disp.runAll()
	assert.Empty(t, fired)
}

func TestSetSrcSupersedesPendingLoad(t *testing.T) {
	disp := &queueDispatcher{}
	loader := &fakeLoader{}
	doc, err := Parse(page, Options{Dispatcher: disp, Loader: loader})
	require.NoError(t, err)
	img := doc.Images(doc.Root())[0]

	doc.SetSrc(img, "http://x/remote.png")
	doc.SetSrc(img, "data:")
	disp.runAll()

	assert.Equal(t, []string{"data:"}, loader.requested, "superseded source must never be requested")
}

func TestFailedLoadDoesNotFire(t *testing.T) {
	disp := &queueDispatcher{}
	loader := &fakeLoader{err: errors.New("boom")}
	doc, err := Parse(page, Options{Dispatcher: disp, Loader: loader})
	require.NoError(t, err)
	img := doc.Images(doc.Root())[0]

	doc.OnLoad(img, func(*html.Node) { t.Fatal("handler must not fire on error") })
	doc.SetSrc(img, "http://x/a.png")
	disp.runAll()
}

func TestDetachedImagesAreForgotten(t *testing.T) {
	disp := &queueDispatcher{}
	loader := &fakeLoader{}
	doc, err := Parse(page, Options{Dispatcher: disp, Loader: loader})
	require.NoError(t, err)
	region := ChildWithClass(doc.ByID("m1"), "mail-message-content")
	img := doc.Images(region)[0]

	doc.OnLoad(img, func(*html.Node) { t.Fatal("detached image must not fire") })
	doc.SetSrc(img, "http://x/a.png")
	require.NoError(t, doc.SetInnerHTML(region, `<img src="http://x/b.png">`))
	assert.Empty(t, doc.srcGen)
	assert.Empty(t, doc.onload)
	disp.runAll()
	assert.Empty(t, loader.requested)

	fresh := doc.Images(region)[0]
	doc.OnLoad(fresh, func(*html.Node) {})
	doc.SetSrc(fresh, "http://x/b.png")
	require.Len(t, doc.srcGen, 1)
	doc.Remove(doc.ByID("m1"))
	assert.Empty(t, doc.srcGen)
	assert.Empty(t, doc.onload)
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'abc'", Literal("abc"))
	assert.Equal(t, `"it's"`, Literal("it's"))
	assert.Equal(t, `concat('a', "'", 'b"c')`, Literal(`a'b"c`))
}

func TestPixels(t *testing.T) {
	v, ok := Pixels("40px")
	assert.True(t, ok)
	assert.Equal(t, 40.0, v)
	_, ok = Pixels("50%")
	assert.False(t, ok)
	_, ok = Pixels("auto")
	assert.False(t, ok)
}

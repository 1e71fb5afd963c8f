package layout

import (
	"testing"

	"github.com/ajramos/convview/internal/content"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMetrics = Metrics{ViewportWidth: 100, CharWidth: 10, LineHeight: 20}

func parse(t *testing.T, body string) *content.Document {
	t.Helper()
	doc, err := content.Parse("<html><head></head><body>"+body+"</body></html>", content.Options{})
	require.NoError(t, err)
	return doc
}

func TestBlockStackingAndOffsets(t *testing.T) {
	doc := parse(t, `<div id="a" style="height: 40px"></div><div id="b"><div id="c" style="height: 25px"></div><p id="p">hello</p></div>`)
	e := NewEngine(doc, testMetrics)

	a, b, c, p := doc.ByID("a"), doc.ByID("b"), doc.ByID("c"), doc.ByID("p")

	assert.Equal(t, 0.0, e.OffsetTop(a))
	assert.Equal(t, 40.0, e.OffsetHeight(a))
	assert.Equal(t, 40.0, e.OffsetTop(b))
	assert.Equal(t, b, e.OffsetParent(c))
	assert.Equal(t, 0.0, e.OffsetTop(c))
	assert.Equal(t, 25.0, e.OffsetTop(p))
	assert.Equal(t, 20.0, e.OffsetHeight(p))
	assert.Equal(t, 45.0, e.OffsetHeight(b))
	assert.Equal(t, 85.0, e.ScrollHeight())
	assert.Equal(t, doc.Body(), e.OffsetParent(a))
	assert.Nil(t, e.OffsetParent(doc.Body()))
}

func TestTextWrapsByCells(t *testing.T) {
	// 10 cells per line: "aaaa bbbb cccc" is 14 cells, two lines
	doc := parse(t, `<div id="t">aaaa <b>bbbb</b> cccc</div>`)
	e := NewEngine(doc, testMetrics)
	assert.Equal(t, 40.0, e.OffsetHeight(doc.ByID("t")))
}

func TestBreaksAddLines(t *testing.T) {
	doc := parse(t, `<div id="t">one<br><br>two</div>`)
	e := NewEngine(doc, testMetrics)
	assert.Equal(t, 60.0, e.OffsetHeight(doc.ByID("t")))
}

func TestHiddenSubtreeHasNoHeight(t *testing.T) {
	doc := parse(t, `<div id="h" style="display: none"><div style="height: 50px"></div></div><div id="v" style="height: 10px"></div>`)
	e := NewEngine(doc, testMetrics)
	assert.Equal(t, 0.0, e.OffsetHeight(doc.ByID("h")))
	assert.Equal(t, 0.0, e.OffsetTop(doc.ByID("v")))
	assert.Equal(t, 10.0, e.ScrollHeight())
}

func TestOverflowAndZoom(t *testing.T) {
	doc := parse(t, `<div id="r"><table width="200" style="height: 40px"></table></div>`)
	e := NewEngine(doc, testMetrics)
	r := doc.ByID("r")

	assert.Equal(t, 200.0, e.ScrollWidth(r))
	assert.Equal(t, 40.0, e.OffsetHeight(r))

	doc.SetStyle(r, "zoom", "0.5")
	assert.Equal(t, 100.0, e.ScrollWidth(r))
	assert.Equal(t, 20.0, e.OffsetHeight(r))
	b, ok := e.Box(r)
	require.True(t, ok)
	assert.Equal(t, 100.0, b.Width)
}

func TestLongWordOverflows(t *testing.T) {
	doc := parse(t, `<div id="w">aaaaaaaaaaaaaaaaaaaa</div>`)
	e := NewEngine(doc, testMetrics)
	assert.Equal(t, 200.0, e.ScrollWidth(doc.ByID("w")))
}

func TestImagesTakeAttributeSize(t *testing.T) {
	doc := parse(t, `<div id="d"><a href="#"><img id="i" width="50" height="30"></a><img id="j"></div>`)
	e := NewEngine(doc, testMetrics)
	assert.Equal(t, 30.0, e.OffsetHeight(doc.ByID("i")))
	assert.Equal(t, 0.0, e.OffsetHeight(doc.ByID("j")))
	assert.Equal(t, 30.0, e.OffsetHeight(doc.ByID("d")))

	doc.SetAttr(doc.ByID("j"), "height", "12")
	assert.Equal(t, 42.0, e.OffsetHeight(doc.ByID("d")), "layout must refresh after mutation")
}

func TestUnrenderedNodes(t *testing.T) {
	doc := parse(t, `<div id="h" style="display: none"><p id="inner">x</p></div>`)
	e := NewEngine(doc, testMetrics)
	_, ok := e.Box(doc.ByID("inner"))
	assert.False(t, ok)
	assert.Equal(t, 0.0, e.ScrollWidth(doc.ByID("inner")))
}

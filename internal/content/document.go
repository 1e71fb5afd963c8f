package content

import (
	"fmt"
	"log"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Dispatcher posts work onto the single execution context that owns a Document.
// Post must be safe to call from any goroutine.
type Dispatcher interface {
	Post(fn func()) bool
}

// Loader fetches an image source and reports its intrinsic size.
// done may be invoked from any goroutine.
type Loader interface {
	Load(src string, done func(width, height int, err error))
}

// Options wires a Document to its execution context
type Options struct {
	Dispatcher Dispatcher
	Loader     Loader
	Logger     *log.Logger
}

// Document owns a parsed content tree. All mutations go through it so that layout can tell
// when its cached geometry is stale. A Document is not safe for concurrent use: it belongs to
// the execution context behind its Dispatcher.
type Document struct {
	root   *html.Node
	body   *html.Node
	opts   Options
	gen    uint64
	srcGen map[*html.Node]uint64
	onload map[*html.Node]func(*html.Node)
}

// Parse builds a Document from a full page of markup
func Parse(markup string, opts Options) (*Document, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	d := &Document{
		root:   root,
		opts:   opts,
		srcGen: make(map[*html.Node]uint64),
		onload: make(map[*html.Node]func(*html.Node)),
	}
	d.body = htmlquery.FindOne(root, "//body")
	if d.body == nil {
		return nil, fmt.Errorf("parse document: no body element")
	}
	return d, nil
}

// Root returns the document node
func (d *Document) Root() *html.Node { return d.root }

// Body returns the body element
func (d *Document) Body() *html.Node { return d.body }

// Generation increases on every mutation of the tree
func (d *Document) Generation() uint64 { return d.gen }

func (d *Document) touch() { d.gen++ }

func (d *Document) logf(format string, args ...interface{}) {
	if d.opts.Logger != nil {
		d.opts.Logger.Printf(format, args...)
	}
}

// ClassPredicate builds an XPath predicate matching elements whose class list contains class
func ClassPredicate(class string) string {
	return fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), ' %s ')", class)
}

// Literal quotes s as an XPath string literal
func Literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	quoted := make([]string, 0, len(parts)*2)
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+p+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}

// Query evaluates an XPath expression relative to top
func (d *Document) Query(top *html.Node, expr string) []*html.Node {
	if top == nil {
		top = d.root
	}
	nodes, err := htmlquery.QueryAll(top, expr)
	if err != nil {
		d.logf("content: bad query %q: %v", expr, err)
		return nil
	}
	return nodes
}

// QueryOne returns the first match of expr relative to top, or nil
func (d *Document) QueryOne(top *html.Node, expr string) *html.Node {
	if nodes := d.Query(top, expr); len(nodes) > 0 {
		return nodes[0]
	}
	return nil
}

// ByID returns the element with the given id attribute
func (d *Document) ByID(id string) *html.Node {
	if id == "" {
		return nil
	}
	return d.QueryOne(d.root, "//*[@id="+Literal(id)+"]")
}

// FindByClass returns every descendant of top (top excluded) carrying class, in document order
func (d *Document) FindByClass(top *html.Node, class string) []*html.Node {
	return d.Query(top, ".//*["+ClassPredicate(class)+"]")
}

// Images returns every img descendant of top
func (d *Document) Images(top *html.Node) []*html.Node {
	return d.Query(top, ".//img")
}

// Text returns the text content of n with markup removed
func (d *Document) Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.InnerText(n)
}

// OuterHTML serialises n including n itself
func (d *Document) OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	return htmlquery.OutputHTML(n, true)
}

// SetAttr sets attribute key on n
func (d *Document) SetAttr(n *html.Node, key, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			n.Attr[i].Val = value
			d.touch()
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: value})
	d.touch()
}

// RemoveAttr deletes attribute key from n
func (d *Document) RemoveAttr(n *html.Node, key string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
	d.touch()
}

// SetClass adds or removes class on n
func (d *Document) SetClass(n *html.Node, class string, on bool) {
	if HasClass(n, class) == on {
		return
	}
	fields := strings.Fields(attr(n, "class"))
	if on {
		fields = append(fields, class)
	} else {
		kept := fields[:0]
		for _, f := range fields {
			if f != class {
				kept = append(kept, f)
			}
		}
		fields = kept
	}
	d.SetAttr(n, "class", strings.Join(fields, " "))
}

// SetStyle sets one inline style property on n. An empty value removes the property.
func (d *Document) SetStyle(n *html.Node, prop, value string) {
	d.SetAttr(n, "style", withStyle(attr(n, "style"), prop, value))
}

// CreateElement returns a new detached element
func (d *Document) CreateElement(tag string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
}

// SetText replaces the children of n with a single text node
func (d *Document) SetText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	d.touch()
}

// ParseFragment parses markup into a new detached div container
func (d *Document) ParseFragment(markup string) (*html.Node, error) {
	container := d.CreateElement("div")
	nodes, err := html.ParseFragment(strings.NewReader(markup), container)
	if err != nil {
		return nil, fmt.Errorf("parse fragment: %w", err)
	}
	for _, n := range nodes {
		container.AppendChild(n)
	}
	return container, nil
}

// SetInnerHTML replaces the children of n with the parsed markup
func (d *Document) SetInnerHTML(n *html.Node, markup string) error {
	frag, err := d.ParseFragment(markup)
	if err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		d.forget(c)
		c = next
	}
	d.moveChildren(frag, n, nil)
	d.touch()
	return nil
}

// InsertBefore inserts n into parent before ref. A nil ref appends.
func (d *Document) InsertBefore(parent, n, ref *html.Node) {
	if n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
	parent.InsertBefore(n, ref)
	d.touch()
}

// AppendChild appends n to parent
func (d *Document) AppendChild(parent, n *html.Node) {
	d.InsertBefore(parent, n, nil)
}

// Remove detaches n from its parent. A detached subtree must not be inserted again.
func (d *Document) Remove(n *html.Node) {
	if n.Parent == nil {
		return
	}
	n.Parent.RemoveChild(n)
	d.forget(n)
	d.touch()
}

// forget drops the load bookkeeping of every element in the detached subtree n.
// Loads still in flight for those images no longer complete.
func (d *Document) forget(n *html.Node) {
	if len(d.srcGen) == 0 && len(d.onload) == 0 {
		return
	}
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		delete(d.srcGen, c)
		delete(d.onload, c)
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)
}

// MoveChildrenBefore moves every child of from, in order, into ref's parent just before ref
func (d *Document) MoveChildrenBefore(from, ref *html.Node) {
	if ref == nil || ref.Parent == nil {
		return
	}
	d.moveChildren(from, ref.Parent, ref)
	d.touch()
}

func (d *Document) moveChildren(from, parent, ref *html.Node) {
	for c := from.FirstChild; c != nil; {
		next := c.NextSibling
		from.RemoveChild(c)
		parent.InsertBefore(c, ref)
		c = next
	}
}

// OnLoad binds the load-completion handler of img, replacing any previous one.
// Only loads issued by a later SetSrc reach the handler.
func (d *Document) OnLoad(img *html.Node, fn func(*html.Node)) {
	if fn == nil {
		delete(d.onload, img)
		return
	}
	d.onload[img] = fn
}

// SetSrc assigns the src of img and issues a load on the next idle cycle.
// A later SetSrc on the same image supersedes any load still in flight.
func (d *Document) SetSrc(img *html.Node, src string) {
	d.SetAttr(img, "src", src)
	d.srcGen[img]++
	issued := d.srcGen[img]
	if src == "" || d.opts.Loader == nil || d.opts.Dispatcher == nil {
		return
	}
	handler := d.onload[img]
	d.opts.Dispatcher.Post(func() {
		if d.srcGen[img] != issued {
			return
		}
		d.opts.Loader.Load(src, func(width, height int, err error) {
			d.opts.Dispatcher.Post(func() {
				d.completeLoad(img, issued, handler, width, height, err)
			})
		})
	})
}

func (d *Document) completeLoad(img *html.Node, issued uint64, handler func(*html.Node), width, height int, err error) {
	if d.srcGen[img] != issued {
		return
	}
	if err != nil {
		d.logf("content: image %q failed to load: %v", attr(img, "src"), err)
		return
	}
	if _, ok := Attr(img, "width"); !ok && width > 0 {
		d.SetAttr(img, "width", fmt.Sprint(width))
	}
	if _, ok := Attr(img, "height"); !ok && height > 0 {
		d.SetAttr(img, "height", fmt.Sprint(height))
	}
	if handler != nil {
		handler(img)
	}
}

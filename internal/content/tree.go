package content

import (
	"strings"

	"golang.org/x/net/html"
)

// TreeNode is the minimal capability needed to walk up a content tree looking for markers
type TreeNode interface {
	HasMarker(marker string) bool
	ParentNode() TreeNode
}

// FindAncestor returns the nearest node, starting at n itself, that carries any of the markers.
// It returns nil when no node up to the root matches.
func FindAncestor(n TreeNode, markers ...string) TreeNode {
	for cur := n; cur != nil; cur = cur.ParentNode() {
		for _, m := range markers {
			if cur.HasMarker(m) {
				return cur
			}
		}
	}
	return nil
}

// Element adapts an *html.Node to TreeNode. Markers are class names.
type Element struct {
	Node *html.Node
}

// HasMarker reports whether the element's class list contains marker
func (e Element) HasMarker(marker string) bool {
	return HasClass(e.Node, marker)
}

// ParentNode returns the parent element, or nil at the top of the tree
func (e Element) ParentNode() TreeNode {
	if e.Node == nil || e.Node.Parent == nil {
		return nil
	}
	return Element{Node: e.Node.Parent}
}

// NearestAncestor is FindAncestor specialised to html nodes
func NearestAncestor(n *html.Node, classes ...string) *html.Node {
	if n == nil {
		return nil
	}
	found := FindAncestor(Element{Node: n}, classes...)
	if found == nil {
		return nil
	}
	return found.(Element).Node
}

// HasClass reports whether n is an element whose class attribute contains class
func HasClass(n *html.Node, class string) bool {
	if n == nil || n.Type != html.ElementNode || class == "" {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// IsTag reports whether n is an element with the given tag name
func IsTag(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && strings.EqualFold(n.Data, tag)
}

// NextElementSibling skips text and comment nodes
func NextElementSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// PreviousElementSibling skips text and comment nodes
func PreviousElementSibling(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for s := n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// FirstElementChild returns the first element child of n
func FirstElementChild(n *html.Node) *html.Node {
	if n == nil {
		return nil
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// ChildrenWithClass returns the direct element children of n carrying class, in order
func ChildrenWithClass(n *html.Node, class string) []*html.Node {
	if n == nil {
		return nil
	}
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if HasClass(c, class) {
			out = append(out, c)
		}
	}
	return out
}

// ChildWithClass returns the first direct child of n carrying class
func ChildWithClass(n *html.Node, class string) *html.Node {
	if kids := ChildrenWithClass(n, class); len(kids) > 0 {
		return kids[0]
	}
	return nil
}

// Attached reports whether n is still connected to root
func Attached(n, root *html.Node) bool {
	for cur := n; cur != nil; cur = cur.Parent {
		if cur == root {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	v, _ := Attr(n, key)
	return v
}

// Attr returns the value of attribute key on n. Attribute names compare case-insensitively.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return a.Val, true
		}
	}
	return "", false
}

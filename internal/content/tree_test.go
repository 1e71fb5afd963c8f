package content

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubNode is a minimal tree double with no markup behind it
type stubNode struct {
	name    string
	markers map[string]bool
	parent  *stubNode
}

func (s *stubNode) HasMarker(m string) bool { return s.markers[m] }

func (s *stubNode) ParentNode() TreeNode {
	if s.parent == nil {
		return nil
	}
	return s.parent
}

func TestFindAncestor(t *testing.T) {
	root := &stubNode{name: "root"}
	content := &stubNode{name: "content", markers: map[string]bool{"mail-message-content": true}, parent: root}
	quoted := &stubNode{name: "quoted", markers: map[string]bool{"elided-text": true}, parent: content}
	img := &stubNode{name: "img", parent: quoted}
	stray := &stubNode{name: "stray", parent: root}

	t.Run("nearest marker wins", func(t *testing.T) {
		got := FindAncestor(img, "mail-message-content", "elided-text")
		assert.Equal(t, quoted, got)
	})
	t.Run("falls through to outer marker", func(t *testing.T) {
		got := FindAncestor(img, "mail-message-content")
		assert.Equal(t, content, got)
	})
	t.Run("node itself counts", func(t *testing.T) {
		assert.Equal(t, content, FindAncestor(content, "mail-message-content"))
	})
	t.Run("no match", func(t *testing.T) {
		assert.Nil(t, FindAncestor(stray, "mail-message-content", "elided-text"))
	})
}

func TestConventionsMergeAndIDs(t *testing.T) {
	c := Conventions{MessageClass: "msg"}.Merge(DefaultConventions())
	assert.Equal(t, "msg", c.MessageClass)
	assert.Equal(t, "elided-text", c.QuotedTextClass)

	dom := c.MessageDOMID("42")
	assert.Equal(t, "m42", dom)
	id, ok := c.MessageIDFromDOM(dom)
	assert.True(t, ok)
	assert.Equal(t, "42", id)
	_, ok = c.MessageIDFromDOM("x42")
	assert.False(t, ok)
}

// Package conversation implements the content side of a conversation view: it keeps a native
// overlay in sync with the rendered content tree while quoted text, message bodies and images
// change underneath it.
package conversation

import "golang.org/x/net/html"

// Host is the native side of the view.
//
// OnGeometryChange and OnContentReady are notifications and must not block for long.
// The Fetch methods are synchronous data calls made while a command is running.
type Host interface {
	OnGeometryChange(tops, bottoms []string)
	OnContentReady()
	FetchTempMessageBodies() string
	FetchMessageBody(domID string) string
	FetchScrollPercent() float64
}

// Layout answers geometry questions about the live tree. Offsets are relative to the
// node's offset parent; widths and heights are in page pixels.
type Layout interface {
	OffsetParent(n *html.Node) *html.Node
	OffsetLeft(n *html.Node) float64
	OffsetTop(n *html.Node) float64
	OffsetHeight(n *html.Node) float64
	ScrollWidth(n *html.Node) float64
	ViewportWidth() float64
	ViewportHeight() float64
	ScrollHeight() float64
}

package conversation

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// Policy decides which images are held back until the user asks for them
type Policy struct {
	// AllowedSchemes are the schemes that reach the network or local content store.
	// Images using them are blocked; anything else passes through untouched.
	AllowedSchemes      []string `json:"allowed_schemes"`
	DocumentBaseURI     string   `json:"document_base_uri"`
	ConversationBaseURI string   `json:"conversation_base_uri"`
}

// DefaultPolicy blocks web and content-provider images
func DefaultPolicy() Policy {
	return Policy{AllowedSchemes: []string{"http", "https", "content"}}
}

func (p Policy) allows(scheme string) bool {
	for _, s := range p.AllowedSchemes {
		if strings.EqualFold(s, scheme) {
			return true
		}
	}
	return false
}

// ImageGate blocks remote images and routes load completions to the scheduler
type ImageGate struct {
	doc       *content.Document
	conv      content.Conventions
	policy    Policy
	scheduler *Scheduler
	logger    *log.Logger

	docBase  *url.URL
	convBase *url.URL
}

// NewImageGate creates a gate. Unparseable base URIs are logged and ignored.
func NewImageGate(doc *content.Document, conv content.Conventions, policy Policy, scheduler *Scheduler, logger *log.Logger) *ImageGate {
	g := &ImageGate{doc: doc, conv: conv, policy: policy, scheduler: scheduler, logger: logger}
	g.docBase = g.parseBase(policy.DocumentBaseURI)
	g.convBase = g.parseBase(policy.ConversationBaseURI)
	return g
}

func (g *ImageGate) parseBase(raw string) *url.URL {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		g.logf("conversation: ignoring base uri %q: %v", raw, err)
		return nil
	}
	return u
}

func (g *ImageGate) logf(format string, args ...interface{}) {
	if g.logger != nil {
		g.logger.Printf(format, args...)
	}
}

// HideUnsafeImages processes every image under containers: relative sources are resolved,
// a load listener is attached, and remote sources are stashed behind a placeholder unless
// the image's content region allows images.
func (g *ImageGate) HideUnsafeImages(containers []*html.Node) {
	for _, container := range containers {
		if container == nil {
			continue
		}
		for _, img := range g.doc.Images(container) {
			g.processImage(container, img)
		}
	}
}

func (g *ImageGate) processImage(container, img *html.Node) {
	src, _ := content.Attr(img, "src")
	if src == "" || g.Blocked(img) {
		return
	}
	resolved := g.resolve(src)
	if resolved != nil && !isAbsolute(src) && g.rewritesRelative() {
		src = resolved.String()
	}

	// completion only reaches listeners bound before the source is assigned
	g.doc.SetSrc(img, "")
	g.doc.OnLoad(img, g.OnImageLoadComplete)
	g.doc.SetSrc(img, src)

	if g.showsImages(container, img) {
		return
	}
	if resolved == nil || !g.policy.allows(resolved.Scheme) {
		return
	}
	g.doc.SetAttr(img, g.conv.BlockedSrcAttr, src)
	g.doc.SetSrc(img, g.conv.ImagePlaceholder)
}

func (g *ImageGate) rewritesRelative() bool {
	return g.convBase != nil && g.policy.ConversationBaseURI != g.policy.DocumentBaseURI
}

// resolve returns src as an absolute URL, using the conversation base when relative
// rewriting applies and the document base otherwise
func (g *ImageGate) resolve(src string) *url.URL {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return nil
	}
	if u.IsAbs() {
		return u
	}
	base := g.docBase
	if g.rewritesRelative() {
		base = g.convBase
	}
	if base == nil {
		return u
	}
	return base.ResolveReference(u)
}

func isAbsolute(src string) bool {
	u, err := url.Parse(strings.TrimSpace(src))
	return err == nil && u.IsAbs()
}

func (g *ImageGate) showsImages(container, img *html.Node) bool {
	if region := content.NearestAncestor(img, g.conv.ContentClass); region != nil && content.HasClass(region, g.conv.ShowImagesClass) {
		return true
	}
	return content.HasClass(container, g.conv.ShowImagesClass)
}

// UnblockImages restores every blocked image under the message block with element id blockID
// and marks its content regions so a later body replacement keeps showing them.
// Calling it again finds nothing to restore.
func (g *ImageGate) UnblockImages(blockID string) error {
	block := g.doc.ByID(blockID)
	if block == nil || !content.HasClass(block, g.conv.MessageClass) {
		return fmt.Errorf("unblock images in %q: %w", blockID, ErrBlockNotFound)
	}
	for _, region := range g.doc.FindByClass(block, g.conv.ContentClass) {
		g.doc.SetClass(region, g.conv.ShowImagesClass, true)
	}
	for _, img := range g.doc.Images(block) {
		original, ok := content.Attr(img, g.conv.BlockedSrcAttr)
		if !ok {
			continue
		}
		g.doc.SetSrc(img, original)
		g.doc.RemoveAttr(img, g.conv.BlockedSrcAttr)
	}
	return nil
}

// Blocked reports whether img is currently held behind the placeholder
func (g *ImageGate) Blocked(img *html.Node) bool {
	_, ok := content.Attr(img, g.conv.BlockedSrcAttr)
	return ok
}

// OnImageLoadComplete hands the smallest enclosing quoted-text or content region of img to
// the scheduler. Images no longer in the document are ignored.
func (g *ImageGate) OnImageLoadComplete(img *html.Node) {
	scope := content.NearestAncestor(img, g.conv.QuotedTextClass, g.conv.ContentClass)
	if scope == nil || !content.Attached(scope, g.doc.Root()) {
		return
	}
	g.scheduler.Enqueue(scope)
}

package conversation

import (
	"fmt"
	"log"
	"math"

	"github.com/ajramos/convview/internal/content"
	"github.com/ajramos/convview/internal/layout"
	"golang.org/x/net/html"
)

// Options configures a View
type Options struct {
	Conventions content.Conventions
	Metrics     layout.Metrics
	Policy      Policy
	Dispatcher  content.Dispatcher
	Loader      content.Loader
	Logger      *log.Logger
}

// View is one loaded conversation. It is the composition root of the content side and, like
// the Document it owns, must only be used from the execution context behind its Dispatcher.
type View struct {
	host   Host
	opts   Options
	logger *log.Logger

	doc        *content.Document
	layout     *layout.Engine
	reporter   *GeometryReporter
	normalizer *WidthNormalizer
	gate       *ImageGate
	scheduler  *Scheduler
	mutator    *Mutator
	scrollY    float64
}

// New creates an empty view. Missing conventions and metrics take their defaults.
func New(host Host, opts Options) *View {
	opts.Conventions = opts.Conventions.Merge(content.DefaultConventions())
	if opts.Metrics == (layout.Metrics{}) {
		opts.Metrics = layout.DefaultMetrics()
	}
	if len(opts.Policy.AllowedSchemes) == 0 {
		opts.Policy.AllowedSchemes = DefaultPolicy().AllowedSchemes
	}
	return &View{host: host, opts: opts, logger: opts.Logger}
}

// Load renders a conversation page and runs the initial pass: quoted text is wrapped and
// hidden, unsafe images are blocked, expanded messages are fitted to the viewport, geometry
// is reported, the scroll position is restored and the host is told the content is ready.
func (v *View) Load(markup string) error {
	doc, err := content.Parse(markup, content.Options{
		Dispatcher: v.opts.Dispatcher,
		Loader:     v.opts.Loader,
		Logger:     v.logger,
	})
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	conv := v.opts.Conventions

	v.doc = doc
	v.layout = layout.NewEngine(doc, v.opts.Metrics)
	v.reporter = NewGeometryReporter(doc, v.layout, conv, v.host, v.logger)
	v.normalizer = NewWidthNormalizer(doc, v.layout, conv, v.reporter, v.logger)
	v.scheduler = NewScheduler(v.opts.Dispatcher, NewScopeQueue(), v.normalizer.NormalizeWidths, func() { v.reporter.Report() }, v.logger)
	v.gate = NewImageGate(doc, conv, v.opts.Policy, v.scheduler, v.logger)
	v.mutator = NewMutator(doc, conv, v.host, v.reporter, v.normalizer, v.gate)

	v.mutator.ScanAndWrapQuotedText(doc.Root(), false)
	v.gate.HideUnsafeImages(doc.FindByClass(doc.Root(), conv.ContentClass))
	v.normalizer.NormalizeAllExpanded()
	v.reporter.Report()
	v.restoreScroll()
	if v.host != nil {
		v.host.OnContentReady()
	}
	return nil
}

func (v *View) restoreScroll() {
	v.scrollY = 0
	if v.host == nil {
		return
	}
	percent := v.host.FetchScrollPercent()
	height := v.layout.ScrollHeight()
	if percent > 0 && height > v.layout.ViewportHeight() {
		v.scrollY = math.Floor(percent * height)
	}
}

// Loaded reports whether a conversation has been loaded
func (v *View) Loaded() bool { return v.doc != nil }

func (v *View) miss(err error) error {
	if err != nil && v.logger != nil {
		v.logger.Printf("conversation: %v", err)
	}
	return err
}

// SetMessageBodyVisible expands or collapses a message block
func (v *View) SetMessageBodyVisible(blockID string, visible bool, spacerHeight int) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.SetMessageBodyVisible(blockID, visible, spacerHeight))
}

// SetMessageHeaderSpacerHeight resizes a message header spacer
func (v *View) SetMessageHeaderSpacerHeight(blockID string, height int) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.SetMessageHeaderSpacerHeight(blockID, height))
}

// SetConversationHeaderSpacerHeight resizes the conversation header spacer
func (v *View) SetConversationHeaderSpacerHeight(height int) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.SetConversationHeaderSpacerHeight(height))
}

// ReplaceSuperCollapsedBlock expands a run of omitted messages
func (v *View) ReplaceSuperCollapsedBlock(index int) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.ReplaceSuperCollapsedBlock(index))
}

// ReplaceMessageBodies reloads message bodies from the host
func (v *View) ReplaceMessageBodies(blockIDs []string) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.ReplaceMessageBodies(blockIDs))
}

// AppendMessageHTML appends the host's staged message
func (v *View) AppendMessageHTML() error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.AppendMessageHTML())
}

// UnblockImages restores the blocked images of a message block
func (v *View) UnblockImages(blockID string) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.gate.UnblockImages(blockID))
}

// ToggleQuotedText flips the quoted text behind control
func (v *View) ToggleQuotedText(control *html.Node) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	return v.miss(v.mutator.ToggleQuotedText(control))
}

// ToggleQuotedTextAt flips the n-th quoted text control of a message block
func (v *View) ToggleQuotedTextAt(blockID string, n int) error {
	if v.doc == nil {
		return ErrNotLoaded
	}
	block := v.doc.ByID(blockID)
	if block == nil {
		return v.miss(fmt.Errorf("toggle quoted text in %q: %w", blockID, ErrBlockNotFound))
	}
	controls := v.mutator.Toggles(block)
	if n < 0 || n >= len(controls) {
		return v.miss(fmt.Errorf("toggle quoted text %d in %q: %w", n, blockID, ErrToggleNotFound))
	}
	return v.miss(v.mutator.ToggleQuotedText(controls[n]))
}

// Toggles returns every quoted text control in the document, in order
func (v *View) Toggles() []*html.Node {
	if v.doc == nil {
		return nil
	}
	return v.mutator.Toggles(v.doc.Root())
}

// Document returns the live content tree, or nil before Load
func (v *View) Document() *content.Document { return v.doc }

// Layout returns the layout of the live tree, or nil before Load
func (v *View) Layout() *layout.Engine { return v.layout }

// Reporter returns the geometry reporter, or nil before Load
func (v *View) Reporter() *GeometryReporter { return v.reporter }

// Scheduler returns the renormalization scheduler, or nil before Load
func (v *View) Scheduler() *Scheduler { return v.scheduler }

// Gate returns the image gate, or nil before Load
func (v *View) Gate() *ImageGate { return v.gate }

// Normalizer returns the width normalizer, or nil before Load
func (v *View) Normalizer() *WidthNormalizer { return v.normalizer }

// Conventions returns the marker names in effect
func (v *View) Conventions() content.Conventions { return v.opts.Conventions }

// ScrollY returns the scroll offset restored by Load
func (v *View) ScrollY() float64 { return v.scrollY }

// LastReport returns the most recent geometry report
func (v *View) LastReport() Report {
	if v.reporter == nil {
		return Report{}
	}
	return v.reporter.Last()
}

// Markup serialises the live tree
func (v *View) Markup() string {
	if v.doc == nil {
		return ""
	}
	return v.doc.OuterHTML(v.doc.Root())
}

// Snapshot is a summary of the view for tooling
type Snapshot struct {
	Expanded     []string `json:"expanded"`
	Tops         []string `json:"overlay_tops"`
	Bottoms      []string `json:"overlay_bottoms"`
	ScrollHeight float64  `json:"scroll_height"`
	ScrollY      float64  `json:"scroll_y"`
	Blocked      int      `json:"blocked_images"`
	Toggles      int      `json:"quoted_toggles"`
	Reports      int      `json:"reports"`
}

// Snapshot summarises the current state
func (v *View) Snapshot() Snapshot {
	if v.doc == nil {
		return Snapshot{}
	}
	var s Snapshot
	for _, region := range v.reporter.ExpandedRegions() {
		if id, ok := content.Attr(region.Parent, "id"); ok {
			s.Expanded = append(s.Expanded, id)
		}
	}
	s.Tops, s.Bottoms = v.reporter.Last().Strings()
	s.ScrollHeight = v.layout.ScrollHeight()
	s.ScrollY = v.scrollY
	for _, img := range v.doc.Images(v.doc.Root()) {
		if v.gate.Blocked(img) {
			s.Blocked++
		}
	}
	s.Toggles = len(v.Toggles())
	s.Reports = v.reporter.Count()
	return s
}

// Package host is a reference native host for the conversation view. It renders stored
// conversations into page markup, answers the view's data calls and keeps the latest geometry
// for the overlays.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/ajramos/convview/internal/bridge"
	"github.com/ajramos/convview/internal/content"
	"github.com/ajramos/convview/internal/conversation"
	"github.com/ajramos/convview/internal/db"
	"github.com/emersion/go-message/mail"
)

var (
	ErrNoConversation = errors.New("no conversation open")
	ErrUnknownMessage = errors.New("unknown message")
	ErrUnknownRange   = errors.New("unknown super-collapsed range")
	ErrNotAttached    = errors.New("host not attached to a bridge")
)

// Source is the storage the harness reads conversations from
type Source interface {
	GetConversation(ctx context.Context, id string) (*db.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]*db.Message, error)
	SetShowImages(ctx context.Context, id string, show bool) error
	SetScrollPercent(ctx context.Context, id string, percent float64) error
	LoadInlinePart(ctx context.Context, messageID, contentID string) (*db.InlinePart, error)
}

// Options configures a Harness
type Options struct {
	Conventions content.Conventions
	Heights     Heights
	Logger      *log.Logger
}

// MessageState is the host's view of one message
type MessageState struct {
	DOMID      string
	Sender     string
	Subject    string
	Date       time.Time
	Expanded   bool
	Hidden     bool
	ShowImages bool
}

// Harness implements conversation.Host over a Source
type Harness struct {
	source  Source
	page    *Page
	conv    content.Conventions
	heights Heights
	logger  *log.Logger

	mu           sync.Mutex
	bridge       *bridge.Bridge
	conversation *db.Conversation
	messages     []*db.Message
	byDOM        map[string]*db.Message
	expanded     map[string]bool
	ranges       map[int]Range
	temp         string
	tops         []string
	bottoms      []string
	reports      int
	ready        bool
	listeners    []func(tops, bottoms []string)
}

var _ conversation.Host = (*Harness)(nil)

// New creates a harness. Attach a bridge before opening conversations.
func New(source Source, opts Options) *Harness {
	conv := opts.Conventions.Merge(content.DefaultConventions())
	if opts.Heights == (Heights{}) {
		opts.Heights = DefaultHeights()
	}
	return &Harness{
		source:  source,
		page:    NewPage(conv, opts.Heights),
		conv:    conv,
		heights: opts.Heights,
		logger:  opts.Logger,
	}
}

// Attach sets the bridge commands are sent through
func (h *Harness) Attach(b *bridge.Bridge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bridge = b
}

// OnGeometry registers fn to be called after each geometry report, on the view's loop
func (h *Harness) OnGeometry(fn func(tops, bottoms []string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners = append(h.listeners, fn)
}

func (h *Harness) logf(format string, args ...interface{}) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}

func (h *Harness) commands() (*bridge.Bridge, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.bridge == nil {
		return nil, ErrNotAttached
	}
	return h.bridge, nil
}

// Open loads a stored conversation into the view
func (h *Harness) Open(ctx context.Context, conversationID string) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	conv, err := h.source.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}
	msgs, err := h.source.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("open conversation: %w", err)
	}

	expanded, ranges := Plan(len(msgs))
	markup, err := h.page.Render(pageMessages(msgs), expanded, ranges)
	if err != nil {
		return fmt.Errorf("render conversation: %w", err)
	}

	h.mu.Lock()
	h.conversation = conv
	h.messages = msgs
	h.byDOM = make(map[string]*db.Message, len(msgs))
	h.expanded = make(map[string]bool, len(msgs))
	h.ranges = make(map[int]Range, len(ranges))
	for i, m := range msgs {
		id := h.conv.MessageDOMID(m.ID)
		h.byDOM[id] = m
		h.expanded[id] = expanded[i]
	}
	for _, r := range ranges {
		h.ranges[r.Index] = r
	}
	h.temp = ""
	h.tops, h.bottoms = nil, nil
	h.reports = 0
	h.ready = false
	h.mu.Unlock()

	h.logf("host: open %s (%d messages, %d folded ranges)", conversationID, len(msgs), len(ranges))
	return b.Load(ctx, markup)
}

// Messages returns the state of every message of the open conversation
func (h *Harness) Messages() []MessageState {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]MessageState, 0, len(h.messages))
	for i, m := range h.messages {
		id := h.conv.MessageDOMID(m.ID)
		out = append(out, MessageState{
			DOMID:      id,
			Sender:     displayName(m.From),
			Subject:    m.Subject,
			Date:       m.Date,
			Expanded:   h.expanded[id],
			Hidden:     h.hiddenLocked(i),
			ShowImages: m.ShowImages,
		})
	}
	return out
}

func (h *Harness) hiddenLocked(i int) bool {
	for _, r := range h.ranges {
		if i >= r.Start && i < r.End {
			return true
		}
	}
	return false
}

// Ranges returns the folded ranges still on the page
func (h *Harness) Ranges() []Range {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Range, 0, len(h.ranges))
	for _, r := range h.ranges {
		out = append(out, r)
	}
	return out
}

// SetExpanded expands or collapses a message, sizing its header overlay to match
func (h *Harness) SetExpanded(ctx context.Context, domID string, expanded bool) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	h.mu.Lock()
	if _, ok := h.byDOM[domID]; !ok {
		h.mu.Unlock()
		return fmt.Errorf("%s: %w", domID, ErrUnknownMessage)
	}
	h.expanded[domID] = expanded
	h.mu.Unlock()

	height := h.heights.CollapsedHeader
	if expanded {
		height = h.heights.ExpandedHeader
	}
	return b.SetMessageBodyVisible(ctx, domID, expanded, height)
}

// ToggleExpanded flips the expansion of a message
func (h *Harness) ToggleExpanded(ctx context.Context, domID string) error {
	h.mu.Lock()
	expanded := h.expanded[domID]
	h.mu.Unlock()
	return h.SetExpanded(ctx, domID, !expanded)
}

// ExpandRange stages the messages behind a placeholder and asks the view to splice them in
func (h *Harness) ExpandRange(ctx context.Context, index int) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	h.mu.Lock()
	r, ok := h.ranges[index]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("range %d: %w", index, ErrUnknownRange)
	}
	markup, err := h.page.Blocks(pageMessages(h.messages[r.Start:r.End]), false)
	if err != nil {
		h.mu.Unlock()
		return err
	}
	h.temp = markup
	delete(h.ranges, index)
	h.mu.Unlock()

	return b.ReplaceSuperCollapsedBlock(ctx, index)
}

// ShowImages remembers that a message may load remote images and unblocks them
func (h *Harness) ShowImages(ctx context.Context, domID string) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	h.mu.Lock()
	m, ok := h.byDOM[domID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", domID, ErrUnknownMessage)
	}
	if err := h.source.SetShowImages(ctx, m.ID, true); err != nil {
		return fmt.Errorf("show images: %w", err)
	}
	h.mu.Lock()
	m.ShowImages = true
	h.mu.Unlock()
	return b.UnblockImages(ctx, domID)
}

// Append adds a message to the end of the open conversation
func (h *Harness) Append(ctx context.Context, m *db.Message) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	markup, err := h.page.Blocks([]PageMessage{pageMessage(m)}, true)
	if err != nil {
		return err
	}
	id := h.conv.MessageDOMID(m.ID)
	h.mu.Lock()
	if h.conversation == nil {
		h.mu.Unlock()
		return ErrNoConversation
	}
	h.messages = append(h.messages, m)
	h.byDOM[id] = m
	h.expanded[id] = true
	h.temp = markup
	h.mu.Unlock()
	return b.AppendMessageHTML(ctx)
}

// Reload replaces the bodies of the listed messages with their stored versions
func (h *Harness) Reload(ctx context.Context, domIDs ...string) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	return b.ReplaceMessageBodies(ctx, domIDs)
}

// ToggleQuoted flips the n-th quoted text control of a message
func (h *Harness) ToggleQuoted(ctx context.Context, domID string, n int) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	return b.ToggleQuotedText(ctx, domID, n)
}

// ResizeHeader changes the height of the conversation header overlay
func (h *Harness) ResizeHeader(ctx context.Context, height int) error {
	b, err := h.commands()
	if err != nil {
		return err
	}
	return b.SetConversationHeaderSpacerHeight(ctx, height)
}

// SaveScroll stores the reading position of the open conversation
func (h *Harness) SaveScroll(ctx context.Context, percent float64) error {
	h.mu.Lock()
	conv := h.conversation
	h.mu.Unlock()
	if conv == nil {
		return ErrNoConversation
	}
	if err := h.source.SetScrollPercent(ctx, conv.ID, percent); err != nil {
		return fmt.Errorf("save scroll: %w", err)
	}
	h.mu.Lock()
	conv.ScrollPercent = percent
	h.mu.Unlock()
	return nil
}

// OpenInline serves cid: images of the open conversation
func (h *Harness) OpenInline(ctx context.Context, u *url.URL) (io.ReadCloser, error) {
	cid := u.Opaque
	if cid == "" {
		cid = u.Path
	}
	h.mu.Lock()
	msgs := append([]*db.Message(nil), h.messages...)
	h.mu.Unlock()
	for _, m := range msgs {
		part, err := h.source.LoadInlinePart(ctx, m.ID, cid)
		if errors.Is(err, db.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return io.NopCloser(bytes.NewReader(part.Data)), nil
	}
	return nil, fmt.Errorf("inline part %s: %w", cid, db.ErrNotFound)
}

// Geometry returns the latest overlay positions
func (h *Harness) Geometry() (tops, bottoms []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.tops...), append([]string(nil), h.bottoms...)
}

// Reports returns how many geometry reports arrived since the conversation was opened
func (h *Harness) Reports() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reports
}

// Ready reports whether the view finished its initial pass
func (h *Harness) Ready() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.ready
}

// Conversation returns the open conversation, or nil
func (h *Harness) Conversation() *db.Conversation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conversation
}

// OnGeometryChange records a geometry report
func (h *Harness) OnGeometryChange(tops, bottoms []string) {
	h.mu.Lock()
	h.tops = append([]string(nil), tops...)
	h.bottoms = append([]string(nil), bottoms...)
	h.reports++
	listeners := append([]func([]string, []string){}, h.listeners...)
	h.mu.Unlock()
	for _, fn := range listeners {
		fn(tops, bottoms)
	}
}

// OnContentReady marks the initial pass as done
func (h *Harness) OnContentReady() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = true
}

// FetchTempMessageBodies hands over the staged markup. Staged markup is served once.
func (h *Harness) FetchTempMessageBodies() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.temp
	h.temp = ""
	return s
}

// FetchMessageBody returns the stored body of a message
func (h *Harness) FetchMessageBody(domID string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.byDOM[domID]; ok {
		return m.BodyHTML
	}
	h.logf("host: body requested for unknown message %q", domID)
	return ""
}

// FetchScrollPercent returns the saved reading position
func (h *Harness) FetchScrollPercent() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conversation == nil {
		return 0
	}
	return h.conversation.ScrollPercent
}

// displayName returns the name of the first address in from, or the address itself
func displayName(from string) string {
	addrs, err := mail.ParseAddressList(from)
	if err != nil || len(addrs) == 0 {
		return from
	}
	if addrs[0].Name != "" {
		return addrs[0].Name
	}
	return addrs[0].Address
}

func pageMessage(m *db.Message) PageMessage {
	return PageMessage{ID: m.ID, BodyHTML: m.BodyHTML, ShowImages: m.ShowImages}
}

func pageMessages(msgs []*db.Message) []PageMessage {
	out := make([]PageMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, pageMessage(m))
	}
	return out
}

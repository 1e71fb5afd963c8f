package conversation

import (
	"errors"
	"fmt"

	"github.com/ajramos/convview/internal/content"
	"golang.org/x/net/html"
)

// Mutator owns the disclosure state of a conversation: quoted text, message expansion and
// block replacement. Every command that changes geometry ends with one report.
type Mutator struct {
	doc        *content.Document
	conv       content.Conventions
	host       Host
	reporter   *GeometryReporter
	normalizer *WidthNormalizer
	gate       *ImageGate

	toggles map[*html.Node]*html.Node
}

// NewMutator wires a mutator to the components it drives
func NewMutator(doc *content.Document, conv content.Conventions, host Host, reporter *GeometryReporter, normalizer *WidthNormalizer, gate *ImageGate) *Mutator {
	return &Mutator{
		doc:        doc,
		conv:       conv,
		host:       host,
		reporter:   reporter,
		normalizer: normalizer,
		gate:       gate,
		toggles:    make(map[*html.Node]*html.Node),
	}
}

// SetMessageBodyVisible expands or collapses the message block with element id blockID and
// sets its header spacer height. Becoming visible renormalizes the content region, since
// widths measured while hidden are unreliable. The expanded flag is set, not toggled, so a
// repeated call leaves the block as it is.
func (m *Mutator) SetMessageBodyVisible(blockID string, visible bool, spacerHeight int) error {
	block := m.doc.ByID(blockID)
	if block == nil {
		return fmt.Errorf("set body visible %q: %w", blockID, ErrBlockNotFound)
	}
	collapsible := m.doc.FindByClass(block, m.conv.CollapsibleClass)
	if len(collapsible) == 0 {
		return fmt.Errorf("set body visible %q: %w", blockID, ErrNoCollapsible)
	}
	spacer := m.headerSpacer(block)
	if spacer == nil {
		return fmt.Errorf("set body visible %q: %w", blockID, ErrSpacerNotFound)
	}

	m.doc.SetClass(block, m.conv.ExpandedClass, visible)
	display := "none"
	if visible {
		display = "block"
	}
	for _, c := range collapsible {
		m.doc.SetStyle(c, "display", display)
	}
	if visible {
		m.normalizer.NormalizeWidths(content.ChildrenWithClass(block, m.conv.ContentClass))
	}
	return m.SetMessageHeaderSpacerHeight(blockID, spacerHeight)
}

// SetMessageHeaderSpacerHeight sets the header spacer of a message block and reports geometry
func (m *Mutator) SetMessageHeaderSpacerHeight(blockID string, height int) error {
	block := m.doc.ByID(blockID)
	spacer := m.headerSpacer(block)
	if spacer == nil {
		return fmt.Errorf("set header spacer %q: %w", blockID, ErrSpacerNotFound)
	}
	m.setHeight(spacer, height)
	m.reporter.Report()
	return nil
}

// SetConversationHeaderSpacerHeight sets the conversation header spacer and reports geometry
func (m *Mutator) SetConversationHeaderSpacerHeight(height int) error {
	spacer := m.doc.ByID(m.conv.ConversationHeaderID)
	if spacer == nil {
		return fmt.Errorf("set conversation header %q: %w", m.conv.ConversationHeaderID, ErrSpacerNotFound)
	}
	m.setHeight(spacer, height)
	m.reporter.Report()
	return nil
}

// ReplaceSuperCollapsedBlock swaps the placeholder keyed by index for the messages the host
// has staged. The new markup is processed while still detached, then spliced in place of the
// placeholder. An unknown index changes nothing and reports nothing.
func (m *Mutator) ReplaceSuperCollapsedBlock(index int) error {
	placeholder := m.doc.QueryOne(m.doc.Root(), "//*["+content.ClassPredicate(m.conv.SuperCollapsedClass)+
		" and @"+m.conv.SuperCollapsedIndexAttr+"="+content.Literal(fmt.Sprint(index))+"]")
	if placeholder == nil || placeholder.Parent == nil {
		return fmt.Errorf("replace super-collapsed block %d: %w", index, ErrPlaceholderNotFound)
	}

	frag, err := m.doc.ParseFragment(m.host.FetchTempMessageBodies())
	if err != nil {
		return fmt.Errorf("replace super-collapsed block %d: %w", index, err)
	}
	m.ScanAndWrapQuotedText(frag, false)
	m.gate.HideUnsafeImages(m.doc.FindByClass(frag, m.conv.ContentClass))

	m.doc.MoveChildrenBefore(frag, placeholder)
	m.doc.Remove(placeholder)
	m.reporter.Report()
	return nil
}

// ReplaceMessageBodies reloads the content region of each listed block from the host.
// Quoted text in the new bodies starts shown. Unknown ids are skipped and returned as one
// joined error; the batch still ends with exactly one report.
func (m *Mutator) ReplaceMessageBodies(blockIDs []string) error {
	var missing []error
	for _, id := range blockIDs {
		region := content.ChildWithClass(m.doc.ByID(id), m.conv.ContentClass)
		if region == nil {
			missing = append(missing, fmt.Errorf("replace body %q: %w", id, ErrRegionNotFound))
			continue
		}
		if err := m.doc.SetInnerHTML(region, m.host.FetchMessageBody(id)); err != nil {
			missing = append(missing, fmt.Errorf("replace body %q: %w", id, err))
			continue
		}
		m.pruneToggles()
		m.ScanAndWrapQuotedText(region, true)
		m.gate.HideUnsafeImages([]*html.Node{region})
		if content.HasClass(region.Parent, m.conv.ExpandedClass) {
			m.normalizer.NormalizeWidths([]*html.Node{region})
		}
	}
	m.reporter.Report()
	return errors.Join(missing...)
}

// AppendMessageHTML appends the host's staged message as the last block of the conversation.
// The fetched markup carries one outer wrapper, which is discarded.
func (m *Mutator) AppendMessageHTML() error {
	frag, err := m.doc.ParseFragment(m.host.FetchTempMessageBodies())
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	block := content.FirstElementChild(frag)
	if block == nil {
		return fmt.Errorf("append message: %w", ErrEmptyFragment)
	}
	m.doc.AppendChild(m.doc.Body(), block)
	m.ScanAndWrapQuotedText(block, true)
	regions := m.doc.FindByClass(block, m.conv.ContentClass)
	m.gate.HideUnsafeImages(regions)
	if content.HasClass(block, m.conv.ExpandedClass) {
		m.normalizer.NormalizeWidths(regions)
	}
	m.reporter.Report()
	return nil
}

func (m *Mutator) headerSpacer(block *html.Node) *html.Node {
	return content.ChildWithClass(block, m.conv.HeaderSpacerClass)
}

func (m *Mutator) setHeight(n *html.Node, height int) {
	if height < 0 {
		height = 0
	}
	m.doc.SetStyle(n, "height", fmt.Sprintf("%dpx", height))
}

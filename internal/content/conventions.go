package content

import "strings"

// Conventions names the structural markers shared by the host markup and the content side.
// Every lookup in the conversation view is keyed by one of these names.
type Conventions struct {
	// Message blocks
	MessageClass      string `yaml:"message_class" json:"message_class"`
	ExpandedClass     string `yaml:"expanded_class" json:"expanded_class"`
	ContentClass      string `yaml:"content_class" json:"content_class"`
	CollapsibleClass  string `yaml:"collapsible_class" json:"collapsible_class"`
	ShowImagesClass   string `yaml:"show_images_class" json:"show_images_class"`
	HeaderSpacerClass string `yaml:"header_spacer_class" json:"header_spacer_class"`
	FooterSpacerClass string `yaml:"footer_spacer_class" json:"footer_spacer_class"`
	MessageIDPrefix   string `yaml:"message_id_prefix" json:"message_id_prefix"`

	// Conversation header spacer (keyed by element id)
	ConversationHeaderID string `yaml:"conversation_header_id" json:"conversation_header_id"`

	// Quoted text
	QuotedTextClass string `yaml:"quoted_text_class" json:"quoted_text_class"`
	ToggleClass     string `yaml:"toggle_class" json:"toggle_class"`
	ShowQuotedLabel string `yaml:"show_quoted_label" json:"show_quoted_label"`
	HideQuotedLabel string `yaml:"hide_quoted_label" json:"hide_quoted_label"`

	// Super-collapsed placeholders
	SuperCollapsedClass     string `yaml:"super_collapsed_class" json:"super_collapsed_class"`
	SuperCollapsedIndexAttr string `yaml:"super_collapsed_index_attr" json:"super_collapsed_index_attr"`

	// Images
	BlockedSrcAttr   string `yaml:"blocked_src_attr" json:"blocked_src_attr"`
	ImagePlaceholder string `yaml:"image_placeholder" json:"image_placeholder"`

	// Viewport meta element
	ViewportMetaID   string `yaml:"viewport_meta_id" json:"viewport_meta_id"`
	ViewportBaseAttr string `yaml:"viewport_base_attr" json:"viewport_base_attr"`
	ZoomOnAttr       string `yaml:"zoom_on_attr" json:"zoom_on_attr"`
	ZoomOffAttr      string `yaml:"zoom_off_attr" json:"zoom_off_attr"`
}

// DefaultConventions returns the marker names used by the reference conversation template
func DefaultConventions() Conventions {
	return Conventions{
		MessageClass:            "mail-message",
		ExpandedClass:           "expanded",
		ContentClass:            "mail-message-content",
		CollapsibleClass:        "collapsible",
		ShowImagesClass:         "mail-show-images",
		HeaderSpacerClass:       "mail-message-header",
		FooterSpacerClass:       "mail-message-footer",
		MessageIDPrefix:         "m",
		ConversationHeaderID:    "conversation-header",
		QuotedTextClass:         "elided-text",
		ToggleClass:             "mail-elided-text",
		ShowQuotedLabel:         "Show quoted text",
		HideQuotedLabel:         "Hide quoted text",
		SuperCollapsedClass:     "mail-super-collapsed-block",
		SuperCollapsedIndexAttr: "index",
		BlockedSrcAttr:          "blocked-src",
		ImagePlaceholder:        "data:",
		ViewportMetaID:          "meta-viewport",
		ViewportBaseAttr:        "data-base-content",
		ZoomOnAttr:              "data-zoom-on",
		ZoomOffAttr:             "data-zoom-off",
	}
}

// Merge returns c with every empty field filled from defaults
func (c Conventions) Merge(defaults Conventions) Conventions {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&c.MessageClass, defaults.MessageClass)
	fill(&c.ExpandedClass, defaults.ExpandedClass)
	fill(&c.ContentClass, defaults.ContentClass)
	fill(&c.CollapsibleClass, defaults.CollapsibleClass)
	fill(&c.ShowImagesClass, defaults.ShowImagesClass)
	fill(&c.HeaderSpacerClass, defaults.HeaderSpacerClass)
	fill(&c.FooterSpacerClass, defaults.FooterSpacerClass)
	fill(&c.MessageIDPrefix, defaults.MessageIDPrefix)
	fill(&c.ConversationHeaderID, defaults.ConversationHeaderID)
	fill(&c.QuotedTextClass, defaults.QuotedTextClass)
	fill(&c.ToggleClass, defaults.ToggleClass)
	fill(&c.ShowQuotedLabel, defaults.ShowQuotedLabel)
	fill(&c.HideQuotedLabel, defaults.HideQuotedLabel)
	fill(&c.SuperCollapsedClass, defaults.SuperCollapsedClass)
	fill(&c.SuperCollapsedIndexAttr, defaults.SuperCollapsedIndexAttr)
	fill(&c.BlockedSrcAttr, defaults.BlockedSrcAttr)
	fill(&c.ImagePlaceholder, defaults.ImagePlaceholder)
	fill(&c.ViewportMetaID, defaults.ViewportMetaID)
	fill(&c.ViewportBaseAttr, defaults.ViewportBaseAttr)
	fill(&c.ZoomOnAttr, defaults.ZoomOnAttr)
	fill(&c.ZoomOffAttr, defaults.ZoomOffAttr)
	return c
}

// MessageDOMID maps a message identifier to the element id of its block
func (c Conventions) MessageDOMID(messageID string) string {
	return c.MessageIDPrefix + messageID
}

// MessageIDFromDOM is the inverse of MessageDOMID. ok is false when the prefix does not match.
func (c Conventions) MessageIDFromDOM(domID string) (string, bool) {
	if !strings.HasPrefix(domID, c.MessageIDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(domID, c.MessageIDPrefix), true
}

package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/ajramos/convview/internal/config"
	"github.com/ajramos/convview/internal/host"
	"github.com/derailed/tcell/v2"
	"github.com/mattn/go-runewidth"
)

// MessageColorer picks the list color of a message from its state
type MessageColorer struct {
	ExpandedColor  tcell.Color
	CollapsedColor tcell.Color
	HiddenColor    tcell.Color
	ImagesColor    tcell.Color
}

// NewMessageColorer creates a colorer with the default palette
func NewMessageColorer() *MessageColorer {
	mc := &MessageColorer{}
	mc.UpdateFromStyles(config.DefaultColors())
	return mc
}

// UpdateFromStyles applies a color configuration
func (mc *MessageColorer) UpdateFromStyles(colors *config.ColorsConfig) {
	if colors == nil {
		return
	}
	mc.ExpandedColor = colors.Message.ExpandedColor.Color()
	mc.CollapsedColor = colors.Message.CollapsedColor.Color()
	mc.HiddenColor = colors.Message.HiddenColor.Color()
	mc.ImagesColor = colors.Message.ImagesColor.Color()
}

// Color returns the color for a message. Hidden wins over expanded.
func (mc *MessageColorer) Color(m host.MessageState) tcell.Color {
	switch {
	case m.Hidden:
		return mc.HiddenColor
	case m.Expanded && m.ShowImages:
		return mc.ImagesColor
	case m.Expanded:
		return mc.ExpandedColor
	default:
		return mc.CollapsedColor
	}
}

// MessageRenderer formats inspector rows
type MessageRenderer struct {
	colorer *MessageColorer
	now     func() time.Time
}

// NewMessageRenderer creates a renderer with the default palette
func NewMessageRenderer() *MessageRenderer {
	return &MessageRenderer{colorer: NewMessageColorer(), now: time.Now}
}

// UpdateFromConfig applies a color configuration
func (mr *MessageRenderer) UpdateFromConfig(colors *config.ColorsConfig) {
	mr.colorer.UpdateFromStyles(colors)
}

// FormatRow renders one message as a fixed width row: state flags, sender, subject and a
// relative date on the right.
func (mr *MessageRenderer) FormatRow(m host.MessageState, maxWidth int) (string, tcell.Color) {
	flags := stateFlags(m)
	date := formatRelativeTime(mr.now(), m.Date)

	const senderWidth = 18
	dateWidth := 7
	rest := maxWidth - runewidth.StringWidth(flags) - senderWidth - dateWidth - 3
	if rest < 4 {
		rest = 4
	}
	row := fmt.Sprintf("%s %s %s %s",
		flags,
		fitWidth(m.Sender, senderWidth),
		fitWidth(m.Subject, rest),
		rightFit(date, dateWidth))
	return row, mr.colorer.Color(m)
}

func stateFlags(m host.MessageState) string {
	var b strings.Builder
	switch {
	case m.Hidden:
		b.WriteString("…")
	case m.Expanded:
		b.WriteString("▾")
	default:
		b.WriteString("▸")
	}
	if m.ShowImages {
		b.WriteString("🖼")
	} else {
		b.WriteString("  ")
	}
	return b.String()
}

// fitWidth truncates and pads on the right to fit a fixed width
func fitWidth(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.Truncate(s, width, "...")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s += strings.Repeat(" ", pad)
	}
	return s
}

// rightFit truncates and right-aligns to width
func rightFit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	s = runewidth.TruncateLeft(s, width, "")
	if pad := width - runewidth.StringWidth(s); pad > 0 {
		s = strings.Repeat(" ", pad) + s
	}
	return s
}

func formatRelativeTime(now, date time.Time) string {
	if date.IsZero() {
		return ""
	}
	diff := now.Sub(date)
	switch {
	case diff < time.Minute:
		return "now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(diff.Hours()/24))
	default:
		return date.Format("Jan 2")
	}
}

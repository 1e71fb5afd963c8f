package config

import (
	"fmt"

	"github.com/derailed/tcell/v2"
)

// Color represents a color in the inspector
type Color string

const (
	// DefaultColor represents a default color
	DefaultColor Color = "default"

	// TransparentColor represents the terminal bg color
	TransparentColor Color = "-"
)

// NewColor returns a new color
func NewColor(c string) Color {
	return Color(c)
}

// String returns color as string
func (c Color) String() string {
	if c.isHex() {
		return string(c)
	}
	if c == DefaultColor || c == TransparentColor {
		return "-"
	}
	col := c.Color().TrueColor().Hex()
	if col < 0 {
		return "-"
	}
	return fmt.Sprintf("#%06x", col)
}

func (c Color) isHex() bool {
	return len(c) == 7 && c[0] == '#'
}

// Color returns a view color
func (c Color) Color() tcell.Color {
	if c == DefaultColor || c == TransparentColor {
		return tcell.ColorDefault
	}
	return tcell.GetColor(string(c)).TrueColor()
}

// MessageColors defines colors for message states in the inspector list
type MessageColors struct {
	ExpandedColor  Color `json:"expanded" yaml:"expandedColor"`
	CollapsedColor Color `json:"collapsed" yaml:"collapsedColor"`
	HiddenColor    Color `json:"hidden" yaml:"hiddenColor"`
	ImagesColor    Color `json:"images" yaml:"imagesColor"`
}

// FrameColors defines colors for UI frame elements
type FrameColors struct {
	BorderColor Color `json:"border" yaml:"borderColor"`
	FocusColor  Color `json:"focus" yaml:"focusColor"`
	TitleColor  Color `json:"title" yaml:"titleColor"`
}

// BodyColors defines colors for panel bodies
type BodyColors struct {
	FgColor       Color `json:"fg" yaml:"fgColor"`
	BgColor       Color `json:"bg" yaml:"bgColor"`
	GeometryColor Color `json:"geometry" yaml:"geometryColor"`
}

// ColorsConfig defines the complete color configuration
type ColorsConfig struct {
	Body    BodyColors    `json:"body" yaml:"body"`
	Frame   FrameColors   `json:"frame" yaml:"frame"`
	Message MessageColors `json:"message" yaml:"message"`
}

// DefaultColors returns the default color configuration
func DefaultColors() *ColorsConfig {
	return &ColorsConfig{
		Body: BodyColors{
			FgColor:       NewColor("#f8f8f2"),
			BgColor:       NewColor("#282a36"),
			GeometryColor: NewColor("#8be9fd"),
		},
		Frame: FrameColors{
			BorderColor: NewColor("#44475a"),
			FocusColor:  NewColor("#6272a4"),
			TitleColor:  NewColor("#f1fa8c"),
		},
		Message: MessageColors{
			ExpandedColor:  NewColor("#50fa7b"),
			CollapsedColor: NewColor("#6272a4"),
			HiddenColor:    NewColor("#44475a"),
			ImagesColor:    NewColor("#ffb86c"),
		},
	}
}

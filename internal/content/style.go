package content

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

type declaration struct {
	prop  string
	value string
}

func parseStyle(s string) []declaration {
	var out []declaration
	for _, part := range strings.Split(s, ";") {
		prop, value, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		prop = strings.ToLower(strings.TrimSpace(prop))
		if prop == "" {
			continue
		}
		out = append(out, declaration{prop: prop, value: strings.TrimSpace(value)})
	}
	return out
}

func formatStyle(decls []declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		parts = append(parts, d.prop+": "+d.value)
	}
	return strings.Join(parts, "; ")
}

// StyleValue returns the inline style value of prop on n, or "" when unset.
// The last declaration wins, as in a browser.
func StyleValue(n *html.Node, prop string) string {
	prop = strings.ToLower(prop)
	value := ""
	for _, d := range parseStyle(attr(n, "style")) {
		if d.prop == prop {
			value = d.value
		}
	}
	return value
}

func withStyle(current, prop, value string) string {
	prop = strings.ToLower(prop)
	decls := parseStyle(current)
	out := decls[:0]
	replaced := false
	for _, d := range decls {
		if d.prop != prop {
			out = append(out, d)
			continue
		}
		if !replaced && value != "" {
			out = append(out, declaration{prop: prop, value: value})
			replaced = true
		}
	}
	if !replaced && value != "" {
		out = append(out, declaration{prop: prop, value: value})
	}
	return formatStyle(out)
}

// Pixels parses a CSS length such as "40px" or "40". ok is false for anything else,
// including percentages and auto.
func Pixels(v string) (float64, bool) {
	v = strings.TrimSpace(strings.ToLower(v))
	v = strings.TrimSuffix(v, "px")
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}

// Hidden reports whether n has an inline display of none
func Hidden(n *html.Node) bool {
	return strings.EqualFold(StyleValue(n, "display"), "none")
}

// Package color resolves the display color triple for an event from
// its competing sources: an attached label wins over the owning
// calendar's base color, which wins over a fixed default.
package color

import "strings"

const (
	// DefaultBase is used when neither the label nor the calendar
	// supplies a usable color.
	DefaultBase = "#64748B"

	lightText = "#F8FAFC"
	darkText  = "#1E293B"

	// luminanceThreshold splits base colors into dark (light text) and
	// light (dark text) on the 0-255 luma scale.
	luminanceThreshold = 140
)

// ResolveBase picks the base color: label color first, then calendar
// color, then DefaultBase. Anything that is not a 6-hex-digit string
// (an optional leading '#' is stripped) counts as absent and falls
// through to the next source. The result is normalized to "#RRGGBB"
// upper-case.
func ResolveBase(calendarColor, labelColor string) string {
	if hex, ok := normalizeHex(labelColor); ok {
		return hex
	}
	if hex, ok := normalizeHex(calendarColor); ok {
		return hex
	}
	return DefaultBase
}

// ResolveText picks the foreground color to draw on top of base:
// near-white for dark bases, near-black for light ones. Invalid input
// is normalized to DefaultBase first, so the luma computation always
// sees a valid color.
func ResolveText(base string) string {
	hex, ok := normalizeHex(base)
	if !ok {
		hex = DefaultBase
	}

	r := channel(hex[1], hex[2])
	g := channel(hex[3], hex[4])
	b := channel(hex[5], hex[6])

	// Luma (perceptual brightness).
	y := 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
	if y < luminanceThreshold {
		return lightText
	}
	return darkText
}

// normalizeHex validates s as a 6-hex-digit color and returns it in
// "#RRGGBB" upper-case form.
func normalizeHex(s string) (string, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return "", false
	}
	s = strings.ToUpper(s)
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return "", false
		}
	}
	return "#" + s, true
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')
}

// channel decodes one "RR" pair of an already-validated hex color.
func channel(hi, lo byte) int {
	return hexVal(hi)<<4 | hexVal(lo)
}

func hexVal(c byte) int {
	if c >= 'A' {
		return int(c-'A') + 10
	}
	return int(c - '0')
}

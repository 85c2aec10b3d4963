package ui

import (
	"fmt"

	"github.com/alfredjeanlab/asgdb/internal/model"
)

// ANSI256 colour codes.
const (
	colorKey     = 74  // blue
	colorMuted   = 245 // gray
	colorString  = 108 // green
	colorNumber  = 179 // amber
	colorComplex = 139 // mauve
	colorError   = 167 // red
)

var noColor bool

// ForceNoColor disables colour output globally.
func ForceNoColor() {
	noColor = true
}

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderKey styles a namespace, identity or key name.
func RenderKey(s string) string { return paint(colorKey, s) }

// RenderMuted styles secondary text such as type names and timestamps.
func RenderMuted(s string) string { return paint(colorMuted, s) }

// RenderError styles a failure message.
func RenderError(s string) string { return paint(colorError, s) }

// RenderValue styles a formatted value by the type it was stored as.
func RenderValue(t model.ValueType, s string) string {
	switch t {
	case model.TypeString:
		return paint(colorString, s)
	case model.TypeInteger, model.TypeLong, model.TypeDouble, model.TypeBoolean:
		return paint(colorNumber, s)
	case model.TypeNull:
		return paint(colorMuted, s)
	default:
		return paint(colorComplex, s)
	}
}

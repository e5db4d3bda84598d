// Package textutil holds small text helpers shared by the renderer and the
// CLI output paths.
package textutil

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize puts overlay text into NFC so composed and decomposed inputs
// rasterize and cache identically.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// Ellipsize shortens s to at most max runes, appending an ellipsis when
// truncation happened. max values below 2 return the first rune only.
func Ellipsize(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max < 2 {
		return string(runes[:1])
	}
	return string(runes[:max-1]) + "…"
}

// CollapseWhitespace trims s and folds internal whitespace runs into single
// spaces, for compact log and table output.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

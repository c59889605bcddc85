// Package utils provides small, generic helper functions used across
// different layers of the application. These utilities are independent
// of domain or business logic.
package utils

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// MaxMessageRunes is the longest text the chat platform accepts in one message.
const MaxMessageRunes = 4096

// AtoiDefault converts a string to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer,
// it returns the provided default value instead.
//
// Example:
//
//	n := utils.AtoiDefault("42", 0) // returns 42
//	n = utils.AtoiDefault("", 10)   // returns 10
//	n = utils.AtoiDefault("x", 5)   // returns 5
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clip shortens s to at most max runes, ending with an ellipsis when cut.
// A max <= 0 disables clipping.
func Clip(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max-1 {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString("…")
	return b.String()
}

// Page returns the [lo, hi) bounds of page (1-based) over total items split
// into pages of size, plus the number of pages. Out-of-range pages are
// clamped to the first or last page.
func Page(total, page, size int) (lo, hi, pages int) {
	if size <= 0 {
		size = 1
	}
	pages = (total + size - 1) / size
	if pages == 0 {
		return 0, 0, 0
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}
	lo = (page - 1) * size
	hi = min(lo+size, total)
	return lo, hi, pages
}

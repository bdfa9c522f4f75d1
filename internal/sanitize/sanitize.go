// Package sanitize cleans caller-supplied identifiers and display names
// before they are stored and echoed back to MCP clients. It strips control
// characters and markup so a room name cannot smuggle instructions into an
// agent's context.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxUserIDLength is the maximum allowed length for a user id.
const MaxUserIDLength = 64

// MaxRoomNameLength is the maximum allowed length for a room name.
const MaxRoomNameLength = 80

var (
	// reXMLTag matches XML/HTML tags including those with attributes and self-closing tags.
	// It also matches XML processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	// reMarkdownMarkers matches leading heading markers and code fences.
	reMarkdownMarkers = regexp.MustCompile("^#{1,6}\\s+|`+")

	// reWhitespace matches any run of whitespace.
	reWhitespace = regexp.MustCompile(`\s+`)

	// reRepeatedSeparators matches 2 or more consecutive separator characters.
	reRepeatedSeparators = regexp.MustCompile(`([-_.])[-_.]+`)
)

// UserID keeps only [a-zA-Z0-9-_.@], collapses repeated separators and
// enforces MaxUserIDLength. The result may be empty.
func UserID(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' || r == '@' {
			b.WriteRune(r)
		}
	}
	s := reRepeatedSeparators.ReplaceAllString(b.String(), "$1")

	if len(s) > MaxUserIDLength {
		s = s[:MaxUserIDLength]
	}
	return s
}

// RoomName sanitizes a free-text room name to a single line.
//
// The pipeline runs in this order:
//  1. Strip ASCII control characters
//  2. Strip XML/HTML tags
//  3. Strip heading markers and backticks
//  4. Collapse whitespace to single spaces and trim
//  5. Truncate to MaxRoomNameLength runes
func RoomName(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownMarkers.ReplaceAllString(s, "")
	s = strings.TrimSpace(reWhitespace.ReplaceAllString(s, " "))

	if r := []rune(s); len(r) > MaxRoomNameLength {
		s = strings.TrimSpace(string(r[:MaxRoomNameLength]))
	}
	return s
}

// stripControlChars replaces ASCII control characters (0x00-0x1F, 0x7F)
// with spaces so words on either side stay separated.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

package infrastructure

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameRunes = 120
	unknownName  = "Unknown"
)

// SanitizeFilename maps arbitrary text to a string that is safe to use as
// one path component on macOS, Linux and Windows.
func SanitizeFilename(s string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		if r == utf8.RuneError || unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)

	mapped = strings.Join(strings.Fields(mapped), " ")
	mapped = strings.Trim(mapped, ". ")

	if utf8.RuneCountInString(mapped) > maxNameRunes {
		mapped = strings.TrimRight(string([]rune(mapped)[:maxNameRunes]), ". ")
	}
	if mapped == "" {
		return unknownName
	}
	return mapped
}

// MediaBaseName is the file name, without extension, of a downloaded track
func MediaBaseName(title, uploader string) string {
	return SanitizeFilename(title) + " - " + SanitizeFilename(uploader)
}

// ParseMediaBaseName recovers title and uploader from a legacy file name
// that was written without a metadata sidecar
func ParseMediaBaseName(base string) (title, uploader string) {
	idx := strings.LastIndex(base, " - ")
	if idx < 0 {
		return base, ""
	}
	return base[:idx], base[idx+3:]
}

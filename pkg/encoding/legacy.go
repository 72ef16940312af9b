// Package encoding provides text encoding utilities for X-Plane asset files.
// Older authoring tools on Windows wrote tooltips and texture names in
// Windows-1252; modern files are UTF-8.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// LineToUTF8 returns the line as UTF-8. Valid UTF-8 is returned unchanged;
// anything else is decoded as Windows-1252. The BOM is stripped.
func LineToUTF8(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		// Return as-is if decoding fails
		return string(data)
	}
	return string(result)
}

// UTF8ToLegacy encodes s as Windows-1252 for consumers that cannot read
// UTF-8. Characters without a mapping fail the conversion and the original
// bytes are returned.
func UTF8ToLegacy(s string) []byte {
	result, _, err := transform.Bytes(charmap.Windows1252.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return result
}

// NormalizeAssetPath converts backslashes to forward slashes and collapses
// duplicate separators, the form every asset format expects.
func NormalizeAssetPath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	return path
}

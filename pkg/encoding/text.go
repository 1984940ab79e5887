// Package encoding decodes the free-form text fields found in mesh files.
package encoding

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ToUTF8 returns data as a UTF-8 string. Valid UTF-8 is returned unchanged;
// anything else is decoded as Windows-1252, which most tools writing 8-bit
// headers use.
func ToUTF8(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	result, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "�")
	}
	return string(result)
}

// TrimNullBytes removes trailing null bytes from a byte slice.
func TrimNullBytes(data []byte) []byte {
	return bytes.TrimRight(data, "\x00")
}

// FixedStringToUTF8 converts a fixed-size, null-padded text field to a
// trimmed UTF-8 string. Text after the first null byte is ignored.
func FixedStringToUTF8(data []byte) string {
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return strings.TrimSpace(ToUTF8(data))
}

// UTF8ToFixedString converts s to a fixed-size field, padding with null bytes.
// Text longer than size is cut at a rune boundary.
func UTF8ToFixedString(s string, size int) []byte {
	result := make([]byte, size)
	for len(s) > size {
		_, n := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-n]
	}
	copy(result, s)
	return result
}

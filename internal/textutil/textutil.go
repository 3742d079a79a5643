// Package textutil normalizes line-oriented text files the patcher reads back.
package textutil

import "bytes"

// NormalizeLF converts CRLF and lone CR line endings to LF and replaces
// invalid UTF-8 with the Unicode replacement character, so a file edited on
// another platform parses the same.
func NormalizeLF(b []byte) []byte {
	b = bytes.ReplaceAll(b, []byte("\r\n"), []byte("\n"))
	b = bytes.ReplaceAll(b, []byte("\r"), []byte("\n"))
	return bytes.ToValidUTF8(b, []byte("�"))
}

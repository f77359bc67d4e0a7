// Package textio handles the boundary between the outside world's UTF-8
// bytes and the UTF-32 code points every other package operates on: strict
// decoding, re-encoding for byte-oriented scanners, and NFKC normalization.
package textio

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/crepererum/oclgrep/internal/oclerr"
)

// Decode converts raw UTF-8 bytes to UTF-32 code points. Invalid input is a
// user error carrying the byte offset of the first bad sequence; there is no
// replacement-character fallback, matching the strict conversion the engine
// requires (offsets are counted in code points of the decoded text).
func Decode(data []byte) ([]rune, error) {
	out := make([]rune, 0, len(data))
	for i := 0; i < len(data); {
		r, size := utf8.DecodeRune(data[i:])
		if r == utf8.RuneError && size <= 1 {
			return nil, oclerr.NewUser("input is not valid UTF-8 (byte offset %d)", i)
		}
		out = append(out, r)
		i += size
	}
	return out, nil
}

// Encode converts UTF-32 code points back to UTF-8 bytes and reports, for
// each code point, the byte offset at which its encoding starts. The offset
// table lets byte-oriented scanners (internal/prefilter) translate their
// results back into code-point indices.
func Encode(text []rune) (data []byte, starts []int) {
	data = make([]byte, 0, len(text))
	starts = make([]int, len(text))
	for i, r := range text {
		starts[i] = len(data)
		data = utf8.AppendRune(data, r)
	}
	return data, starts
}

// NormalizeNFKC applies Unicode Normalization Form KC. Applied to the input
// text this changes the coordinate system of reported offsets; callers opt in
// explicitly (the --normalize-file flag).
func NormalizeNFKC(text []rune) []rune {
	return []rune(norm.NFKC.String(string(text)))
}

// LocaleIsUTF8 reports whether the process locale selects a UTF-8 codeset.
// lookup resolves environment variables (os.Getenv in production); the usual
// POSIX precedence LC_ALL > LC_CTYPE > LANG applies.
func LocaleIsUTF8(lookup func(string) string) bool {
	var value string
	for _, key := range []string{"LC_ALL", "LC_CTYPE", "LANG"} {
		if v := lookup(key); v != "" {
			value = v
			break
		}
	}
	if value == "" {
		return false
	}
	value = strings.ToLower(value)
	if i := strings.IndexByte(value, '.'); i >= 0 {
		value = value[i+1:]
	}
	if i := strings.IndexByte(value, '@'); i >= 0 {
		value = value[:i]
	}
	return value == "utf-8" || value == "utf8"
}

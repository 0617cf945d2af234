// Package strval implements the binary-safe string operations of C5:
// length-bearing concatenation with an in-place append fast path,
// codepoint-vs-byte indexing, case/trim/repeat helpers, and the
// pack/unpack binary format alphabet plus base64 (RFC 4648).
package strval

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/strada-lang/runtime/pkg/strutil"
	"github.com/strada-lang/runtime/pkg/value"
)

// LengthBytes returns the stored byte length (binary-safe).
func LengthBytes(v *value.Value) int { return int(v.Size()) }

// LengthCodepoints returns the UTF-8 rune count.
func LengthCodepoints(v *value.Value) int {
	return utf8.RuneCount(v.Bytes())
}

// SanitizeUTF8 round-trips b through golang.org/x/text's UTF-8 decoder,
// replacing any ill-formed byte sequence with U+FFFD. Strings built from
// pack()'d or externally-sourced bytes can be binary-safe but not valid
// UTF-8; callers that need LengthCodepoints to mean something coherent
// run the bytes through this first.
func SanitizeUTF8(b []byte) []byte {
	out, _, err := transform.Bytes(unicode.UTF8.NewDecoder(), b)
	if err != nil {
		return b
	}
	return out
}

// growCap implements the exponential capacity strategy from spec.md §4.4:
// double when the current length exceeds 64 bytes, otherwise jump to 128.
func growCap(curLen int) int {
	if curLen > 64 {
		return curLen * 2
	}
	return 128
}

// ConcatSV always allocates a fresh STR value sized to both operands,
// formatting INT/NUM operands on the fly and reading STR operands with
// their stored (not C-strlen) length.
func ConcatSV(a, b *value.Value) *value.Value {
	as, bs := operandBytes(a), operandBytes(b)
	out := make([]byte, 0, len(as)+len(bs))
	out = append(out, as...)
	out = append(out, bs...)
	return value.NewStrLen(out, len(out))
}

func operandBytes(v *value.Value) []byte {
	switch v.Tag() {
	case value.Str:
		return v.Bytes()
	default:
		return []byte(v.ToStr())
	}
}

// ConcatInplace appends into a itself when a is a STR with refcount 1,
// reusing its backing array if it has spare capacity and growing it
// otherwise; any other a falls back to ConcatSV and is decremented.
// Returns the resulting value (which may or may not be a).
func ConcatInplace(a, b *value.Value) *value.Value {
	bs := operandBytes(b)
	if a.Tag() == value.Str && a.Refcount() == 1 {
		cur := a.Bytes()
		if cap(cur)-len(cur) >= len(bs) {
			cur = append(cur, bs...)
			a.SetBytes(cur)
			return a
		}
		grown := make([]byte, len(cur), len(cur)+growCap(len(cur))+len(bs))
		grown = append(grown, cur...)
		grown = append(grown, bs...)
		a.SetBytes(grown)
		return a
	}
	result := ConcatSV(a, b)
	value.Decref(a)
	return result
}

// Substr returns the codepoint-indexed substring [start, start+length).
func Substr(v *value.Value, start, length int) *value.Value {
	runes := []rune(string(v.Bytes()))
	start, length = clampRange(len(runes), start, length)
	return value.NewStr(string(runes[start : start+length]))
}

// SubstrBytes returns the byte-indexed substring [start, start+length).
func SubstrBytes(v *value.Value, start, length int) *value.Value {
	b := v.Bytes()
	start, length = clampRange(len(b), start, length)
	out := append([]byte(nil), b[start:start+length]...)
	return value.NewStrLen(out, len(out))
}

func clampRange(total, start, length int) (int, int) {
	if start < 0 {
		start += total
	}
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	if length < 0 {
		length = 0
	}
	if start+length > total {
		length = total - start
	}
	return start, length
}

// Index returns the byte offset of the first occurrence of needle at or
// after from, or -1.
func Index(haystack, needle *value.Value, from int) int {
	h := haystack.Bytes()
	n := needle.Bytes()
	if from < 0 {
		from = 0
	}
	if from > len(h) {
		return -1
	}
	idx := indexBytes(h[from:], n)
	if idx < 0 {
		return -1
	}
	return from + idx
}

func indexBytes(h, n []byte) int {
	if len(n) == 0 {
		return 0
	}
	for i := 0; i+len(n) <= len(h); i++ {
		if string(h[i:i+len(n)]) == string(n) {
			return i
		}
	}
	return -1
}

// Rindex returns the byte offset of the last occurrence of needle at or
// before from (from<0 means search the whole string), or -1.
func Rindex(haystack, needle *value.Value, from int) int {
	h := haystack.Bytes()
	n := needle.Bytes()
	limit := len(h)
	if from >= 0 && from+len(n) < limit {
		limit = from + len(n)
	}
	for i := limit - len(n); i >= 0; i-- {
		if string(h[i:i+len(n)]) == string(n) {
			return i
		}
	}
	return -1
}

// Upper, Lower, Ucfirst, Lcfirst operate byte-wise over ASCII (matching
// the Language's non-locale-aware default casing ops).
func Upper(v *value.Value) *value.Value { return mapASCII(v, toUpperByte) }
func Lower(v *value.Value) *value.Value { return mapASCII(v, toLowerByte) }

func Ucfirst(v *value.Value) *value.Value {
	b := append([]byte(nil), v.Bytes()...)
	if len(b) > 0 {
		b[0] = toUpperByte(b[0])
	}
	return value.NewStrLen(b, len(b))
}

func Lcfirst(v *value.Value) *value.Value {
	b := append([]byte(nil), v.Bytes()...)
	if len(b) > 0 {
		b[0] = toLowerByte(b[0])
	}
	return value.NewStrLen(b, len(b))
}

func mapASCII(v *value.Value, f func(byte) byte) *value.Value {
	src := v.Bytes()
	out := make([]byte, len(src))
	for i, c := range src {
		out[i] = f(c)
	}
	return value.NewStrLen(out, len(out))
}

func toUpperByte(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func toLowerByte(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

// Trim, Ltrim, Rtrim strip ASCII whitespace from both/left/right.
func Trim(v *value.Value) *value.Value  { return Ltrim(Rtrim(v)) }
func Ltrim(v *value.Value) *value.Value {
	b := v.Bytes()
	i := 0
	for i < len(b) && isSpace(b[i]) {
		i++
	}
	out := append([]byte(nil), b[i:]...)
	return value.NewStrLen(out, len(out))
}
func Rtrim(v *value.Value) *value.Value {
	b := v.Bytes()
	i := len(b)
	for i > 0 && isSpace(b[i-1]) {
		i--
	}
	out := append([]byte(nil), b[:i]...)
	return value.NewStrLen(out, len(out))
}

// ReverseBytes reverses byte order (not codepoint-aware, matching the
// Language's byte-level string reverse for non-UTF8-mode strings).
func ReverseBytes(v *value.Value) *value.Value {
	b := v.Bytes()
	out := make([]byte, len(b))
	for i, c := range b {
		out[len(b)-1-i] = c
	}
	return value.NewStrLen(out, len(out))
}

// Repeat concatenates v to itself n times (n<=0 yields the empty string).
func Repeat(v *value.Value, n int) *value.Value {
	if n <= 0 {
		return value.NewStr("")
	}
	b := v.Bytes()
	out := make([]byte, 0, len(b)*n)
	for i := 0; i < n; i++ {
		out = append(out, b...)
	}
	return value.NewStrLen(out, len(out))
}

// Chr returns the UTF-8 encoding of codepoint n as a one-character string.
func Chr(n int64) *value.Value {
	return value.NewStr(string(rune(n)))
}

// Ord returns the codepoint value of the first character.
func Ord(v *value.Value) int64 {
	r, _ := utf8.DecodeRune(v.Bytes())
	if r == utf8.RuneError {
		return 0
	}
	return int64(r)
}

// OrdByte returns the raw byte value (0..255) at index 0, for the
// "ord byte" hot path distinct from codepoint Ord.
func OrdByte(v *value.Value) int64 {
	b := v.Bytes()
	if len(b) == 0 {
		return 0
	}
	return int64(b[0])
}

// GetByte/SetByte give raw byte-level access distinct from codepoint
// indexing.
func GetByte(v *value.Value, i int) int64 {
	b := v.Bytes()
	if i < 0 || i >= len(b) {
		return 0
	}
	return int64(b[i])
}

func SetByte(v *value.Value, i int, b byte) {
	buf := v.Bytes()
	if i < 0 || i >= len(buf) {
		return
	}
	buf[i] = b
}

// Split divides v on every occurrence of sep (a plain byte-string
// separator, not a pattern), up to limit substrings (limit <= 0 means
// unbounded), returning fresh STR values. Built directly on
// pkg/strutil.AppendSplitN, the teacher's own allocation-avoiding
// (append-to-dst) split helper.
func Split(v, sep *value.Value, limit int) []*value.Value {
	if limit <= 0 {
		limit = -1
	}
	parts := strutil.AppendSplitN(nil, v.ToStr(), sep.ToStr(), limit)
	out := make([]*value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.NewStr(p)
	}
	return out
}

// EqualFold reports whether a and b are equal under Unicode case
// folding, via pkg/strutil.HasPrefixFold applied to the whole string.
func EqualFold(a, b *value.Value) bool {
	as, bs := a.ToStr(), b.ToStr()
	return len(as) == len(bs) && strutil.HasPrefixFold(as, bs)
}

// ContainsFold reports whether needle occurs in haystack under
// case-insensitive comparison.
func ContainsFold(haystack, needle *value.Value) bool {
	return strutil.ContainsFold(haystack.ToStr(), needle.ToStr())
}

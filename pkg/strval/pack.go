package strval

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/strada-lang/runtime/pkg/pools"
	"github.com/strada-lang/runtime/pkg/value"
)

// packItem is one parsed (code, count) pair from a pack/unpack template.
// count==-1 means "*", meaning "consume everything remaining".
type packItem struct {
	code  byte
	count int
}

func parseTemplate(tmpl string) []packItem {
	var items []packItem
	for i := 0; i < len(tmpl); {
		c := tmpl[i]
		if c == ' ' || c == '\t' || c == '\n' {
			i++
			continue
		}
		i++
		count := 1
		if i < len(tmpl) && tmpl[i] == '*' {
			count = -1
			i++
		} else {
			start := i
			for i < len(tmpl) && tmpl[i] >= '0' && tmpl[i] <= '9' {
				i++
			}
			if i > start {
				n, _ := strconv.Atoi(tmpl[start:i])
				count = n
			}
		}
		items = append(items, packItem{code: c, count: count})
	}
	return items
}

// Pack implements the format alphabet documented in spec.md §4.4:
// c/C (signed/unsigned byte), s/S (16-bit LE), n/v (16-bit BE/LE),
// l/L (32-bit LE), N/V (32-bit BE/LE), q/Q (64-bit LE), a/A (space- or
// NUL-padded ASCII block), H (hex string, high nibble first), x (null byte
// padding), X (back up one byte), @ (absolute position).
func Pack(tmpl string, args []*value.Value) *value.Value {
	items := parseTemplate(tmpl)
	out := pools.BytesBuffer()
	defer pools.PutBuffer(out)
	argi := 0
	next := func() *value.Value {
		if argi >= len(args) {
			return value.UndefSingleton
		}
		v := args[argi]
		argi++
		return v
	}

	for _, it := range items {
		switch it.code {
		case 'c', 'C':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				out.WriteByte(byte(next().ToInt()))
			}
		case 's', 'S':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], uint16(next().ToInt()))
				out.Write(b[:])
			}
		case 'n':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [2]byte
				binary.BigEndian.PutUint16(b[:], uint16(next().ToInt()))
				out.Write(b[:])
			}
		case 'v':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [2]byte
				binary.LittleEndian.PutUint16(b[:], uint16(next().ToInt()))
				out.Write(b[:])
			}
		case 'l', 'L':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], uint32(next().ToInt()))
				out.Write(b[:])
			}
		case 'N':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [4]byte
				binary.BigEndian.PutUint32(b[:], uint32(next().ToInt()))
				out.Write(b[:])
			}
		case 'V':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [4]byte
				binary.LittleEndian.PutUint32(b[:], uint32(next().ToInt()))
				out.Write(b[:])
			}
		case 'q', 'Q':
			n := repeatCount(it.count, len(args)-argi)
			for k := 0; k < n; k++ {
				var b [8]byte
				binary.LittleEndian.PutUint64(b[:], uint64(next().ToInt()))
				out.Write(b[:])
			}
		case 'a', 'A':
			s := next().Bytes()
			width := it.count
			if width == -1 {
				width = len(s)
			}
			pad := byte(0)
			if it.code == 'A' {
				pad = ' '
			}
			block := make([]byte, width)
			for i := range block {
				block[i] = pad
			}
			copy(block, s)
			out.Write(block)
		case 'H':
			// the argument is a string of literal hex-digit characters
			// ("ab", not raw bytes 0x61 0x62); width counts hex digits,
			// not output bytes.
			hexStr := next().ToStr()
			width := it.count
			if width == -1 {
				width = len(hexStr)
			}
			if len(hexStr) > width {
				hexStr = hexStr[:width]
			} else if len(hexStr) < width {
				hexStr += strings.Repeat("0", width-len(hexStr))
			}
			decoded, _ := hex.DecodeString(padEven(hexStr))
			out.Write(decoded)
		case 'x':
			n := it.count
			if n == -1 {
				n = 1
			}
			out.Write(make([]byte, n))
		case 'X':
			n := it.count
			if n == -1 {
				n = 1
			}
			if n > out.Len() {
				n = out.Len()
			}
			out.Truncate(out.Len() - n)
		case '@':
			pos := it.count
			if pos < 0 {
				pos = 0
			}
			if pos > out.Len() {
				out.Write(make([]byte, pos-out.Len()))
			} else {
				out.Truncate(pos)
			}
		}
	}
	return value.NewStrLen(out.Bytes(), out.Len())
}

func padEven(s string) string {
	if len(s)%2 == 1 {
		return s + "0"
	}
	return s
}

func repeatCount(specified, remaining int) int {
	if specified == -1 {
		return remaining
	}
	return specified
}

// Unpack decodes data according to tmpl, returning the decoded values in
// order. Malformed or truncated fields yield zero values rather than error,
// matching the Language's permissive unpack semantics.
func Unpack(tmpl string, data []byte) []*value.Value {
	items := parseTemplate(tmpl)
	var out []*value.Value
	pos := 0

	readN := func(n int) []byte {
		if pos+n > len(data) {
			n = len(data) - pos
			if n < 0 {
				n = 0
			}
		}
		b := data[pos : pos+n]
		pos += n
		return b
	}

	for _, it := range items {
		switch it.code {
		case 'c':
			n := unpackCount(it.count, len(data)-pos, 1)
			for k := 0; k < n; k++ {
				b := readN(1)
				if len(b) == 1 {
					out = append(out, value.NewInt(int64(int8(b[0]))))
				}
			}
		case 'C':
			n := unpackCount(it.count, len(data)-pos, 1)
			for k := 0; k < n; k++ {
				b := readN(1)
				if len(b) == 1 {
					out = append(out, value.NewInt(int64(b[0])))
				}
			}
		case 's':
			n := unpackCount(it.count, len(data)-pos, 2)
			for k := 0; k < n; k++ {
				b := readN(2)
				if len(b) == 2 {
					out = append(out, value.NewInt(int64(int16(binary.LittleEndian.Uint16(b)))))
				}
			}
		case 'S', 'v':
			n := unpackCount(it.count, len(data)-pos, 2)
			for k := 0; k < n; k++ {
				b := readN(2)
				if len(b) == 2 {
					out = append(out, value.NewInt(int64(binary.LittleEndian.Uint16(b))))
				}
			}
		case 'n':
			n := unpackCount(it.count, len(data)-pos, 2)
			for k := 0; k < n; k++ {
				b := readN(2)
				if len(b) == 2 {
					out = append(out, value.NewInt(int64(binary.BigEndian.Uint16(b))))
				}
			}
		case 'l':
			n := unpackCount(it.count, len(data)-pos, 4)
			for k := 0; k < n; k++ {
				b := readN(4)
				if len(b) == 4 {
					out = append(out, value.NewInt(int64(int32(binary.LittleEndian.Uint32(b)))))
				}
			}
		case 'L', 'V':
			n := unpackCount(it.count, len(data)-pos, 4)
			for k := 0; k < n; k++ {
				b := readN(4)
				if len(b) == 4 {
					out = append(out, value.NewInt(int64(binary.LittleEndian.Uint32(b))))
				}
			}
		case 'N':
			n := unpackCount(it.count, len(data)-pos, 4)
			for k := 0; k < n; k++ {
				b := readN(4)
				if len(b) == 4 {
					out = append(out, value.NewInt(int64(binary.BigEndian.Uint32(b))))
				}
			}
		case 'q':
			n := unpackCount(it.count, len(data)-pos, 8)
			for k := 0; k < n; k++ {
				b := readN(8)
				if len(b) == 8 {
					out = append(out, value.NewInt(int64(binary.LittleEndian.Uint64(b))))
				}
			}
		case 'Q':
			n := unpackCount(it.count, len(data)-pos, 8)
			for k := 0; k < n; k++ {
				b := readN(8)
				if len(b) == 8 {
					out = append(out, value.NewInt(int64(binary.LittleEndian.Uint64(b))))
				}
			}
		case 'a', 'A':
			width := it.count
			if width == -1 {
				width = len(data) - pos
			}
			b := readN(width)
			s := b
			if it.code == 'A' {
				s = []byte(strings.TrimRight(string(b), " \x00"))
			}
			out = append(out, value.NewStrLen(s, len(s)))
		case 'H':
			width := it.count
			if width == -1 {
				width = (len(data) - pos) * 2
			}
			nbytes := (width + 1) / 2
			b := readN(nbytes)
			s := hex.EncodeToString(b)
			if len(s) > width {
				s = s[:width]
			}
			out = append(out, value.NewStr(s))
		case 'x':
			n := it.count
			if n == -1 {
				n = 1
			}
			readN(n)
		case 'X':
			n := it.count
			if n == -1 {
				n = 1
			}
			pos -= n
			if pos < 0 {
				pos = 0
			}
		case '@':
			pos = it.count
			if pos < 0 {
				pos = 0
			}
			if pos > len(data) {
				pos = len(data)
			}
		}
	}
	return out
}

func unpackCount(specified, remaining, width int) int {
	if specified == -1 {
		if width == 0 {
			return 0
		}
		return remaining / width
	}
	return specified
}

// Base64Encode returns the standard (padded) base64 encoding, per spec.md's
// §8 round-trip invariant.
func Base64Encode(v *value.Value) *value.Value {
	return value.NewStr(base64.StdEncoding.EncodeToString(v.Bytes()))
}

// Base64Decode decodes a standard base64 string, returning undef on
// malformed input.
func Base64Decode(v *value.Value) *value.Value {
	b, err := base64.StdEncoding.DecodeString(v.ToStr())
	if err != nil {
		return value.UndefSingleton
	}
	return value.NewStrLen(b, len(b))
}

// Hex returns the lowercase hex encoding of v's bytes.
func Hex(v *value.Value) *value.Value {
	return value.NewStr(hex.EncodeToString(v.Bytes()))
}

// Unhex decodes a hex string (odd length is padded with a trailing 0),
// returning undef on non-hex input.
func Unhex(v *value.Value) *value.Value {
	s := v.ToStr()
	b, err := hex.DecodeString(padEven(s))
	if err != nil {
		return value.UndefSingleton
	}
	return value.NewStrLen(b, len(b))
}

// ParseHex implements Perl's hex(): parses a hex-digit string (with an
// optional "0x"/"0X" prefix) into its integer value, returning 0 for
// non-hex input rather than erroring, matching hex()'s permissive
// behavior on garbage input.
func ParseHex(v *value.Value) *value.Value {
	s := v.ToStr()
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	n, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return value.NewInt(0)
	}
	return value.NewInt(n)
}

// SprintfCompat offers a minimal Perl-flavored sprintf entry point used by
// higher layers formatting runtime diagnostics; the Language's own sprintf
// opcode is implemented in the interpreter's format package, not here.
func SprintfCompat(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

// Package ansiencode renders strings with their non-printable and
// markup-unsafe characters replaced by \uXXXX escapes, and removes
// ANSI color codes from the escaped form.
//
// Input is processed one UTF-16 code unit at a time, so a character outside
// the Basic Multilingual Plane becomes a surrogate pair of escapes, the same
// way JSON serializers write it.
package ansiencode

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode/utf16"
)

// ErrInvalidArgument is returned by the *Value functions when the input is
// not a string.
var ErrInvalidArgument = errors.New("you must pass a string")

// Options overrides the per-character escaping decision.
type Options struct {
	// Keep lists characters emitted literally even when escapable.
	// A character outside the BMP keeps both of its surrogate units.
	Keep []rune

	// Force maps a character to a replacement emitted instead of the
	// character. It is checked after Keep and before the table.
	Force map[rune]string
}

// Merge returns the union of o and other. Keep lists are concatenated and
// Force entries in other replace those in o. Either side may be nil.
func (o *Options) Merge(other *Options) *Options {
	out := &Options{}
	for _, src := range []*Options{o, other} {
		if src == nil {
			continue
		}
		out.Keep = append(out.Keep, src.Keep...)
		for c, repl := range src.Force {
			if out.Force == nil {
				out.Force = make(map[rune]string)
			}
			out.Force[c] = repl
		}
	}
	return out
}

// resolved is Options flattened to code-unit lookups.
type resolved struct {
	keep       map[uint16]struct{}
	force      map[uint16]string
	forcePairs map[rune]string
}

func (o *Options) resolve() resolved {
	var r resolved
	if o == nil {
		return r
	}
	if len(o.Keep) > 0 {
		r.keep = make(map[uint16]struct{}, len(o.Keep))
		for _, c := range o.Keep {
			for _, u := range codeUnits(c) {
				r.keep[u] = struct{}{}
			}
		}
	}
	for c, repl := range o.Force {
		if c > 0xFFFF && c <= 0x10FFFF {
			if r.forcePairs == nil {
				r.forcePairs = make(map[rune]string)
			}
			r.forcePairs[c] = repl
			continue
		}
		if c < 0 || c > 0xFFFF {
			continue
		}
		if r.force == nil {
			r.force = make(map[uint16]string, len(o.Force))
		}
		r.force[uint16(c)] = repl
	}
	return r
}

func (r resolved) kept(u uint16) bool {
	_, ok := r.keep[u]
	return ok
}

// Encoder escapes strings using a swappable reference table.
// The zero value is not usable; construct one with New.
type Encoder struct {
	table Table
}

// New returns an Encoder backed by table. A nil table selects HTMLTable.
func New(table Table) *Encoder {
	if table == nil {
		table = HTMLTable
	}
	return &Encoder{table: table}
}

var defaultEncoder = New(HTMLTable)

// Encode escapes text with HTMLTable. See Encoder.Encode.
func Encode(text string, opts *Options) string {
	return defaultEncoder.Encode(text, opts)
}

// Encode returns text with every escapable code unit replaced by a
// lowercase, zero-padded \uXXXX escape. For each unit the first matching
// rule wins: Keep, Force, then the table; anything else is copied as is.
func (e *Encoder) Encode(text string, opts *Options) string {
	o := opts.resolve()
	units := utf16.Encode([]rune(text))

	var out strings.Builder
	out.Grow(len(text))

	// Literal units are buffered so a kept surrogate pair is decoded back
	// into its character.
	var lit []uint16
	flush := func() {
		if len(lit) > 0 {
			out.WriteString(string(utf16.Decode(lit)))
			lit = lit[:0]
		}
	}

	for i := 0; i < len(units); i++ {
		u := units[i]
		if o.kept(u) {
			lit = append(lit, u)
			continue
		}
		if o.forcePairs != nil && utf16.IsSurrogate(rune(u)) && i+1 < len(units) {
			if repl, ok := o.forcePairs[utf16.DecodeRune(rune(u), rune(units[i+1]))]; ok {
				flush()
				out.WriteString(repl)
				i++
				continue
			}
		}
		if repl, ok := o.force[u]; ok {
			flush()
			out.WriteString(repl)
			continue
		}
		if ref, ok := e.table.Lookup(u); ok && unitLen(ref) > 1 {
			flush()
			writeEscape(&out, refCodePoint(ref, u))
			continue
		}
		lit = append(lit, u)
	}
	flush()
	return out.String()
}

// EncodeValue is Encode for untyped input such as decoded JSON.
func EncodeValue(v any, opts *Options) (string, error) {
	return defaultEncoder.EncodeValue(v, opts)
}

// EncodeValue is Encode for untyped input. Any value whose kind is string,
// including named string types, is accepted; anything else fails with an
// error wrapping ErrInvalidArgument.
func (e *Encoder) EncodeValue(v any, opts *Options) (string, error) {
	s, ok := stringValue(v)
	if !ok {
		return "", fmt.Errorf("ansiencode.Encode: %w", ErrInvalidArgument)
	}
	return e.Encode(s, opts), nil
}

func stringValue(v any) (string, bool) {
	if s, ok := v.(string); ok {
		return s, true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.String {
		return rv.String(), true
	}
	return "", false
}

// unitLen is the length of s in UTF-16 code units.
func unitLen(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// codeUnits returns the UTF-16 units of c. Surrogate code points are
// returned unchanged so callers can name a single half.
func codeUnits(c rune) []uint16 {
	if c >= 0 && c <= 0xFFFF {
		return []uint16{uint16(c)}
	}
	if hi, lo := utf16.EncodeRune(c); hi != 0xFFFD || lo != 0xFFFD {
		return []uint16{uint16(hi), uint16(lo)}
	}
	return nil
}

// refCodePoint extracts the numeric value of a character reference.
// Named references carry no number, so the unit itself is used.
func refCodePoint(ref string, unit uint16) uint64 {
	body, ok := strings.CutPrefix(ref, "&#")
	if !ok {
		return uint64(unit)
	}
	base := 10
	if len(body) > 0 && (body[0] == 'x' || body[0] == 'X') {
		base = 16
		body = body[1:]
	}
	body, _, _ = strings.Cut(body, ";")
	n, err := strconv.ParseUint(body, base, 32)
	if err != nil {
		return uint64(unit)
	}
	return n
}

func writeEscape(b *strings.Builder, cp uint64) {
	hex := strconv.FormatUint(cp, 16)
	b.WriteString(`\u`)
	for i := len(hex); i < 4; i++ {
		b.WriteByte('0')
	}
	b.WriteString(hex)
}

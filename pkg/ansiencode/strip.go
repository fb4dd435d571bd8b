package ansiencode

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// encodedSGR describes an escaped color code such as \u001b[32m, one slot
// per UTF-16 code unit: a backslash, a non-digit, four characters, '[', a
// digit, one more character and 'm' or 'M'. It is a heuristic tuned to
// two-digit SGR parameters, not a CSI parser. A character outside the BMP
// fills two slots.
var encodedSGR = [...]func(uint16) bool{
	func(u uint16) bool { return u == '\\' },
	func(u uint16) bool { return !isDigit(u) },
	anyUnit, anyUnit, anyUnit, anyUnit,
	func(u uint16) bool { return u == '[' },
	isDigit,
	anyUnit,
	func(u uint16) bool { return u == 'm' || u == 'M' },
}

func isDigit(u uint16) bool { return u >= '0' && u <= '9' }

// anyUnit matches every unit except line terminators.
func anyUnit(u uint16) bool {
	return u != '\n' && u != '\r' && u != 0x2028 && u != 0x2029
}

// matchEncodedSGR returns the byte length of the escaped color code at the
// start of s, or 0 if there is none.
func matchEncodedSGR(s string) int {
	slot, i := 0, 0
	for slot < len(encodedSGR) {
		if i >= len(s) {
			return 0
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		units := codeUnits(r)
		if slot+len(units) > len(encodedSGR) {
			return 0
		}
		for _, u := range units {
			if !encodedSGR[slot](u) {
				return 0
			}
			slot++
		}
		i += size
	}
	return i
}

// StripEncoded removes escaped color codes from text, typically the output
// of Encode. Matches are found left to right without overlap. Everything
// else is kept verbatim.
func StripEncoded(text string) string {
	var b strings.Builder
	last := 0
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '\\')
		if j < 0 {
			break
		}
		i += j
		if n := matchEncodedSGR(text[i:]); n > 0 {
			b.WriteString(text[last:i])
			i += n
			last = i
			continue
		}
		i++
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

// Strip removes color codes from raw text by encoding it with HTMLTable and
// no options, then stripping the escaped codes. The result is therefore
// still in encoded form.
func Strip(text string) string {
	return defaultEncoder.Strip(text)
}

// Strip is the package-level Strip using e's table.
func (e *Encoder) Strip(text string) string {
	return StripEncoded(e.Encode(text, nil))
}

// StripEncodedValue is StripEncoded for untyped input. Named string types
// are accepted.
func StripEncodedValue(v any) (string, error) {
	s, ok := stringValue(v)
	if !ok {
		return "", fmt.Errorf("ansiencode.StripEncoded: %w", ErrInvalidArgument)
	}
	return StripEncoded(s), nil
}

// StripValue is Strip for untyped input.
func StripValue(v any) (string, error) {
	return defaultEncoder.StripValue(v)
}

// StripValue is Strip for untyped input using e's table.
func (e *Encoder) StripValue(v any) (string, error) {
	s, ok := stringValue(v)
	if !ok {
		return "", fmt.Errorf("ansiencode.Strip: %w", ErrInvalidArgument)
	}
	return e.Strip(s), nil
}

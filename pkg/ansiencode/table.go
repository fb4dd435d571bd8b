package ansiencode

import "fmt"

// Table maps a single UTF-16 code unit to a character reference such as
// "&#x1B;". A reference of at most one UTF-16 code unit, or ok == false,
// means the unit is not escapable.
type Table interface {
	Lookup(unit uint16) (ref string, ok bool)
}

// TableFunc adapts an ordinary function to the Table interface.
type TableFunc func(unit uint16) (string, bool)

// Lookup calls f(unit).
func (f TableFunc) Lookup(unit uint16) (string, bool) { return f(unit) }

// HTMLTable reproduces the default behaviour of an HTML entity encoder that
// emits hexadecimal numeric references: the markup-unsafe symbols
// " & ' < > ` and every code unit that is not printable ASCII are escaped,
// except NUL, LF, CR and the C1 units browsers remap through windows-1252.
var HTMLTable Table = TableFunc(htmlLookup)

// ControlTable escapes only control characters (C0 except LF and CR, DEL and
// C1). Non-ASCII text and markup symbols pass through.
var ControlTable Table = TableFunc(controlLookup)

func htmlLookup(unit uint16) (string, bool) {
	if !htmlEscapable(unit) {
		return "", false
	}
	return hexRef(unit), true
}

func htmlEscapable(unit uint16) bool {
	switch unit {
	case '"', '&', '\'', '<', '>', '`':
		return true
	case 0x0B, 0x0C, 0x7F, 0x81, 0x8D, 0x8F, 0x90, 0x9D:
		return true
	}
	switch {
	case unit >= 0x01 && unit <= 0x09:
		return true
	case unit >= 0x0E && unit <= 0x1F:
		return true
	case unit >= 0xA0:
		return true
	}
	return false
}

func controlLookup(unit uint16) (string, bool) {
	switch {
	case unit == '\n', unit == '\r':
		return "", false
	case unit < 0x20, unit >= 0x7F && unit <= 0x9F:
		return hexRef(unit), true
	}
	return "", false
}

func hexRef(unit uint16) string {
	return fmt.Sprintf("&#x%X;", unit)
}

package lib

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

/*
	This file implements the canonical encoding that block hashes are computed over.
	The output is byte-for-byte what a sorted-key JSON encoder with ", " and ": " separators
	and ASCII-only escaping produces, so replicas written in other languages derive the same hash.
*/

// CanonicalField is a single key/value pair of a canonical object
type CanonicalField struct {
	Key   string
	Value any
}

// CanonicalEncoder writes values in the canonical encoding
type CanonicalEncoder struct {
	sb strings.Builder
}

// String() returns the encoded bytes written so far
func (e *CanonicalEncoder) String() string { return e.sb.String() }

// Bytes() returns the encoded bytes written so far
func (e *CanonicalEncoder) Bytes() []byte { return []byte(e.sb.String()) }

// Encode() writes a value, supported types are the ones that appear in a Block
func (e *CanonicalEncoder) Encode(v any) {
	switch x := v.(type) {
	case nil:
		e.sb.WriteString("null")
	case bool:
		e.sb.WriteString(strconv.FormatBool(x))
	case string:
		e.EncodeString(x)
	case int:
		e.sb.WriteString(strconv.FormatInt(int64(x), 10))
	case int64:
		e.sb.WriteString(strconv.FormatInt(x, 10))
	case uint64:
		e.sb.WriteString(strconv.FormatUint(x, 10))
	case float64:
		e.EncodeFloat(x)
	case []CanonicalField:
		e.EncodeObject(x)
	case []any:
		e.sb.WriteByte('[')
		for i, item := range x {
			if i != 0 {
				e.sb.WriteString(", ")
			}
			e.Encode(item)
		}
		e.sb.WriteByte(']')
	case CanonicalEncodable:
		e.EncodeObject(x.CanonicalFields())
	default:
		e.sb.WriteString("null")
	}
}

// CanonicalEncodable is implemented by types that describe themselves as a canonical object
type CanonicalEncodable interface {
	CanonicalFields() []CanonicalField
}

// EncodeObject() writes the fields sorted by key
func (e *CanonicalEncoder) EncodeObject(fields []CanonicalField) {
	sorted := make([]CanonicalField, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	e.sb.WriteByte('{')
	for i, f := range sorted {
		if i != 0 {
			e.sb.WriteString(", ")
		}
		e.EncodeString(f.Key)
		e.sb.WriteString(": ")
		e.Encode(f.Value)
	}
	e.sb.WriteByte('}')
}

// EncodeFloat() writes the shortest round-trip representation, integral values keep a '.0'
func (e *CanonicalEncoder) EncodeFloat(f float64) {
	switch {
	case math.IsNaN(f):
		e.sb.WriteString("NaN")
		return
	case math.IsInf(f, 1):
		e.sb.WriteString("Infinity")
		return
	case math.IsInf(f, -1):
		e.sb.WriteString("-Infinity")
		return
	}
	// the decimal exponent of the shortest representation decides the notation
	sci := strconv.FormatFloat(f, 'e', -1, 64)
	exp, _ := strconv.Atoi(sci[strings.IndexByte(sci, 'e')+1:])
	if exp < -4 || exp >= 16 {
		e.sb.WriteString(sci)
		return
	}
	fixed := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(fixed, '.') {
		fixed += ".0"
	}
	e.sb.WriteString(fixed)
}

// EncodeString() writes a quoted string escaping everything outside of printable ASCII
func (e *CanonicalEncoder) EncodeString(s string) {
	const hex = "0123456789abcdef"
	writeU := func(r rune) {
		e.sb.WriteString(`\u`)
		for shift := 12; shift >= 0; shift -= 4 {
			e.sb.WriteByte(hex[(r>>uint(shift))&0xF])
		}
	}
	e.sb.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"':
			e.sb.WriteString(`\"`)
		case r == '\\':
			e.sb.WriteString(`\\`)
		case r == '\n':
			e.sb.WriteString(`\n`)
		case r == '\r':
			e.sb.WriteString(`\r`)
		case r == '\t':
			e.sb.WriteString(`\t`)
		case r == '\b':
			e.sb.WriteString(`\b`)
		case r == '\f':
			e.sb.WriteString(`\f`)
		case r < 0x20:
			writeU(r)
		case r < 0x80:
			e.sb.WriteRune(r)
		case r > 0xFFFF:
			r1, r2 := utf16.EncodeRune(r)
			writeU(r1)
			writeU(r2)
		default:
			writeU(r)
		}
	}
	e.sb.WriteByte('"')
}

// CanonicalBytes() returns the canonical encoding of v
func CanonicalBytes(v any) []byte {
	e := new(CanonicalEncoder)
	e.Encode(v)
	return e.Bytes()
}

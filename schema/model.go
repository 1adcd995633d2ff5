// Package schema holds the in-memory, validated representation of a
// message schema: enumerations, bitfields, compound types and messages.
// A Schema is built once by Load and is immutable afterwards; the codec,
// emitter and transaction packages all operate against it by reference.
package schema

import "math/bits"

// EnumEntry is one named value of an Enum.
type EnumEntry struct {
	Name  string
	Value uint64
	Desc  string
}

// Enum is an ordered, named set of integer values. BitWidth is derived
// from the largest entry value and drives the storage width of any Bit
// that attaches this Enum.
type Enum struct {
	Name    string
	Desc    string
	Entries []EnumEntry
}

// BitWidth returns ceil(log2(max_value+1)), the minimum number of bits
// needed to represent every entry value.
func (e *Enum) BitWidth() uint {
	var maxVal uint64
	for _, entry := range e.Entries {
		if entry.Value > maxVal {
			maxVal = entry.Value
		}
	}
	if maxVal == 0 {
		return 1
	}
	return uint(bits.Len64(maxVal))
}

// ValueSet returns the set of entry values, for enum-domain validation and
// random sampling.
func (e *Enum) ValueSet() []uint64 {
	out := make([]uint64, len(e.Entries))
	for i, entry := range e.Entries {
		out[i] = entry.Value
	}
	return out
}

// EntryByValue looks up the entry matching a decoded integer, for decoding
// an enum-annotated primitive back into its symbolic name.
func (e *Enum) EntryByValue(v uint64) (EnumEntry, bool) {
	for _, entry := range e.Entries {
		if entry.Value == v {
			return entry, true
		}
	}
	return EnumEntry{}, false
}

// Bit is one named, non-overlapping slice of a Bitfield's backing word.
// Position is the LSB index. If Enum is non-nil, Width is overridden at
// resolve time to Enum.BitWidth().
type Bit struct {
	Name     string
	Position uint
	Width    uint
	Desc     string
	Enum     *Enum // nil if untyped
}

// Bitfield is a word-sized container of non-overlapping Bits. Bits are
// listed in declaration order but displayed MSB-first by PrintOrder.
type Bitfield struct {
	Name string
	Desc string
	Bits []Bit
}

// HighBit returns the highest occupied bit index across all Bits.
func (b *Bitfield) HighBit() uint {
	var high uint
	for _, bit := range b.Bits {
		top := bit.Position + bit.Width - 1
		if top > high {
			high = top
		}
	}
	return high
}

// StoragePrimitive returns the smallest unsigned primitive width in bits
// (8, 16 or 32) that fits HighBit.
func (b *Bitfield) StoragePrimitive() uint {
	switch high := b.HighBit(); {
	case high < 8:
		return 8
	case high < 16:
		return 16
	default:
		return 32
	}
}

// PrintOrder returns Bits sorted MSB-first, for documentation/emission.
func (b *Bitfield) PrintOrder() []Bit {
	out := make([]Bit, len(b.Bits))
	copy(out, b.Bits)
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Position > out[i].Position {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out
}

// ArrayLen describes a Field's array-ness.
type ArrayLen struct {
	Present  bool
	Variable bool
	N        uint // meaningful only when Present && !Variable
}

// Field is one member of a Message or CompoundType.
type Field struct {
	Name     string
	TypeStr  string // raw declared type string, e.g. "uint16[]"
	Desc     string
	EnumName string // raw "enum:" reference, resolved to Enum below

	// Resolved at schema-load time.
	BaseType string
	Array    ArrayLen
	Enum     *Enum       // non-nil iff EnumName was set and resolved
	Bitfield *Bitfield   // non-nil iff BaseType names a Bitfield
	Compound *CompoundType // non-nil iff BaseType names a Message or CompoundType

	layout FieldLayout // computed by resolveLayout
}

// CompoundType is a named record of Fields with no identifier. It can only
// be serialized as a field of a Message (or of another CompoundType).
type CompoundType struct {
	Name   string
	Desc   string
	Fields []Field
	ID     *uint64 // always nil for a CompoundType; see Message
}

// IsMessage reports whether this type carries an id and is therefore
// transmissible on its own.
func (c *CompoundType) IsMessage() bool { return c.ID != nil }

// FixedSize returns the total encoded size of c in bytes and true, or
// (0, false) if c contains a variable-length field anywhere (directly, or
// transitively through a nested compound). A variable-length trailing
// array of compounds requires its element type to report ok == true here;
// see resolveLayout.
func (c *CompoundType) FixedSize() (uint, bool) {
	var total uint
	for _, f := range c.Fields {
		switch f.layout.Kind {
		case KindPrimitive, KindBitfield:
			total += f.layout.ElementSize
		case KindPrimitiveArray:
			if f.layout.Count == CountVariable {
				return 0, false
			}
			total += f.layout.ElementSize * f.layout.FixedCount
		case KindCompound:
			sz, ok := f.Compound.FixedSize()
			if !ok {
				return 0, false
			}
			total += sz
		case KindCompoundArray:
			if f.layout.Count == CountVariable {
				return 0, false
			}
			sz, ok := f.Compound.FixedSize()
			if !ok {
				return 0, false
			}
			total += sz * f.layout.FixedCount
		}
	}
	return total, true
}

// isVariable reports whether f contributes a variable amount of data to
// its containing CompoundType's encoding: either directly (a "[]"
// array) or transitively (a nested compound with no FixedSize).
func (f *Field) isVariable() bool {
	switch f.layout.Kind {
	case KindPrimitiveArray, KindCompoundArray:
		return f.layout.Count == CountVariable
	case KindCompound:
		_, ok := f.Compound.FixedSize()
		return !ok
	default:
		return false
	}
}

// Message is a CompoundType with an assigned identifier.
type Message = CompoundType

// Schema is the fully resolved, validated model built by Load.
type Schema struct {
	Enums     []*Enum
	Bitfields []*Bitfield
	Types     []*CompoundType // compounds without an id
	Messages  []*CompoundType // compounds with an id

	enumByName     map[string]*Enum
	bitfieldByName map[string]*Bitfield
	typeByName     map[string]*CompoundType // types ∪ messages, by name
	messageByID    map[uint64]*CompoundType
}

// EnumByName looks up a schema-level enum.
func (s *Schema) EnumByName(name string) (*Enum, bool) {
	e, ok := s.enumByName[name]
	return e, ok
}

// BitfieldByName looks up a schema-level bitfield.
func (s *Schema) BitfieldByName(name string) (*Bitfield, bool) {
	b, ok := s.bitfieldByName[name]
	return b, ok
}

// TypeByName looks up a compound type or message by name.
func (s *Schema) TypeByName(name string) (*CompoundType, bool) {
	t, ok := s.typeByName[name]
	return t, ok
}

// MessageByID looks up a message by its wire identifier.
func (s *Schema) MessageByID(id uint64) (*CompoundType, bool) {
	m, ok := s.messageByID[id]
	return m, ok
}

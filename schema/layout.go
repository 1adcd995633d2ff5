package schema

import "fmt"

// WireFormat is the little-endian primitive code used on the wire, or
// FormatBytes for a nested compound whose own fields supply the bytes.
type WireFormat int

const (
	FormatU8 WireFormat = iota
	FormatI8
	FormatU16
	FormatI16
	FormatU32
	FormatI32
	FormatBytes // nested compound
)

func (f WireFormat) String() string {
	switch f {
	case FormatU8:
		return "u8"
	case FormatI8:
		return "i8"
	case FormatU16:
		return "u16"
	case FormatI16:
		return "i16"
	case FormatU32:
		return "u32"
	case FormatI32:
		return "i32"
	case FormatBytes:
		return "bytes"
	default:
		return "?"
	}
}

// CountMode is how many elements a Field carries.
type CountMode int

const (
	CountOne CountMode = iota
	CountFixed
	CountVariable
)

// Kind is the closed set of shapes a Field's value can take, replacing
// the teacher's open, reflection-discovered FieldType switch with a
// statically enumerated tag.
type Kind int

const (
	KindPrimitive Kind = iota
	KindPrimitiveArray
	KindBitfield
	KindCompound
	KindCompoundArray
)

// FieldLayout is the resolved, read-only wire description of a Field,
// computed once by resolveLayout and cached on the Field.
type FieldLayout struct {
	Kind            Kind
	WireFormat      WireFormat
	ElementSize     uint // bytes per element
	Count           CountMode
	FixedCount      uint // meaningful iff Count == CountFixed
	BitfieldStorage uint // backing primitive width in bits, iff Kind == KindBitfield
	EnumDomain      []uint64
}

// Layout returns the resolved wire layout for this field. Load always
// resolves every field's layout before returning, so this is safe to call
// on any Field obtained from a *Schema.
func (f *Field) Layout() FieldLayout { return f.layout }

var primitiveFormats = map[string]WireFormat{
	"uint8":  FormatU8,
	"int8":   FormatI8,
	"uint16": FormatU16,
	"int16":  FormatI16,
	"uint32": FormatU32,
	"int32":  FormatI32,
}

var primitiveSizes = map[WireFormat]uint{
	FormatU8:  1,
	FormatI8:  1,
	FormatU16: 2,
	FormatI16: 2,
	FormatU32: 4,
	FormatI32: 4,
}

func isPrimitiveName(s string) bool {
	_, ok := primitiveFormats[s]
	return ok
}

// PrimitiveRange returns the inclusive value domain of a primitive wire
// format: [0, 2^w-1] for unsigned, [-2^(w-1), 2^(w-1)-1] for signed.
func PrimitiveRange(f WireFormat) (lo int64, hi int64) {
	switch f {
	case FormatU8:
		return 0, 0xFF
	case FormatI8:
		return -0x80, 0x7F
	case FormatU16:
		return 0, 0xFFFF
	case FormatI16:
		return -0x8000, 0x7FFF
	case FormatU32:
		return 0, 0xFFFFFFFF
	case FormatI32:
		return -0x80000000, 0x7FFFFFFF
	default:
		return 0, 0
	}
}

// resolveLayout fills in f.layout. It assumes BaseType/Array/Enum/Bitfield/
// Compound have already been resolved by the loader.
func (f *Field) resolveLayout() error {
	switch {
	case f.Bitfield != nil:
		storage := f.Bitfield.StoragePrimitive()
		var wf WireFormat
		switch storage {
		case 8:
			wf = FormatU8
		case 16:
			wf = FormatU16
		default:
			wf = FormatU32
		}
		f.layout = FieldLayout{
			Kind:            KindBitfield,
			WireFormat:      wf,
			ElementSize:     storage / 8,
			Count:           CountOne,
			BitfieldStorage: storage,
		}
		return nil

	case f.Compound != nil:
		kind := KindCompound
		count := CountOne
		var fixedCount, elemSize uint
		switch {
		case f.Array.Present && f.Array.Variable:
			kind = KindCompoundArray
			count = CountVariable
			size, ok := f.Compound.FixedSize()
			if !ok {
				return fmt.Errorf("variable-length array of %q requires a statically-sized element type", f.Compound.Name)
			}
			elemSize = size
		case f.Array.Present:
			kind = KindCompoundArray
			count = CountFixed
			fixedCount = f.Array.N
		}
		f.layout = FieldLayout{
			Kind:        kind,
			WireFormat:  FormatBytes,
			Count:       count,
			FixedCount:  fixedCount,
			ElementSize: elemSize,
		}
		return nil

	case isPrimitiveName(f.BaseType):
		wf := primitiveFormats[f.BaseType]
		size := primitiveSizes[wf]

		var domain []uint64
		if f.Enum != nil {
			domain = f.Enum.ValueSet()
		}

		if !f.Array.Present {
			f.layout = FieldLayout{
				Kind:        KindPrimitive,
				WireFormat:  wf,
				ElementSize: size,
				Count:       CountOne,
				EnumDomain:  domain,
			}
			return nil
		}

		count := CountFixed
		var fixedCount uint
		if f.Array.Variable {
			count = CountVariable
		} else {
			fixedCount = f.Array.N
		}

		f.layout = FieldLayout{
			Kind:        KindPrimitiveArray,
			WireFormat:  wf,
			ElementSize: size,
			Count:       count,
			FixedCount:  fixedCount,
			EnumDomain:  domain,
		}
		return nil

	default:
		return fmt.Errorf("schema: cannot resolve layout for field %q with base type %q", f.Name, f.BaseType)
	}
}

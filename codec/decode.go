package codec

import (
	"github.com/delwen/slipmsg/schema"
)

// reader walks buf front-to-back, tracking how many bytes decodeCompound
// has consumed so the top-level caller can detect leftover bytes.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) remaining() int { return len(r.buf) - r.pos }

func (r *reader) take(n int, where string) ([]byte, error) {
	if r.remaining() < n {
		return nil, newErr(ShortBuffer, where, "not enough bytes remain to decode this field")
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Decode consumes buf against t's field layout and returns the resulting
// Value. Any bytes left over once every field (including a trailing
// variable-length one) has been decoded is reported as ExcessBuffer.
func Decode(t *schema.CompoundType, buf []byte) (*Value, error) {
	r := &reader{buf: buf}
	v, err := decodeCompound(t, r)
	if err != nil {
		return nil, err
	}
	if r.remaining() != 0 {
		return nil, newErr(ExcessBuffer, t.Name, "trailing bytes left after decoding all fields")
	}
	return v, nil
}

func decodeCompound(t *schema.CompoundType, r *reader) (*Value, error) {
	v := &Value{Type: t, Fields: make(map[string]any, len(t.Fields))}

	for i := range t.Fields {
		f := &t.Fields[i]
		val, err := decodeField(f, r)
		if err != nil {
			return nil, err
		}
		v.Fields[f.Name] = val
	}

	return v, nil
}

// decodeField decodes one field. Schema validation (see
// validateSingleTrailingVariableField) guarantees that at most one field
// of a CompoundType is variable-length and that it is always the last
// one, so a field's own layout (Count == CountVariable, or a nested
// compound whose FixedSize is unknown) is enough to tell decodeField to
// consume everything left in r rather than a statically known size —
// no positional bookkeeping from decodeCompound is needed.
func decodeField(f *schema.Field, r *reader) (any, error) {
	layout := f.Layout()

	switch layout.Kind {
	case schema.KindPrimitive:
		raw, err := r.take(int(layout.ElementSize), f.Name)
		if err != nil {
			return nil, err
		}
		n := readUint(layout.WireFormat, raw)
		if f.Enum != nil {
			if _, ok := f.Enum.EntryByValue(uint64(n)); !ok {
				return nil, newErr(UnknownEnumValue, f.Name, "decoded value is not a member of its enum")
			}
		}
		return n, nil

	case schema.KindPrimitiveArray:
		count := int(layout.FixedCount)
		if layout.Count == schema.CountVariable {
			elemSize := int(layout.ElementSize)
			if elemSize == 0 || r.remaining()%elemSize != 0 {
				return nil, newErr(ExcessBuffer, f.Name, "remaining bytes are not a whole number of elements")
			}
			count = r.remaining() / elemSize
		}
		items := make([]int64, count)
		for i := 0; i < count; i++ {
			raw, err := r.take(int(layout.ElementSize), f.Name)
			if err != nil {
				return nil, err
			}
			items[i] = readUint(layout.WireFormat, raw)
		}
		return items, nil

	case schema.KindBitfield:
		raw, err := r.take(int(layout.ElementSize), f.Name)
		if err != nil {
			return nil, err
		}
		word := uint64(readUint(layout.WireFormat, raw))
		bitsOut := make(map[string]uint64, len(f.Bitfield.Bits))
		for _, bit := range f.Bitfield.Bits {
			mask := uint64(1)<<bit.Width - 1
			val := (word >> bit.Position) & mask
			if bit.Enum != nil {
				if _, ok := bit.Enum.EntryByValue(val); !ok {
					return nil, newErr(UnknownEnumValue, bit.Name, "decoded bit value is not a member of its enum")
				}
			}
			bitsOut[bit.Name] = val
		}
		return bitsOut, nil

	case schema.KindCompound:
		if size, ok := f.Compound.FixedSize(); ok {
			sub, err := r.take(int(size), f.Name)
			if err != nil {
				return nil, err
			}
			return decodeCompound(f.Compound, &reader{buf: sub})
		}
		return decodeCompound(f.Compound, r)

	case schema.KindCompoundArray:
		count := int(layout.FixedCount)
		if layout.Count == schema.CountVariable {
			elemSize := int(layout.ElementSize)
			if elemSize == 0 || r.remaining()%elemSize != 0 {
				return nil, newErr(ExcessBuffer, f.Name, "remaining bytes are not a whole number of elements")
			}
			count = r.remaining() / elemSize
		}
		items := make([]*Value, count)
		elemSize, _ := f.Compound.FixedSize()
		for i := 0; i < count; i++ {
			sub, err := r.take(int(elemSize), f.Name)
			if err != nil {
				return nil, err
			}
			child, err := decodeCompound(f.Compound, &reader{buf: sub})
			if err != nil {
				return nil, err
			}
			items[i] = child
		}
		return items, nil

	default:
		return nil, newErr(OutOfRangeValue, f.Name, "unresolved field kind")
	}
}

// readUint reinterprets raw (exactly layout.ElementSize bytes, little
// endian) as a signed or unsigned value per wf, sign-extending for the
// signed formats.
func readUint(wf schema.WireFormat, raw []byte) int64 {
	switch wf {
	case schema.FormatU8:
		return int64(raw[0])
	case schema.FormatI8:
		return int64(int8(raw[0]))
	case schema.FormatU16:
		return int64(uint16(raw[0]) | uint16(raw[1])<<8)
	case schema.FormatI16:
		return int64(int16(uint16(raw[0]) | uint16(raw[1])<<8))
	case schema.FormatU32:
		return int64(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24)
	case schema.FormatI32:
		return int64(int32(uint32(raw[0]) | uint32(raw[1])<<8 | uint32(raw[2])<<16 | uint32(raw[3])<<24))
	default:
		return 0
	}
}

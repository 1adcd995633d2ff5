package codec

import (
	"bytes"
	"fmt"

	"github.com/delwen/slipmsg/schema"
)

// Encode serializes v into its little-endian, unpadded wire
// representation. Fields are written in declaration order; a trailing
// variable-length field (primitive array, compound array, or a nested
// compound that itself ends in one) contributes no length prefix of its
// own — the frame or transaction layer is expected to delimit the whole
// message, and the decoder consumes whatever remains.
func Encode(v *Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeFields(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeFields(buf *bytes.Buffer, v *Value) error {
	for _, f := range v.Type.Fields {
		raw := v.Fields[f.Name]
		if err := encodeField(buf, &f, raw); err != nil {
			return err
		}
	}
	return nil
}

func encodeField(buf *bytes.Buffer, f *schema.Field, raw any) error {
	layout := f.Layout()

	switch layout.Kind {
	case schema.KindPrimitive:
		writeUint(buf, layout.WireFormat, raw.(int64))
		return nil

	case schema.KindPrimitiveArray:
		items := raw.([]int64)
		for _, n := range items {
			writeUint(buf, layout.WireFormat, n)
		}
		return nil

	case schema.KindBitfield:
		bits := raw.(map[string]uint64)
		var word uint64
		for _, bit := range f.Bitfield.Bits {
			mask := uint64(1)<<bit.Width - 1
			word |= (bits[bit.Name] & mask) << bit.Position
		}
		writeUint(buf, layout.WireFormat, int64(word))
		return nil

	case schema.KindCompound:
		child := raw.(*Value)
		return encodeFields(buf, child)

	case schema.KindCompoundArray:
		items := raw.([]*Value)
		for _, child := range items {
			if err := encodeFields(buf, child); err != nil {
				return err
			}
		}
		return nil

	default:
		return newErr(OutOfRangeValue, f.Name, "unresolved field kind")
	}
}

// writeUint appends n's little-endian representation per wf's width. n
// has already been range-checked by NewValue, so truncation here is a
// reinterpretation of the bit pattern, not data loss.
func writeUint(buf *bytes.Buffer, wf schema.WireFormat, n int64) {
	u := uint32(n)
	switch wf {
	case schema.FormatU8, schema.FormatI8:
		buf.WriteByte(byte(u))
	case schema.FormatU16, schema.FormatI16:
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
	case schema.FormatU32, schema.FormatI32:
		buf.WriteByte(byte(u))
		buf.WriteByte(byte(u >> 8))
		buf.WriteByte(byte(u >> 16))
		buf.WriteByte(byte(u >> 24))
	default:
		panic(fmt.Sprintf("codec: writeUint: unhandled wire format %v", wf))
	}
}

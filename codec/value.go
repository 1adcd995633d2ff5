package codec

import (
	"fmt"

	"github.com/delwen/slipmsg/schema"
)

// Value is a runtime instance of a Message or CompoundType: a set of
// field values keyed by field name. It is the generic, schema-described
// counterpart to the struct the Emitter's generated runtime would carry
// per message — the codec engine operates against *Value so it never
// needs message-specific generated code to encode or decode.
//
// Field value representations, by schema.Kind:
//
//	KindPrimitive       int64
//	KindPrimitiveArray  []int64
//	KindBitfield        map[string]uint64 (bit name -> raw value)
//	KindCompound        *Value
//	KindCompoundArray   []*Value
type Value struct {
	Type   *schema.CompoundType
	Fields map[string]any
}

// NewValue validates fields against t's field layouts (range and enum
// membership) and returns a *Value, or a codec.Error on the first
// violation.
func NewValue(t *schema.CompoundType, fields map[string]any) (*Value, error) {
	v := &Value{Type: t, Fields: make(map[string]any, len(t.Fields))}

	for _, f := range t.Fields {
		raw, ok := fields[f.Name]
		if !ok {
			return nil, newErr(OutOfRangeValue, f.Name, "missing required field value")
		}

		validated, err := validateFieldValue(&f, raw)
		if err != nil {
			return nil, err
		}
		v.Fields[f.Name] = validated
	}

	return v, nil
}

func validateFieldValue(f *schema.Field, raw any) (any, error) {
	layout := f.Layout()

	switch layout.Kind {
	case schema.KindPrimitive:
		n, ok := toInt64(raw)
		if !ok {
			return nil, newErr(OutOfRangeValue, f.Name, "expected an integer value")
		}
		if err := checkPrimitiveDomain(f, layout, n); err != nil {
			return nil, err
		}
		return n, nil

	case schema.KindPrimitiveArray:
		items, ok := raw.([]int64)
		if !ok {
			conv, convOk := toInt64Slice(raw)
			if !convOk {
				return nil, newErr(OutOfRangeValue, f.Name, "expected a slice of integers")
			}
			items = conv
		}
		if layout.Count == schema.CountFixed && uint(len(items)) != layout.FixedCount {
			return nil, newErr(OutOfRangeValue, f.Name, fmt.Sprintf("expected %d elements, got %d", layout.FixedCount, len(items)))
		}
		for _, n := range items {
			if err := checkPrimitiveDomain(f, layout, n); err != nil {
				return nil, err
			}
		}
		return items, nil

	case schema.KindBitfield:
		bits, ok := raw.(map[string]uint64)
		if !ok {
			return nil, newErr(OutOfRangeValue, f.Name, "expected a map of bit name to value")
		}
		for _, bit := range f.Bitfield.Bits {
			val, present := bits[bit.Name]
			if !present {
				return nil, newErr(OutOfRangeValue, bit.Name, "missing bit value")
			}
			if bit.Enum != nil {
				if _, ok := bit.Enum.EntryByValue(val); !ok {
					return nil, newErr(UnknownEnumValue, bit.Name, fmt.Sprintf("value %d is not a member of enum %q", val, bit.Enum.Name))
				}
			} else if val >= (uint64(1) << bit.Width) {
				return nil, newErr(OutOfRangeValue, bit.Name, fmt.Sprintf("value %d does not fit in %d bits", val, bit.Width))
			}
		}
		return bits, nil

	case schema.KindCompound:
		child, ok := raw.(*Value)
		if !ok {
			return nil, newErr(OutOfRangeValue, f.Name, "expected a nested value")
		}
		return child, nil

	case schema.KindCompoundArray:
		items, ok := raw.([]*Value)
		if !ok {
			return nil, newErr(OutOfRangeValue, f.Name, "expected a slice of nested values")
		}
		if layout.Count == schema.CountFixed && uint(len(items)) != layout.FixedCount {
			return nil, newErr(OutOfRangeValue, f.Name, fmt.Sprintf("expected %d elements, got %d", layout.FixedCount, len(items)))
		}
		return items, nil

	default:
		return nil, newErr(OutOfRangeValue, f.Name, "unresolved field kind")
	}
}

func checkPrimitiveDomain(f *schema.Field, layout schema.FieldLayout, n int64) error {
	if f.Enum != nil {
		if _, ok := f.Enum.EntryByValue(uint64(n)); !ok {
			return newErr(UnknownEnumValue, f.Name, fmt.Sprintf("value %d is not a member of enum %q", n, f.Enum.Name))
		}
		return nil
	}
	lo, hi := schema.PrimitiveRange(layout.WireFormat)
	if n < lo || n > hi {
		return newErr(OutOfRangeValue, f.Name, fmt.Sprintf("value %d out of range [%d, %d]", n, lo, hi))
	}
	return nil
}

func toInt64(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case uint64:
		return int64(v), true
	case uint:
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	default:
		return 0, false
	}
}

func toInt64Slice(raw any) ([]int64, bool) {
	switch v := raw.(type) {
	case []int:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []int64:
		return v, true
	case []uint64:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []uint:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []uint32:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []int32:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []uint16:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []int16:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []uint8:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	case []int8:
		out := make([]int64, len(v))
		for i, n := range v {
			out[i] = int64(n)
		}
		return out, true
	default:
		return nil, false
	}
}

// Equal reports whether a and b have the same Type and field values,
// recursing into nested compounds. Used by round-trip tests.
func Equal(a, b *Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Type != b.Type {
		return false
	}
	for _, f := range a.Type.Fields {
		if !fieldValueEqual(&f, a.Fields[f.Name], b.Fields[f.Name]) {
			return false
		}
	}
	return true
}

func fieldValueEqual(f *schema.Field, av, bv any) bool {
	switch f.Layout().Kind {
	case schema.KindPrimitive:
		return av.(int64) == bv.(int64)
	case schema.KindPrimitiveArray:
		as, bs := av.([]int64), bv.([]int64)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	case schema.KindBitfield:
		am, bm := av.(map[string]uint64), bv.(map[string]uint64)
		if len(am) != len(bm) {
			return false
		}
		for k, v := range am {
			if bm[k] != v {
				return false
			}
		}
		return true
	case schema.KindCompound:
		return Equal(av.(*Value), bv.(*Value))
	case schema.KindCompoundArray:
		as, bs := av.([]*Value), bv.([]*Value)
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if !Equal(as[i], bs[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

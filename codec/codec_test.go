package codec_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delwen/slipmsg/codec"
	"github.com/delwen/slipmsg/schema"
)

func mustLoad(t *testing.T, tree map[string]any) *schema.Schema {
	t.Helper()
	s, err := schema.Load(tree)
	require.NoError(t, err)
	return s
}

func TestEncodeDecode_S1HelloMessage(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"enums": []any{
			map[string]any{
				"name": "Color",
				"entries": []any{
					map[string]any{"entry": "Red", "value": uint64(0)},
					map[string]any{"entry": "Green", "value": uint64(1)},
					map[string]any{"entry": "Blue", "value": uint64(2)},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Hello",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "color", "type": "uint8", "enum": "Color"},
					map[string]any{"name": "count", "type": "uint16"},
				},
			},
		},
	})

	msg, ok := s.MessageByID(1)
	require.True(t, ok)

	v, err := codec.NewValue(msg, map[string]any{
		"color": int64(1),
		"count": int64(300),
	})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x2C, 0x01}, buf)

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestEncodeDecode_S1RejectsUnknownEnumValue(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"enums": []any{
			map[string]any{
				"name": "Color",
				"entries": []any{
					map[string]any{"entry": "Red", "value": uint64(0)},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Hello",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "color", "type": "uint8", "enum": "Color"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(1)

	_, err := codec.NewValue(msg, map[string]any{"color": int64(9)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrUnknownEnumValue))
}

func TestEncodeDecode_S2VariableArray(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Arr",
				"id":   uint64(2),
				"fields": []any{
					map[string]any{"name": "n", "type": "uint8"},
					map[string]any{"name": "values", "type": "uint16[]"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(2)

	v, err := codec.NewValue(msg, map[string]any{
		"n":      int64(3),
		"values": []int64{10, 20, 30},
	})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	assert.Len(t, buf, 1+3*2)

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestEncodeDecode_S2EmptyVariableArray(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Arr",
				"id":   uint64(2),
				"fields": []any{
					map[string]any{"name": "values", "type": "uint8[]"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(2)

	v, err := codec.NewValue(msg, map[string]any{"values": []int64{}})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	assert.Empty(t, buf)

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestEncodeDecode_S3Bitfield(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"enums": []any{
			map[string]any{
				"name": "Mode",
				"entries": []any{
					map[string]any{"entry": "Idle", "value": uint64(0)},
					map[string]any{"entry": "Run", "value": uint64(1)},
					map[string]any{"entry": "Fault", "value": uint64(2)},
				},
			},
		},
		"bitfields": []any{
			map[string]any{
				"name": "Status",
				"bits": []any{
					map[string]any{"name": "mode", "position": uint64(0), "enum": "Mode"},
					map[string]any{"name": "ready", "position": uint64(2), "width": uint64(1)},
					map[string]any{"name": "errcode", "position": uint64(3), "width": uint64(4)},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Status",
				"id":   uint64(3),
				"fields": []any{
					map[string]any{"name": "status", "type": "Status"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(3)

	v, err := codec.NewValue(msg, map[string]any{
		"status": map[string]uint64{"mode": 2, "ready": 1, "errcode": 9},
	})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	require.Len(t, buf, 1)
	assert.Equal(t, byte(2|1<<2|9<<3), buf[0])

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestEncodeDecode_NestedCompoundFixed(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"types": []any{
			map[string]any{
				"name": "Point",
				"fields": []any{
					map[string]any{"name": "x", "type": "int16"},
					map[string]any{"name": "y", "type": "int16"},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Move",
				"id":   uint64(4),
				"fields": []any{
					map[string]any{"name": "from", "type": "Point"},
					map[string]any{"name": "to", "type": "Point"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(4)
	pointType, _ := s.TypeByName("Point")

	from, err := codec.NewValue(pointType, map[string]any{"x": int64(-5), "y": int64(10)})
	require.NoError(t, err)
	to, err := codec.NewValue(pointType, map[string]any{"x": int64(1), "y": int64(-1)})
	require.NoError(t, err)

	v, err := codec.NewValue(msg, map[string]any{"from": from, "to": to})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	assert.Len(t, buf, 8)

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestEncodeDecode_VariableArrayOfCompounds(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"types": []any{
			map[string]any{
				"name": "Point",
				"fields": []any{
					map[string]any{"name": "x", "type": "uint8"},
					map[string]any{"name": "y", "type": "uint8"},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Path",
				"id":   uint64(5),
				"fields": []any{
					map[string]any{"name": "points", "type": "Point[]"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(5)
	pointType, _ := s.TypeByName("Point")

	p1, _ := codec.NewValue(pointType, map[string]any{"x": int64(1), "y": int64(2)})
	p2, _ := codec.NewValue(pointType, map[string]any{"x": int64(3), "y": int64(4)})

	v, err := codec.NewValue(msg, map[string]any{"points": []*codec.Value{p1, p2}})
	require.NoError(t, err)

	buf, err := codec.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, buf)

	back, err := codec.Decode(msg, buf)
	require.NoError(t, err)
	assert.True(t, codec.Equal(v, back))
}

func TestDecode_ShortBuffer(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Hello",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "a", "type": "uint16"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(1)

	_, err := codec.Decode(msg, []byte{0x01})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrShortBuffer))
}

func TestDecode_ExcessBuffer(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Hello",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "a", "type": "uint8"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(1)

	_, err := codec.Decode(msg, []byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrExcessBuffer))
}

// randomPrimitiveValue samples an int64 within layout's domain: an
// enum field draws from its value set, everything else draws from its
// wire format's full representable range.
func randomPrimitiveValue(r *rand.Rand, layout schema.FieldLayout) int64 {
	if len(layout.EnumDomain) > 0 {
		return int64(layout.EnumDomain[r.Intn(len(layout.EnumDomain))])
	}
	lo, hi := schema.PrimitiveRange(layout.WireFormat)
	return lo + r.Int63n(hi-lo+1)
}

// randomArrayCount picks how many elements an array field's sampled
// value should carry: exactly FixedCount for a fixed array, or a small
// bounded length for a variable one.
func randomArrayCount(r *rand.Rand, layout schema.FieldLayout) int {
	if layout.Count == schema.CountFixed {
		return int(layout.FixedCount)
	}
	return r.Intn(9)
}

// randomCompoundValue samples a schema-valid *codec.Value for ct,
// recursing into nested compounds, for invariant 1's "for every
// randomly sampled valid Message m" round-trip property.
func randomCompoundValue(t *testing.T, r *rand.Rand, ct *schema.CompoundType) *codec.Value {
	t.Helper()
	fields := make(map[string]any, len(ct.Fields))
	for _, f := range ct.Fields {
		layout := f.Layout()
		switch layout.Kind {
		case schema.KindBitfield:
			bits := make(map[string]uint64, len(f.Bitfield.Bits))
			for _, bit := range f.Bitfield.Bits {
				if bit.Enum != nil {
					values := bit.Enum.ValueSet()
					bits[bit.Name] = values[r.Intn(len(values))]
				} else {
					bits[bit.Name] = uint64(r.Int63n(int64(1) << bit.Width))
				}
			}
			fields[f.Name] = bits
		case schema.KindCompound:
			fields[f.Name] = randomCompoundValue(t, r, f.Compound)
		case schema.KindCompoundArray:
			n := randomArrayCount(r, layout)
			vals := make([]*codec.Value, n)
			for i := range vals {
				vals[i] = randomCompoundValue(t, r, f.Compound)
			}
			fields[f.Name] = vals
		case schema.KindPrimitiveArray:
			n := randomArrayCount(r, layout)
			vals := make([]int64, n)
			for i := range vals {
				vals[i] = randomPrimitiveValue(r, layout)
			}
			fields[f.Name] = vals
		default:
			fields[f.Name] = randomPrimitiveValue(r, layout)
		}
	}
	v, err := codec.NewValue(ct, fields)
	require.NoError(t, err)
	return v
}

func TestEncodeDecode_PropertyRoundTrip(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"enums": []any{
			map[string]any{
				"name": "Mode",
				"entries": []any{
					map[string]any{"entry": "Idle", "value": uint64(0)},
					map[string]any{"entry": "Run", "value": uint64(1)},
					map[string]any{"entry": "Fault", "value": uint64(2)},
				},
			},
		},
		"bitfields": []any{
			map[string]any{
				"name": "Status",
				"bits": []any{
					map[string]any{"name": "mode", "position": uint64(0), "enum": "Mode"},
					map[string]any{"name": "ready", "position": uint64(2), "width": uint64(1)},
					map[string]any{"name": "errcode", "position": uint64(3), "width": uint64(4)},
				},
			},
		},
		"types": []any{
			map[string]any{
				"name": "Point",
				"fields": []any{
					map[string]any{"name": "x", "type": "int16"},
					map[string]any{"name": "y", "type": "int16"},
				},
			},
		},
		"messages": []any{
			map[string]any{
				"name": "Telemetry",
				"id":   uint64(9),
				"fields": []any{
					map[string]any{"name": "mode", "type": "uint8", "enum": "Mode"},
					map[string]any{"name": "status", "type": "Status"},
					map[string]any{"name": "position", "type": "Point"},
					map[string]any{"name": "history", "type": "Point[3]"},
					map[string]any{"name": "waypoints", "type": "Point[]"},
				},
			},
		},
	})
	msg, ok := s.MessageByID(9)
	require.True(t, ok)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		v := randomCompoundValue(t, r, msg)

		buf, err := codec.Encode(v)
		require.NoError(t, err)

		back, err := codec.Decode(msg, buf)
		require.NoError(t, err)

		assert.True(t, codec.Equal(v, back), "round-trip mismatch on sample %d", i)
	}
}

func TestNewValue_OutOfRange(t *testing.T) {
	s := mustLoad(t, map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Hello",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "a", "type": "uint8"},
				},
			},
		},
	})
	msg, _ := s.MessageByID(1)

	_, err := codec.NewValue(msg, map[string]any{"a": int64(300)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, codec.ErrOutOfRangeValue))
}

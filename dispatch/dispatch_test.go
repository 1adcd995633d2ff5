package dispatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delwen/slipmsg/codec"
	"github.com/delwen/slipmsg/dispatch"
	"github.com/delwen/slipmsg/schema"
)

func TestTable_CreateKnownMessage(t *testing.T) {
	s, err := schema.Load(map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Ping",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "seq", "type": "uint8"},
				},
			},
		},
	})
	require.NoError(t, err)

	table := dispatch.NewTable(s)

	result, err := table.Create(1, []byte{0x07})
	require.NoError(t, err)
	assert.True(t, result.Known)
	assert.Equal(t, int64(7), result.Value.Fields["seq"])
}

func TestTable_CreateUnknownMessage(t *testing.T) {
	s, err := schema.Load(map[string]any{})
	require.NoError(t, err)

	table := dispatch.NewTable(s)

	result, err := table.Create(99, []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.False(t, result.Known)
	assert.Equal(t, []byte{0x01, 0x02}, result.Raw)
}

func TestTable_EncodeRoundTrip(t *testing.T) {
	s, err := schema.Load(map[string]any{
		"messages": []any{
			map[string]any{
				"name": "Ping",
				"id":   uint64(1),
				"fields": []any{
					map[string]any{"name": "seq", "type": "uint8"},
				},
			},
		},
	})
	require.NoError(t, err)

	table := dispatch.NewTable(s)
	msg, ok := table.MessageByName("Ping")
	require.True(t, ok)

	v, err := codec.NewValue(msg, map[string]any{"seq": int64(5)})
	require.NoError(t, err)

	buf, err := table.Encode(v)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05}, buf)
}

// Package dispatch is the sole entry point between the transaction
// layer and the codec engine: given a message identifier and raw bytes,
// it looks up the schema-registered message type and decodes it, or
// hands back the raw bytes unchanged if the identifier is unknown.
package dispatch

import (
	"fmt"

	"github.com/delwen/slipmsg/codec"
	"github.com/delwen/slipmsg/schema"
)

// Result is what Create returns: either a decoded Value (Known true) or
// the original raw bytes passed through unchanged (Known false).
type Result struct {
	Known bool
	Value *codec.Value
	Raw   []byte
}

// Table maps message identifiers to their schema type, built once from
// a loaded Schema and safe for concurrent reads thereafter.
type Table struct {
	schema *schema.Schema
}

// NewTable builds a dispatch Table over every Message in s.
func NewTable(s *schema.Schema) *Table {
	return &Table{schema: s}
}

// Create looks up id in the schema's message registry. If found, it
// decodes data against that message's layout; the caller sees the
// decode error, if any. If id is unregistered, Create returns the raw
// bytes untouched so an unsolicited or unknown frame is never dropped
// silently.
func (t *Table) Create(id uint64, data []byte) (Result, error) {
	msg, ok := t.schema.MessageByID(id)
	if !ok {
		return Result{Known: false, Raw: data}, nil
	}
	v, err := codec.Decode(msg, data)
	if err != nil {
		return Result{}, err
	}
	return Result{Known: true, Value: v}, nil
}

// Encode packs v's message into its wire bytes using its own message
// id's registered layout, validating that v.Type is actually a
// registered message on this schema's table.
func (t *Table) Encode(v *codec.Value) ([]byte, error) {
	if v == nil || v.Type == nil || !v.Type.IsMessage() {
		return nil, fmt.Errorf("dispatch: value is not a message")
	}
	if msg, ok := t.schema.MessageByID(*v.Type.ID); !ok || msg != v.Type {
		return nil, fmt.Errorf("dispatch: message %q is not registered on this table", v.Type.Name)
	}
	return codec.Encode(v)
}

// MessageByName looks up a message type by name, for callers building a
// Value to send (e.g. a CLI subcommand for a particular message).
func (t *Table) MessageByName(name string) (*schema.CompoundType, bool) {
	ct, ok := t.schema.TypeByName(name)
	if !ok || !ct.IsMessage() {
		return nil, false
	}
	return ct, true
}

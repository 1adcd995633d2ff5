package schema

import (
	"fmt"
	"regexp"
	"strconv"
)

// Load ingests a generic tree — the output of a YAML/JSON decoder, with
// top-level keys "enums", "bitfields", "types" and "messages", all
// optional — and produces a fully resolved, validated *Schema.
//
// Resolution is eager and ordered: enums, then compound types, then
// bitfields, then messages, matching the processing order required by the
// specification. A forward reference (a field naming a kind processed
// later) fails with ErrUnknownType even if the name is defined elsewhere
// in the tree.
func Load(tree map[string]any) (*Schema, error) {
	s := &Schema{
		enumByName:     map[string]*Enum{},
		bitfieldByName: map[string]*Bitfield{},
		typeByName:     map[string]*CompoundType{},
		messageByID:    map[uint64]*CompoundType{},
	}

	if raw, ok := tree["enums"]; ok {
		items, err := asSlice(raw, "enums")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			e, err := loadEnum(item)
			if err != nil {
				return nil, err
			}
			if _, dup := s.enumByName[e.Name]; dup {
				return nil, newErr(DuplicateName, e.Name, "duplicate enum name")
			}
			s.enumByName[e.Name] = e
			s.Enums = append(s.Enums, e)
		}
	}

	if raw, ok := tree["types"]; ok {
		items, err := asSlice(raw, "types")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			t, err := loadCompound(item, s, false)
			if err != nil {
				return nil, err
			}
			if _, dup := s.typeByName[t.Name]; dup {
				return nil, newErr(DuplicateName, t.Name, "duplicate type name")
			}
			s.typeByName[t.Name] = t
			s.Types = append(s.Types, t)
		}
	}

	if raw, ok := tree["bitfields"]; ok {
		items, err := asSlice(raw, "bitfields")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			b, err := loadBitfield(item, s)
			if err != nil {
				return nil, err
			}
			if _, dup := s.bitfieldByName[b.Name]; dup {
				return nil, newErr(DuplicateName, b.Name, "duplicate bitfield name")
			}
			s.bitfieldByName[b.Name] = b
			s.Bitfields = append(s.Bitfields, b)
		}
	}

	if raw, ok := tree["messages"]; ok {
		items, err := asSlice(raw, "messages")
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			m, err := loadCompound(item, s, true)
			if err != nil {
				return nil, err
			}
			if _, dup := s.typeByName[m.Name]; dup {
				return nil, newErr(DuplicateName, m.Name, "duplicate message name")
			}
			if _, dup := s.messageByID[*m.ID]; dup {
				return nil, newErr(DuplicateID, m.Name, fmt.Sprintf("id %d already used", *m.ID))
			}
			s.typeByName[m.Name] = m
			s.messageByID[*m.ID] = m
			s.Messages = append(s.Messages, m)
		}
	}

	return s, nil
}

func loadEnum(item map[string]any) (*Enum, error) {
	name, err := reqString(item, "name", "enum")
	if err != nil {
		return nil, err
	}
	desc, _ := optString(item, "desc")

	entriesRaw, err := reqSlice(item, "entries", name)
	if err != nil {
		return nil, err
	}

	e := &Enum{Name: name, Desc: desc}
	seenNames := map[string]bool{}
	seenValues := map[uint64]bool{}

	for _, entryMap := range entriesRaw {
		entryName, err := reqString(entryMap, "entry", name)
		if err != nil {
			return nil, err
		}
		value, err := reqUint(entryMap, "value", name)
		if err != nil {
			return nil, err
		}
		entryDesc, _ := optString(entryMap, "desc")

		if seenNames[entryName] {
			return nil, newErr(DuplicateName, name, fmt.Sprintf("entry %q duplicated", entryName))
		}
		if seenValues[value] {
			return nil, newErr(DuplicateValue, name, fmt.Sprintf("value %d used by more than one entry", value))
		}
		seenNames[entryName] = true
		seenValues[value] = true

		e.Entries = append(e.Entries, EnumEntry{Name: entryName, Value: value, Desc: entryDesc})
	}

	return e, nil
}

func loadBitfield(item map[string]any, s *Schema) (*Bitfield, error) {
	name, err := reqString(item, "name", "bitfield")
	if err != nil {
		return nil, err
	}
	desc, _ := optString(item, "desc")

	bitsRaw, err := reqSlice(item, "bits", name)
	if err != nil {
		return nil, err
	}

	b := &Bitfield{Name: name, Desc: desc}
	occupied := map[uint]bool{}
	var total uint

	for _, bitMap := range bitsRaw {
		bitName, err := reqString(bitMap, "name", name)
		if err != nil {
			return nil, err
		}
		position, err := reqUint(bitMap, "position", name)
		if err != nil {
			return nil, err
		}
		bitDesc, _ := optString(bitMap, "desc")

		var attached *Enum
		if enumName, ok := optString(bitMap, "enum"); ok && enumName != "" {
			attached, ok = s.enumByName[enumName]
			if !ok {
				return nil, newErr(UnknownType, bitName, fmt.Sprintf("unknown enum %q", enumName))
			}
		}

		var width uint
		if attached != nil {
			width = attached.BitWidth()
		} else {
			w, err := reqUint(bitMap, "width", name)
			if err != nil {
				return nil, err
			}
			width = uint(w)
		}
		if width == 0 {
			return nil, newErr(WidthExceeded, bitName, "width must be >= 1")
		}

		for i := uint(0); i < width; i++ {
			pos := uint(position) + i
			if occupied[pos] {
				return nil, newErr(BitOverlap, name, fmt.Sprintf("bit %q overlaps an existing bit at position %d", bitName, pos))
			}
			occupied[pos] = true
		}
		total += width

		b.Bits = append(b.Bits, Bit{
			Name:     bitName,
			Position: uint(position),
			Width:    width,
			Desc:     bitDesc,
			Enum:     attached,
		})
	}

	if b.HighBit()+1 > 32 || total > 32 {
		return nil, newErr(WidthExceeded, name, "bitfield exceeds 32 occupied bits")
	}

	return b, nil
}

var arraySpecRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)(\[(\d*)\])?$`)

func parseTypeString(typeStr string) (base string, array ArrayLen, err error) {
	m := arraySpecRE.FindStringSubmatch(typeStr)
	if m == nil {
		return "", ArrayLen{}, newErr(BadArraySpec, typeStr, "type string does not match base[N]?")
	}
	base = m[1]
	if m[2] == "" {
		return base, ArrayLen{}, nil
	}
	if m[3] == "" {
		return base, ArrayLen{Present: true, Variable: true}, nil
	}
	n, convErr := strconv.ParseUint(m[3], 10, 32)
	if convErr != nil || n == 0 {
		return "", ArrayLen{}, newErr(BadArraySpec, typeStr, "fixed array length must be a positive decimal")
	}
	return base, ArrayLen{Present: true, N: uint(n)}, nil
}

func loadCompound(item map[string]any, s *Schema, isMessage bool) (*CompoundType, error) {
	name, err := reqString(item, "name", "type")
	if err != nil {
		return nil, err
	}
	desc, _ := optString(item, "desc")

	ct := &CompoundType{Name: name, Desc: desc}

	if isMessage {
		id, err := reqUint(item, "id", name)
		if err != nil {
			return nil, err
		}
		ct.ID = &id
	}

	fieldsRaw, err := reqSlice(item, "fields", name)
	if err != nil {
		return nil, err
	}

	seenFieldNames := map[string]bool{}

	for _, fieldMap := range fieldsRaw {
		fieldName, err := reqString(fieldMap, "name", name)
		if err != nil {
			return nil, err
		}
		if seenFieldNames[fieldName] {
			return nil, newErr(DuplicateName, name, fmt.Sprintf("field %q duplicated", fieldName))
		}
		seenFieldNames[fieldName] = true

		typeStr, err := reqString(fieldMap, "type", name)
		if err != nil {
			return nil, err
		}
		fieldDesc, _ := optString(fieldMap, "desc")

		base, array, err := parseTypeString(typeStr)
		if err != nil {
			return nil, err
		}

		f := Field{
			Name:     fieldName,
			TypeStr:  typeStr,
			Desc:     fieldDesc,
			BaseType: base,
			Array:    array,
		}

		if enumName, ok := optString(fieldMap, "enum"); ok && enumName != "" {
			f.EnumName = enumName
			en, ok := s.enumByName[enumName]
			if !ok {
				return nil, newErr(UnknownType, fieldName, fmt.Sprintf("unknown enum %q", enumName))
			}
			f.Enum = en
		}

		if !isPrimitiveName(base) {
			if bf, ok := s.bitfieldByName[base]; ok {
				if array.Present {
					return nil, newErr(BadArraySpec, fieldName, "bitfield fields cannot be arrays")
				}
				f.Bitfield = bf
			} else if ct2, ok := s.typeByName[base]; ok {
				f.Compound = ct2
			} else {
				return nil, newErr(UnknownType, fieldName, fmt.Sprintf("unknown base type %q", base))
			}
		}

		if err := f.resolveLayout(); err != nil {
			return nil, newErr(BadArraySpec, fieldName, err.Error())
		}

		ct.Fields = append(ct.Fields, f)
	}

	if err := validateSingleTrailingVariableField(ct); err != nil {
		return nil, err
	}

	return ct, nil
}

// validateSingleTrailingVariableField enforces "at most one
// variable-length field per Message, and it must be the last field",
// generalized to nested compounds: a field is variable if it is itself a
// "[]" array, or a nested compound whose own size can't be determined
// statically (i.e. it ends in its own variable field).
func validateSingleTrailingVariableField(ct *CompoundType) error {
	variableIdx := -1
	for i, f := range ct.Fields {
		if !f.isVariable() {
			continue
		}
		if variableIdx != -1 {
			return newErr(VariableFieldNotLast, ct.Name, "a message or type may have at most one variable-length field")
		}
		variableIdx = i
	}
	if variableIdx != -1 && variableIdx != len(ct.Fields)-1 {
		return newErr(VariableFieldNotLast, ct.Name, fmt.Sprintf("variable-length field %q is not the last field", ct.Fields[variableIdx].Name))
	}
	return nil
}

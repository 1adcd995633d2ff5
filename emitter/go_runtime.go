package emitter

import (
	"fmt"
	"io"
	"strings"

	"github.com/delwen/slipmsg/schema"
)

var goPrimitiveType = map[string]string{
	"uint8":  "uint8",
	"int8":   "int8",
	"uint16": "uint16",
	"int16":  "int16",
	"uint32": "uint32",
	"int32":  "int32",
}

// maxRandomVariableLen bounds the length a Random-generated value picks
// for a variable-length array field. It is far below the C emitter's
// MaxVariableArrayC, since a sampled instance only needs to exercise
// the variable-length path, not fill it.
const maxRandomVariableLen = 16

// WriteGoRuntime renders s as a self-contained Go source file: one enum
// type per schema enum, one struct per bitfield and per compound
// type/message, a Pack/Unpack pair per message built on this module's
// codec package, a MessageIDs map from message name to wire identifier,
// an AutotestAll round-trip harness, and a RegisterFlags hook per
// message for a pflag-based CLI frontend. It emits no Create dispatcher
// and no identifier-to-type lookup.
func WriteGoRuntime(w io.Writer, s *schema.Schema, packageName string) error {
	var b strings.Builder

	fmt.Fprintf(&b, "// Code generated from a schema definition. DO NOT EDIT.\n\n")
	fmt.Fprintf(&b, "package %s\n\n", packageName)
	b.WriteString("import (\n")
	b.WriteString("\t\"fmt\"\n")
	b.WriteString("\t\"math/rand\"\n")
	if usesSlicesEqual(s) {
		b.WriteString("\t\"slices\"\n")
	}
	b.WriteString("\n")
	b.WriteString("\t\"github.com/spf13/pflag\"\n\n")
	b.WriteString("\t\"github.com/delwen/slipmsg/codec\"\n")
	b.WriteString("\t\"github.com/delwen/slipmsg/schema\"\n")
	b.WriteString(")\n\n")

	for _, e := range s.Enums {
		writeGoEnum(&b, e)
	}

	for _, bf := range s.Bitfields {
		writeGoBitfield(&b, bf)
	}

	for _, t := range s.Types {
		writeGoStruct(&b, t)
	}

	for _, m := range s.Messages {
		writeGoStruct(&b, m)
		writeGoPack(&b, m)
		writeGoUnpack(&b, m)
		writeGoEqual(&b, m)
		writeGoLen(&b, m)
		writeGoFields(&b, m)
		writeGoRegisterFlags(&b, m)
		writeGoRandom(&b, m)
	}

	writeGoFieldInfoType(&b)
	writeGoRandomSupport(&b)
	writeGoRegistry(&b, s)
	writeGoAutotest(&b, s)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeGoEnum(b *strings.Builder, e *schema.Enum) {
	fmt.Fprintf(b, "// %s is generated from the %q enum.\n", e.Name, e.Name)
	fmt.Fprintf(b, "type %s uint32\n\n", e.Name)
	b.WriteString("const (\n")
	for _, entry := range e.Entries {
		fmt.Fprintf(b, "\t%s%s %s = %d\n", e.Name, entry.Name, e.Name, entry.Value)
	}
	b.WriteString(")\n\n")

	fmt.Fprintf(b, "func random%s(r *rand.Rand) %s {\n", e.Name, e.Name)
	fmt.Fprintf(b, "\tvalues := []%s{", e.Name)
	for _, entry := range e.Entries {
		fmt.Fprintf(b, "%s%s, ", e.Name, entry.Name)
	}
	b.WriteString("}\n")
	b.WriteString("\treturn values[r.Intn(len(values))]\n")
	b.WriteString("}\n\n")
}

func writeGoBitfield(b *strings.Builder, bf *schema.Bitfield) {
	fmt.Fprintf(b, "// %s is generated from the %q bitfield.\n", bf.Name, bf.Name)
	fmt.Fprintf(b, "type %s struct {\n", bf.Name)
	for _, bit := range bf.PrintOrder() {
		fmt.Fprintf(b, "\t%s uint32\n", capitalize(bit.Name))
	}
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func random%s(r *rand.Rand) %s {\n", bf.Name, bf.Name)
	fmt.Fprintf(b, "\treturn %s{\n", bf.Name)
	for _, bit := range bf.Bits {
		if bit.Enum != nil {
			fmt.Fprintf(b, "\t\t%s: uint32(random%s(r)),\n", capitalize(bit.Name), bit.Enum.Name)
		} else {
			fmt.Fprintf(b, "\t\t%s: uint32(r.Int63n(int64(1) << %d)),\n", capitalize(bit.Name), bit.Width)
		}
	}
	b.WriteString("\t}\n")
	b.WriteString("}\n\n")
}

func writeGoStruct(b *strings.Builder, t *schema.CompoundType) {
	if t.Desc != "" {
		fmt.Fprintf(b, "// %s: %s\n", t.Name, t.Desc)
	}
	fmt.Fprintf(b, "type %s struct {\n", t.Name)
	for _, f := range t.Fields {
		fmt.Fprintf(b, "\t%s %s\n", capitalize(f.Name), goFieldType(&f))
	}
	b.WriteString("}\n\n")
}

func goFieldType(f *schema.Field) string {
	switch {
	case f.Bitfield != nil:
		return f.Bitfield.Name
	case f.Compound != nil:
		if f.Array.Present {
			return "[]*codec.Value"
		}
		return "*codec.Value"
	case f.Enum != nil:
		if f.Array.Present {
			return "[]" + f.Enum.Name
		}
		return f.Enum.Name
	default:
		base := goPrimitiveType[f.BaseType]
		if f.Array.Present {
			return "[]" + base
		}
		return base
	}
}

// writeGoPack emits a Pack method that builds a *codec.Value from the
// generated struct's fields and encodes it via this module's codec
// package — the generated code never re-implements the wire format
// itself, it only bridges to codec.Encode.
func writeGoPack(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Pack encodes %s using the schema's resolved layout.\n", m.Name)
	fmt.Fprintf(b, "func (v *%s) Pack(sch *schema.Schema) ([]byte, error) {\n", m.Name)
	fmt.Fprintf(b, "\tmsg, ok := sch.MessageByID(%d)\n", *m.ID)
	b.WriteString("\tif !ok {\n")
	fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(%q)\n", m.Name+" is not registered on this schema")
	b.WriteString("\t}\n")
	fmt.Fprintf(b, "\tcv, err := codec.NewValue(msg, v.fields())\n")
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\treturn codec.Encode(cv)\n")
	b.WriteString("}\n\n")

	fmt.Fprintf(b, "func (v *%s) fields() map[string]any {\n", m.Name)
	b.WriteString("\treturn map[string]any{\n")
	for _, f := range m.Fields {
		fmt.Fprintf(b, "\t\t%q: %s,\n", f.Name, goFieldToValueExpr(&f))
	}
	b.WriteString("\t}\n}\n\n")
}

// goFieldToValueExpr renders the expression that converts a generated
// struct field into the shape codec.NewValue expects for its Kind:
// bitfield structs collapse to a bit-name map, enum-typed fields cast
// down to their integer representation, everything else passes through
// as-is (codec.NewValue's own conversion helpers accept the remaining
// built-in integer and slice shapes directly).
func goFieldToValueExpr(f *schema.Field) string {
	name := capitalize(f.Name)
	switch {
	case f.Bitfield != nil:
		var sb strings.Builder
		sb.WriteString("map[string]uint64{")
		for _, bit := range f.Bitfield.Bits {
			fmt.Fprintf(&sb, "%q: uint64(v.%s.%s), ", bit.Name, name, capitalize(bit.Name))
		}
		sb.WriteString("}")
		return sb.String()
	case f.Enum != nil && f.Array.Present:
		return fmt.Sprintf("func() []int64 { out := make([]int64, len(v.%s)); for i, x := range v.%s { out[i] = int64(x) }; return out }()", name, name)
	case f.Enum != nil:
		return fmt.Sprintf("int64(v.%s)", name)
	default:
		return "v." + name
	}
}

func writeGoUnpack(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Unpack%s decodes buf into a %s using sch's resolved layout.\n", m.Name, m.Name)
	fmt.Fprintf(b, "func Unpack%s(sch *schema.Schema, buf []byte) (*%s, error) {\n", m.Name, m.Name)
	fmt.Fprintf(b, "\tmsg, ok := sch.MessageByID(%d)\n", *m.ID)
	b.WriteString("\tif !ok {\n")
	fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(%q)\n", m.Name+" is not registered on this schema")
	b.WriteString("\t}\n")
	b.WriteString("\tcv, err := codec.Decode(msg, buf)\n")
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tout := &%s{}\n", m.Name)
	for _, f := range m.Fields {
		fmt.Fprintf(b, "\tout.%s = %s\n", capitalize(f.Name), goFieldFromValueExpr(&f))
	}
	b.WriteString("\treturn out, nil\n")
	b.WriteString("}\n\n")
}

// goFieldFromValueExpr renders the expression that recovers a
// generated struct field from cv.Fields[name], inverting
// goFieldToValueExpr: a bitfield's bit-name map becomes a struct
// literal, an enum-typed field is cast back up from its int64
// representation, and everything else is asserted to the shape
// codec.Value stores it in.
func goFieldFromValueExpr(f *schema.Field) string {
	name := f.Name
	switch {
	case f.Bitfield != nil:
		var sb strings.Builder
		fmt.Fprintf(&sb, "%s{", f.Bitfield.Name)
		for _, bit := range f.Bitfield.Bits {
			fmt.Fprintf(&sb, "%s: uint32(cv.Fields[%q].(map[string]uint64)[%q]), ", capitalize(bit.Name), name, bit.Name)
		}
		sb.WriteString("}")
		return sb.String()
	case f.Compound != nil:
		if f.Array.Present {
			return fmt.Sprintf("cv.Fields[%q].([]*codec.Value)", name)
		}
		return fmt.Sprintf("cv.Fields[%q].(*codec.Value)", name)
	case f.Enum != nil && f.Array.Present:
		return fmt.Sprintf("func() []%s { raw := cv.Fields[%q].([]int64); out := make([]%s, len(raw)); for i, n := range raw { out[i] = %s(n) }; return out }()",
			f.Enum.Name, name, f.Enum.Name, f.Enum.Name)
	case f.Enum != nil:
		return fmt.Sprintf("%s(cv.Fields[%q].(int64))", f.Enum.Name, name)
	case f.Array.Present:
		base := goPrimitiveType[f.BaseType]
		return fmt.Sprintf("func() []%s { raw := cv.Fields[%q].([]int64); out := make([]%s, len(raw)); for i, n := range raw { out[i] = %s(n) }; return out }()",
			base, name, base, base)
	default:
		return fmt.Sprintf("%s(cv.Fields[%q].(int64))", goPrimitiveType[f.BaseType], name)
	}
}

// writeGoRegisterFlags emits a pflag registration hook so a CLI
// frontend can expose one flag per scalar field of this message,
// matching the "option-group registration for a command-line frontend"
// requirement without the emitter needing to know about cobra itself.
func writeGoRegisterFlags(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// RegisterFlags adds one flag per scalar field of %s to fs and\n", m.Name)
	b.WriteString("// returns a closure that copies the parsed values back into v.\n")
	fmt.Fprintf(b, "func (v *%s) RegisterFlags(fs *pflag.FlagSet, prefix string) func() {\n", m.Name)
	var scalarFields []schema.Field
	for _, f := range m.Fields {
		if f.Layout().Kind == schema.KindPrimitive {
			scalarFields = append(scalarFields, f)
			fmt.Fprintf(b, "\tvar %sFlag uint32\n", f.Name)
			fmt.Fprintf(b, "\tfs.Uint32Var(&%sFlag, prefix+%q, 0, %q)\n", f.Name, f.Name, f.Desc)
		}
	}
	b.WriteString("\treturn func() {\n")
	for _, f := range scalarFields {
		goType := goPrimitiveType[f.BaseType]
		if f.Enum != nil {
			goType = f.Enum.Name
		}
		fmt.Fprintf(b, "\t\tv.%s = %s(%sFlag)\n", capitalize(f.Name), goType, f.Name)
	}
	b.WriteString("\t}\n")
	b.WriteString("}\n\n")
}

// fieldEqualExpr renders the boolean expression comparing f between v
// and other. Arrays of primitives or enums compare via slices.Equal;
// a nested compound or compound array defers to codec.Equal, since
// that is the only place the comparison can see past the generic
// *codec.Value wrapper; everything else is directly comparable.
func fieldEqualExpr(f *schema.Field) (expr string, needsSlices bool) {
	name := capitalize(f.Name)
	switch {
	case f.Bitfield != nil:
		return fmt.Sprintf("v.%s == other.%s", name, name), false
	case f.Compound != nil && f.Array.Present:
		return fmt.Sprintf("compoundSliceEqual(v.%s, other.%s)", name, name), false
	case f.Compound != nil:
		return fmt.Sprintf("codec.Equal(v.%s, other.%s)", name, name), false
	case f.Array.Present:
		return fmt.Sprintf("slices.Equal(v.%s, other.%s)", name, name), true
	default:
		return fmt.Sprintf("v.%s == other.%s", name, name), false
	}
}

// usesSlicesEqual reports whether any message in s has a top-level
// primitive or enum array field, which is the only shape that drives
// Equal through slices.Equal and therefore needs the "slices" import.
func usesSlicesEqual(s *schema.Schema) bool {
	for _, m := range s.Messages {
		for _, f := range m.Fields {
			if f.Compound == nil && f.Array.Present {
				return true
			}
		}
	}
	return false
}

// writeGoEqual emits a field-by-field Equal method, the generated
// runtime's counterpart to codec.Equal for a fully-typed instance.
func writeGoEqual(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Equal reports whether v and other hold the same field values.\n")
	fmt.Fprintf(b, "func (v *%s) Equal(other *%s) bool {\n", m.Name, m.Name)
	b.WriteString("\tif v == nil || other == nil {\n\t\treturn v == other\n\t}\n")
	for _, f := range m.Fields {
		expr, _ := fieldEqualExpr(&f)
		fmt.Fprintf(b, "\tif !(%s) {\n\t\treturn false\n\t}\n", expr)
	}
	b.WriteString("\treturn true\n")
	b.WriteString("}\n\n")
}

// lenFieldExpr renders the byte count f contributes to its containing
// message's encoding. Element sizes for primitives and bitfields are
// baked in at generation time, since they never vary per instance;
// only array lengths and nested variable compounds need a runtime
// lookup.
func lenFieldExpr(f *schema.Field) string {
	layout := f.Layout()
	name := capitalize(f.Name)
	switch layout.Kind {
	case schema.KindPrimitiveArray:
		return fmt.Sprintf("%d*len(v.%s)", layout.ElementSize, name)
	case schema.KindCompound:
		return fmt.Sprintf("valueEncodedLen(v.%s)", name)
	case schema.KindCompoundArray:
		return fmt.Sprintf("compoundSliceEncodedLen(v.%s)", name)
	default:
		return fmt.Sprintf("%d", layout.ElementSize)
	}
}

// writeGoLen emits a Len method reporting the encoded byte size of an
// instance, without requiring a *schema.Schema at call time: fixed
// element sizes are baked in, and a nested compound's own variable
// tail is measured through its *codec.Value, which already carries
// its resolved schema.CompoundType.
func writeGoLen(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Len returns the number of bytes v encodes to.\n")
	fmt.Fprintf(b, "func (v *%s) Len() int {\n", m.Name)
	b.WriteString("\ttotal := 0\n")
	for _, f := range m.Fields {
		fmt.Fprintf(b, "\ttotal += %s\n", lenFieldExpr(&f))
	}
	b.WriteString("\treturn total\n")
	b.WriteString("}\n\n")
}

// writeGoFieldInfoType emits the FieldInfo type shared by every
// generated message's Fields method.
func writeGoFieldInfoType(b *strings.Builder) {
	b.WriteString("// FieldInfo describes one field of a generated message, for runtime\n")
	b.WriteString("// introspection (CLI flag generation, debugging, generic tooling).\n")
	b.WriteString("type FieldInfo struct {\n")
	b.WriteString("\tName string\n")
	b.WriteString("\tKind schema.Kind\n")
	b.WriteString("}\n\n")
}

// writeGoFields emits a Fields method reporting static metadata about
// v's schema layout, one FieldInfo per field in declaration order.
func writeGoFields(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Fields describes %s's fields in declaration order.\n", m.Name)
	fmt.Fprintf(b, "func (v *%s) Fields() []FieldInfo {\n", m.Name)
	b.WriteString("\treturn []FieldInfo{\n")
	for _, f := range m.Fields {
		fmt.Fprintf(b, "\t\t{Name: %q, Kind: schema.Kind(%d)},\n", f.Name, f.Layout().Kind)
	}
	b.WriteString("\t}\n")
	b.WriteString("}\n\n")
}

// writeGoRandom emits a Random constructor sampling every field of m
// within its schema-declared domain, via the shared randomCompoundFields
// walker, then converts the resulting *codec.Value back into m's
// generated struct shape with the same field-extraction expressions
// Unpack uses.
func writeGoRandom(b *strings.Builder, m *schema.CompoundType) {
	fmt.Fprintf(b, "// Random%s returns a pseudo-random, schema-valid %s sampled via r.\n", m.Name, m.Name)
	fmt.Fprintf(b, "func Random%s(r *rand.Rand, sch *schema.Schema) (*%s, error) {\n", m.Name, m.Name)
	fmt.Fprintf(b, "\tmsg, ok := sch.MessageByID(%d)\n", *m.ID)
	b.WriteString("\tif !ok {\n")
	fmt.Fprintf(b, "\t\treturn nil, fmt.Errorf(%q)\n", m.Name+" is not registered on this schema")
	b.WriteString("\t}\n")
	b.WriteString("\tfields, err := randomCompoundFields(r, msg)\n")
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	b.WriteString("\tcv, err := codec.NewValue(msg, fields)\n")
	b.WriteString("\tif err != nil {\n\t\treturn nil, err\n\t}\n")
	fmt.Fprintf(b, "\tout := &%s{}\n", m.Name)
	for _, f := range m.Fields {
		fmt.Fprintf(b, "\tout.%s = %s\n", capitalize(f.Name), goFieldFromValueExpr(&f))
	}
	b.WriteString("\treturn out, nil\n")
	b.WriteString("}\n\n")
}

// writeGoRandomSupport emits the schema-driven helpers Random/Equal/Len
// share: a generic field sampler that walks a *schema.CompoundType's
// resolved layout (so it works for any nested compound without its own
// generated struct), and the *codec.Value comparison/size helpers that
// recurse through nested compounds the same way codec.Equal does.
func writeGoRandomSupport(b *strings.Builder) {
	b.WriteString("func randomPrimitive(r *rand.Rand, layout schema.FieldLayout) int64 {\n")
	b.WriteString("\tif len(layout.EnumDomain) > 0 {\n")
	b.WriteString("\t\treturn int64(layout.EnumDomain[r.Intn(len(layout.EnumDomain))])\n")
	b.WriteString("\t}\n")
	b.WriteString("\tlo, hi := schema.PrimitiveRange(layout.WireFormat)\n")
	b.WriteString("\treturn lo + r.Int63n(hi-lo+1)\n")
	b.WriteString("}\n\n")

	b.WriteString("func randomArrayLen(r *rand.Rand, layout schema.FieldLayout) int {\n")
	b.WriteString("\tif layout.Count == schema.CountFixed {\n")
	b.WriteString("\t\treturn int(layout.FixedCount)\n")
	b.WriteString("\t}\n")
	fmt.Fprintf(b, "\treturn r.Intn(%d + 1)\n", maxRandomVariableLen)
	b.WriteString("}\n\n")

	b.WriteString("// randomCompoundFields samples a map[string]any suitable for\n")
	b.WriteString("// codec.NewValue(ct, ...), recursing into nested compounds.\n")
	b.WriteString("func randomCompoundFields(r *rand.Rand, ct *schema.CompoundType) (map[string]any, error) {\n")
	b.WriteString("\tout := make(map[string]any, len(ct.Fields))\n")
	b.WriteString("\tfor _, f := range ct.Fields {\n")
	b.WriteString("\t\tlayout := f.Layout()\n")
	b.WriteString("\t\tswitch layout.Kind {\n")
	b.WriteString("\t\tcase schema.KindBitfield:\n")
	b.WriteString("\t\t\tbits := make(map[string]uint64, len(f.Bitfield.Bits))\n")
	b.WriteString("\t\t\tfor _, bit := range f.Bitfield.Bits {\n")
	b.WriteString("\t\t\t\tif bit.Enum != nil {\n")
	b.WriteString("\t\t\t\t\tvalues := bit.Enum.ValueSet()\n")
	b.WriteString("\t\t\t\t\tbits[bit.Name] = values[r.Intn(len(values))]\n")
	b.WriteString("\t\t\t\t} else {\n")
	b.WriteString("\t\t\t\t\tbits[bit.Name] = uint64(r.Int63n(int64(1) << bit.Width))\n")
	b.WriteString("\t\t\t\t}\n")
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t\tout[f.Name] = bits\n")
	b.WriteString("\t\tcase schema.KindCompound:\n")
	b.WriteString("\t\t\tnested, err := randomCompoundFields(r, f.Compound)\n")
	b.WriteString("\t\t\tif err != nil {\n\t\t\t\treturn nil, err\n\t\t\t}\n")
	b.WriteString("\t\t\tcv, err := codec.NewValue(f.Compound, nested)\n")
	b.WriteString("\t\t\tif err != nil {\n\t\t\t\treturn nil, err\n\t\t\t}\n")
	b.WriteString("\t\t\tout[f.Name] = cv\n")
	b.WriteString("\t\tcase schema.KindCompoundArray:\n")
	b.WriteString("\t\t\tn := randomArrayLen(r, layout)\n")
	b.WriteString("\t\t\tvals := make([]*codec.Value, n)\n")
	b.WriteString("\t\t\tfor i := range vals {\n")
	b.WriteString("\t\t\t\tnested, err := randomCompoundFields(r, f.Compound)\n")
	b.WriteString("\t\t\t\tif err != nil {\n\t\t\t\t\treturn nil, err\n\t\t\t\t}\n")
	b.WriteString("\t\t\t\tcv, err := codec.NewValue(f.Compound, nested)\n")
	b.WriteString("\t\t\t\tif err != nil {\n\t\t\t\t\treturn nil, err\n\t\t\t\t}\n")
	b.WriteString("\t\t\t\tvals[i] = cv\n")
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t\tout[f.Name] = vals\n")
	b.WriteString("\t\tcase schema.KindPrimitiveArray:\n")
	b.WriteString("\t\t\tn := randomArrayLen(r, layout)\n")
	b.WriteString("\t\t\tvals := make([]int64, n)\n")
	b.WriteString("\t\t\tfor i := range vals {\n")
	b.WriteString("\t\t\t\tvals[i] = randomPrimitive(r, layout)\n")
	b.WriteString("\t\t\t}\n")
	b.WriteString("\t\t\tout[f.Name] = vals\n")
	b.WriteString("\t\tdefault:\n")
	b.WriteString("\t\t\tout[f.Name] = randomPrimitive(r, layout)\n")
	b.WriteString("\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("\treturn out, nil\n")
	b.WriteString("}\n\n")

	b.WriteString("func compoundSliceEqual(a, b []*codec.Value) bool {\n")
	b.WriteString("\tif len(a) != len(b) {\n\t\treturn false\n\t}\n")
	b.WriteString("\tfor i := range a {\n")
	b.WriteString("\t\tif !codec.Equal(a[i], b[i]) {\n\t\t\treturn false\n\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("\treturn true\n")
	b.WriteString("}\n\n")

	b.WriteString("// valueEncodedLen measures the wire size of a nested *codec.Value by\n")
	b.WriteString("// walking its own Type, the same way its parent message's Len does.\n")
	b.WriteString("func valueEncodedLen(v *codec.Value) int {\n")
	b.WriteString("\tif v == nil {\n\t\treturn 0\n\t}\n")
	b.WriteString("\ttotal := 0\n")
	b.WriteString("\tfor _, f := range v.Type.Fields {\n")
	b.WriteString("\t\tlayout := f.Layout()\n")
	b.WriteString("\t\tswitch layout.Kind {\n")
	b.WriteString("\t\tcase schema.KindPrimitiveArray:\n")
	b.WriteString("\t\t\ttotal += int(layout.ElementSize) * len(v.Fields[f.Name].([]int64))\n")
	b.WriteString("\t\tcase schema.KindCompound:\n")
	b.WriteString("\t\t\ttotal += valueEncodedLen(v.Fields[f.Name].(*codec.Value))\n")
	b.WriteString("\t\tcase schema.KindCompoundArray:\n")
	b.WriteString("\t\t\ttotal += compoundSliceEncodedLen(v.Fields[f.Name].([]*codec.Value))\n")
	b.WriteString("\t\tdefault:\n")
	b.WriteString("\t\t\ttotal += int(layout.ElementSize)\n")
	b.WriteString("\t\t}\n")
	b.WriteString("\t}\n")
	b.WriteString("\treturn total\n")
	b.WriteString("}\n\n")

	b.WriteString("func compoundSliceEncodedLen(vs []*codec.Value) int {\n")
	b.WriteString("\ttotal := 0\n")
	b.WriteString("\tfor _, v := range vs {\n")
	b.WriteString("\t\ttotal += valueEncodedLen(v)\n")
	b.WriteString("\t}\n")
	b.WriteString("\treturn total\n")
	b.WriteString("}\n\n")
}

func writeGoRegistry(b *strings.Builder, s *schema.Schema) {
	b.WriteString("// MessageIDs maps each generated message's name to its wire identifier.\n")
	b.WriteString("var MessageIDs = map[string]uint64{\n")
	for _, m := range s.Messages {
		fmt.Fprintf(b, "\t%q: %d,\n", m.Name, *m.ID)
	}
	b.WriteString("}\n\n")
}

// writeGoAutotest emits one autotest<Name> function per message, each
// sampling a Random instance, round-tripping it through Pack/Unpack,
// and comparing via Equal, plus an AutotestAll that runs all of them
// and reports the first mismatch — the generated-code analogue of this
// module's own property-based round-trip tests, built from truly
// random instances rather than caller-supplied fixtures.
func writeGoAutotest(b *strings.Builder, s *schema.Schema) {
	for _, m := range s.Messages {
		fmt.Fprintf(b, "func autotest%s(sch *schema.Schema, r *rand.Rand) error {\n", m.Name)
		fmt.Fprintf(b, "\tv, err := Random%s(r, sch)\n", m.Name)
		fmt.Fprintf(b, "\tif err != nil {\n\t\treturn fmt.Errorf(\"%s: %%w\", err)\n\t}\n", m.Name)
		b.WriteString("\tencoded, err := v.Pack(sch)\n")
		fmt.Fprintf(b, "\tif err != nil {\n\t\treturn fmt.Errorf(\"%s: %%w\", err)\n\t}\n", m.Name)
		fmt.Fprintf(b, "\tdecoded, err := Unpack%s(sch, encoded)\n", m.Name)
		fmt.Fprintf(b, "\tif err != nil {\n\t\treturn fmt.Errorf(\"%s: %%w\", err)\n\t}\n", m.Name)
		b.WriteString("\tif !v.Equal(decoded) {\n")
		fmt.Fprintf(b, "\t\treturn fmt.Errorf(\"%s: round-trip mismatch\")\n", m.Name)
		b.WriteString("\t}\n")
		b.WriteString("\treturn nil\n")
		b.WriteString("}\n\n")
	}

	b.WriteString("// AutotestAll samples a random instance of every registered message,\n")
	b.WriteString("// round-trips it through Pack/Unpack, and reports the first mismatch.\n")
	b.WriteString("func AutotestAll(sch *schema.Schema, r *rand.Rand) error {\n")
	for _, m := range s.Messages {
		fmt.Fprintf(b, "\tif err := autotest%s(sch, r); err != nil {\n\t\treturn err\n\t}\n", m.Name)
	}
	b.WriteString("\treturn nil\n")
	b.WriteString("}\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

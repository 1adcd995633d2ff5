// Package emitter projects a *schema.Schema into two artifacts: a C
// header with packed structs and enum/bitfield definitions, and a
// target-language (Go) runtime binding with pack/unpack/equality/random
// sampling and CLI registration hooks. Both walk the same resolved
// Schema; only the output text differs.
package emitter

import (
	"fmt"
	"io"
	"strings"

	"github.com/delwen/slipmsg/schema"
)

// MaxVariableArrayC is the C emitter's hard-coded upper bound on a
// variable-length array's backing storage. The runtime has no such
// limit; this exists only because a C struct field needs a fixed size.
const MaxVariableArrayC = 255

var cPrimitiveType = map[string]string{
	"uint8":  "uint8_t",
	"int8":   "int8_t",
	"uint16": "uint16_t",
	"int16":  "int16_t",
	"uint32": "uint32_t",
	"int32":  "int32_t",
}

// WriteCHeader renders s as a single C header guarded by
// __<PREFIX>_H__, in the order: includes, enums, bitfields, compound
// types, then messages (each preceded by its `<NAME>_ID` define).
func WriteCHeader(w io.Writer, s *schema.Schema, prefix string, indent int) error {
	var b strings.Builder
	guard := fmt.Sprintf("__%s_H__", strings.ToUpper(prefix))

	fmt.Fprintf(&b, "#ifndef %s\n#define %s\n\n", guard, guard)
	b.WriteString("#include <stdint.h>\n\n")

	for _, e := range s.Enums {
		writeCEnum(&b, e, indent)
		b.WriteString("\n")
	}

	for _, bf := range s.Bitfields {
		writeCBitfield(&b, bf, indent)
		b.WriteString("\n")
	}

	for _, t := range s.Types {
		writeCStruct(&b, t, indent)
		b.WriteString("\n")
	}

	for _, m := range s.Messages {
		fmt.Fprintf(&b, "#define %s_ID %d\n", strings.ToUpper(m.Name), *m.ID)
		writeCStruct(&b, m, indent)
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "#endif /* %s */\n", guard)

	_, err := io.WriteString(w, b.String())
	return err
}

// writeCEnum mirrors the reference generator: entries in declaration
// order, then a trailing <NAME>_END sentinel one past the maximum
// entry value, so downstream range checks have a named upper bound.
func writeCEnum(b *strings.Builder, e *schema.Enum, indent int) {
	pad := strings.Repeat(" ", indent)
	if e.Desc != "" {
		fmt.Fprintf(b, "/* %s */\n", e.Desc)
	}
	fmt.Fprintf(b, "typedef enum %s_e {\n", e.Name)

	var maxVal uint64
	for _, entry := range e.Entries {
		if entry.Desc != "" {
			fmt.Fprintf(b, "%s%s = %d, /* %s */\n", pad, entry.Name, entry.Value, entry.Desc)
		} else {
			fmt.Fprintf(b, "%s%s = %d,\n", pad, entry.Name, entry.Value)
		}
		if entry.Value > maxVal {
			maxVal = entry.Value
		}
	}
	fmt.Fprintf(b, "%s%s_END = %d\n", pad, e.Name, maxVal+1)
	fmt.Fprintf(b, "} %s_t;\n", e.Name)
}

// writeCBitfield emits the backing storage typedef plus one macro pair
// (GET/SET) per Bit, displayed MSB-first per the bit-order convention.
func writeCBitfield(b *strings.Builder, bf *schema.Bitfield, indent int) {
	storageType := cPrimitiveType[storagePrimitiveName(bf.StoragePrimitive())]
	if bf.Desc != "" {
		fmt.Fprintf(b, "/* %s */\n", bf.Desc)
	}
	fmt.Fprintf(b, "typedef %s %s_t;\n\n", storageType, bf.Name)

	for _, bit := range bf.PrintOrder() {
		mask := uint64(1)<<bit.Width - 1
		upper := strings.ToUpper(bf.Name + "_" + bit.Name)
		fmt.Fprintf(b, "#define %s_GET(word) (((word) >> %d) & 0x%XU)\n", upper, bit.Position, mask)
		fmt.Fprintf(b, "#define %s_SET(word, v) ((word) = ((word) & ~(0x%XU << %d)) | (((v) & 0x%XU) << %d))\n",
			upper, mask, bit.Position, mask, bit.Position)
	}
}

func storagePrimitiveName(bits uint) string {
	switch bits {
	case 8:
		return "uint8"
	case 16:
		return "uint16"
	default:
		return "uint32"
	}
}

// writeCStruct emits one packed struct for a CompoundType or Message.
// A variable-length trailing field becomes a fixed MaxVariableArrayC
// array in C; see MaxVariableArrayC.
func writeCStruct(b *strings.Builder, t *schema.CompoundType, indent int) {
	pad := strings.Repeat(" ", indent)
	if t.Desc != "" {
		fmt.Fprintf(b, "/* %s */\n", t.Desc)
	}
	b.WriteString("typedef struct __attribute__((packed)) {\n")

	for _, f := range t.Fields {
		ctype, arraySuffix := cFieldType(&f)
		if f.Desc != "" {
			fmt.Fprintf(b, "%s%s %s%s; /* %s */\n", pad, ctype, f.Name, arraySuffix, f.Desc)
		} else {
			fmt.Fprintf(b, "%s%s %s%s;\n", pad, ctype, f.Name, arraySuffix)
		}
	}

	fmt.Fprintf(b, "} %s_t;\n", t.Name)
}

func cFieldType(f *schema.Field) (ctype string, arraySuffix string) {
	switch {
	case f.Bitfield != nil:
		return f.Bitfield.Name + "_t", ""
	case f.Compound != nil:
		ctype = f.Compound.Name + "_t"
	default:
		ctype = cPrimitiveType[f.BaseType]
	}

	switch {
	case f.Array.Present && f.Array.Variable:
		return ctype, fmt.Sprintf("[%d]", MaxVariableArrayC)
	case f.Array.Present:
		return ctype, fmt.Sprintf("[%d]", f.Array.N)
	default:
		return ctype, ""
	}
}

package genmsg_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delwen/slipmsg/genmsg"
)

const sampleYAML = `
enums:
  - name: Color
    entries:
      - {entry: Red, value: 0}
      - {entry: Green, value: 1}
messages:
  - name: Hello
    id: 1
    fields:
      - {name: color, type: uint8, enum: Color}
`

func TestGenerator_Run_WritesBothArtifacts(t *testing.T) {
	gen := genmsg.NewGenerator(
		genmsg.WithPrefix("proto"),
		genmsg.WithEmitC(true),
		genmsg.WithEmitRuntime(true, "generated"),
	)

	var c, r strings.Builder
	err := gen.Run([]byte(sampleYAML), &c, &r)
	require.NoError(t, err)

	assert.Contains(t, c.String(), "__PROTO_H__")
	assert.Contains(t, c.String(), "#define HELLO_ID 1")
	assert.Contains(t, r.String(), "package generated")
	assert.Contains(t, r.String(), "type Hello struct {")
}

func TestGenerator_Run_MissingDestination(t *testing.T) {
	gen := genmsg.NewGenerator(genmsg.WithEmitC(true))
	err := gen.Run([]byte(sampleYAML), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, genmsg.ErrWriteOutput)
}

func TestGenerator_Load_InvalidYAML(t *testing.T) {
	_, err := genmsg.Load([]byte("not: valid: yaml: at: all: ["))
	require.Error(t, err)
	assert.ErrorIs(t, err, genmsg.ErrReadInput)
}

func TestGenerator_Load_SchemaError(t *testing.T) {
	_, err := genmsg.Load([]byte(`
messages:
  - name: Bad
    id: 1
    fields:
      - {name: a, type: nosuchtype}
`))
	require.Error(t, err)
}

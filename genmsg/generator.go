// Package genmsg drives the schema→artifact pipeline: parse a schema
// file into a tree, load it into a *schema.Schema, and emit the C
// header and/or Go runtime artifacts the caller asked for.
package genmsg

import (
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"

	"github.com/delwen/slipmsg/emitter"
	"github.com/delwen/slipmsg/schema"
)

// Sentinel errors wrapped by Generator.Run, mirroring the read/write
// failure taxonomy used elsewhere in this module's CLI layer.
var (
	ErrReadInput   = errors.New("read input")
	ErrWriteOutput = errors.New("write output")
)

// Generator holds the resolved configuration for one generation run.
type Generator struct {
	prefix       string
	indent       int
	emitC        bool
	emitRuntime  bool
	runtimePkg   string
}

// Option configures a Generator.
type Option func(*Generator)

// NewGenerator creates a Generator with the given options. Indent
// defaults to 4 and the runtime package name to "generated" if unset.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{indent: 4, runtimePkg: "generated"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithPrefix sets the C header's include-guard prefix.
func WithPrefix(prefix string) Option {
	return func(g *Generator) { g.prefix = prefix }
}

// WithIndent sets the number of spaces per indentation level.
func WithIndent(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.indent = n
		}
	}
}

// WithEmitC enables writing the C header.
func WithEmitC(enabled bool) Option {
	return func(g *Generator) { g.emitC = enabled }
}

// WithEmitRuntime enables writing the Go runtime, under package name pkg.
func WithEmitRuntime(enabled bool, pkg string) Option {
	return func(g *Generator) {
		g.emitRuntime = enabled
		if pkg != "" {
			g.runtimePkg = pkg
		}
	}
}

// Load parses schemaYAML (a YAML document with top-level keys enums,
// bitfields, types, messages) and resolves it into a *schema.Schema.
func Load(schemaYAML []byte) (*schema.Schema, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(schemaYAML, &tree); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadInput, err)
	}
	return schema.Load(tree)
}

// Run loads schemaYAML and writes the artifacts this Generator was
// configured for to cHeader and/or goRuntime (either may be nil if its
// corresponding Option was not enabled).
func (g *Generator) Run(schemaYAML []byte, cHeader, goRuntime io.Writer) error {
	s, err := Load(schemaYAML)
	if err != nil {
		return err
	}

	if g.emitC {
		if cHeader == nil {
			return fmt.Errorf("%w: C header requested but no destination given", ErrWriteOutput)
		}
		if err := emitter.WriteCHeader(cHeader, s, g.prefix, g.indent); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}

	if g.emitRuntime {
		if goRuntime == nil {
			return fmt.Errorf("%w: Go runtime requested but no destination given", ErrWriteOutput)
		}
		if err := emitter.WriteGoRuntime(goRuntime, s, g.runtimePkg); err != nil {
			return fmt.Errorf("%w: %w", ErrWriteOutput, err)
		}
	}

	return nil
}

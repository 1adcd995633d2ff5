// Command genmsg reads a schema file and emits a C header and/or a Go
// runtime module from it.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/delwen/slipmsg/genmsg"
	"github.com/delwen/slipmsg/internal/logging"
	"github.com/delwen/slipmsg/schema"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		schemaPath  string
		emitCPath   string
		emitRunPath string
		runtimePkg  string
		indent      int
	)

	logCfg := logging.NewConfig()

	rootCmd := &cobra.Command{
		Use:           "genmsg --schema <path> [--emit-c <dir>] [--emit-runtime <dir>]",
		Short:         "Generate C headers and Go runtime code from a message schema",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(handler))

			return runGen(schemaPath, emitCPath, emitRunPath, runtimePkg, indent)
		},
	}

	rootCmd.Flags().StringVar(&schemaPath, "schema", "", "path to the schema file (required)")
	rootCmd.Flags().StringVar(&emitCPath, "emit-c", "", "directory to write the generated C header into")
	rootCmd.Flags().StringVar(&emitRunPath, "emit-runtime", "", "directory to write the generated Go runtime into")
	rootCmd.Flags().StringVar(&runtimePkg, "runtime-package", "generated", "package name for the generated Go runtime")
	rootCmd.Flags().IntVar(&indent, "indent", 4, "number of spaces per indentation level in generated C")
	logCfg.RegisterFlags(rootCmd.Flags())

	if err := rootCmd.MarkFlagRequired("schema"); err != nil {
		fmt.Fprintf(os.Stderr, "genmsg: %v\n", err)
		return exitCLIMisuse
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "genmsg: %v\n", err)
		return exitCodeFor(err)
	}

	return exitOK
}

// Exit codes per the CLI surface's documented contract: 0 success, 1
// schema error, 2 I/O or transaction error, 3 CLI misuse.
const (
	exitOK = iota
	exitSchemaError
	exitIOError
	exitCLIMisuse
)

func exitCodeFor(err error) int {
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		return exitSchemaError
	}
	if errors.Is(err, genmsg.ErrReadInput) || errors.Is(err, genmsg.ErrWriteOutput) {
		return exitIOError
	}
	return exitCLIMisuse
}

func runGen(schemaPath, emitCPath, emitRunPath, runtimePkg string, indent int) error {
	if schemaPath == "" {
		return fmt.Errorf("--schema is required")
	}

	data, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("%w: %w", genmsg.ErrReadInput, err)
	}

	prefix := basePrefix(schemaPath)

	var opts []genmsg.Option
	opts = append(opts, genmsg.WithPrefix(prefix), genmsg.WithIndent(indent))

	var cBuf, rBuf bytes.Buffer

	if emitCPath != "" {
		opts = append(opts, genmsg.WithEmitC(true))
	}
	if emitRunPath != "" {
		opts = append(opts, genmsg.WithEmitRuntime(true, runtimePkg))
	}

	gen := genmsg.NewGenerator(opts...)
	if err := gen.Run(data, &cBuf, &rBuf); err != nil {
		return err
	}

	if emitCPath != "" {
		path := emitCPath + "/" + prefix + ".h"
		if err := os.WriteFile(path, cBuf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("%w: %w", genmsg.ErrWriteOutput, err)
		}
		slog.Info("wrote C header", "path", path)
	}

	if emitRunPath != "" {
		path := emitRunPath + "/" + prefix + ".go"
		if err := os.WriteFile(path, rBuf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("%w: %w", genmsg.ErrWriteOutput, err)
		}
		slog.Info("wrote Go runtime", "path", path)
	}

	return nil
}

func basePrefix(schemaPath string) string {
	base := schemaPath
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '/' {
			base = base[i+1:]
			break
		}
	}
	for i := 0; i < len(base); i++ {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}

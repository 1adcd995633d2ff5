// Command slipctl opens a serial link to a device speaking the SLIP
// transaction protocol and drives one request/response exchange against
// it, decoding the response through a loaded schema when the message
// identifier is recognized.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/tarm/serial"

	"github.com/delwen/slipmsg/dispatch"
	"github.com/delwen/slipmsg/genmsg"
	"github.com/delwen/slipmsg/internal/logging"
	"github.com/delwen/slipmsg/schema"
	"github.com/delwen/slipmsg/transaction"
)

func main() {
	os.Exit(run())
}

const (
	exitOK = iota
	exitSchemaError
	exitIOError
	exitCLIMisuse
)

func run() int {
	var (
		ifacePath  string
		baudRate   int
		schemaPath string
		variant    string
		pidStr     string
		dataHex    string
		timeout    time.Duration
	)

	logCfg := logging.NewConfig()

	rootCmd := &cobra.Command{
		Use:           "slipctl --interface <dev> --pid <n> --data <hex>",
		Short:         "Send one SLIP transaction frame and print the decoded response",
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			handler, err := logCfg.NewHandler(os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(slog.New(handler))

			pid, err := parsePID(pidStr)
			if err != nil {
				return fmt.Errorf("cli: %w", err)
			}
			data, err := hex.DecodeString(dataHex)
			if err != nil {
				return fmt.Errorf("cli: --data is not valid hex: %w", err)
			}
			return runTransact(cmd.Context(), ifacePath, baudRate, schemaPath, variant, pid, data, timeout)
		},
	}

	rootCmd.Flags().StringVar(&ifacePath, "interface", "", "serial device path (required)")
	rootCmd.Flags().IntVar(&baudRate, "baudrate", 115200, "serial baud rate")
	rootCmd.Flags().StringVar(&schemaPath, "schema", "", "schema file used to decode the response, if any")
	rootCmd.Flags().StringVar(&variant, "variant", "heavy", "wire variant: heavy or light")
	rootCmd.Flags().StringVar(&pidStr, "pid", "", "message identifier, decimal or 0x-prefixed hex (required)")
	rootCmd.Flags().StringVar(&dataHex, "data", "", "request payload, hex-encoded")
	rootCmd.Flags().DurationVar(&timeout, "timeout", 2*time.Second, "time to wait for the response frame")
	logCfg.RegisterFlags(rootCmd.Flags())

	for _, name := range []string{"interface", "pid"} {
		if err := rootCmd.MarkFlagRequired(name); err != nil {
			fmt.Fprintf(os.Stderr, "slipctl: %v\n", err)
			return exitCLIMisuse
		}
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "slipctl: %v\n", err)
		return exitCodeFor(err)
	}
	return exitOK
}

func exitCodeFor(err error) int {
	var schemaErr *schema.Error
	if errors.As(err, &schemaErr) {
		return exitSchemaError
	}
	var txErr *transaction.Error
	if errors.As(err, &txErr) {
		return exitIOError
	}
	if errors.Is(err, genmsg.ErrReadInput) {
		return exitIOError
	}
	return exitCLIMisuse
}

func parsePID(s string) (byte, error) {
	if s == "" {
		return 0, fmt.Errorf("--pid is required")
	}
	n, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid --pid %q: %w", s, err)
	}
	return byte(n), nil
}

func runTransact(ctx context.Context, ifacePath string, baudRate int, schemaPath, variant string, pid byte, data []byte, timeout time.Duration) error {
	port, err := serial.OpenPort(&serial.Config{Name: ifacePath, Baud: baudRate, ReadTimeout: timeout})
	if err != nil {
		return fmt.Errorf("%w: opening %s: %w", genmsg.ErrReadInput, ifacePath, err)
	}
	defer port.Close()

	var conn *transaction.Conn
	switch variant {
	case "heavy":
		conn = transaction.NewHeavyConn(port, port)
	case "light":
		conn = transaction.NewLightConn(port, port)
	default:
		return fmt.Errorf("unknown --variant %q, want heavy or light", variant)
	}

	var table *dispatch.Table
	if schemaPath != "" {
		schemaBytes, err := os.ReadFile(schemaPath)
		if err != nil {
			return fmt.Errorf("%w: %w", genmsg.ErrReadInput, err)
		}
		sch, err := genmsg.Load(schemaBytes)
		if err != nil {
			return err
		}
		table = dispatch.NewTable(sch)
	}

	deadline, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	frames, err := conn.Transact(deadline, pid, data)
	if err != nil {
		return err
	}

	for _, f := range frames {
		if table == nil {
			fmt.Printf("pid=%#02x data=%x\n", f.PID, f.Data)
			continue
		}
		result, err := table.Create(uint64(f.PID&^transaction.ResponseBit), f.Data)
		if err != nil {
			slog.Warn("failed to decode frame", "pid", f.PID, "error", err)
			fmt.Printf("pid=%#02x data=%x (decode error: %v)\n", f.PID, f.Data, err)
			continue
		}
		if result.Known {
			fmt.Printf("pid=%#02x %s=%+v\n", f.PID, result.Value.Type.Name, result.Value.Fields)
		} else {
			fmt.Printf("pid=%#02x data=%x (unregistered)\n", f.PID, f.Data)
		}
	}

	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/23skdu/longbow-qfix/internal/arrow_client"
	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, executes one quantization pass and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cfg := config.Default()

	fs := flag.NewFlagSet("quantize_weights", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: quantize_weights [flags] [input.h|input.gguf] [output.h]\n\n")
		fs.PrintDefaults()
	}

	fs.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Path to the float weights header (or .gguf file)")
	fs.StringVar(&cfg.OutputPath, "output", cfg.OutputPath, "Path of the generated int32 header")
	fs.IntVar(&cfg.InputSize, "input-size", cfg.InputSize, "Input layer width")
	fs.IntVar(&cfg.HiddenSize, "hidden-size", cfg.HiddenSize, "Hidden layer width")
	fs.IntVar(&cfg.OutputSize, "output-size", cfg.OutputSize, "Output layer width")
	fs.IntVar(&cfg.FracBits, "frac-bits", cfg.FracBits, "Fractional bits of the fixed-point format")
	fs.StringVar(&cfg.ArrowPath, "arrow", "", "Also write the quantized tensors as an Arrow IPC file")
	fs.StringVar(&cfg.MetricsPath, "metrics-file", "", "Write Prometheus metrics to this textfile")
	fs.StringVar(&cfg.FlightAddr, "flight", "", "Publish the quantized tensors to this Arrow Flight address")
	flightTimeout := fs.Duration("flight-timeout", arrow_client.DefaultTimeout, "Timeout for the Flight publish")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (console, json)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) > 2 {
		fs.Usage()
		return 2
	}
	if len(rest) > 0 {
		cfg.InputPath = rest[0]
	}
	if len(rest) > 1 {
		cfg.OutputPath = rest[1]
	}

	logger.SetupWriter(stderr, cfg.LogLevel, cfg.LogFormat)

	start := time.Now()
	_, err := pipeline.Run(ctx, cfg, pipeline.Options{
		Stdout:        stdout,
		FlightTimeout: *flightTimeout,
	})
	if err != nil {
		logger.Log.Error("quantization failed", "input", cfg.InputPath, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	logger.Log.Debug("quantization finished", "duration", time.Since(start).String())
	return 0
}

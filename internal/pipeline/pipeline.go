// Package pipeline wires the quantizer stages together:
// extract -> validate -> encode -> serialize -> report, followed by optional side
// artifacts (Arrow IPC file, Flight publish, Prometheus textfile).
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/23skdu/longbow-qfix/internal/arrow_client"
	"github.com/23skdu/longbow-qfix/internal/arrowexport"
	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/emitter"
	"github.com/23skdu/longbow-qfix/internal/fixedpoint"
	"github.com/23skdu/longbow-qfix/internal/gguf"
	"github.com/23skdu/longbow-qfix/internal/header"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/metrics"
	"github.com/23skdu/longbow-qfix/internal/quantize"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

type Options struct {
	// Stdout receives progress and the statistics report. Defaults to os.Stdout.
	Stdout io.Writer

	// Publisher overrides the Flight client built from Config.FlightAddr.
	Publisher     arrow_client.Publisher
	FlightTimeout time.Duration
}

type Result struct {
	Set         *quantize.QuantizedTensorSet
	OutputBytes int64
}

// Run executes one quantization pass. The output header is only written once every
// tensor has been extracted, validated and encoded.
func Run(ctx context.Context, cfg config.Config, opts Options) (res *Result, err error) {
	out := opts.Stdout
	if out == nil {
		out = os.Stdout
	}

	if cfg.MetricsPath != "" {
		defer func() {
			metrics.RecordRunResult(err == nil)
			if werr := metrics.WriteTextfile(cfg.MetricsPath); werr != nil {
				logger.Log.Warn("metrics textfile not written", "path", cfg.MetricsPath, "error", werr)
			}
		}()
	}

	if err := cfg.Validate(); err != nil {
		metrics.RecordValidationError("config", "invalid")
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	fmt.Fprintf(out, "Parsing weights from %s...\n", cfg.InputPath)
	var found map[string]*tensor.WeightTensor
	err = timed("extract", func() error {
		var e error
		found, e = extract(cfg)
		return e
	})
	if err != nil {
		metrics.RecordValidationError("extract", classify(err))
		return nil, err
	}

	names := make([]string, 0, len(found))
	for _, spec := range cfg.Tensors() {
		if t, ok := found[spec.Name]; ok {
			names = append(names, spec.Name)
			fmt.Fprintf(out, "  %s: shape=%s\n", spec.Name, tensor.FormatDims(t.Dims))
		}
	}
	fmt.Fprintf(out, "Found arrays: [%s]\n", strings.Join(names, ", "))

	fmt.Fprintf(out, "\nQuantizing weights to %s format...\n", fixedpoint.FormatName(cfg.FracBits))
	var set *quantize.QuantizedTensorSet
	err = timed("encode", func() error {
		var e error
		set, e = quantize.Quantize(found, cfg)
		return e
	})
	if err != nil {
		return nil, err
	}

	var n int64
	err = timed("serialize", func() error {
		var e error
		n, e = emitter.WriteFile(cfg.OutputPath, set)
		return e
	})
	if err != nil {
		metrics.RecordValidationError("serialize", "io")
		return nil, err
	}
	metrics.RecordOutputBytes(n)
	logger.Log.Info("wrote fixed-point header", "path", cfg.OutputPath, "bytes", n, "saturated", set.Saturated())

	if err := quantize.Report(out, set); err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}

	if err := sideArtifacts(ctx, cfg, opts, set); err != nil {
		return nil, err
	}

	fmt.Fprintf(out, "\nDone! Generated:\n  - %s\n", cfg.OutputPath)
	if cfg.ArrowPath != "" {
		fmt.Fprintf(out, "  - %s\n", cfg.ArrowPath)
	}
	return &Result{Set: set, OutputBytes: n}, nil
}

func extract(cfg config.Config) (map[string]*tensor.WeightTensor, error) {
	if cfg.IsGGUFInput() {
		return gguf.ExtractFile(cfg.InputPath, cfg)
	}
	return header.ExtractFile(cfg.InputPath, cfg)
}

func sideArtifacts(ctx context.Context, cfg config.Config, opts Options, set *quantize.QuantizedTensorSet) error {
	if cfg.ArrowPath != "" {
		err := timed("arrow", func() error {
			return arrowexport.WriteFile(cfg.ArrowPath, set)
		})
		if err != nil {
			return err
		}
		logger.Log.Info("wrote arrow file", "path", cfg.ArrowPath)
	}

	pub := opts.Publisher
	if pub == nil && cfg.FlightAddr != "" {
		fc, err := arrow_client.NewFlightClient(cfg.FlightAddr, opts.FlightTimeout)
		if err != nil {
			return err
		}
		pub = fc
	}
	if pub == nil {
		return nil
	}

	return timed("publish", func() error {
		if err := pub.Connect(ctx); err != nil {
			return err
		}
		defer func() {
			_ = pub.Close()
		}()
		return pub.Publish(ctx, DescriptorPath(cfg), set)
	})
}

// DescriptorPath names a published set after its output header: qfix/<basename>.
func DescriptorPath(cfg config.Config) []string {
	base := filepath.Base(cfg.OutputPath)
	return []string{"qfix", strings.TrimSuffix(base, filepath.Ext(base))}
}

func timed(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	d := time.Since(start)
	metrics.RecordStageDuration(stage, d)
	logger.Log.Debug("stage finished", "stage", stage, "duration", d.String(), "ok", err == nil)
	return err
}

func classify(err error) string {
	var pe *header.ParseError
	var sm *tensor.ShapeMismatchError
	switch {
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &sm):
		return "shape_mismatch"
	default:
		return "io"
	}
}

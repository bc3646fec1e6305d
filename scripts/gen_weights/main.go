// gen_weights writes a deterministic set of float MLP weights as a C header and,
// optionally, as an F32 GGUF file. Useful for exercising quantize_weights without a
// trained model.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"

	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/gguf"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.Default()
	fs := flag.NewFlagSet("gen_weights", flag.ContinueOnError)
	out := fs.String("out", cfg.InputPath, "Path of the float weights header")
	ggufPath := fs.String("gguf", "", "Also write the weights as an F32 GGUF file")
	seed := fs.Int64("seed", 1, "Random seed")
	fs.IntVar(&cfg.InputSize, "input-size", cfg.InputSize, "Input layer width")
	fs.IntVar(&cfg.HiddenSize, "hidden-size", cfg.HiddenSize, "Hidden layer width")
	fs.IntVar(&cfg.OutputSize, "output-size", cfg.OutputSize, "Output layer width")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg.InputPath = *out

	if err := cfg.Validate(); err != nil {
		logger.Log.Error("invalid configuration", "error", err)
		return 2
	}

	tensors, err := generate(cfg, *seed)
	if err != nil {
		logger.Log.Error("generate weights", "error", err)
		return 1
	}

	if err := writeHeader(*out, tensors); err != nil {
		logger.Log.Error("write header", "path", *out, "error", err)
		return 1
	}
	logger.Log.Info("wrote float header", "path", *out)

	if *ggufPath != "" {
		meta := map[string]string{"general.name": "mnist-mlp"}
		if err := gguf.WriteFile(*ggufPath, meta, tensors); err != nil {
			logger.Log.Error("write gguf", "path", *ggufPath, "error", err)
			return 1
		}
		logger.Log.Info("wrote gguf", "path", *ggufPath)
	}
	return 0
}

// generate draws Glorot-uniform weights and small biases, rounded to float32.
func generate(cfg config.Config, seed int64) ([]*tensor.WeightTensor, error) {
	rng := rand.New(rand.NewSource(seed))
	var out []*tensor.WeightTensor
	for _, spec := range cfg.Tensors() {
		limit := 0.1
		if len(spec.Dims) == 2 {
			limit = math.Sqrt(6.0 / float64(spec.Dims[0]+spec.Dims[1]))
		}
		data := make([]float64, spec.NumElements())
		for i := range data {
			data[i] = float64(float32((rng.Float64()*2 - 1) * limit))
		}
		t, err := tensor.New(spec.Name, spec.Dims, data)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func writeHeader(path string, tensors []*tensor.WeightTensor) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	bw := bufio.NewWriter(f)
	bw.WriteString("#ifndef MNIST_WEIGHTS_H\n#define MNIST_WEIGHTS_H\n\n")
	for _, t := range tensors {
		fmt.Fprintf(bw, "static const float %s", t.Name)
		for _, d := range t.Dims {
			fmt.Fprintf(bw, "[%d]", d)
		}
		bw.WriteString(" = {\n")
		for i := 0; i < t.Rows(); i++ {
			bw.WriteString("    ")
			if len(t.Dims) > 1 {
				bw.WriteString("{")
			}
			for j, v := range t.Row(i) {
				if j > 0 {
					bw.WriteString(", ")
				}
				bw.WriteString(strconv.FormatFloat(v, 'e', 8, 32))
				bw.WriteString("f")
			}
			if len(t.Dims) > 1 {
				bw.WriteString("}")
			}
			if i < t.Rows()-1 {
				bw.WriteString(",")
			}
			bw.WriteString("\n")
		}
		bw.WriteString("};\n\n")
	}
	bw.WriteString("#endif\n")
	if err := bw.Flush(); err != nil {
		return err
	}
	return f.Close()
}

package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Canonical tensor names of the two-layer network.
const (
	NameW1 = "W1"
	NameB1 = "b1"
	NameW2 = "W2"
	NameB2 = "b2"
)

// FixedPointSuffix is appended to every source name in the emitted header.
const FixedPointSuffix = "_fp"

const (
	DefaultInputPath  = "weights/mnist_weights.h"
	DefaultOutputPath = "weights/mnist_weights_int32.h"
)

// TensorSpec names one expected declaration and its shape.
type TensorSpec struct {
	Name string
	Dims []int
}

// NumElements returns the product of the dimensions.
func (s TensorSpec) NumElements() int {
	n := 1
	for _, d := range s.Dims {
		n *= d
	}
	return n
}

// OutputName is the name of the fixed-point counterpart.
func (s TensorSpec) OutputName() string {
	return s.Name + FixedPointSuffix
}

type Config struct {
	InputSize  int
	HiddenSize int
	OutputSize int

	// FracBits is the number of fractional bits of the fixed-point format (Q16.16 -> 16).
	FracBits int

	InputPath  string
	OutputPath string

	// Optional side artifacts. Empty disables them.
	ArrowPath   string
	MetricsPath string
	FlightAddr  string

	LogLevel  string
	LogFormat string
}

func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("invalid input_size: %d (must be positive)", c.InputSize)
	}
	if c.HiddenSize <= 0 {
		return fmt.Errorf("invalid hidden_size: %d (must be positive)", c.HiddenSize)
	}
	if c.OutputSize <= 0 {
		return fmt.Errorf("invalid output_size: %d (must be positive)", c.OutputSize)
	}
	if c.FracBits < 0 || c.FracBits > 31 {
		return fmt.Errorf("invalid frac_bits: %d (must be in [0, 31])", c.FracBits)
	}
	if c.InputPath == "" {
		return fmt.Errorf("input path is empty")
	}
	if c.OutputPath == "" {
		return fmt.Errorf("output path is empty")
	}
	if filepath.Clean(c.InputPath) == filepath.Clean(c.OutputPath) {
		return fmt.Errorf("output path %q would overwrite the input", c.OutputPath)
	}
	return nil
}

// Tensors returns the four expected declarations in emission order.
func (c Config) Tensors() []TensorSpec {
	return []TensorSpec{
		{Name: NameW1, Dims: []int{c.InputSize, c.HiddenSize}},
		{Name: NameB1, Dims: []int{c.HiddenSize}},
		{Name: NameW2, Dims: []int{c.HiddenSize, c.OutputSize}},
		{Name: NameB2, Dims: []int{c.OutputSize}},
	}
}

// IsGGUFInput reports whether the input should be read with the GGUF reader.
func (c Config) IsGGUFInput() bool {
	return strings.HasSuffix(strings.ToLower(c.InputPath), ".gguf")
}

func Default() Config {
	return Config{
		InputSize:  784,
		HiddenSize: 32,
		OutputSize: 10,
		FracBits:   16,
		InputPath:  DefaultInputPath,
		OutputPath: DefaultOutputPath,
		LogLevel:   "info",
		LogFormat:  "console",
	}
}

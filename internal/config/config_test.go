package config

import (
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.InputSize != 784 {
		t.Errorf("expected InputSize 784, got %d", cfg.InputSize)
	}
	if cfg.HiddenSize != 32 {
		t.Errorf("expected HiddenSize 32, got %d", cfg.HiddenSize)
	}
	if cfg.OutputSize != 10 {
		t.Errorf("expected OutputSize 10, got %d", cfg.OutputSize)
	}
	if cfg.FracBits != 16 {
		t.Errorf("expected FracBits 16, got %d", cfg.FracBits)
	}
	if cfg.InputPath != "weights/mnist_weights.h" {
		t.Errorf("unexpected InputPath %q", cfg.InputPath)
	}
	if cfg.OutputPath != "weights/mnist_weights_int32.h" {
		t.Errorf("unexpected OutputPath %q", cfg.OutputPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Default()

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid config", func(c *Config) {}, false},
		{"zero input size", func(c *Config) { c.InputSize = 0 }, true},
		{"negative hidden size", func(c *Config) { c.HiddenSize = -1 }, true},
		{"zero output size", func(c *Config) { c.OutputSize = 0 }, true},
		{"negative frac bits", func(c *Config) { c.FracBits = -1 }, true},
		{"frac bits too large", func(c *Config) { c.FracBits = 32 }, true},
		{"integer format", func(c *Config) { c.FracBits = 0 }, false},
		{"empty input", func(c *Config) { c.InputPath = "" }, true},
		{"empty output", func(c *Config) { c.OutputPath = "" }, true},
		{"output overwrites input", func(c *Config) { c.OutputPath = c.InputPath }, true},
		{"output overwrites input via dot path", func(c *Config) { c.InputPath, c.OutputPath = "./x.h", "x.h" }, true},
		{"output overwrites input via parent path", func(c *Config) { c.InputPath, c.OutputPath = "w/../x.h", "x.h" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTensors(t *testing.T) {
	cfg := Default()
	specs := cfg.Tensors()

	want := []struct {
		name  string
		dims  []int
		count int
	}{
		{"W1", []int{784, 32}, 784 * 32},
		{"b1", []int{32}, 32},
		{"W2", []int{32, 10}, 320},
		{"b2", []int{10}, 10},
	}

	if len(specs) != len(want) {
		t.Fatalf("expected %d specs, got %d", len(want), len(specs))
	}
	for i, w := range want {
		s := specs[i]
		if s.Name != w.name {
			t.Errorf("spec %d: name %q, want %q", i, s.Name, w.name)
		}
		if len(s.Dims) != len(w.dims) {
			t.Fatalf("spec %s: dims %v, want %v", s.Name, s.Dims, w.dims)
		}
		for j := range w.dims {
			if s.Dims[j] != w.dims[j] {
				t.Errorf("spec %s: dims %v, want %v", s.Name, s.Dims, w.dims)
			}
		}
		if s.NumElements() != w.count {
			t.Errorf("spec %s: NumElements %d, want %d", s.Name, s.NumElements(), w.count)
		}
		if s.OutputName() != w.name+"_fp" {
			t.Errorf("spec %s: OutputName %q", s.Name, s.OutputName())
		}
	}
}

func TestIsGGUFInput(t *testing.T) {
	cfg := Default()
	if cfg.IsGGUFInput() {
		t.Error("header input reported as GGUF")
	}
	cfg.InputPath = "weights/MNIST.GGUF"
	if !cfg.IsGGUFInput() {
		t.Error("expected GGUF input")
	}
}

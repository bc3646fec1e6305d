package gguf

import (
	"fmt"

	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

// Extract pulls the network arrays of cfg out of a parsed GGUF file. Tensors that are
// not present are absent from the result, mirroring the header extractor.
func Extract(f *GGUFFile, cfg config.Config) (map[string]*tensor.WeightTensor, error) {
	out := make(map[string]*tensor.WeightTensor)
	for _, spec := range cfg.Tensors() {
		info, ok := f.Tensor(spec.Name)
		if !ok {
			continue
		}
		shape := info.Shape()
		if !tensor.SameDims(shape, spec.Dims) {
			return nil, &tensor.ShapeMismatchError{Name: spec.Name, ExpectedDims: spec.Dims, ActualDims: shape}
		}

		vals, err := info.Float32s()
		if err != nil {
			return nil, err
		}
		data := make([]float64, len(vals))
		for i, v := range vals {
			data[i] = float64(v)
		}

		t, err := tensor.New(spec.Name, spec.Dims, data)
		if err != nil {
			return nil, err
		}
		out[spec.Name] = t
	}
	return out, nil
}

// ExtractFile loads path and extracts the network arrays from it.
func ExtractFile(path string, cfg config.Config) (map[string]*tensor.WeightTensor, error) {
	f, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	found, err := Extract(f, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return found, nil
}

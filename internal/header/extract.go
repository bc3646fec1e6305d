package header

import (
	"fmt"
	"os"

	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

// Extract finds the four network arrays described by cfg. Arrays that are not declared
// are absent from the result; use Require to turn that into an error.
func Extract(src []byte, cfg config.Config) (map[string]*tensor.WeightTensor, error) {
	return ExtractSpecs(src, cfg.Tensors())
}

// ExtractSpecs finds the named arrays of specs in src. A declaration with the right name
// but different dimensions, or whose literal count does not fill its shape, is a
// *tensor.ShapeMismatchError. The first declaration of a name wins.
func ExtractSpecs(src []byte, specs []config.TensorSpec) (map[string]*tensor.WeightTensor, error) {
	decls, err := Parse(src)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*Declaration, len(decls))
	for _, d := range decls {
		if _, dup := byName[d.Name]; !dup {
			byName[d.Name] = d
		}
	}

	out := make(map[string]*tensor.WeightTensor, len(specs))
	for _, spec := range specs {
		d, ok := byName[spec.Name]
		if !ok {
			logger.Log.Debug("declaration not found", "name", spec.Name)
			continue
		}
		if d.Err != nil {
			return nil, d.Err
		}
		if !tensor.SameDims(d.Dims, spec.Dims) {
			return nil, &tensor.ShapeMismatchError{
				Name:         spec.Name,
				ExpectedDims: spec.Dims,
				ActualDims:   d.Dims,
			}
		}

		t, err := tensor.New(spec.Name, spec.Dims, d.Values)
		if err != nil {
			return nil, err
		}
		logger.Log.Debug("extracted declaration",
			"name", d.Name,
			"type", d.Type,
			"dims", tensor.FormatDims(d.Dims),
			"line", d.Line,
			"elements", t.NumElements(),
		)
		out[spec.Name] = t
	}
	return out, nil
}

// ExtractFile reads path and extracts the network arrays from it.
func ExtractFile(path string, cfg config.Config) (map[string]*tensor.WeightTensor, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights header: %w", err)
	}
	found, err := Extract(src, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return found, nil
}

// Require checks that every array of cfg was found.
func Require(found map[string]*tensor.WeightTensor, cfg config.Config) error {
	var missing []string
	for _, spec := range cfg.Tensors() {
		if _, ok := found[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	if len(missing) > 0 {
		return &MissingDeclarationError{Names: missing}
	}
	return nil
}

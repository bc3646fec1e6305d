package quantize

import (
	"github.com/23skdu/longbow-qfix/internal/config"
	"github.com/23skdu/longbow-qfix/internal/fixedpoint"
	"github.com/23skdu/longbow-qfix/internal/header"
	"github.com/23skdu/longbow-qfix/internal/metrics"
	"github.com/23skdu/longbow-qfix/internal/tensor"
)

// QuantizedTensor is the fixed-point image of one WeightTensor.
type QuantizedTensor struct {
	Name   string // source name, e.g. W1
	Dims   []int
	Values []int32

	// Source keeps the real values for statistics and side artifacts.
	Source []float64

	SourceMin, SourceMax float64
	QuantMin, QuantMax   int32
	Saturated            int
}

// OutputName is the name used in the emitted header (W1 -> W1_fp).
func (q *QuantizedTensor) OutputName() string {
	return q.Name + config.FixedPointSuffix
}

func (q *QuantizedTensor) RowLen() int {
	return tensor.NumElements(q.Dims[1:])
}

// QuantizedTensorSet holds the four quantized tensors in emission order.
type QuantizedTensorSet struct {
	Config  config.Config
	Tensors []*QuantizedTensor
}

// Saturated is the total number of clamped elements across the set.
func (s *QuantizedTensorSet) Saturated() int {
	n := 0
	for _, q := range s.Tensors {
		n += q.Saturated
	}
	return n
}

// EncodeTensor converts one tensor to fixed point.
func EncodeTensor(t *tensor.WeightTensor, fracBits int) *QuantizedTensor {
	values, saturated := fixedpoint.EncodeSlice(t.Data, fracBits)
	srcMin, srcMax := t.MinMax()
	qMin, qMax := fixedpoint.MinMax(values)

	dims := make([]int, len(t.Dims))
	copy(dims, t.Dims)

	return &QuantizedTensor{
		Name:      t.Name,
		Dims:      dims,
		Values:    values,
		Source:    t.Data,
		SourceMin: srcMin,
		SourceMax: srcMax,
		QuantMin:  qMin,
		QuantMax:  qMax,
		Saturated: saturated,
	}
}

// Quantize validates that every tensor of cfg is present with its declared shape and
// encodes them all. Nothing is encoded if validation fails.
func Quantize(found map[string]*tensor.WeightTensor, cfg config.Config) (*QuantizedTensorSet, error) {
	if err := header.Require(found, cfg); err != nil {
		metrics.RecordValidationError("validate", "missing_declaration")
		return nil, err
	}

	specs := cfg.Tensors()
	for _, spec := range specs {
		t := found[spec.Name]
		if !t.HasShape(spec.Dims) {
			metrics.RecordValidationError("validate", "shape_mismatch")
			return nil, &tensor.ShapeMismatchError{Name: spec.Name, ExpectedDims: spec.Dims, ActualDims: t.Dims}
		}
		if t.NumElements() != spec.NumElements() {
			metrics.RecordValidationError("validate", "shape_mismatch")
			return nil, &tensor.ShapeMismatchError{Name: spec.Name, Expected: spec.NumElements(), Actual: t.NumElements()}
		}
	}

	set := &QuantizedTensorSet{Config: cfg}
	for _, spec := range specs {
		q := EncodeTensor(found[spec.Name], cfg.FracBits)
		metrics.RecordTensorQuantized(q.Name, len(q.Values), q.Saturated)
		set.Tensors = append(set.Tensors, q)
	}
	return set, nil
}

package tensor

import (
	"fmt"
	"math"
	"strings"
)

// WeightTensor is a named, row-major, real-valued array.
type WeightTensor struct {
	Name string
	Dims []int
	Data []float64
}

// ShapeMismatchError is returned when a value list does not fill the declared shape,
// or when a declaration's dimensions differ from the expected ones.
type ShapeMismatchError struct {
	Name         string
	Expected     int
	Actual       int
	ExpectedDims []int
	ActualDims   []int
}

func (e *ShapeMismatchError) Error() string {
	if e.ExpectedDims != nil || e.ActualDims != nil {
		return fmt.Sprintf("shape mismatch for %s: declared %s, expected %s",
			e.Name, FormatDims(e.ActualDims), FormatDims(e.ExpectedDims))
	}
	return fmt.Sprintf("shape mismatch for %s: expected %d elements, got %d", e.Name, e.Expected, e.Actual)
}

// NumElements returns the product of dims.
func NumElements(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}

// FormatDims renders dims in declaration syntax, e.g. [784][32].
func FormatDims(dims []int) string {
	var sb strings.Builder
	for _, d := range dims {
		fmt.Fprintf(&sb, "[%d]", d)
	}
	return sb.String()
}

// New reshapes a flat value list into dims. The list must have exactly the declared
// number of elements.
func New(name string, dims []int, data []float64) (*WeightTensor, error) {
	if len(dims) == 0 {
		return nil, fmt.Errorf("tensor %s has no dimensions", name)
	}
	for _, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("tensor %s has invalid dimension %d", name, d)
		}
	}
	want := NumElements(dims)
	if len(data) != want {
		return nil, &ShapeMismatchError{Name: name, Expected: want, Actual: len(data)}
	}
	d := make([]int, len(dims))
	copy(d, dims)
	return &WeightTensor{Name: name, Dims: d, Data: data}, nil
}

func (t *WeightTensor) NumElements() int {
	return len(t.Data)
}

// Rows is the size of the outermost dimension.
func (t *WeightTensor) Rows() int {
	return t.Dims[0]
}

// RowLen is the number of elements in one outermost row.
func (t *WeightTensor) RowLen() int {
	return NumElements(t.Dims[1:])
}

// Row returns the i-th outermost row as a view into Data.
func (t *WeightTensor) Row(i int) []float64 {
	n := t.RowLen()
	return t.Data[i*n : (i+1)*n]
}

// HasShape reports whether the tensor's dims equal dims.
func (t *WeightTensor) HasShape(dims []int) bool {
	return SameDims(t.Dims, dims)
}

// MinMax returns the extrema of the tensor, ignoring NaNs.
func (t *WeightTensor) MinMax() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range t.Data {
		if math.IsNaN(v) {
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// SameDims compares two dimension lists.
func SameDims(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

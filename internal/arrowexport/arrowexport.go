// Package arrowexport converts a quantized tensor set to an Arrow record, one row per
// tensor, and persists it as an Arrow IPC file.
package arrowexport

import (
	"fmt"
	"os"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-qfix/internal/fixedpoint"
	"github.com/23skdu/longbow-qfix/internal/quantize"
)

const (
	colTensor = iota
	colName
	colShape
	colValues
	colSource
	colSaturated
)

const (
	MetaFracBits = "qfix.frac_bits"
	MetaFormat   = "qfix.format"
)

// TensorRow is the decoded form of one record row.
type TensorRow struct {
	Tensor    string
	Name      string
	Shape     []int
	Values    []int32
	Source    []float64
	Saturated int64
}

// Schema returns the record schema for a set quantized with fracBits.
func Schema(fracBits int) *arrow.Schema {
	md := arrow.NewMetadata(
		[]string{MetaFracBits, MetaFormat},
		[]string{strconv.Itoa(fracBits), fixedpoint.FormatName(fracBits)},
	)
	return arrow.NewSchema([]arrow.Field{
		{Name: "tensor", Type: arrow.BinaryTypes.String},
		{Name: "name", Type: arrow.BinaryTypes.String},
		{Name: "shape", Type: arrow.ListOf(arrow.PrimitiveTypes.Int64)},
		{Name: "values", Type: arrow.ListOf(arrow.PrimitiveTypes.Int32)},
		{Name: "source", Type: arrow.ListOf(arrow.PrimitiveTypes.Float64)},
		{Name: "saturated", Type: arrow.PrimitiveTypes.Int64},
	}, &md)
}

// NewRecord builds a record holding every tensor of set. The caller must Release it.
func NewRecord(mem memory.Allocator, set *quantize.QuantizedTensorSet) arrow.Record {
	b := array.NewRecordBuilder(mem, Schema(set.Config.FracBits))
	defer b.Release()

	tensorB := b.Field(colTensor).(*array.StringBuilder)
	nameB := b.Field(colName).(*array.StringBuilder)
	shapeB := b.Field(colShape).(*array.ListBuilder)
	shapeVB := shapeB.ValueBuilder().(*array.Int64Builder)
	valuesB := b.Field(colValues).(*array.ListBuilder)
	valuesVB := valuesB.ValueBuilder().(*array.Int32Builder)
	sourceB := b.Field(colSource).(*array.ListBuilder)
	sourceVB := sourceB.ValueBuilder().(*array.Float64Builder)
	satB := b.Field(colSaturated).(*array.Int64Builder)

	for _, q := range set.Tensors {
		tensorB.Append(q.Name)
		nameB.Append(q.OutputName())

		shapeB.Append(true)
		for _, d := range q.Dims {
			shapeVB.Append(int64(d))
		}

		valuesB.Append(true)
		valuesVB.AppendValues(q.Values, nil)

		sourceB.Append(true)
		sourceVB.AppendValues(q.Source, nil)

		satB.Append(int64(q.Saturated))
	}

	return b.NewRecord()
}

// DecodeRecord turns a record built by NewRecord back into rows.
func DecodeRecord(rec arrow.Record) ([]TensorRow, error) {
	if rec.NumCols() != colSaturated+1 {
		return nil, fmt.Errorf("unexpected column count %d", rec.NumCols())
	}
	tensors, ok1 := rec.Column(colTensor).(*array.String)
	names, ok2 := rec.Column(colName).(*array.String)
	shapes, ok3 := rec.Column(colShape).(*array.List)
	values, ok4 := rec.Column(colValues).(*array.List)
	sources, ok5 := rec.Column(colSource).(*array.List)
	sats, ok6 := rec.Column(colSaturated).(*array.Int64)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6) {
		return nil, fmt.Errorf("record does not match the quantized tensor schema")
	}

	shapeVals := shapes.ListValues().(*array.Int64)
	valueVals := values.ListValues().(*array.Int32)
	sourceVals := sources.ListValues().(*array.Float64)

	rows := make([]TensorRow, 0, rec.NumRows())
	for i := 0; i < int(rec.NumRows()); i++ {
		row := TensorRow{
			Tensor:    tensors.Value(i),
			Name:      names.Value(i),
			Saturated: sats.Value(i),
		}

		start, end := shapes.ValueOffsets(i)
		for j := start; j < end; j++ {
			row.Shape = append(row.Shape, int(shapeVals.Value(int(j))))
		}
		start, end = values.ValueOffsets(i)
		row.Values = make([]int32, 0, end-start)
		for j := start; j < end; j++ {
			row.Values = append(row.Values, valueVals.Value(int(j)))
		}
		start, end = sources.ValueOffsets(i)
		row.Source = make([]float64, 0, end-start)
		for j := start; j < end; j++ {
			row.Source = append(row.Source, sourceVals.Value(int(j)))
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// FracBits reads the fixed-point format recorded in a schema.
func FracBits(schema *arrow.Schema) (int, error) {
	md := schema.Metadata()
	idx := md.FindKey(MetaFracBits)
	if idx < 0 {
		return 0, fmt.Errorf("schema has no %s metadata", MetaFracBits)
	}
	return strconv.Atoi(md.Values()[idx])
}

// WriteFile writes set as an Arrow IPC file at path.
func WriteFile(path string, set *quantize.QuantizedTensorSet) error {
	mem := memory.NewGoAllocator()
	rec := NewRecord(mem, set)
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create arrow file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	w, err := ipc.NewFileWriter(f, ipc.WithSchema(rec.Schema()), ipc.WithAllocator(mem))
	if err != nil {
		return fmt.Errorf("open arrow writer: %w", err)
	}
	if err := w.Write(rec); err != nil {
		_ = w.Close()
		return fmt.Errorf("write arrow record: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close arrow writer: %w", err)
	}
	return f.Close()
}

// ReadFile reads every row of an Arrow IPC file written by WriteFile, along with the
// fractional bit count from its schema metadata.
func ReadFile(path string) ([]TensorRow, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open arrow file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	r, err := ipc.NewFileReader(f, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, 0, fmt.Errorf("open arrow reader: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	fracBits, err := FracBits(r.Schema())
	if err != nil {
		return nil, 0, err
	}

	var rows []TensorRow
	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return nil, 0, fmt.Errorf("read arrow record %d: %w", i, err)
		}
		decoded, err := DecodeRecord(rec)
		if err != nil {
			return nil, 0, err
		}
		rows = append(rows, decoded...)
	}
	return rows, fracBits, nil
}

// Package emitter renders a quantized tensor set as a C header of int32_t arrays.
package emitter

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/23skdu/longbow-qfix/internal/fixedpoint"
	"github.com/23skdu/longbow-qfix/internal/quantize"
)

const defaultGuard = "WEIGHTS_INT32_H"

// GuardName derives an include guard from an output file name:
// weights/mnist_weights_int32.h -> MNIST_WEIGHTS_INT32_H.
func GuardName(path string) string {
	base := filepath.Base(path)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return defaultGuard
	}
	var sb strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z':
			sb.WriteRune(r - 'a' + 'A')
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	guard := sb.String()
	if guard[0] >= '0' && guard[0] <= '9' {
		guard = "_" + guard
	}
	return guard
}

// Write renders set as a header guarded by guard.
func Write(w io.Writer, set *quantize.QuantizedTensorSet, guard string) error {
	cfg := set.Config
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "#ifndef %s\n#define %s\n\n", guard, guard)
	bw.WriteString("#include <stdint.h>\n\n")
	fmt.Fprintf(bw, "#define INPUT_SIZE %d\n", cfg.InputSize)
	fmt.Fprintf(bw, "#define HIDDEN_SIZE %d\n", cfg.HiddenSize)
	fmt.Fprintf(bw, "#define OUTPUT_SIZE %d\n\n", cfg.OutputSize)
	writeFormatComment(bw, cfg.FracBits)

	for _, q := range set.Tensors {
		writeArray(bw, q)
	}

	bw.WriteString("#endif\n")
	return bw.Flush()
}

func writeFormatComment(bw *bufio.Writer, fracBits int) {
	intBits := 32 - fracBits
	lo, hi := fixedpoint.Range(fracBits)
	scale := int64(1) << uint(fracBits)

	fmt.Fprintf(bw, "// %s fixed-point format: %d integer bits + %d fractional bits\n",
		fixedpoint.FormatName(fracBits), intBits, fracBits)
	fmt.Fprintf(bw, "// real value = int32 value / %d (scale factor 2^%d)\n", scale, fracBits)
	fmt.Fprintf(bw, "// Range: %s to ~%s, precision: 1/%d\n",
		strconv.FormatFloat(lo, 'f', 1, 64), strconv.FormatFloat(hi, 'f', 5, 64), scale)
	bw.WriteString("// Encoding: round half away from zero, saturated to [INT32_MIN, INT32_MAX]\n")
	bw.WriteString("// These weights are pre-quantized offline for efficiency\n\n")
}

func writeArray(bw *bufio.Writer, q *quantize.QuantizedTensor) {
	bw.WriteString("const int32_t ")
	bw.WriteString(q.OutputName())
	for _, d := range q.Dims {
		fmt.Fprintf(bw, "[%d]", d)
	}
	bw.WriteString(" = {")

	buf := make([]byte, 0, 16)
	if len(q.Dims) == 1 {
		writeRow(bw, q.Values, buf)
		bw.WriteString("};\n\n")
		return
	}

	bw.WriteString("\n")
	rowLen := q.RowLen()
	rows := q.Dims[0]
	for i := 0; i < rows; i++ {
		bw.WriteString("    {")
		writeRow(bw, q.Values[i*rowLen:(i+1)*rowLen], buf)
		bw.WriteString("}")
		if i < rows-1 {
			bw.WriteString(",")
		}
		bw.WriteString("\n")
	}
	bw.WriteString("};\n\n")
}

func writeRow(bw *bufio.Writer, vals []int32, buf []byte) {
	for j, v := range vals {
		if j > 0 {
			bw.WriteString(", ")
		}
		bw.Write(strconv.AppendInt(buf[:0], int64(v), 10))
	}
}

// countingWriter tracks the number of bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteFile renders set to path. The header is staged in a temporary file in the same
// directory and renamed into place, so a failed run never leaves a partial file.
// It returns the number of bytes written.
func WriteFile(path string, set *quantize.QuantizedTensorSet) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create output: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := Write(cw, set, GuardName(path)); err != nil {
		return 0, fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return 0, fmt.Errorf("chmod output: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, fmt.Errorf("commit output: %w", err)
	}
	committed = true
	return cw.n, nil
}

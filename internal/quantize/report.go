package quantize

import (
	"fmt"
	"io"

	"github.com/23skdu/longbow-qfix/internal/fixedpoint"
	"github.com/23skdu/longbow-qfix/internal/logger"
	"github.com/23skdu/longbow-qfix/internal/metrics"
)

// Report prints the per-tensor source and fixed-point extrema. It is diagnostic only.
func Report(w io.Writer, set *QuantizedTensorSet) error {
	format := fixedpoint.FormatName(set.Config.FracBits)

	if _, err := fmt.Fprintln(w, "Quantization statistics:"); err != nil {
		return err
	}
	for _, q := range set.Tensors {
		_, err := fmt.Fprintf(w, "%s: min=%.6f, max=%.6f\n    %s min=%d, max=%d\n",
			q.Name, q.SourceMin, q.SourceMax, format, q.QuantMin, q.QuantMax)
		if err != nil {
			return err
		}

		metrics.RecordTensorRange(q.Name, q.SourceMin, q.SourceMax)
		logger.Log.Info("tensor statistics",
			"tensor", q.Name,
			"elements", len(q.Values),
			"min", q.SourceMin,
			"max", q.SourceMax,
			"q_min", q.QuantMin,
			"q_max", q.QuantMax,
			"saturated", q.Saturated,
		)
		if q.Saturated > 0 {
			logger.Log.Warn("values saturated to int32 range", "tensor", q.Name, "count", q.Saturated)
		}
	}
	return nil
}

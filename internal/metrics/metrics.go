package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TensorElementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qfix_tensor_elements_total",
		Help: "Total number of weight values encoded to fixed point",
	}, []string{"tensor"})

	SaturatedValuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qfix_saturated_values_total",
		Help: "Number of weight values clamped to the int32 range",
	}, []string{"tensor"})

	ValidationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "qfix_validation_errors_total",
		Help: "Total number of validation errors",
	}, []string{"operation", "error_type"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "qfix_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"stage"})

	TensorValueRange = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "qfix_tensor_source_value",
		Help: "Extrema of the real-valued source tensors",
	}, []string{"tensor", "bound"})

	OutputBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qfix_output_bytes",
		Help: "Size of the last emitted header in bytes",
	})

	LastRunSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qfix_last_run_success",
		Help: "1 if the last quantization run succeeded, 0 otherwise",
	})

	LastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "qfix_last_run_timestamp_seconds",
		Help: "Unix time the last quantization run finished",
	})
)

func RecordTensorQuantized(name string, elements, saturated int) {
	TensorElementsTotal.WithLabelValues(name).Add(float64(elements))
	if saturated > 0 {
		SaturatedValuesTotal.WithLabelValues(name).Add(float64(saturated))
	}
}

func RecordTensorRange(name string, min, max float64) {
	TensorValueRange.WithLabelValues(name, "min").Set(min)
	TensorValueRange.WithLabelValues(name, "max").Set(max)
}

func RecordValidationError(operation, errorType string) {
	ValidationErrors.WithLabelValues(operation, errorType).Inc()
}

func RecordStageDuration(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordOutputBytes(n int64) {
	OutputBytes.Set(float64(n))
}

func RecordRunResult(success bool) {
	if success {
		LastRunSuccess.Set(1)
	} else {
		LastRunSuccess.Set(0)
	}
	LastRunTimestamp.SetToCurrentTime()
}

// WriteTextfile dumps the default registry in the text exposition format, for the
// node_exporter textfile collector. The file is replaced atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

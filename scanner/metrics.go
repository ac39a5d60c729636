package scanner

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// scanMetrics holds the instruments every Scanner records a first_scan or
// rescan call against. Instruments are bound once per Scanner instance off
// the global MeterProvider; instruments bound before telemetry.InitMetrics
// runs come from OTel's global delegating provider and forward to the real
// provider once InitMetrics installs it.
type scanMetrics struct {
	duration    metric.Float64Histogram
	results     metric.Int64Counter
	faults      metric.Int64Counter
	saturations metric.Int64Counter
}

func newScanMetrics() scanMetrics {
	meter := otel.Meter("memscand")
	duration, _ := meter.Float64Histogram("memscand_scan_duration_seconds")
	results, _ := meter.Int64Counter("memscand_scan_results_total")
	faults, _ := meter.Int64Counter("memscand_scan_faults_total")
	saturations, _ := meter.Int64Counter("memscand_scan_saturations_total")
	return scanMetrics{duration: duration, results: results, faults: faults, saturations: saturations}
}

// record folds one scan call's outcome into the instruments, tagged by
// kind ("first_scan" or "rescan") so the two engines' costs are visible
// separately on the same dashboard.
func (m scanMetrics) record(ctx context.Context, kind string, elapsed time.Duration, resultCount int, faulted int64, saturated bool) {
	attrs := metric.WithAttributes(attribute.String("scan_kind", kind))
	m.duration.Record(ctx, elapsed.Seconds(), attrs)
	m.results.Add(ctx, int64(resultCount), attrs)
	if faulted > 0 {
		m.faults.Add(ctx, faulted, attrs)
	}
	if saturated {
		m.saturations.Add(ctx, 1, attrs)
	}
}

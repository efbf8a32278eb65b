package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordTraining(16, 2*time.Second)
	m.RecordHash(1024, 500*time.Millisecond)
	m.RecordQuery(time.Millisecond, 12, 340)
	m.RecordRecall(0.92)
	m.RecordTrainingError()
	m.UpdateTableStats("0", 128, 19)

	if got := testutil.ToFloat64(m.TablesTrained); got != 16 {
		t.Errorf("TablesTrained = %v, want 16", got)
	}
	if got := testutil.ToFloat64(m.VectorsHashed); got != 1024 {
		t.Errorf("VectorsHashed = %v, want 1024", got)
	}
	if got := testutil.ToFloat64(m.QueriesTotal); got != 1 {
		t.Errorf("QueriesTotal = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TrainingErrors); got != 1 {
		t.Errorf("TrainingErrors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.IndexBuckets.WithLabelValues("0")); got != 128 {
		t.Errorf("IndexBuckets = %v, want 128", got)
	}
	if got := testutil.ToFloat64(m.MaxBucketSize.WithLabelValues("0")); got != 19 {
		t.Errorf("MaxBucketSize = %v, want 19", got)
	}
}

func TestMetricsSeparateRegistries(t *testing.T) {
	// Two metric sets must coexist on distinct registries.
	a := NewMetrics(prometheus.NewRegistry())
	b := NewMetrics(prometheus.NewRegistry())

	a.RecordHash(10, time.Millisecond)
	if got := testutil.ToFloat64(b.VectorsHashed); got != 0 {
		t.Errorf("registries leaked: b.VectorsHashed = %v", got)
	}
}

package metric

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistryCountsConditionEvaluations(t *testing.T) {
	r := NewRegistry()

	r.Metrics.ConditionEvaluations.WithLabelValues("THRESHOLD", "true").Inc()
	r.Metrics.ConditionEvaluations.WithLabelValues("THRESHOLD", "true").Inc()

	got := testutil.ToFloat64(r.Metrics.ConditionEvaluations.WithLabelValues("THRESHOLD", "true"))
	if got != 2 {
		t.Fatalf("expected counter value 2, got %v", got)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "alertengine_test_extra_total"})

	if err := r.Register("extra", c); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := r.Register("extra", c); err == nil {
		t.Fatalf("expected second Register with same name to fail")
	}
}

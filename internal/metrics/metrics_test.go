// internal/metrics/metrics_test.go
package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/avivl/editwarning/internal/coordinator"
)

var _ coordinator.Recorder = Recorder{}

func TestRecorder(t *testing.T) {
	r := Recorder{}

	before := testutil.ToFloat64(DecisionsTotal.WithLabelValues("granted"))
	r.RecordDecision("granted")
	r.RecordDecision("granted")
	assert.Equal(t, before+2, testutil.ToFloat64(DecisionsTotal.WithLabelValues("granted")))

	before = testutil.ToFloat64(StoreErrorsTotal.WithLabelValues("evaluate"))
	r.RecordStoreError("evaluate")
	assert.Equal(t, before+1, testutil.ToFloat64(StoreErrorsTotal.WithLabelValues("evaluate")))

	before = testutil.ToFloat64(ExpiredLocksRemovedTotal)
	r.RecordExpired(3)
	r.RecordExpired(0)
	assert.Equal(t, before+3, testutil.ToFloat64(ExpiredLocksRemovedTotal))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetQueueDepthByLabel(t *testing.T) {
	m := New()
	m.SetQueueDepth("tx", 3)
	m.SetQueueDepth("state", 1)

	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("tx")); got != 3 {
		t.Fatalf("expected tx depth 3, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueDepth.WithLabelValues("state")); got != 1 {
		t.Fatalf("expected state depth 1, got %v", got)
	}
}

func TestRecordAdmissionRejectedByReason(t *testing.T) {
	m := New()
	m.RecordAdmissionRejected("NullifierExists")
	m.RecordAdmissionRejected("NullifierExists")
	m.RecordAdmissionRejected("VerifierFailed")

	if got := testutil.ToFloat64(m.AdmissionRejectedTotal.WithLabelValues("NullifierExists")); got != 2 {
		t.Fatalf("expected 2 rejections for NullifierExists, got %v", got)
	}
	if got := testutil.ToFloat64(m.AdmissionRejectedTotal.WithLabelValues("VerifierFailed")); got != 1 {
		t.Fatalf("expected 1 rejection for VerifierFailed, got %v", got)
	}
}

func TestEachInstanceHasIndependentRegistry(t *testing.T) {
	a := New()
	b := New()
	a.BatchesSubmittedTotal.Inc()
	if got := testutil.ToFloat64(b.BatchesSubmittedTotal); got != 0 {
		t.Fatalf("expected independent registries, but b observed a's increment")
	}
}

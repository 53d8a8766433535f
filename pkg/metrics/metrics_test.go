package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestManagerRegistersAllMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(WithRegistry(reg), WithNamespace("test"), WithSubsystem("ladder"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected metrics to be registered")
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "test_ladder_") {
			t.Errorf("unexpected metric name %q", f.GetName())
		}
	}

	if m.matchesMerged == nil || m.runDuration == nil || m.httpRequests == nil {
		t.Error("expected all metric handles to be initialized")
	}
}

func TestPackageLevelRecorders(t *testing.T) {
	before := testutil.ToFloat64(globalManager.matchesMerged)
	RecordMatchMerged()
	RecordMatchMerged()
	if got := testutil.ToFloat64(globalManager.matchesMerged); got != before+2 {
		t.Errorf("expected merged counter %v, got %v", before+2, got)
	}

	before = testutil.ToFloat64(globalManager.matchesDuplicate)
	RecordMatchDuplicate()
	if got := testutil.ToFloat64(globalManager.matchesDuplicate); got != before+1 {
		t.Errorf("expected duplicate counter %v, got %v", before+1, got)
	}

	before = testutil.ToFloat64(globalManager.runFailures)
	RecordRunFailure()
	if got := testutil.ToFloat64(globalManager.runFailures); got != before+1 {
		t.Errorf("expected failure counter %v, got %v", before+1, got)
	}

	UpdateTeamsTotal(12)
	if got := testutil.ToFloat64(globalManager.teamsTotal); got != 12 {
		t.Errorf("expected teams gauge 12, got %v", got)
	}

	UpdateMatchLogSize(34)
	if got := testutil.ToFloat64(globalManager.matchLogSize); got != 34 {
		t.Errorf("expected match log gauge 34, got %v", got)
	}

	RecordRunDuration(0.25)
	RecordHTTPRequest("standings", "GET", "200")
	RecordHTTPRequestDuration("standings", "GET", "200", 4.2)

	if got := testutil.ToFloat64(globalManager.httpRequests.WithLabelValues("standings", "GET", "200")); got < 1 {
		t.Errorf("expected http request counter >= 1, got %v", got)
	}
}

func TestGetRegistryServesGlobalMetrics(t *testing.T) {
	RecordMatchApplied()

	families, err := GetRegistry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "sideout_ladder_matches_applied_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected applied counter in global registry")
	}
}

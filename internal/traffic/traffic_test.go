package traffic

import (
	"sync"
	"testing"
	"time"
)

func newTestTracker(now *time.Time) *Tracker {
	return &Tracker{now: func() time.Time { return *now }}
}

// TestRequestCount_Empty verifies that RequestCount returns 0 when no
// outcomes have been recorded within the time window.
func TestRequestCount_Empty(t *testing.T) {
	tr := NewTracker()
	if n := tr.RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() = %d, want 0", n)
	}
}

// TestRecordDenied_AndCounts verifies that denials count toward RequestCount
// but not toward ErrorRate.
func TestRecordDenied_AndCounts(t *testing.T) {
	tr := NewTracker()
	tr.RecordDenied()
	tr.RecordDenied()
	tr.RecordSuccess()
	if n := tr.DenialCount(time.Minute); n != 2 {
		t.Errorf("DenialCount() = %d, want 2", n)
	}
	if n := tr.RequestCount(time.Minute); n != 3 {
		t.Errorf("RequestCount() = %d, want 3", n)
	}
	if errs, total := tr.ErrorRate(time.Minute); errs != 0 || total != 1 {
		t.Errorf("ErrorRate() = %d/%d, want 0/1", errs, total)
	}
}

// TestErrorRate_Window verifies that outcomes outside the window are not counted.
func TestErrorRate_Window(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(&now)

	tr.RecordError()
	tr.RecordError()
	now = now.Add(2 * time.Minute)
	tr.RecordSuccess()
	tr.RecordError()

	if errs, total := tr.ErrorRate(time.Minute); errs != 1 || total != 2 {
		t.Errorf("ErrorRate(1m) = %d/%d, want 1/2", errs, total)
	}
	if errs, total := tr.ErrorRate(5 * time.Minute); errs != 3 || total != 4 {
		t.Errorf("ErrorRate(5m) = %d/%d, want 3/4", errs, total)
	}
}

// TestPrune verifies that outcomes older than the retention period are dropped.
func TestPrune(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	tr := newTestTracker(&now)
	tr.RecordError()
	now = now.Add(maxAge + time.Second)
	tr.RecordSuccess()

	if got := len(tr.errorTimes); got != 0 {
		t.Errorf("errorTimes len = %d, want 0 after prune", got)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name      string
		successes int
		errors    int
		pct       int
		want      Status
	}{
		{"no traffic", 0, 0, 50, StatusHealthy},
		{"below threshold", 3, 1, 50, StatusHealthy},
		{"at threshold", 1, 1, 50, StatusDegraded},
		{"all errors", 0, 4, 50, StatusDegraded},
		{"threshold disabled", 0, 4, 0, StatusHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker()
			for i := 0; i < tt.successes; i++ {
				tr.RecordSuccess()
			}
			for i := 0; i < tt.errors; i++ {
				tr.RecordError()
			}
			if got := tr.Status(time.Minute, tt.pct); got != tt.want {
				t.Errorf("Status() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReset(t *testing.T) {
	tr := NewTracker()
	tr.RecordError()
	tr.RecordDenied()
	tr.Reset()
	if n := tr.RequestCount(time.Minute); n != 0 {
		t.Errorf("RequestCount() after Reset = %d, want 0", n)
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				tr.RecordSuccess()
			} else {
				tr.RecordError()
			}
		}(i)
	}
	wg.Wait()
	if errs, total := tr.ErrorRate(time.Minute); errs != 50 || total != 100 {
		t.Errorf("ErrorRate() = %d/%d, want 50/100", errs, total)
	}
}

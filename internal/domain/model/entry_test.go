package model

import (
	"testing"
	"time"
)

// TestTimeRangeObserve проверяет расширение диапазона min/max.
func TestTimeRangeObserve(t *testing.T) {
	base := time.Date(2025, 11, 19, 8, 0, 0, 0, time.UTC)

	var r TimeRange
	r.Observe(base)
	if !r.Start.Equal(base) || !r.End.Equal(base) {
		t.Fatalf("первая метка должна задать обе границы: %v", r)
	}

	r.Observe(base.Add(-time.Hour))
	r.Observe(base.Add(2 * time.Hour))
	r.Observe(base.Add(time.Minute))

	if !r.Start.Equal(base.Add(-time.Hour)) {
		t.Errorf("Start: хотели %v, получили %v", base.Add(-time.Hour), r.Start)
	}
	if !r.End.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("End: хотели %v, получили %v", base.Add(2*time.Hour), r.End)
	}
}

// TestTimeRangeContains проверяет включительные границы.
func TestTimeRangeContains(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	r := TimeRange{Start: start, End: end}

	tests := []struct {
		ts   time.Time
		want bool
	}{
		{start, true},
		{end, true},
		{start.Add(30 * time.Minute), true},
		{start.Add(-time.Second), false},
		{end.Add(time.Second), false},
	}
	for _, tt := range tests {
		if got := r.Contains(tt.ts); got != tt.want {
			t.Errorf("Contains(%v): хотели %v, получили %v", tt.ts, tt.want, got)
		}
	}
}

func TestCatalogEntryIsExpired(t *testing.T) {
	now := time.Now().UTC()
	e := &CatalogEntry{UploadedAt: now.Add(-25 * time.Hour)}
	if !e.IsExpired(now, 24*time.Hour) {
		t.Error("запись старше 24h должна считаться истёкшей")
	}

	fresh := &CatalogEntry{UploadedAt: now.Add(-time.Hour)}
	if fresh.IsExpired(now, 24*time.Hour) {
		t.Error("свежая запись не должна считаться истёкшей")
	}
}

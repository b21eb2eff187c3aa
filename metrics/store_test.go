package metrics

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func job(token, status string, d time.Duration) JobRecord {
	return JobRecord{
		Token:        token,
		Status:       status,
		Images:       2,
		PriorSteps:   25,
		DecoderSteps: 50,
		Duration:     d,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates store with default config", func(t *testing.T) {
		store := NewStore(DefaultStoreConfig(), time.Now())

		if store.capacity != 100 {
			t.Errorf("expected capacity 100, got %d", store.capacity)
		}
		if store.version != "0.0.0" {
			t.Errorf("expected version 0.0.0, got %s", store.version)
		}
	})

	t.Run("handles zero capacity by defaulting to 100", func(t *testing.T) {
		store := NewStore(StoreConfig{HistoryCapacity: 0}, time.Now())

		if store.capacity != 100 {
			t.Errorf("expected default capacity 100, got %d", store.capacity)
		}
	})
}

func TestStore_RecordJob(t *testing.T) {
	t.Run("aggregates success and error", func(t *testing.T) {
		store := NewStore(DefaultStoreConfig(), time.Now())
		store.RecordJob(job("a", JobStatusSuccess, 100*time.Second))
		store.RecordJob(job("b", JobStatusError, 0))

		m := store.GetJobMetrics()
		if m.TotalProcessed != 2 || m.TotalSuccess != 1 || m.TotalErrors != 1 {
			t.Errorf("unexpected totals: %+v", m)
		}
		if m.TotalImages != 2 {
			t.Errorf("expected 2 images, got %d", m.TotalImages)
		}
		if m.SuccessRate != 50 {
			t.Errorf("expected success rate 50, got %v", m.SuccessRate)
		}
		if m.AvgDuration != 50*time.Second {
			t.Errorf("expected avg duration 50s, got %v", m.AvgDuration)
		}
		// 100 steps in 100s
		if m.AvgStepTime != time.Second {
			t.Errorf("expected avg step time 1s, got %v", m.AvgStepTime)
		}
	})

	t.Run("empty store has zero rates", func(t *testing.T) {
		m := NewStore(DefaultStoreConfig(), time.Now()).GetJobMetrics()
		if m.SuccessRate != 0 || m.AvgDuration != 0 {
			t.Errorf("expected zero metrics, got %+v", m)
		}
	})
}

func TestStore_GetRecentJobs(t *testing.T) {
	store := NewStore(StoreConfig{HistoryCapacity: 3}, time.Now())
	for i := 0; i < 5; i++ {
		store.RecordJob(job(fmt.Sprintf("job-%d", i), JobStatusSuccess, time.Second))
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, nil},
		{2, []string{"job-3", "job-4"}},
		{10, []string{"job-2", "job-3", "job-4"}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("limit %d", tt.limit), func(t *testing.T) {
			got := store.GetRecentJobs(tt.limit)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d jobs, got %d", len(tt.want), len(got))
			}
			for i, token := range tt.want {
				if got[i].Token != token {
					t.Errorf("job %d: expected %s, got %s", i, token, got[i].Token)
				}
			}
		})
	}

	if total := store.GetJobMetrics().TotalProcessed; total != 5 {
		t.Errorf("totals must survive ring eviction: got %d", total)
	}
}

func TestStore_SystemStatus(t *testing.T) {
	store := NewStore(StoreConfig{Version: "1.0.0", Backend: "stub"}, time.Now().Add(-time.Minute))

	status := store.GetSystemStatus()
	if status.Health != SystemHealthRunning {
		t.Errorf("expected running, got %s", status.Health)
	}
	if status.Uptime < time.Minute {
		t.Errorf("expected uptime >= 1m, got %v", status.Uptime)
	}

	for i := 0; i < unhealthyStreak; i++ {
		store.RecordJob(job("x", JobStatusError, 0))
	}
	if got := store.GetSystemStatus().Health; got != SystemHealthError {
		t.Errorf("expected error after %d failures, got %s", unhealthyStreak, got)
	}

	store.RecordJob(job("y", JobStatusSuccess, time.Second))
	if got := store.GetSystemStatus().Health; got != SystemHealthRunning {
		t.Errorf("expected running after success, got %s", got)
	}

	store.SetBackend("cuda")
	snap := store.Snapshot(1)
	if snap.System.Backend != "cuda" || len(snap.Recent) != 1 || snap.Jobs.TotalProcessed != 4 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestStore_Concurrent(t *testing.T) {
	store := NewStore(StoreConfig{HistoryCapacity: 10}, time.Now())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.RecordJob(job("c", JobStatusSuccess, time.Millisecond))
			_ = store.Snapshot(5)
		}()
	}
	wg.Wait()

	if got := store.GetJobMetrics().TotalProcessed; got != 20 {
		t.Errorf("expected 20 jobs, got %d", got)
	}
}

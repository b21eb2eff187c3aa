package metrics

import (
	"sync"
	"time"
)

// Store is an in-memory Collector. Recent jobs live in a fixed-size ring;
// totals cover the whole process lifetime.
//
// Usage:
//
//	store := NewStore(DefaultStoreConfig(), time.Now())
//	store.RecordJob(rec)
//	status := store.Snapshot(10)
type Store struct {
	mu sync.RWMutex

	history  []JobRecord
	capacity int
	head     int
	size     int

	totalJobs     int64
	totalSuccess  int64
	totalErrors   int64
	totalImages   int64
	totalDuration time.Duration

	// per-step timing across successful jobs
	stepDuration time.Duration
	stepCount    int64

	// consecutive failures since the last success
	failStreak int

	startTime time.Time
	version   string
	backend   string
}

// StoreConfig configures the Store.
type StoreConfig struct {
	// HistoryCapacity is the max number of jobs to retain
	HistoryCapacity int
	// Version is the application version string
	Version string
	// Backend describes the loaded model backend
	Backend string
}

// DefaultStoreConfig returns a default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		HistoryCapacity: 100,
		Version:         "0.0.0",
	}
}

// unhealthyStreak is the number of consecutive failures reported as an error state.
const unhealthyStreak = 3

// NewStore creates a Store. startTime is used to calculate uptime.
func NewStore(config StoreConfig, startTime time.Time) *Store {
	n := config.HistoryCapacity
	if n < 1 {
		n = 100
	}

	return &Store{
		history:   make([]JobRecord, n),
		capacity:  n,
		startTime: startTime,
		version:   config.Version,
		backend:   config.Backend,
	}
}

// SetBackend records the backend description once the model is loaded.
func (s *Store) SetBackend(info string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backend = info
}

// RecordJob logs a finished job.
func (s *Store) RecordJob(job JobRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[s.head] = job
	s.head = (s.head + 1) % s.capacity
	if s.size < s.capacity {
		s.size++
	}

	s.totalJobs++
	s.totalDuration += job.Duration

	switch job.Status {
	case JobStatusSuccess:
		s.totalSuccess++
		s.totalImages += int64(job.Images)
		s.failStreak = 0
		if steps := job.DecoderSteps + 2*job.PriorSteps; steps > 0 {
			s.stepDuration += job.Duration
			s.stepCount += int64(steps)
		}
	case JobStatusError:
		s.totalErrors++
		s.failStreak++
	}
}

// GetJobMetrics returns aggregated job statistics.
func (s *Store) GetJobMetrics() JobMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobMetricsLocked()
}

func (s *Store) jobMetricsLocked() JobMetrics {
	m := JobMetrics{
		TotalProcessed: s.totalJobs,
		TotalSuccess:   s.totalSuccess,
		TotalErrors:    s.totalErrors,
		TotalImages:    s.totalImages,
	}
	if s.totalJobs > 0 {
		m.SuccessRate = float64(s.totalSuccess) / float64(s.totalJobs) * 100
		m.AvgDuration = s.totalDuration / time.Duration(s.totalJobs)
	}
	if s.stepCount > 0 {
		m.AvgStepTime = s.stepDuration / time.Duration(s.stepCount)
	}
	return m
}

// GetRecentJobs returns the most recent records, oldest first.
// If limit exceeds available records, all available are returned.
func (s *Store) GetRecentJobs(limit int) []JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentLocked(limit)
}

func (s *Store) recentLocked(limit int) []JobRecord {
	if limit <= 0 || s.size == 0 {
		return []JobRecord{}
	}
	if limit > s.size {
		limit = s.size
	}

	result := make([]JobRecord, limit)
	for i := 0; i < limit; i++ {
		idx := (s.head - limit + i + s.capacity) % s.capacity
		result[i] = s.history[idx]
	}
	return result
}

// GetSystemStatus returns the overall health. Several failures in a row
// usually mean the model backend is broken.
func (s *Store) GetSystemStatus() SystemStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemStatusLocked()
}

func (s *Store) systemStatusLocked() SystemStatus {
	health := SystemHealthRunning
	if s.failStreak >= unhealthyStreak {
		health = SystemHealthError
	}
	return SystemStatus{
		Health:    health,
		Version:   s.version,
		Backend:   s.backend,
		Uptime:    time.Since(s.startTime),
		LastCheck: time.Now(),
	}
}

// Snapshot returns system status, aggregates and the recent jobs together.
func (s *Store) Snapshot(recent int) Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		System: s.systemStatusLocked(),
		Jobs:   s.jobMetricsLocked(),
		Recent: s.recentLocked(recent),
	}
}

var _ Collector = (*Store)(nil)

package metrics

// Recorder receives finished jobs. The worker depends on this rather than on
// the Store so tests can observe records directly.
type Recorder interface {
	RecordJob(job JobRecord)
}

// Collector is the read and write surface of a metrics store.
type Collector interface {
	Recorder

	// GetJobMetrics returns the aggregate over all recorded jobs.
	GetJobMetrics() JobMetrics

	// GetRecentJobs returns up to limit records, oldest first.
	GetRecentJobs(limit int) []JobRecord

	// GetSystemStatus reports overall health.
	GetSystemStatus() SystemStatus

	// Snapshot combines the above for the status endpoint.
	Snapshot(recent int) Status
}

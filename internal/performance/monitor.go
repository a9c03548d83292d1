package performance

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Metrics tracks pipeline throughput across the jobs handled by one process
type Metrics struct {
	JobsCompleted    int64
	JobsFailed       int64
	FallbackRetries  int64
	TotalJobTime     time.Duration
	AvgJobTime       time.Duration
	MinJobTime       time.Duration
	MaxJobTime       time.Duration
	LastJobTime      time.Duration
	LastTranscribing time.Duration
	LastDiarizing    time.Duration
	LastTimestamp    time.Time
}

// JobTimer tracks timing for a single job as it moves through the pipeline
type JobTimer struct {
	StartTime        time.Time
	TranscribingTime time.Duration
	DiarizingTime    time.Duration
	UsedFallback     bool
}

// Monitor aggregates job timings and reports them through the logger
type Monitor struct {
	logger    *zap.Logger
	metrics   Metrics
	mu        sync.RWMutex
	benchmark bool
}

// NewMonitor creates a new Monitor instance
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		metrics: Metrics{
			MinJobTime:    time.Hour, // Initialize to large value
			LastTimestamp: time.Now(),
		},
	}
}

// NewMonitorWithBenchmark creates a Monitor that logs per-job timings
func NewMonitorWithBenchmark(logger *zap.Logger, benchmark bool) *Monitor {
	m := NewMonitor(logger)
	m.benchmark = benchmark
	return m
}

// StartJob begins timing one job
func (m *Monitor) StartJob() *JobTimer {
	return &JobTimer{StartTime: time.Now()}
}

// EndJob completes timing and folds the job into the aggregate metrics
func (m *Monitor) EndJob(timer *JobTimer, failed bool) {
	elapsed := time.Since(timer.StartTime)

	m.mu.Lock()
	defer m.mu.Unlock()

	if failed {
		m.metrics.JobsFailed++
	} else {
		m.metrics.JobsCompleted++
	}
	if timer.UsedFallback {
		m.metrics.FallbackRetries++
	}

	m.metrics.TotalJobTime += elapsed
	m.metrics.LastJobTime = elapsed
	m.metrics.LastTranscribing = timer.TranscribingTime
	m.metrics.LastDiarizing = timer.DiarizingTime
	m.metrics.LastTimestamp = time.Now()

	if elapsed < m.metrics.MinJobTime {
		m.metrics.MinJobTime = elapsed
	}
	if elapsed > m.metrics.MaxJobTime {
		m.metrics.MaxJobTime = elapsed
	}

	total := m.metrics.JobsCompleted + m.metrics.JobsFailed
	m.metrics.AvgJobTime = time.Duration(int64(m.metrics.TotalJobTime) / total)

	if m.benchmark {
		m.logger.Info("job performance",
			zap.Duration("total", elapsed),
			zap.Duration("transcribing", timer.TranscribingTime),
			zap.Duration("diarizing", timer.DiarizingTime),
			zap.Bool("used_fallback", timer.UsedFallback),
			zap.Bool("failed", failed))
	}
}

// GetMetrics returns a snapshot of the aggregate metrics
func (m *Monitor) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// LogSummary writes the aggregate metrics to the log
func (m *Monitor) LogSummary() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	total := m.metrics.JobsCompleted + m.metrics.JobsFailed
	if total == 0 {
		m.logger.Info("no jobs processed yet")
		return
	}

	m.logger.Info("pipeline performance summary",
		zap.Int64("jobs_completed", m.metrics.JobsCompleted),
		zap.Int64("jobs_failed", m.metrics.JobsFailed),
		zap.Int64("fallback_retries", m.metrics.FallbackRetries),
		zap.Duration("avg_job_time", m.metrics.AvgJobTime),
		zap.Duration("min_job_time", m.metrics.MinJobTime),
		zap.Duration("max_job_time", m.metrics.MaxJobTime))
}

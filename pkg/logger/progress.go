package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker reports progress through a batch of statement files.
// Each file is one unit of work; failures are counted separately so a
// batch summary can show how many statements were skipped.
type ProgressTracker struct {
	logger      Logger
	operation   string
	total       int
	done        int
	failed      int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	now         func() time.Time
	mutex       sync.Mutex
}

// ProgressConfig configures progress tracking behavior
type ProgressConfig struct {
	Operation   string
	Total       int
	LogInterval time.Duration
	Logger      Logger
	Clock       func() time.Time
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(config ProgressConfig) *ProgressTracker {
	if config.Logger == nil {
		config.Logger = GetGlobalLogger()
	}
	if config.LogInterval == 0 {
		config.LogInterval = time.Second
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	start := config.Clock()
	tracker := &ProgressTracker{
		logger:      config.Logger.WithComponent("progress"),
		operation:   config.Operation,
		total:       config.Total,
		startTime:   start,
		lastLogTime: start,
		logInterval: config.LogInterval,
		now:         config.Clock,
	}

	tracker.logger.WithFields(Fields{
		"operation": config.Operation,
		"files":     config.Total,
	}).Info("Starting batch")

	return tracker
}

// FileDone records one successfully processed statement.
func (p *ProgressTracker) FileDone(fileName string, positions int) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.done++
	p.logger.WithFields(Fields{
		"file":      fileName,
		"positions": positions,
	}).Debug("Statement processed")
	p.maybeLog()
}

// FileFailed records one statement that could not be processed.
func (p *ProgressTracker) FileFailed(fileName string, err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.failed++
	p.logger.WithError(err).WithField("file", fileName).Warn("Statement skipped")
	p.maybeLog()
}

// Complete logs final batch statistics and returns them.
func (p *ProgressTracker) Complete() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	stats := p.statsLocked()
	entry := p.logger.WithFields(Fields{
		"operation": p.operation,
		"files":     stats.Total,
		"processed": stats.Done,
		"failed":    stats.Failed,
		"duration":  stats.Duration.String(),
	})
	if stats.Failed > 0 {
		entry.Warn("Batch completed with failures")
	} else {
		entry.Info("Batch completed")
	}
	return stats
}

// GetStats returns current progress statistics
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.statsLocked()
}

func (p *ProgressTracker) statsLocked() ProgressStats {
	var percentage float64
	if p.total > 0 {
		percentage = float64(p.done+p.failed) / float64(p.total) * 100
	}
	return ProgressStats{
		Operation:  p.operation,
		Total:      p.total,
		Done:       p.done,
		Failed:     p.failed,
		Percentage: percentage,
		Duration:   p.now().Sub(p.startTime),
	}
}

func (p *ProgressTracker) maybeLog() {
	now := p.now()
	if now.Sub(p.lastLogTime) < p.logInterval {
		return
	}
	p.lastLogTime = now

	stats := p.statsLocked()
	p.logger.WithFields(Fields{
		"operation":  p.operation,
		"processed":  stats.Done + stats.Failed,
		"files":      stats.Total,
		"percentage": fmt.Sprintf("%.1f%%", stats.Percentage),
	}).Info("Progress update")
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Total      int           `json:"total"`
	Done       int           `json:"done"`
	Failed     int           `json:"failed"`
	Percentage float64       `json:"percentage"`
	Duration   time.Duration `json:"duration"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	return fmt.Sprintf("%s: %d/%d statements (%d failed, %.1f%%) in %v",
		ps.Operation, ps.Done, ps.Total, ps.Failed, ps.Percentage, ps.Duration)
}

// TimedOperation executes fn and logs its duration and outcome.
func TimedOperation(operation string, logger Logger, fn func() error) error {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	start := time.Now()
	err := fn()

	entry := logger.WithFields(Fields{
		"operation": operation,
		"duration":  time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Error("Operation failed")
	} else {
		entry.Debug("Operation completed")
	}
	return err
}

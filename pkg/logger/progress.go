package logger

import (
	"fmt"
	"sync"
	"time"
)

// ProgressTracker follows a staged run through the structured logger.
// Callers move it forward with Update as stages are reached and close
// it with Complete or CompleteWithError. Snapshots for callers that
// surface progress themselves come from GetStats.
type ProgressTracker struct {
	logger    Logger
	operation string
	total     int64
	current   int64
	stage     string
	startTime time.Time
	mutex     sync.RWMutex
}

// NewProgressTracker starts tracking an operation made of total stages
func NewProgressTracker(operation string, total int64, log Logger) *ProgressTracker {
	if log == nil {
		log = GetGlobalLogger()
	}

	tracker := &ProgressTracker{
		logger:    log.WithComponent("progress"),
		operation: operation,
		total:     total,
		startTime: time.Now(),
	}

	tracker.logger.WithFields(Fields{
		"operation": operation,
		"stages":    total,
	}).Info("Starting operation")

	return tracker
}

// Update moves the tracker to an absolute position. A new stage name
// is logged the first time it is seen.
func (p *ProgressTracker) Update(current int64, stage string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current = current
	if stage != "" && stage != p.stage {
		p.stage = stage
		p.logStage()
	}
}

// Complete closes the tracker and logs the final timing
func (p *ProgressTracker) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current = p.total
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"stages":    p.total,
		"duration":  time.Since(p.startTime).String(),
	}).Info("Operation completed")
}

// CompleteWithError closes the tracker after a failed run, recording
// how far it got
func (p *ProgressTracker) CompleteWithError(err error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.logger.WithError(err).WithFields(Fields{
		"operation": p.operation,
		"stage":     p.stage,
		"completed": p.current,
		"stages":    p.total,
		"duration":  time.Since(p.startTime).String(),
	}).Error("Operation failed")
}

// GetStats returns a point-in-time view of the tracked operation
func (p *ProgressTracker) GetStats() ProgressStats {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	stats := ProgressStats{
		Operation: p.operation,
		Stage:     p.stage,
		Total:     p.total,
		Current:   p.current,
		Elapsed:   time.Since(p.startTime),
	}
	if p.total > 0 {
		stats.Percentage = float64(p.current) / float64(p.total) * 100
	}
	return stats
}

func (p *ProgressTracker) logStage() {
	fields := Fields{
		"operation": p.operation,
		"stage":     p.stage,
		"completed": p.current,
	}
	if p.total > 0 {
		fields["percentage"] = fmt.Sprintf("%.1f%%", float64(p.current)/float64(p.total)*100)
	}

	p.logger.WithFields(fields).Info("Progress update")
}

// ProgressStats is a snapshot of a tracked operation
type ProgressStats struct {
	Operation  string        `json:"operation"`
	Stage      string        `json:"stage,omitempty"`
	Total      int64         `json:"total"`
	Current    int64         `json:"current"`
	Percentage float64       `json:"percentage"`
	Elapsed    time.Duration `json:"elapsed"`
}

// OperationLogger carries shared fields and timing across the log
// lines of a single named operation
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger opens a logging scope for the named operation
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithComponent("operation"),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Info("Starting operation")
	return ol
}

// WithFields attaches fields carried by every subsequent log line
func (ol *OperationLogger) WithFields(fields Fields) *OperationLogger {
	for k, v := range fields {
		ol.fields[k] = v
	}
	return ol
}

// Step logs entry into a named step of the operation
func (ol *OperationLogger) Step(step string) {
	fields := Fields{
		"operation": ol.operation,
		"step":      step,
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info("Operation step")
}

// Success closes the scope, logging the total duration
func (ol *OperationLogger) Success(message string) {
	duration := time.Since(ol.startTime)
	fields := Fields{
		"operation": ol.operation,
		"duration":  duration.String(),
		"status":    "success",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithFields(fields).Info(message)
}

// Error closes the scope after a failure
func (ol *OperationLogger) Error(err error, message string) {
	duration := time.Since(ol.startTime)
	fields := Fields{
		"operation": ol.operation,
		"duration":  duration.String(),
		"status":    "error",
	}
	for k, v := range ol.fields {
		fields[k] = v
	}

	ol.logger.WithError(err).WithFields(fields).Error(message)
}

package scheduler

import "errors"

// Schedule errors
var (
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	ErrJobQueueFull        = errors.New("job queue is full")
	ErrInvalidJobType      = errors.New("unknown job type")
	// ErrJobAlreadyQueued means a job with the same key is queued, running or
	// waiting to retry
	ErrJobAlreadyQueued = errors.New("job already queued")
	ErrMissingVendor    = errors.New("payout batch job requires a vendor")
)

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrInvalidConfig = errors.New("invalid scheduler configuration")
)

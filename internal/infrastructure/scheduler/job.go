// Package scheduler runs the ledger's maintenance jobs: the daily payout batch
// per vendor, approval aging, payout retries and reconciliation.
package scheduler

import (
	"time"

	"github.com/google/uuid"
)

// JobType identifies the ledger maintenance a job performs
type JobType string

const (
	// JobTypePayoutBatch creates and submits the due payout of one vendor
	JobTypePayoutBatch JobType = "payout_batch"
	// JobTypeCommissionAging approves pending entries past the return window
	JobTypeCommissionAging JobType = "commission_aging"
	// JobTypePayoutRetry resubmits transiently failed payouts whose backoff elapsed
	JobTypePayoutRetry JobType = "payout_retry"
	// JobTypePayoutReconcile settles PROCESSING payouts from the executor's status
	JobTypePayoutReconcile JobType = "payout_reconcile"
)

// JobTypes lists every job type in run order of a maintenance cycle
func JobTypes() []JobType {
	return []JobType{JobTypeCommissionAging, JobTypePayoutBatch, JobTypePayoutRetry, JobTypePayoutReconcile}
}

func (t JobType) IsValid() bool {
	switch t {
	case JobTypePayoutBatch, JobTypeCommissionAging, JobTypePayoutRetry, JobTypePayoutReconcile:
		return true
	}
	return false
}

// JobStatus is where a job is in its run
type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobSucceeded JobStatus = "SUCCEEDED"
	JobFailed    JobStatus = "FAILED"
	// JobWaiting jobs failed and wait out the retry delay
	JobWaiting JobStatus = "WAITING"
)

// Job is one execution of a maintenance task. Only payout_batch jobs carry a
// vendor.
type Job struct {
	ID         uuid.UUID  `json:"id"`
	Type       JobType    `json:"type"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
	AsOf       time.Time  `json:"as_of"`
	Status     JobStatus  `json:"status"`
	Processed  int        `json:"processed"`
	Error      string     `json:"error,omitempty"`
	Retries    int        `json:"retries"`
	MaxRetries int        `json:"max_retries"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	RetryAt    *time.Time `json:"retry_at,omitempty"`
}

func newJob(jobType JobType, vendorID *uuid.UUID, asOf time.Time, maxRetries int, now time.Time) *Job {
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		VendorID:   vendorID,
		AsOf:       asOf,
		Status:     JobQueued,
		MaxRetries: maxRetries,
		QueuedAt:   now,
	}
}

// key identifies jobs that must not be queued twice at the same time
func (j *Job) key() string {
	if j.VendorID == nil {
		return string(j.Type)
	}
	return string(j.Type) + ":" + j.VendorID.String()
}

func (j *Job) begin(at time.Time) {
	j.Status = JobRunning
	j.StartedAt = &at
	j.FinishedAt = nil
	j.RetryAt = nil
	j.Error = ""
}

func (j *Job) succeed(at time.Time, processed int) {
	j.Status = JobSucceeded
	j.Processed = processed
	j.FinishedAt = &at
}

func (j *Job) fail(at time.Time, err error) {
	j.Status = JobFailed
	j.Error = err.Error()
	j.FinishedAt = &at
}

func (j *Job) retriesLeft() bool {
	return j.Status == JobFailed && j.Retries < j.MaxRetries
}

// awaitRetry parks a failed job until at. The error stays visible meanwhile.
func (j *Job) awaitRetry(at time.Time) {
	j.Retries++
	j.Status = JobWaiting
	j.RetryAt = &at
}

func (j *Job) snapshot() *Job {
	c := *j
	return &c
}

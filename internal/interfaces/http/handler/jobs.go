package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/marketplace/payouts/internal/infrastructure/scheduler"
	"github.com/marketplace/payouts/internal/interfaces/http/dto"
)

// JobLog is the scheduler's record of recent jobs
type JobLog interface {
	JobHistory(limit int) []*scheduler.Job
	FindJob(id uuid.UUID) (*scheduler.Job, error)
}

// JobTrigger submits jobs outside their schedule
type JobTrigger interface {
	TriggerNow(jobType scheduler.JobType) (*scheduler.Job, error)
	TriggerBatch(ctx context.Context, asOf time.Time) (int, error)
}

// JobsHandler serves /admin/jobs. Both dependencies are nil when the
// scheduler is disabled, and every endpoint then answers 503.
type JobsHandler struct {
	log     JobLog
	trigger JobTrigger
}

func NewJobsHandler(log JobLog, trigger JobTrigger) *JobsHandler {
	return &JobsHandler{log: log, trigger: trigger}
}

// BatchTriggeredResponse is the body of a manual payout batch run
type BatchTriggeredResponse struct {
	AsOf   time.Time `json:"as_of"`
	Queued int       `json:"queued"`
}

const maxJobHistory = 200

// History handles GET /admin/jobs?limit=
func (h *JobsHandler) History(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxJobHistory)
	}
	writeOK(c, h.log.JobHistory(limit))
}

// Get handles GET /admin/jobs/:id
func (h *JobsHandler) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	id, ok := pathID(c, "job")
	if !ok {
		return
	}
	job, err := h.log.FindJob(id)
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeOK(c, job)
}

// Run handles POST /admin/jobs/:type/run. A payout_batch run queues one job
// per due vendor as of now.
func (h *JobsHandler) Run(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	jobType := scheduler.JobType(c.Param("type"))
	if jobType == scheduler.JobTypePayoutBatch {
		asOf := time.Now().UTC()
		queued, err := h.trigger.TriggerBatch(c.Request.Context(), asOf)
		if err != nil {
			writeJobError(c, err)
			return
		}
		writeAccepted(c, BatchTriggeredResponse{AsOf: asOf, Queued: queued})
		return
	}
	job, err := h.trigger.TriggerNow(jobType)
	if err != nil {
		writeJobError(c, err)
		return
	}
	writeAccepted(c, job)
}

func (h *JobsHandler) enabled(c *gin.Context) bool {
	if h.log == nil || h.trigger == nil {
		writeFailure(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, "Scheduler is disabled")
		return false
	}
	return true
}

// writeJobError maps scheduler sentinels; anything else goes through writeError
func writeJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		writeFailure(c, http.StatusNotFound, dto.ErrCodeNotFound, "Job not found")
	case errors.Is(err, scheduler.ErrInvalidJobType):
		writeBadRequest(c, "Unknown job type")
	case errors.Is(err, scheduler.ErrJobAlreadyQueued):
		writeFailure(c, http.StatusConflict, dto.ErrCodeConflict, "A job of this type is already queued")
	case errors.Is(err, scheduler.ErrSchedulerNotRunning), errors.Is(err, scheduler.ErrJobQueueFull):
		writeFailure(c, http.StatusServiceUnavailable, dto.ErrCodeUnavailable, err.Error())
	default:
		writeError(c, err)
	}
}

package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/rookiemaniesh/trackaro/internal/api/domain"
	"github.com/rookiemaniesh/trackaro/internal/api/dto"
	"github.com/rookiemaniesh/trackaro/internal/config"
)

// queueAliases maps the public queue selector to internal queue names
var queueAliases = map[string]string{
	"ai":  config.QueueAIProcessing,
	"ocr": config.QueueOCRProcessing,
}

// GetJobStatus handles GET /api/v1/jobs/:job_id?queue=ai|ocr
// Pure read; safe to poll. A waiting job is found with state "waiting", not
// treated as missing.
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "job_id is required",
		})
		return
	}

	queueName, ok := queueAliases[c.DefaultQuery("queue", "ai")]
	if !ok {
		c.JSON(http.StatusBadRequest, dto.Envelope{
			Success: false,
			Message: "queue must be ai or ocr",
		})
		return
	}

	job, err := h.store.GetJob(c.Request.Context(), queueName, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, dto.Envelope{
				Success: false,
				Message: "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("queue", queueName),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.Envelope{
			Success: false,
			Message: "Failed to get job",
		})
		return
	}

	status := dto.JobStatus{
		JobID:    job.JobID,
		State:    job.State,
		Progress: job.Progress,
	}

	// Result stays null until the job completes
	if job.State == domain.JobStateCompleted && job.Result.Valid {
		status.Result = json.RawMessage(job.Result.String)
	}

	c.JSON(http.StatusOK, dto.Envelope{
		Success: true,
		Data:    status,
	})
}

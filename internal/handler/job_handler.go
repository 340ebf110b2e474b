package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/clarity-app/clarity/internal/jobqueue"
	appErr "github.com/clarity-app/clarity/internal/pkg/errors"
	"github.com/clarity-app/clarity/internal/pkg/response"
)

type JobHandler struct {
	queue *jobqueue.Queue
}

func NewJobHandler(queue *jobqueue.Queue) *JobHandler {
	return &JobHandler{queue: queue}
}

func (h *JobHandler) Get(c *gin.Context) {
	job, err := h.queue.GetStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	// Jobs are user-scoped; hide other users' jobs entirely.
	if job.UserID != "" && job.UserID != getUserID(c) {
		handleError(c, appErr.NotFoundOf("job", job.ID))
		return
	}
	response.Success(c, job)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	job, err := h.queue.GetStatus(c.Request.Context(), c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	if job.UserID != "" && job.UserID != getUserID(c) {
		handleError(c, appErr.NotFoundOf("job", job.ID))
		return
	}
	if err := h.queue.Cancel(c.Request.Context(), job.ID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"cancelled": true})
}

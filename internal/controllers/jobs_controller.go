package controllers

import (
	"net/http"
	"strconv"

	"github.com/RealZimboGuy/shipflow/internal/engine"
	"github.com/RealZimboGuy/shipflow/internal/util"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/domain"
	"github.com/RealZimboGuy/shipflow/pkg/shipflow/models"
)

const maxJobsLimit = 1000

type JobsController struct {
	*AuthController
	Scheduler *engine.Scheduler
}

func NewJobsController(auth *AuthController, scheduler *engine.Scheduler) *JobsController {
	return &JobsController{AuthController: auth, Scheduler: scheduler}
}

func (c *JobsController) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.JobFilter{
		Status:  domain.JobStatus(q.Get("status")),
		JobType: q.Get("job_type"),
	}
	if v := q.Get("shipment_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			util.WriteJSONError(w, http.StatusBadRequest, "shipment_id must be an integer")
			return
		}
		filter.ShipmentID = id
	}
	var err error
	if filter.Limit, err = util.QueryInt(r, "limit", 100); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Offset, err = util.QueryInt(r, "offset", 0); err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.Limit > maxJobsLimit {
		util.WriteJSONError(w, http.StatusBadRequest, "limit cannot be greater than 1000")
		return
	}

	jobs, err := c.Scheduler.ListJobs(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := models.SearchJobsResponse{Jobs: make([]models.JobResponse, 0, len(jobs)), Limit: filter.Limit, Offset: filter.Offset}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, toJobResponse(&jobs[i]))
	}
	util.WriteJSONResponse(w, http.StatusOK, resp)
}

func (c *JobsController) handleRetryJob(w http.ResponseWriter, r *http.Request) {
	id, err := util.PathID(r, "id")
	if err != nil {
		util.WriteJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	job, err := c.Scheduler.Retry(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	util.WriteJSONResponse(w, http.StatusOK, toJobResponse(job))
}

func toJobResponse(j *domain.ScheduledJob) models.JobResponse {
	return models.JobResponse{
		ID:          j.ID,
		ShipmentID:  j.ShipmentID,
		JobType:     j.JobType,
		RunAt:       j.RunAt,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		Payload:     j.Payload,
		CanRetry:    j.CanRetry(),
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

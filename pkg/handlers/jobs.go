/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

func (h *Handler) SubmitJob(c *gin.Context) {
	handle(c, h.submitJob)
}

func (h *Handler) submitJob(c *gin.Context) (interface{}, error) {
	req := &SubmitJobRequest{}
	if _, err := apiutil.ParseRequestBody(c.Request, req); err != nil {
		return nil, err
	}
	if req.WorkloadType == "" {
		return nil, nebulaerrors.NewBadRequest("workload_type is required")
	}
	if req.Command == "" {
		return nil, nebulaerrors.NewBadRequest("command is required")
	}
	result, err := h.engine.Submit(c.Request.Context(), req.WorkloadType, req.Command, req.PreferredGpu)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *Handler) GetJobStatus(c *gin.Context) {
	handle(c, h.getJobStatus)
}

func (h *Handler) getJobStatus(c *gin.Context) (interface{}, error) {
	job, err := h.lookupJob(c)
	if err != nil {
		return nil, err
	}
	return h.cvtToJobView(c, job), nil
}

func (h *Handler) ListJobs(c *gin.Context) {
	handle(c, h.listJobs)
}

func (h *Handler) listJobs(c *gin.Context) (interface{}, error) {
	limit := DefaultListJobsLimit
	if raw := c.Query("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val <= 0 {
			return nil, nebulaerrors.NewBadRequest("invalid limit: " + raw)
		}
		limit = val
	}
	jobs, err := h.store.ListJobs(c.Request.Context(), limit)
	if err != nil {
		return nil, err
	}
	result := &ListJobsResponse{Jobs: make([]*JobView, 0, len(jobs))}
	for _, job := range jobs {
		result.Jobs = append(result.Jobs, h.cvtToJobView(c, job))
	}
	return result, nil
}

func (h *Handler) CancelJob(c *gin.Context) {
	handle(c, h.cancelJob)
}

func (h *Handler) cancelJob(c *gin.Context) (interface{}, error) {
	job, err := h.lookupJob(c)
	if err != nil {
		return nil, err
	}
	outcome, err := h.engine.Cancel(c.Request.Context(), job)
	if err != nil {
		return nil, err
	}
	return &CancelJobResponse{Status: outcome, JobId: job.Id}, nil
}

func (h *Handler) GetJobHistory(c *gin.Context) {
	handle(c, h.getJobHistory)
}

func (h *Handler) getJobHistory(c *gin.Context) (interface{}, error) {
	job, err := h.lookupJob(c)
	if err != nil {
		return nil, err
	}
	events, err := h.store.ListHistory(c.Request.Context(), job.Id)
	if err != nil {
		return nil, err
	}
	result := &JobHistoryResponse{JobId: job.Id, History: make([]*HistoryEventView, 0, len(events))}
	for _, ev := range events {
		result.History = append(result.History, &HistoryEventView{
			Id:        ev.Id,
			Action:    ev.Action,
			Details:   store.ParseNullString(ev.Details),
			Timestamp: fmtTime(store.ParseNullTime(ev.Timestamp)),
		})
	}
	return result, nil
}

func (h *Handler) MonitorJobs(c *gin.Context) {
	handle(c, h.monitorJobs)
}

func (h *Handler) monitorJobs(c *gin.Context) (interface{}, error) {
	h.engine.MonitorNow(c.Request.Context())
	return &MonitorResponse{Status: "success", Message: "Job monitoring completed"}, nil
}

func (h *Handler) lookupJob(c *gin.Context) (*store.Job, error) {
	jobId, err := strconv.ParseInt(c.Param(JobId), 10, 64)
	if err != nil {
		return nil, nebulaerrors.NewBadRequest("invalid job id: " + c.Param(JobId))
	}
	job, err := h.store.GetJob(c.Request.Context(), jobId)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nebulaerrors.NewJobNotFound(jobId)
	}
	return job, nil
}

func (h *Handler) cvtToJobView(c *gin.Context, job *store.Job) *JobView {
	view := &JobView{
		Id:           job.Id,
		Status:       job.Status,
		WorkloadType: job.WorkloadType,
		Command:      job.Command,
		Gpu:          store.ParseNullString(job.AssignedGpuId),
		Pid:          store.ParseNullInt64(job.Pid),
		CreatedAt:    fmtTime(store.ParseNullTime(job.CreatedAt)),
		StartedAt:    fmtTime(store.ParseNullTime(job.StartedAt)),
		FinishedAt:   fmtTime(store.ParseNullTime(job.FinishedAt)),
	}
	if job.AgentId.Valid {
		agent, err := h.store.GetAgent(c.Request.Context(), job.AgentId.Int64)
		if err != nil {
			klog.ErrorS(err, "failed to get agent", "agentId", job.AgentId.Int64)
		} else if agent != nil {
			view.Agent = agent.Hostname
		}
	}
	return view
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

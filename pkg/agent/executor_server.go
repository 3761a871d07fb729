/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package agent

import (
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/scheduler"
)

const (
	PidParam = "pid"
)

// ExecutorServer serves the two-call contract the control plane uses to
// run jobs on this host. Launched pids are tracked so a probe can tell a
// finished job from a pid this daemon never owned.
type ExecutorServer struct {
	runner scheduler.ProcessRunner
	prober scheduler.ProcessProber

	mu   sync.Mutex
	pids map[int64]int64 // pid -> job id
}

func NewExecutorServer() *ExecutorServer {
	return &ExecutorServer{
		runner: scheduler.NewLocalRunner(),
		prober: scheduler.NewProcessProber(),
		pids:   make(map[int64]int64),
	}
}

func (s *ExecutorServer) InitRouters(e *gin.Engine) {
	e.POST(executor.RunJobPath, s.RunJob)
	e.GET(executor.JobStatusPath+"/:"+PidParam, s.JobStatus)
}

func (s *ExecutorServer) RunJob(c *gin.Context) {
	handle(c, s.runJob)
}

func (s *ExecutorServer) runJob(c *gin.Context) (interface{}, error) {
	req := &executor.RunJobRequest{}
	if _, err := apiutil.ParseRequestBody(c.Request, req); err != nil {
		return nil, err
	}
	if req.Command == "" {
		return nil, nebulaerrors.NewBadRequest("command is required")
	}

	pid, err := s.runner.Start(req.Command, scheduler.GpuDeviceIndex(req.GpuId))
	if err != nil {
		klog.ErrorS(err, "failed to launch job", "jobId", req.JobId)
		return nil, nebulaerrors.NewInternalError(err.Error())
	}
	s.mu.Lock()
	s.pids[pid] = req.JobId
	s.mu.Unlock()

	klog.Infof("job %d launched on gpu %s, pid: %d", req.JobId, req.GpuId, pid)
	return &executor.RunJobResponse{
		Status:  executor.StatusStarted,
		Pid:     pid,
		Message: "Job launched",
	}, nil
}

func (s *ExecutorServer) JobStatus(c *gin.Context) {
	handle(c, s.jobStatus)
}

func (s *ExecutorServer) jobStatus(c *gin.Context) (interface{}, error) {
	pid, err := strconv.ParseInt(c.Param(PidParam), 10, 64)
	if err != nil {
		return nil, nebulaerrors.NewBadRequest("invalid pid: " + c.Param(PidParam))
	}

	s.mu.Lock()
	_, known := s.pids[pid]
	s.mu.Unlock()
	if !known {
		return &executor.JobStatusResponse{Pid: pid, Status: executor.StatusNotFound}, nil
	}

	alive, err := s.prober.Alive(pid)
	if err != nil {
		return nil, nebulaerrors.NewInternalError(err.Error())
	}
	status := executor.StatusRunning
	if !alive {
		status = executor.StatusNotRunning
	}
	return &executor.JobStatusResponse{Pid: pid, Status: status}, nil
}

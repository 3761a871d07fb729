/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

// Result is the externally observable outcome of a submission.
type Result struct {
	Status  string `json:"status"`
	JobId   int64  `json:"job_id"`
	Gpu     string `json:"gpu,omitempty"`
	GpuTemp int    `json:"gpu_temp,omitempty"`
	GpuUtil int    `json:"gpu_util,omitempty"`
	Pid     int64  `json:"pid,omitempty"`
	Message string `json:"message,omitempty"`
}

// Dispatcher owns the side-effecting half of scheduling: it creates the
// job row, launches the process locally or through the agent executor,
// and records the outcome.
type Dispatcher struct {
	store     store.Interface
	placement *Placement
	executor  executor.Interface
	runner    ProcessRunner
	hostname  string
}

func NewDispatcher(st store.Interface, placement *Placement, exec executor.Interface,
	runner ProcessRunner, hostname string) *Dispatcher {
	return &Dispatcher{
		store:     st,
		placement: placement,
		executor:  exec,
		runner:    runner,
		hostname:  hostname,
	}
}

// Submit places and dispatches a new job. A placement miss queues the job
// rather than failing the request; an unknown preferred GPU is the only
// submission-time error besides the store itself.
func (d *Dispatcher) Submit(ctx context.Context, workloadType, command, preferredGpuId string) (*Result, error) {
	gpu, err := d.placement.PickGPU(ctx, preferredGpuId)
	if err != nil && !errors.Is(err, ErrNoFit) {
		return nil, err
	}

	now := time.Now().UTC()
	if gpu == nil {
		job := &store.Job{
			WorkloadType: workloadType,
			Command:      command,
			Status:       store.JobStatusQueued,
			CreatedAt:    store.NullTime(now),
		}
		jobId, err := d.store.CreateJob(ctx, job)
		if err != nil {
			return nil, err
		}
		_ = d.store.AppendHistory(ctx, jobId, store.ActionQueued, "No available GPUs, job queued", now)
		klog.Infof("job %d queued, no available GPUs", jobId)
		return &Result{Status: store.JobStatusQueued, JobId: jobId, Message: "No GPUs available"}, nil
	}

	job := &store.Job{
		WorkloadType:  workloadType,
		Command:       command,
		Status:        store.JobStatusPending,
		AssignedGpuId: store.NullString(gpu.Id),
		AgentId:       store.NullInt64(gpu.AgentId),
		CreatedAt:     store.NullTime(now),
	}
	if _, err = d.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return d.launch(ctx, job, gpu)
}

// LaunchQueued moves a previously queued job through dispatch onto gpu.
func (d *Dispatcher) LaunchQueued(ctx context.Context, job *store.Job, gpu *store.GPU) (*Result, error) {
	job.Status = store.JobStatusPending
	job.AssignedGpuId = store.NullString(gpu.Id)
	job.AgentId = store.NullInt64(gpu.AgentId)
	if err := d.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	return d.launch(ctx, job, gpu)
}

func (d *Dispatcher) launch(ctx context.Context, job *store.Job, gpu *store.GPU) (*Result, error) {
	agent, err := d.store.GetAgent(ctx, gpu.AgentId)
	if err != nil {
		return nil, err
	}

	var pid int64
	if agent == nil {
		err = fmt.Errorf("agent %d of gpu %s is not found", gpu.AgentId, gpu.Id)
	} else if IsLocalAgent(agent.Hostname, d.hostname) {
		pid, err = d.runner.Start(job.Command, GpuDeviceIndex(gpu.Id))
	} else {
		pid, err = d.launchRemote(ctx, agent, job, gpu)
	}

	now := time.Now().UTC()
	if err != nil {
		klog.ErrorS(err, "failed to launch job", "jobId", job.Id, "gpu", gpu.Id)
		job.Status = store.JobStatusFailed
		job.FinishedAt = store.NullTime(now)
		if err2 := d.store.UpdateJob(ctx, job); err2 != nil {
			return nil, err2
		}
		_ = d.store.AppendHistory(ctx, job.Id, store.ActionFailed,
			fmt.Sprintf("launch failed: %v", err), now)
		return &Result{Status: store.JobStatusFailed, JobId: job.Id, Message: "Launch failed"}, nil
	}

	job.Status = store.JobStatusRunning
	job.StartedAt = store.NullTime(now)
	job.Pid = store.NullInt64(pid)
	if err = d.store.UpdateJob(ctx, job); err != nil {
		return nil, err
	}
	_ = d.store.AppendHistory(ctx, job.Id, store.ActionStarted,
		fmt.Sprintf("Job running on %s (Temp: %d°C, Util: %d%%)", gpu.Id, gpu.Temperature, gpu.Utilization), now)
	klog.Infof("launched job %d with pid %d on gpu %s", job.Id, pid, gpu.Id)
	return &Result{
		Status:  store.JobStatusRunning,
		JobId:   job.Id,
		Gpu:     gpu.Id,
		GpuTemp: gpu.Temperature,
		GpuUtil: gpu.Utilization,
		Pid:     pid,
	}, nil
}

func (d *Dispatcher) launchRemote(ctx context.Context, agent *store.Agent, job *store.Job, gpu *store.GPU) (int64, error) {
	rsp, err := d.executor.RunJob(ctx, agent.IpAddress, &executor.RunJobRequest{
		JobId:        job.Id,
		Command:      job.Command,
		GpuId:        gpu.Id,
		WorkloadType: job.WorkloadType,
	})
	if err != nil {
		return 0, err
	}
	if rsp.Pid <= 0 {
		return 0, fmt.Errorf("agent %s returned invalid pid %d", agent.Hostname, rsp.Pid)
	}
	return rsp.Pid, nil
}

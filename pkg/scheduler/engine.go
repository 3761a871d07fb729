/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package scheduler hosts the placement engine, the dispatcher and the
// supervisor. Engine is the constructed service object the handlers talk
// to; all cross-request state lives in the store.
package scheduler

import (
	"context"
	"time"

	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

// Cancel outcomes.
const (
	CancelOutcomeCancelled       = "cancelled"
	CancelOutcomeAlreadyFinished = "already_finished"
	CancelOutcomeNotRunning      = "not_running"
)

type Options struct {
	// Hostname of the control plane host, used to classify agents as
	// local or remote.
	Hostname       string
	Weights        Weights
	TickInterval   time.Duration
	OfflineTimeout time.Duration
	Runner         ProcessRunner
	Prober         ProcessProber
}

type Engine struct {
	store      store.Interface
	placement  *Placement
	dispatcher *Dispatcher
	supervisor *Supervisor
	prober     ProcessProber
	hostname   string
}

func NewEngine(st store.Interface, exec executor.Interface, opts Options) *Engine {
	runner := opts.Runner
	if runner == nil {
		runner = NewLocalRunner()
	}
	prober := opts.Prober
	if prober == nil {
		prober = NewProcessProber()
	}
	placement := NewPlacement(st, opts.Weights)
	dispatcher := NewDispatcher(st, placement, exec, runner, opts.Hostname)
	supervisor := NewSupervisor(st, exec, prober, placement, dispatcher,
		opts.Hostname, opts.TickInterval, opts.OfflineTimeout)
	return &Engine{
		store:      st,
		placement:  placement,
		dispatcher: dispatcher,
		supervisor: supervisor,
		prober:     prober,
		hostname:   opts.Hostname,
	}
}

func (e *Engine) Start() {
	e.supervisor.Start()
}

func (e *Engine) Stop() {
	e.supervisor.Stop()
}

// Submit schedules and dispatches one job.
func (e *Engine) Submit(ctx context.Context, workloadType, command, preferredGpuId string) (*Result, error) {
	return e.dispatcher.Submit(ctx, workloadType, command, preferredGpuId)
}

// MonitorNow forces one supervisor tick.
func (e *Engine) MonitorNow(ctx context.Context) {
	e.supervisor.Tick(ctx)
}

// Cancel stops a running job. Non-running jobs are left untouched: a
// terminal job reports already_finished, a queued or pending one
// not_running.
func (e *Engine) Cancel(ctx context.Context, job *store.Job) (string, error) {
	if store.IsTerminalJobStatus(job.Status) {
		return CancelOutcomeAlreadyFinished, nil
	}
	if job.Status != store.JobStatusRunning {
		return CancelOutcomeNotRunning, nil
	}

	if job.Pid.Valid && job.AgentId.Valid {
		agent, err := e.store.GetAgent(ctx, job.AgentId.Int64)
		if err != nil {
			return "", err
		}
		if agent != nil && IsLocalAgent(agent.Hostname, e.hostname) {
			if err = e.prober.Terminate(job.Pid.Int64); err != nil {
				klog.ErrorS(err, "failed to terminate process", "jobId", job.Id, "pid", job.Pid.Int64)
			}
		}
		// Remote jobs are only marked here; the executor contract has no
		// terminate call and the supervisor reconciles the agent side.
	}

	now := time.Now().UTC()
	job.Status = store.JobStatusCancelled
	job.FinishedAt = store.NullTime(now)
	if err := e.store.UpdateJob(ctx, job); err != nil {
		return "", err
	}
	_ = e.store.AppendHistory(ctx, job.Id, store.ActionCancelled, "Job cancelled by user", now)
	klog.Infof("job %d cancelled", job.Id)
	return CancelOutcomeCancelled, nil
}

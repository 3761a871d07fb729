/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

// Supervisor is the periodic reconciliation loop: it probes running jobs,
// drains the queue and flags stale agents. At most one tick is in flight;
// an on-demand tick serializes with the cron schedule through the same
// mutex.
type Supervisor struct {
	store          store.Interface
	executor       executor.Interface
	prober         ProcessProber
	placement      *Placement
	dispatcher     *Dispatcher
	hostname       string
	interval       time.Duration
	offlineTimeout time.Duration
	cron           *cron.Cron
	mu             sync.Mutex
	isStarted      bool
}

func NewSupervisor(st store.Interface, exec executor.Interface, prober ProcessProber,
	placement *Placement, dispatcher *Dispatcher, hostname string,
	interval, offlineTimeout time.Duration) *Supervisor {
	return &Supervisor{
		store:          st,
		executor:       exec,
		prober:         prober,
		placement:      placement,
		dispatcher:     dispatcher,
		hostname:       hostname,
		interval:       interval,
		offlineTimeout: offlineTimeout,
	}
}

// Start schedules the periodic tick. Ticks that would overlap a slow
// predecessor are skipped, not queued.
func (s *Supervisor) Start() {
	if s.isStarted {
		return
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	s.cron.Schedule(cron.Every(s.interval), s)
	s.cron.Start()
	s.isStarted = true
	klog.Infof("supervisor started, tick interval: %v", s.interval)
}

func (s *Supervisor) Stop() {
	if !s.isStarted {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.isStarted = false
	klog.Infof("supervisor stopped")
}

// Run implements cron.Job.
func (s *Supervisor) Run() {
	s.Tick(context.Background())
}

// Tick performs one reconciliation pass. Errors are logged and absorbed:
// the next tick retries.
func (s *Supervisor) Tick(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reconcileRunning(ctx)
	s.drainQueue(ctx)
	s.reportStaleAgents(ctx)
}

func (s *Supervisor) reconcileRunning(ctx context.Context) {
	jobs, err := s.store.ListRunningJobs(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list running jobs, skipping tick")
		return
	}
	for _, job := range jobs {
		if !job.Pid.Valid || !job.AgentId.Valid {
			klog.Warningf("running job %d has no pid or agent, leaving", job.Id)
			continue
		}
		agent, err := s.store.GetAgent(ctx, job.AgentId.Int64)
		if err != nil || agent == nil {
			klog.ErrorS(err, "failed to resolve agent of running job", "jobId", job.Id)
			continue
		}
		if IsLocalAgent(agent.Hostname, s.hostname) {
			s.probeLocal(ctx, job)
		} else {
			s.probeRemote(ctx, job, agent)
		}
	}
}

// probeLocal treats a missing process as a clean exit: exit codes are not
// captured, so a vanished pid is indistinguishable from success.
func (s *Supervisor) probeLocal(ctx context.Context, job *store.Job) {
	alive, err := s.prober.Alive(job.Pid.Int64)
	if err != nil {
		klog.ErrorS(err, "failed to probe local process", "jobId", job.Id, "pid", job.Pid.Int64)
		return
	}
	if alive {
		return
	}
	s.complete(ctx, job, "Job finished successfully")
}

func (s *Supervisor) probeRemote(ctx context.Context, job *store.Job, agent *store.Agent) {
	rsp, err := s.executor.JobStatus(ctx, agent.IpAddress, job.Pid.Int64)
	if err != nil {
		// A network blip must not be reported as job completion.
		klog.ErrorS(err, "failed to probe remote job, will retry",
			"jobId", job.Id, "agent", agent.Hostname)
		return
	}
	switch rsp.Status {
	case executor.StatusRunning:
	case executor.StatusNotRunning, executor.StatusNotFound:
		s.complete(ctx, job, fmt.Sprintf("Job finished on agent %s", agent.Hostname))
	default:
		klog.Warningf("unexpected job status %q from agent %s for job %d",
			rsp.Status, agent.Hostname, job.Id)
	}
}

func (s *Supervisor) complete(ctx context.Context, job *store.Job, details string) {
	now := time.Now().UTC()
	job.Status = store.JobStatusCompleted
	job.FinishedAt = store.NullTime(now)
	if err := s.store.UpdateJob(ctx, job); err != nil {
		klog.ErrorS(err, "failed to complete job", "jobId", job.Id)
		return
	}
	_ = s.store.AppendHistory(ctx, job.Id, store.ActionCompleted, details, now)
	klog.Infof("job %d completed", job.Id)
}

// drainQueue retries placement for queued jobs oldest-first, stopping at
// the first job the cluster still cannot fit.
func (s *Supervisor) drainQueue(ctx context.Context) {
	jobs, err := s.store.ListQueuedJobs(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list queued jobs")
		return
	}
	for _, job := range jobs {
		gpu, err := s.placement.PickGPU(ctx, "")
		if errors.Is(err, ErrNoFit) {
			return
		}
		if err != nil {
			klog.ErrorS(err, "failed to place queued job", "jobId", job.Id)
			return
		}
		if _, err = s.dispatcher.LaunchQueued(ctx, job, gpu); err != nil {
			klog.ErrorS(err, "failed to dispatch queued job", "jobId", job.Id)
			return
		}
	}
}

// reportStaleAgents logs agents that stopped reporting. Staleness never
// terminates jobs by itself; operators decide.
func (s *Supervisor) reportStaleAgents(ctx context.Context) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to list agents")
		return
	}
	deadline := time.Now().UTC().Add(-s.offlineTimeout)
	for _, agent := range agents {
		if agent.LastSeen.Valid && agent.LastSeen.Time.Before(deadline) {
			klog.Warningf("agent %s is offline, last seen %v", agent.Hostname, agent.LastSeen.Time)
		}
	}
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package fake provides an in-memory store for tests. It mirrors the
// transactional semantics of the sql-backed client: atomic GPU set
// replacement, monotone last_seen, and terminal job states that drop
// later updates.
package fake

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gpu-nebula/control-plane/pkg/store"
)

type Store struct {
	mu          sync.Mutex
	agents      map[int64]*store.Agent
	gpus        map[string]*store.GPU
	jobs        map[int64]*store.Job
	history     []*store.HistoryEvent
	nextAgentId int64
	nextJobId   int64
}

var _ store.Interface = &Store{}

func NewStore() *Store {
	return &Store{
		agents:      make(map[int64]*store.Agent),
		gpus:        make(map[string]*store.GPU),
		jobs:        make(map[int64]*store.Job),
		nextAgentId: 1,
		nextJobId:   1,
	}
}

func (s *Store) UpsertAgent(_ context.Context, hostname, ip, os string, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertAgentLocked(hostname, ip, os, now), nil
}

func (s *Store) upsertAgentLocked(hostname, ip, os string, now time.Time) int64 {
	for _, agent := range s.agents {
		if agent.Hostname == hostname {
			agent.IpAddress = ip
			agent.Os = store.NullString(os)
			if !agent.LastSeen.Valid || agent.LastSeen.Time.Before(now) {
				agent.LastSeen = store.NullTime(now)
			}
			return agent.Id
		}
	}
	agent := &store.Agent{
		Id:        s.nextAgentId,
		Hostname:  hostname,
		IpAddress: ip,
		Os:        store.NullString(os),
		LastSeen:  store.NullTime(now),
	}
	s.nextAgentId++
	s.agents[agent.Id] = agent
	return agent.Id
}

func (s *Store) GetAgent(_ context.Context, agentId int64) (*store.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if agent, ok := s.agents[agentId]; ok {
		cp := *agent
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) GetAgentByHostname(_ context.Context, hostname string) (*store.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, agent := range s.agents {
		if agent.Hostname == hostname {
			cp := *agent
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListAgents(_ context.Context) ([]*store.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var agents []*store.Agent
	for _, agent := range s.agents {
		cp := *agent
		agents = append(agents, &cp)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].Hostname < agents[j].Hostname })
	return agents, nil
}

func (s *Store) ReplaceAgentGPUs(_ context.Context, agentId int64, gpus []*store.GPU) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	added, removed := s.replaceAgentGpusLocked(agentId, gpus)
	return added, removed, nil
}

func (s *Store) replaceAgentGpusLocked(agentId int64, gpus []*store.GPU) (int, int) {
	prior := make(map[string]bool)
	for id, gpu := range s.gpus {
		if gpu.AgentId == agentId {
			prior[id] = true
			delete(s.gpus, id)
		}
	}
	added := 0
	for _, gpu := range gpus {
		cp := *gpu
		cp.AgentId = agentId
		s.gpus[cp.Id] = &cp
		if !prior[cp.Id] {
			added++
		}
		delete(prior, cp.Id)
	}
	return added, len(prior)
}

func (s *Store) RecordAgentReport(_ context.Context, hostname, ip, os string,
	gpus []*store.GPU, now time.Time) (int64, int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	agentId := s.upsertAgentLocked(hostname, ip, os, now)
	for _, gpu := range gpus {
		gpu.LastUpdated = store.NullTime(now)
	}
	added, removed := s.replaceAgentGpusLocked(agentId, gpus)
	return agentId, added, removed, nil
}

func (s *Store) ListAvailableGPUs(_ context.Context) ([]*store.GPU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gpus []*store.GPU
	for _, gpu := range s.gpus {
		if gpu.Status == store.GpuStatusHealthy && gpu.IsAvailable {
			cp := *gpu
			gpus = append(gpus, &cp)
		}
	}
	sortGpus(gpus)
	return gpus, nil
}

func (s *Store) ListAgentGPUs(_ context.Context, agentId int64) ([]*store.GPU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var gpus []*store.GPU
	for _, gpu := range s.gpus {
		if gpu.AgentId == agentId {
			cp := *gpu
			gpus = append(gpus, &cp)
		}
	}
	sortGpus(gpus)
	return gpus, nil
}

func (s *Store) GetGPU(_ context.Context, gpuId string) (*store.GPU, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gpu, ok := s.gpus[gpuId]; ok {
		cp := *gpu
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) CreateJob(_ context.Context, job *store.Job) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Id = s.nextJobId
	s.nextJobId++
	cp := *job
	s.jobs[cp.Id] = &cp
	return cp.Id, nil
}

func (s *Store) UpdateJob(_ context.Context, job *store.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.Id]
	if !ok || store.IsTerminalJobStatus(current.Status) {
		return nil
	}
	cp := *job
	cp.CreatedAt = current.CreatedAt
	s.jobs[cp.Id] = &cp
	return nil
}

func (s *Store) GetJob(_ context.Context, jobId int64) (*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[jobId]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (s *Store) ListJobs(_ context.Context, limit int) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 50
	}
	jobs := s.selectJobsLocked(func(*store.Job) bool { return true })
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Id > jobs[j].Id })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (s *Store) ListRunningJobs(_ context.Context) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.selectJobsLocked(func(j *store.Job) bool { return j.Status == store.JobStatusRunning })
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Id < jobs[j].Id })
	return jobs, nil
}

func (s *Store) ListQueuedJobs(_ context.Context) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.selectJobsLocked(func(j *store.Job) bool { return j.Status == store.JobStatusQueued })
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Id < jobs[j].Id })
	return jobs, nil
}

func (s *Store) ListActiveJobs(_ context.Context) ([]*store.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := s.selectJobsLocked(func(j *store.Job) bool {
		return j.Status == store.JobStatusRunning || j.Status == store.JobStatusPending
	})
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].Id < jobs[j].Id })
	return jobs, nil
}

func (s *Store) selectJobsLocked(match func(*store.Job) bool) []*store.Job {
	var jobs []*store.Job
	for _, job := range s.jobs {
		if match(job) {
			cp := *job
			jobs = append(jobs, &cp)
		}
	}
	return jobs
}

func (s *Store) CountActiveJobsPerGPU(_ context.Context) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]int)
	for _, job := range s.jobs {
		if job.Status != store.JobStatusRunning && job.Status != store.JobStatusPending {
			continue
		}
		if job.AssignedGpuId.Valid {
			result[job.AssignedGpuId.String]++
		}
	}
	return result, nil
}

func (s *Store) AppendHistory(_ context.Context, jobId int64, action, details string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, &store.HistoryEvent{
		Id:        int64(len(s.history) + 1),
		JobId:     jobId,
		Action:    action,
		Details:   store.NullString(details),
		Timestamp: store.NullTime(now),
	})
	return nil
}

func (s *Store) ListHistory(_ context.Context, jobId int64) ([]*store.HistoryEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var events []*store.HistoryEvent
	for i := len(s.history) - 1; i >= 0; i-- {
		if s.history[i].JobId == jobId {
			cp := *s.history[i]
			events = append(events, &cp)
		}
	}
	return events, nil
}

func sortGpus(gpus []*store.GPU) {
	sort.Slice(gpus, func(i, j int) bool { return gpus[i].Id < gpus[j].Id })
}

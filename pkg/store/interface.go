/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"time"
)

type Interface interface {
	AgentInterface
	GpuInterface
	JobInterface
	HistoryInterface
}

type AgentInterface interface {
	UpsertAgent(ctx context.Context, hostname, ip, os string, now time.Time) (int64, error)
	GetAgent(ctx context.Context, agentId int64) (*Agent, error)
	GetAgentByHostname(ctx context.Context, hostname string) (*Agent, error)
	ListAgents(ctx context.Context) ([]*Agent, error)
}

type GpuInterface interface {
	// ReplaceAgentGPUs atomically replaces the GPU set of an agent and
	// returns how many device ids were added and removed relative to the
	// previous report.
	ReplaceAgentGPUs(ctx context.Context, agentId int64, gpus []*GPU) (added, removed int, err error)
	// RecordAgentReport runs the agent upsert and the GPU set replacement
	// in a single transaction.
	RecordAgentReport(ctx context.Context, hostname, ip, os string, gpus []*GPU, now time.Time) (agentId int64, added, removed int, err error)
	ListAvailableGPUs(ctx context.Context) ([]*GPU, error)
	ListAgentGPUs(ctx context.Context, agentId int64) ([]*GPU, error)
	GetGPU(ctx context.Context, gpuId string) (*GPU, error)
}

type JobInterface interface {
	CreateJob(ctx context.Context, job *Job) (int64, error)
	// UpdateJob writes the mutable job fields. Updates against a job that
	// already reached a terminal state are silently dropped.
	UpdateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, jobId int64) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListRunningJobs(ctx context.Context) ([]*Job, error)
	ListQueuedJobs(ctx context.Context) ([]*Job, error)
	// ListActiveJobs returns running and pending jobs in id order.
	ListActiveJobs(ctx context.Context) ([]*Job, error)
	CountActiveJobsPerGPU(ctx context.Context) (map[string]int, error)
}

type HistoryInterface interface {
	AppendHistory(ctx context.Context, jobId int64, action, details string, now time.Time) error
	ListHistory(ctx context.Context, jobId int64) ([]*HistoryEvent, error)
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gpu-nebula/control-plane/pkg/store"
)

const (
	ServerStatusHealthy = "healthy"
	ServerStatusOffline = "offline"

	connTypePcie = "pcie"
)

func (h *Handler) GetTopology(c *gin.Context) {
	handle(c, h.getTopology)
}

// getTopology renders the whole cluster as servers, gpus and the edges
// between them. Agent liveness is derived from last_seen at read time.
func (h *Handler) getTopology(c *gin.Context) (interface{}, error) {
	ctx := c.Request.Context()
	agents, err := h.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	activeJobs, err := h.store.ListActiveJobs(ctx)
	if err != nil {
		return nil, err
	}

	jobsPerAgent := make(map[int64]int)
	jobsPerGpu := make(map[string][]*store.Job)
	for _, job := range activeJobs {
		if job.AgentId.Valid {
			jobsPerAgent[job.AgentId.Int64]++
		}
		if job.AssignedGpuId.Valid {
			gpuId := job.AssignedGpuId.String
			jobsPerGpu[gpuId] = append(jobsPerGpu[gpuId], job)
		}
	}

	now := time.Now().UTC()
	result := &TopologyResponse{
		Gpus:        []*GpuView{},
		Servers:     []*ServerView{},
		Connections: []*ConnectionView{},
		TotalJobs:   len(activeJobs),
	}
	for _, agent := range agents {
		result.Servers = append(result.Servers, &ServerView{
			Id:         "server-" + agent.Hostname,
			Name:       agent.Hostname,
			Os:         store.ParseNullString(agent.Os),
			Status:     h.agentStatus(agent, now),
			ActiveJobs: jobsPerAgent[agent.Id],
		})

		gpus, err := h.store.ListAgentGPUs(ctx, agent.Id)
		if err != nil {
			return nil, err
		}
		for _, gpu := range gpus {
			view := &GpuView{
				Id:          gpu.Id,
				Model:       store.ParseNullString(gpu.Model),
				Status:      gpu.Status,
				Temperature: gpu.Temperature,
				Utilization: gpu.Utilization,
				MemoryTotal: gpu.MemoryTotalBytes,
				MemoryUsed:  gpu.MemoryUsedBytes,
				ActiveJobs:  len(jobsPerGpu[gpu.Id]),
			}
			if jobs := jobsPerGpu[gpu.Id]; len(jobs) > 0 {
				view.CurrentJob = jobs[0].WorkloadType
			}
			result.Gpus = append(result.Gpus, view)
			result.Connections = append(result.Connections, &ConnectionView{
				Id:     fmt.Sprintf("conn-%s-%s", agent.Hostname, gpu.Id),
				Source: "server-" + agent.Hostname,
				Target: gpu.Id,
				Type:   connTypePcie,
			})
		}
	}
	return result, nil
}

func (h *Handler) agentStatus(agent *store.Agent, now time.Time) string {
	lastSeen := store.ParseNullTime(agent.LastSeen)
	if lastSeen.IsZero() || now.Sub(lastSeen) > h.offlineTimeout {
		return ServerStatusOffline
	}
	return ServerStatusHealthy
}

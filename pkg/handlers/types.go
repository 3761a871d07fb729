/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

const (
	DefaultListJobsLimit = 50
)

type AgentInfo struct {
	Hostname  string `json:"hostname"`
	IpAddress string `json:"ip_address"`
	Os        string `json:"os"`
}

type GpuRecord struct {
	Id          string `json:"id"`
	Model       string `json:"model"`
	Status      string `json:"status"`
	Temperature int    `json:"temperature"`
	Utilization int    `json:"utilization"`
	MemoryTotal int64  `json:"memoryTotal"`
	MemoryUsed  int64  `json:"memoryUsed"`
	PciBusId    string `json:"pci_bus_id"`
}

type GpuReport struct {
	Gpus            []GpuRecord `json:"gpus"`
	DetectionMethod string      `json:"detection_method"`
	Status          string      `json:"status"`
}

type ReportInRequest struct {
	AgentInfo AgentInfo `json:"agent_info"`
	GpuReport GpuReport `json:"gpu_report"`
}

type ReportInResponse struct {
	Status      string `json:"status"`
	GpusAdded   int    `json:"gpus_added"`
	GpusRemoved int    `json:"gpus_removed"`
}

type SubmitJobRequest struct {
	WorkloadType string `json:"workload_type"`
	Command      string `json:"command"`
	PreferredGpu string `json:"preferred_gpu,omitempty"`
}

type JobView struct {
	Id           int64  `json:"id"`
	Status       string `json:"status"`
	WorkloadType string `json:"workload_type"`
	Command      string `json:"command"`
	Gpu          string `json:"gpu,omitempty"`
	Agent        string `json:"agent,omitempty"`
	Pid          int64  `json:"pid,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
}

type ListJobsResponse struct {
	Jobs []*JobView `json:"jobs"`
}

type CancelJobResponse struct {
	Status string `json:"status"`
	JobId  int64  `json:"job_id"`
}

type HistoryEventView struct {
	Id        int64  `json:"id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	Timestamp string `json:"timestamp"`
}

type JobHistoryResponse struct {
	JobId   int64               `json:"job_id"`
	History []*HistoryEventView `json:"history"`
}

type MonitorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type ServerView struct {
	Id         string `json:"id"`
	Name       string `json:"name"`
	Os         string `json:"os"`
	Status     string `json:"status"`
	ActiveJobs int    `json:"active_jobs"`
}

type GpuView struct {
	Id          string `json:"id"`
	Model       string `json:"model"`
	Status      string `json:"status"`
	Temperature int    `json:"temperature"`
	Utilization int    `json:"utilization"`
	MemoryTotal int64  `json:"memory_total"`
	MemoryUsed  int64  `json:"memory_used"`
	ActiveJobs  int    `json:"active_jobs"`
	CurrentJob  string `json:"current_job,omitempty"`
}

type ConnectionView struct {
	Id     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

type TopologyResponse struct {
	Gpus        []*GpuView        `json:"gpus"`
	Servers     []*ServerView     `json:"servers"`
	Connections []*ConnectionView `json:"connections"`
	TotalJobs   int               `json:"total_jobs"`
}

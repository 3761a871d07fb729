/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package executor carries the two-call HTTP contract every agent
// exposes: launch a job, poll a process. The control plane consumes it
// through Client; the reference agent daemon serves it.
package executor

// Process states reported by an agent.
const (
	StatusStarted    = "started"
	StatusRunning    = "running"
	StatusNotRunning = "not_running"
	StatusNotFound   = "not_found"
)

const (
	RunJobPath    = "/agent/run-job"
	JobStatusPath = "/agent/job-status"
)

type RunJobRequest struct {
	JobId        int64  `json:"job_id"`
	Command      string `json:"command"`
	GpuId        string `json:"gpu_id"`
	WorkloadType string `json:"workload_type"`
}

type RunJobResponse struct {
	Status  string `json:"status"`
	Pid     int64  `json:"pid"`
	Message string `json:"message,omitempty"`
}

type JobStatusResponse struct {
	Pid    int64  `json:"pid"`
	Status string `json:"status"`
}

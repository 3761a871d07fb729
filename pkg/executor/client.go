/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/gpu-nebula/control-plane/pkg/httpclient"
)

type Interface interface {
	// RunJob launches a job on the agent at agentIp. Any outcome other
	// than HTTP 200 is a launch failure.
	RunJob(ctx context.Context, agentIp string, req *RunJobRequest) (*RunJobResponse, error)
	// JobStatus polls the process state of a previously launched job.
	// A transport error means "unknown", never "finished".
	JobStatus(ctx context.Context, agentIp string, pid int64) (*JobStatusResponse, error)
}

type Client struct {
	http          httpclient.Interface
	port          int
	launchTimeout time.Duration
	probeTimeout  time.Duration
}

var _ Interface = &Client{}

func NewClient(port int, launchTimeout, probeTimeout time.Duration) *Client {
	return &Client{
		http:          httpclient.NewHttpClient(),
		port:          port,
		launchTimeout: launchTimeout,
		probeTimeout:  probeTimeout,
	}
}

func (c *Client) RunJob(ctx context.Context, agentIp string, req *RunJobRequest) (*RunJobResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.launchTimeout)
	defer cancel()
	url := fmt.Sprintf("http://%s:%d%s", agentIp, c.port, RunJobPath)
	result, err := c.http.Post(ctx, url, req)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, fmt.Errorf("agent %s rejected launch, %s", agentIp, result.String())
	}
	rsp := &RunJobResponse{}
	if err = result.Decode(rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

func (c *Client) JobStatus(ctx context.Context, agentIp string, pid int64) (*JobStatusResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	url := fmt.Sprintf("http://%s:%d%s/%d", agentIp, c.port, JobStatusPath, pid)
	result, err := c.http.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if !result.IsSuccess() {
		return nil, fmt.Errorf("agent %s status probe failed, %s", agentIp, result.String())
	}
	rsp := &JobStatusResponse{}
	if err = result.Decode(rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"fmt"
	"testing"

	"gotest.tools/assert"

	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/store"
	"github.com/gpu-nebula/control-plane/pkg/store/fake"
)

type fakeRunner struct {
	pid      int64
	err      error
	started  []string
	gpuIndex int
}

func (r *fakeRunner) Start(command string, gpuIndex int) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.started = append(r.started, command)
	r.gpuIndex = gpuIndex
	return r.pid, nil
}

type fakeExecutor struct {
	runErr    error
	runPid    int64
	status    string
	statusErr error
}

func (e *fakeExecutor) RunJob(_ context.Context, _ string, req *executor.RunJobRequest) (*executor.RunJobResponse, error) {
	if e.runErr != nil {
		return nil, e.runErr
	}
	return &executor.RunJobResponse{Status: executor.StatusStarted, Pid: e.runPid}, nil
}

func (e *fakeExecutor) JobStatus(_ context.Context, _ string, pid int64) (*executor.JobStatusResponse, error) {
	if e.statusErr != nil {
		return nil, e.statusErr
	}
	return &executor.JobStatusResponse{Pid: pid, Status: e.status}, nil
}

func newTestDispatcher(st store.Interface, runner ProcessRunner, exec executor.Interface) *Dispatcher {
	placement := NewPlacement(st, DefaultWeights())
	return NewDispatcher(st, placement, exec, runner, "h1")
}

func TestSubmitQueuedOnEmptyCluster(t *testing.T) {
	st := fake.NewStore()
	d := newTestDispatcher(st, &fakeRunner{pid: 100}, &fakeExecutor{})

	result, err := d.Submit(context.Background(), "t", "echo hi", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusQueued)
	assert.Equal(t, result.JobId, int64(1))

	job, err := st.GetJob(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, store.JobStatusQueued)
	assert.Assert(t, !job.AssignedGpuId.Valid)
	assert.Assert(t, !job.Pid.Valid)

	events, err := st.ListHistory(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, len(events), 1)
	assert.Equal(t, events[0].Action, store.ActionQueued)
}

func TestSubmitLaunchesLocally(t *testing.T) {
	st := fake.NewStore()
	reportGpus(t, st, "h1", newGpu("GPU-0", 40, 10))
	runner := &fakeRunner{pid: 4242}
	d := newTestDispatcher(st, runner, &fakeExecutor{})

	result, err := d.Submit(context.Background(), "train", "python run.py", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusRunning)
	assert.Equal(t, result.Gpu, "GPU-0")
	assert.Equal(t, result.Pid, int64(4242))
	assert.Equal(t, runner.gpuIndex, 0)
	assert.DeepEqual(t, runner.started, []string{"python run.py"})

	job, err := st.GetJob(context.Background(), result.JobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, store.JobStatusRunning)
	assert.Equal(t, job.AssignedGpuId.String, "GPU-0")
	assert.Assert(t, job.AgentId.Valid)
	assert.Equal(t, job.Pid.Int64, int64(4242))
	assert.Assert(t, job.StartedAt.Valid)
}

func TestSubmitLaunchesRemotely(t *testing.T) {
	st := fake.NewStore()
	reportGpus(t, st, "other-host", newGpu("GPU-0", 40, 10))
	runner := &fakeRunner{pid: 1}
	d := newTestDispatcher(st, runner, &fakeExecutor{runPid: 777})

	result, err := d.Submit(context.Background(), "train", "python run.py", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusRunning)
	assert.Equal(t, result.Pid, int64(777))
	// The local runner must not be touched for a remote agent.
	assert.Equal(t, len(runner.started), 0)
}

func TestSubmitLaunchFailure(t *testing.T) {
	st := fake.NewStore()
	reportGpus(t, st, "h1", newGpu("GPU-0", 40, 10))
	d := newTestDispatcher(st, &fakeRunner{err: fmt.Errorf("spawn failed")}, &fakeExecutor{})

	result, err := d.Submit(context.Background(), "t", "bad-binary", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusFailed)

	job, err := st.GetJob(context.Background(), result.JobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, store.JobStatusFailed)
	assert.Assert(t, job.FinishedAt.Valid)

	events, err := st.ListHistory(context.Background(), result.JobId)
	assert.NilError(t, err)
	assert.Equal(t, events[0].Action, store.ActionFailed)
}

func TestRemoteLaunchFailureFailsJob(t *testing.T) {
	st := fake.NewStore()
	reportGpus(t, st, "other-host", newGpu("GPU-0", 40, 10))
	d := newTestDispatcher(st, &fakeRunner{}, &fakeExecutor{runErr: fmt.Errorf("connection refused")})

	result, err := d.Submit(context.Background(), "t", "python run.py", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusFailed)
}

func TestRemoteZeroPidFailsJob(t *testing.T) {
	st := fake.NewStore()
	reportGpus(t, st, "other-host", newGpu("GPU-0", 40, 10))
	d := newTestDispatcher(st, &fakeRunner{}, &fakeExecutor{runPid: 0})

	// An agent answering without a usable pid must not leave the job
	// running with a NULL pid column.
	result, err := d.Submit(context.Background(), "t", "python run.py", "")
	assert.NilError(t, err)
	assert.Equal(t, result.Status, store.JobStatusFailed)

	job, err := st.GetJob(context.Background(), result.JobId)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, store.JobStatusFailed)
	assert.Assert(t, !job.Pid.Valid)
}

func TestGpuDeviceIndex(t *testing.T) {
	assert.Equal(t, GpuDeviceIndex("GPU-0"), 0)
	assert.Equal(t, GpuDeviceIndex("gpu-3"), 3)
	assert.Equal(t, GpuDeviceIndex("GPU-12"), 12)
	assert.Equal(t, GpuDeviceIndex("weird-id"), 0)
	assert.Equal(t, GpuDeviceIndex(""), 0)
	// A UUID-style tail too long for an int must not wrap negative.
	assert.Equal(t, GpuDeviceIndex("GPU-aaaa-99999999999999999999"), 0)
}

func TestIsLocalAgent(t *testing.T) {
	assert.Assert(t, IsLocalAgent("node1", "node1"))
	assert.Assert(t, IsLocalAgent("node1", "node1.example.com"))
	assert.Assert(t, IsLocalAgent("node1.example.com", "node1"))
	assert.Assert(t, !IsLocalAgent("node2", "node1"))
	assert.Assert(t, !IsLocalAgent("", "node1"))
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v4/process"
	"k8s.io/klog/v2"
)

// ProcessRunner launches a command as a local child process and returns
// its OS handle.
type ProcessRunner interface {
	Start(command string, gpuIndex int) (int64, error)
}

// ProcessProber answers whether a local process is still alive, and can
// ask it to terminate.
type ProcessProber interface {
	Alive(pid int64) (bool, error)
	Terminate(pid int64) error
}

type localRunner struct{}

func NewLocalRunner() ProcessRunner {
	return &localRunner{}
}

// Start splits command into argv without invoking a shell, pins the child
// to one device through CUDA_VISIBLE_DEVICES and spawns it. The child's
// output is not captured. A reaper goroutine waits on the child so exited
// jobs do not linger as zombies.
func (r *localRunner) Start(command string, gpuIndex int) (int64, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return 0, fmt.Errorf("failed to parse command, err: %v", err)
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("the command is empty")
	}
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = append(os.Environ(), fmt.Sprintf("CUDA_VISIBLE_DEVICES=%d", gpuIndex))
	if err = cmd.Start(); err != nil {
		return 0, err
	}
	pid := int64(cmd.Process.Pid)
	go func() {
		if err := cmd.Wait(); err != nil {
			klog.V(2).Infof("process %d exited, err: %v", pid, err)
		}
	}()
	return pid, nil
}

type psProber struct{}

func NewProcessProber() ProcessProber {
	return &psProber{}
}

func (p *psProber) Alive(pid int64) (bool, error) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// No such pid.
		return false, nil
	}
	running, err := proc.IsRunning()
	if err != nil {
		return false, nil
	}
	return running, nil
}

func (p *psProber) Terminate(pid int64) error {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		// Already gone; terminating a finished process is a no-op.
		return nil
	}
	return proc.Terminate()
}

// GpuDeviceIndex maps an opaque GPU id to the device index exported
// through CUDA_VISIBLE_DEVICES. The trailing integer of the id wins
// (vendor UUIDs and "GPU-<n>" ids both carry one); everything else maps
// to device 0.
func GpuDeviceIndex(gpuId string) int {
	end := len(gpuId)
	start := end
	for start > 0 && gpuId[start-1] >= '0' && gpuId[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0
	}
	index, err := strconv.Atoi(gpuId[start:end])
	if err != nil {
		// A numeric tail long enough to overflow is not a device index.
		return 0
	}
	return index
}

// IsLocalAgent reports whether an agent record refers to the host the
// control plane runs on. Hostnames are matched by substring in either
// direction to tolerate short names against FQDNs.
func IsLocalAgent(agentHostname, localHostname string) bool {
	if agentHostname == "" || localHostname == "" {
		return false
	}
	return strings.Contains(agentHostname, localHostname) ||
		strings.Contains(localHostname, agentHostname)
}

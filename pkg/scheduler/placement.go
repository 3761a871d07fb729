/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package scheduler

import (
	"context"
	"errors"

	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/config"
	commonerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

// ErrNoFit is returned when no healthy, available GPU exists. It is not a
// failure: the caller queues the job instead.
var ErrNoFit = errors.New("no available GPUs")

// PreferredAuto is the sentinel a caller passes to request scoring.
const PreferredAuto = "auto"

// Weights control the priority score. Lower score wins.
type Weights struct {
	Temperature float64
	Utilization float64
	ActiveJobs  float64
	Memory      float64
}

func DefaultWeights() Weights {
	return Weights{Temperature: 2.0, Utilization: 3.0, ActiveJobs: 5.0, Memory: 1.5}
}

func WeightsFromConfig() Weights {
	return Weights{
		Temperature: config.GetTemperatureWeight(),
		Utilization: config.GetUtilizationWeight(),
		ActiveJobs:  config.GetActiveJobsWeight(),
		Memory:      config.GetMemoryWeight(),
	}
}

// PriorityScore ranks a GPU for placement; lower is better. An unreported
// temperature counts as 50 °C, and anything above 80 °C is doubled to keep
// thermal headroom. Each active job on the device adds 20 before
// weighting. An unknown memory pair is assumed half full.
func PriorityScore(gpu *store.GPU, activeJobs int, w Weights) float64 {
	temp := float64(gpu.Temperature)
	if temp <= 0 {
		temp = 50
	}
	if temp > 80 {
		temp *= 2
	}

	util := float64(gpu.Utilization)
	if util < 0 {
		util = 0
	}

	jobs := float64(activeJobs) * 20

	memPct := 50.0
	if gpu.MemoryTotalBytes > 0 && gpu.MemoryUsedBytes >= 0 && gpu.MemoryUsedBytes <= gpu.MemoryTotalBytes {
		memPct = float64(gpu.MemoryUsedBytes) / float64(gpu.MemoryTotalBytes) * 100
	}

	return temp*w.Temperature + util*w.Utilization + jobs*w.ActiveJobs + memPct*w.Memory
}

// Placement selects a GPU for a job. Scoring is pure; all state comes
// from the store at decision time.
type Placement struct {
	store   store.Interface
	weights Weights
}

func NewPlacement(st store.Interface, weights Weights) *Placement {
	return &Placement{store: st, weights: weights}
}

// PickGPU returns the GPU for a new job. A non-empty preferredGpuId other
// than "auto" bypasses scoring entirely: it is the caller's burden if the
// preferred device is loaded.
func (p *Placement) PickGPU(ctx context.Context, preferredGpuId string) (*store.GPU, error) {
	if preferredGpuId != "" && preferredGpuId != PreferredAuto {
		gpu, err := p.store.GetGPU(ctx, preferredGpuId)
		if err != nil {
			return nil, err
		}
		if gpu == nil {
			return nil, commonerrors.NewGpuNotFound(preferredGpuId)
		}
		return gpu, nil
	}

	candidates, err := p.store.ListAvailableGPUs(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, ErrNoFit
	}
	activeJobs, err := p.store.CountActiveJobsPerGPU(ctx)
	if err != nil {
		return nil, err
	}

	// Candidates arrive ordered by id, so a strict comparison breaks
	// score ties toward the lexicographically smallest device.
	var best *store.GPU
	bestScore := 0.0
	for _, gpu := range candidates {
		score := PriorityScore(gpu, activeJobs[gpu.Id], p.weights)
		klog.V(2).Infof("gpu %s score=%.2f (temp: %d, util: %d, jobs: %d)",
			gpu.Id, score, gpu.Temperature, gpu.Utilization, activeJobs[gpu.Id])
		if best == nil || score < bestScore {
			best = gpu
			bestScore = score
		}
	}
	klog.Infof("selected gpu %s with score %.2f", best.Id, bestScore)
	return best, nil
}

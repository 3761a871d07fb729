/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package agent

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/handlers"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

const (
	probeTimeout = 10 * time.Second

	detectionNvidiaSmi = "nvidia_smi"
	detectionRocmSmi   = "rocm_smi"
	detectionNone      = "none"
)

// GpuProber detects the GPUs of the host this daemon runs on.
type GpuProber interface {
	Probe(ctx context.Context) (*handlers.GpuReport, error)
}

// NewGpuProber chains the vendor probers. The first one that reports at
// least one device wins; a host without detectable GPUs reports an empty
// device list rather than failing.
func NewGpuProber() GpuProber {
	return &chainProber{
		probers: []GpuProber{
			&nvidiaSmiProber{},
			&rocmSmiProber{},
		},
	}
}

type chainProber struct {
	probers []GpuProber
}

func (p *chainProber) Probe(ctx context.Context) (*handlers.GpuReport, error) {
	for _, prober := range p.probers {
		report, err := prober.Probe(ctx)
		if err != nil {
			klog.V(2).Infof("gpu probe failed, err: %v", err)
			continue
		}
		if len(report.Gpus) > 0 {
			return report, nil
		}
	}
	return &handlers.GpuReport{
		Gpus:            []handlers.GpuRecord{},
		DetectionMethod: detectionNone,
		Status:          "success",
	}, nil
}

type nvidiaSmiProber struct{}

func (p *nvidiaSmiProber) Probe(ctx context.Context) (*handlers.GpuReport, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=index,name,memory.total,memory.used,temperature.gpu,utilization.gpu,pci.bus_id",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return nil, fmt.Errorf("nvidia-smi failed, err: %v", err)
	}

	var gpus []handlers.GpuRecord
	for i, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		gpus = append(gpus, handlers.GpuRecord{
			Id:          fmt.Sprintf("gpu-%d", i),
			Model:       parts[1],
			Status:      store.GpuStatusHealthy,
			Temperature: parseIntField(parts[4], 0),
			Utilization: parseIntField(parts[5], 0),
			// nvidia-smi reports memory in MiB.
			MemoryTotal: int64(parseIntField(parts[2], 0)) * 1024 * 1024,
			MemoryUsed:  int64(parseIntField(parts[3], 0)) * 1024 * 1024,
			PciBusId:    parts[6],
		})
	}
	return &handlers.GpuReport{
		Gpus:            gpus,
		DetectionMethod: detectionNvidiaSmi,
		Status:          "success",
	}, nil
}

type rocmSmiProber struct{}

func (p *rocmSmiProber) Probe(ctx context.Context) (*handlers.GpuReport, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, "rocm-smi",
		"--showid", "--showproductname", "--showtemp", "--showuse", "--csv").Output()
	if err != nil {
		return nil, fmt.Errorf("rocm-smi failed, err: %v", err)
	}

	var gpus []handlers.GpuRecord
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i, line := range lines {
		if i == 0 || line == "" {
			// header
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		for j := range parts {
			parts[j] = strings.TrimSpace(parts[j])
		}
		gpus = append(gpus, handlers.GpuRecord{
			Id:          fmt.Sprintf("gpu-%d", len(gpus)),
			Model:       parts[1],
			Status:      store.GpuStatusHealthy,
			Temperature: parseIntField(strings.TrimSuffix(parts[2], "c"), 0),
			Utilization: parseIntField(strings.TrimSuffix(parts[3], "%"), 0),
		})
	}
	return &handlers.GpuReport{
		Gpus:            gpus,
		DetectionMethod: detectionRocmSmi,
		Status:          "success",
	}, nil
}

// parseIntField tolerates the "N/A" fields vendor tools emit.
func parseIntField(raw string, fallback int) int {
	val, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return val
}

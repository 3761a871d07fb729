/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

func (h *Handler) ReportIn(c *gin.Context) {
	handle(c, h.reportIn)
}

func (h *Handler) reportIn(c *gin.Context) (interface{}, error) {
	report := &ReportInRequest{}
	if _, err := apiutil.ParseRequestBody(c.Request, report); err != nil {
		return nil, err
	}
	if report.AgentInfo.Hostname == "" {
		return nil, nebulaerrors.NewBadRequest("agent_info.hostname is required")
	}
	if report.AgentInfo.IpAddress == "" {
		return nil, nebulaerrors.NewBadRequest("agent_info.ip_address is required")
	}

	gpus, skipped := cvtToGpuRows(report.GpuReport.Gpus)
	if skipped > 0 {
		klog.Warningf("report from %s carried %d malformed gpu records, skipped",
			report.AgentInfo.Hostname, skipped)
	}

	ctx := c.Request.Context()
	_, added, removed, err := h.store.RecordAgentReport(ctx,
		report.AgentInfo.Hostname, report.AgentInfo.IpAddress, report.AgentInfo.Os,
		gpus, time.Now().UTC())
	if err != nil {
		klog.ErrorS(err, "failed to record agent report", "hostname", report.AgentInfo.Hostname)
		return nil, nebulaerrors.NewInternalError(err.Error())
	}
	klog.V(2).Infof("report from %s processed, gpus added: %d, removed: %d",
		report.AgentInfo.Hostname, added, removed)
	return &ReportInResponse{
		Status:      "success",
		GpusAdded:   added,
		GpusRemoved: removed,
	}, nil
}

// cvtToGpuRows converts reported GPU records to store rows. Records
// without a device id are skipped and counted rather than failing the
// whole report.
func cvtToGpuRows(records []GpuRecord) ([]*store.GPU, int) {
	gpus := make([]*store.GPU, 0, len(records))
	skipped := 0
	for _, rec := range records {
		if rec.Id == "" {
			skipped++
			continue
		}
		status := rec.Status
		if status == "" {
			status = store.GpuStatusUnknown
		}
		gpus = append(gpus, &store.GPU{
			Id:               rec.Id,
			Model:            store.NullString(rec.Model),
			Status:           status,
			Temperature:      rec.Temperature,
			Utilization:      rec.Utilization,
			MemoryTotalBytes: rec.MemoryTotal,
			MemoryUsedBytes:  rec.MemoryUsed,
			IsAvailable:      status == store.GpuStatusHealthy,
			PciBusId:         store.NullString(rec.PciBusId),
		})
	}
	return gpus, skipped
}

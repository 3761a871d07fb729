/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package agent

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/robfig/cron/v3"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/channel"
	"github.com/gpu-nebula/control-plane/pkg/handlers"
	"github.com/gpu-nebula/control-plane/pkg/httpclient"
	"github.com/gpu-nebula/control-plane/pkg/netutil"
)

const reportInPath = "/api/v1/agent/report-in"

// Reporter periodically probes the local GPUs and reports them to the
// control plane ingest endpoint.
type Reporter struct {
	client          httpclient.Interface
	prober          GpuProber
	controlPlaneUrl string
	interval        time.Duration
	hostname        string
	tomb            *channel.Tomb
	isExited        bool
}

func NewReporter(controlPlaneUrl string, interval time.Duration) (*Reporter, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return &Reporter{
		client:          httpclient.NewHttpClient(),
		prober:          NewGpuProber(),
		controlPlaneUrl: controlPlaneUrl,
		interval:        interval,
		hostname:        hostname,
		tomb:            channel.NewTomb(),
		isExited:        true,
	}, nil
}

func (r *Reporter) Start() {
	go r.startCronJob()
	r.isExited = false
}

func (r *Reporter) Stop() {
	if !r.isExited && r.tomb != nil {
		r.tomb.Stop()
	}
	r.isExited = true
}

func (r *Reporter) startCronJob() {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	c.Schedule(cron.Every(r.interval), r)
	c.Start()
	klog.Infof("start report loop, interval: %v", r.interval)

	// First report right away so the host registers before the first tick.
	r.Run()

	<-r.tomb.Stopping()
	c.Stop()
	r.tomb.Done()
}

// Run sends one report. It implements the cron.Job interface.
func (r *Reporter) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	report, err := r.buildReport(ctx)
	if err != nil {
		klog.ErrorS(err, "failed to build gpu report")
		return
	}
	result, err := r.client.Post(ctx, r.controlPlaneUrl+reportInPath, report)
	if err != nil {
		klog.ErrorS(err, "failed to reach control plane", "url", r.controlPlaneUrl)
		return
	}
	if !result.IsSuccess() {
		klog.Warningf("report rejected by control plane, %s", result.String())
		return
	}
	rsp := &handlers.ReportInResponse{}
	if err = result.Decode(rsp); err != nil {
		klog.ErrorS(err, "failed to decode report response")
		return
	}
	klog.V(2).Infof("report accepted, gpus added: %d, removed: %d", rsp.GpusAdded, rsp.GpusRemoved)
}

func (r *Reporter) buildReport(ctx context.Context) (*handlers.ReportInRequest, error) {
	gpuReport, err := r.prober.Probe(ctx)
	if err != nil {
		return nil, err
	}
	localIp, err := netutil.GetLocalIp()
	if err != nil {
		return nil, err
	}
	return &handlers.ReportInRequest{
		AgentInfo: handlers.AgentInfo{
			Hostname:  r.hostname,
			IpAddress: localIp,
			Os:        fmt.Sprintf("%s %s", runtime.GOOS, runtime.GOARCH),
		},
		GpuReport: *gpuReport,
	}, nil
}

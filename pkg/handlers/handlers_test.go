/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"gotest.tools/assert"

	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	"github.com/gpu-nebula/control-plane/pkg/scheduler"
	"github.com/gpu-nebula/control-plane/pkg/store"
	"github.com/gpu-nebula/control-plane/pkg/store/fake"
)

type stubRunner struct {
	pid int64
}

func (r *stubRunner) Start(string, int) (int64, error) {
	return r.pid, nil
}

type stubProber struct {
	alive map[int64]bool
}

func (p *stubProber) Alive(pid int64) (bool, error) {
	return p.alive[pid], nil
}

func (p *stubProber) Terminate(pid int64) error {
	delete(p.alive, pid)
	return nil
}

type testServer struct {
	store  *fake.Store
	engine *scheduler.Engine
	router *gin.Engine
	prober *stubProber
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := fake.NewStore()
	prober := &stubProber{alive: map[int64]bool{4242: true}}
	engine := scheduler.NewEngine(st, nil, scheduler.Options{
		Hostname:       "h1",
		Weights:        scheduler.DefaultWeights(),
		TickInterval:   time.Second,
		OfflineTimeout: 300 * time.Second,
		Runner:         &stubRunner{pid: 4242},
		Prober:         prober,
	})
	router := InitHttpHandlers(NewHandler(st, engine, 300*time.Second))
	return &testServer{store: st, engine: engine, router: router, prober: prober}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		assert.NilError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func validReport() *ReportInRequest {
	return &ReportInRequest{
		AgentInfo: AgentInfo{Hostname: "h1", IpAddress: "10.0.0.1", Os: "linux"},
		GpuReport: GpuReport{
			Gpus: []GpuRecord{{
				Id:          "GPU-0",
				Model:       "RTX 4090",
				Status:      store.GpuStatusHealthy,
				Temperature: 40,
				Utilization: 10,
				MemoryTotal: 1000,
				MemoryUsed:  100,
			}},
			DetectionMethod: "nvidia_smi",
			Status:          "success",
		},
	}
}

func TestReportIn(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &ReportInResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.Status, "success")
	assert.Equal(t, rsp.GpusAdded, 1)
	assert.Equal(t, rsp.GpusRemoved, 0)

	agent, err := ts.store.GetAgentByHostname(context.Background(), "h1")
	assert.NilError(t, err)
	assert.Assert(t, agent != nil)

	gpu, err := ts.store.GetGPU(context.Background(), "GPU-0")
	assert.NilError(t, err)
	assert.Assert(t, gpu.IsAvailable)
}

func TestReportInUnhealthyGpuNotAvailable(t *testing.T) {
	ts := newTestServer(t)
	report := validReport()
	report.GpuReport.Gpus[0].Status = store.GpuStatusOverheating
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", report)
	assert.Equal(t, rec.Code, http.StatusOK)

	// Only a healthy GPU may be marked available in the inventory.
	gpu, err := ts.store.GetGPU(context.Background(), "GPU-0")
	assert.NilError(t, err)
	assert.Equal(t, gpu.Status, store.GpuStatusOverheating)
	assert.Assert(t, !gpu.IsAvailable)

	gpus, err := ts.store.ListAvailableGPUs(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, len(gpus), 0)
}

func TestReportInValidation(t *testing.T) {
	ts := newTestServer(t)

	report := validReport()
	report.AgentInfo.Hostname = ""
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", report)
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	report = validReport()
	report.AgentInfo.IpAddress = ""
	rec = ts.do(t, http.MethodPost, "/api/v1/agent/report-in", report)
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestReportInSkipsMalformedGpus(t *testing.T) {
	ts := newTestServer(t)
	report := validReport()
	report.GpuReport.Gpus = append(report.GpuReport.Gpus, GpuRecord{Temperature: 70})

	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", report)
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &ReportInResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.GpusAdded, 1)
}

func TestReportInReplacesGpuSet(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	assert.Equal(t, rec.Code, http.StatusOK)

	report := validReport()
	report.GpuReport.Gpus[0].Id = "GPU-1"
	rec = ts.do(t, http.MethodPost, "/api/v1/agent/report-in", report)
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &ReportInResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.GpusAdded, 1)
	assert.Equal(t, rsp.GpusRemoved, 1)
}

func TestSubmitThenRun(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	assert.Equal(t, rec.Code, http.StatusOK)

	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "train", Command: "python run.py"})
	assert.Equal(t, rec.Code, http.StatusOK)

	result := &scheduler.Result{}
	ts.decode(t, rec, result)
	assert.Equal(t, result.Status, store.JobStatusRunning)
	assert.Equal(t, result.JobId, int64(1))
	assert.Equal(t, result.Gpu, "GPU-0")
	assert.Equal(t, result.Pid, int64(4242))
}

func TestSubmitQueuedOnEmptyCluster(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "t", Command: "echo hi"})
	assert.Equal(t, rec.Code, http.StatusOK)

	result := &scheduler.Result{}
	ts.decode(t, rec, result)
	assert.Equal(t, result.Status, store.JobStatusQueued)
	assert.Equal(t, result.JobId, int64(1))
}

func TestSubmitValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/submit", &SubmitJobRequest{Command: "echo hi"})
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/submit", &SubmitJobRequest{WorkloadType: "t"})
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestSubmitUnknownPreferredGpu(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "t", Command: "echo hi", PreferredGpu: "GPU-9"})
	assert.Equal(t, rec.Code, http.StatusBadRequest)

	apiErr := struct {
		ErrorCode string `json:"errorCode"`
	}{}
	ts.decode(t, rec, &apiErr)
	assert.Equal(t, apiErr.ErrorCode, nebulaerrors.GpuNotFound)
}

func TestGetJobStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "train", Command: "python run.py"})

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/1/status", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	view := &JobView{}
	ts.decode(t, rec, view)
	assert.Equal(t, view.Id, int64(1))
	assert.Equal(t, view.Status, store.JobStatusRunning)
	assert.Equal(t, view.Gpu, "GPU-0")
	assert.Equal(t, view.Agent, "h1")
}

func TestGetJobStatusNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/99/status", nil)
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestListJobsNewestFirst(t *testing.T) {
	ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
			&SubmitJobRequest{WorkloadType: "t", Command: "echo hi"})
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &ListJobsResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, len(rsp.Jobs), 3)
	assert.Equal(t, rsp.Jobs[0].Id, int64(3))
	assert.Equal(t, rsp.Jobs[2].Id, int64(1))

	rec = ts.do(t, http.MethodGet, "/api/v1/jobs?limit=2", nil)
	rsp = &ListJobsResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, len(rsp.Jobs), 2)
}

func TestCancelJob(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "t", Command: "sleep 60"})

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/1/cancel", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	rsp := &CancelJobResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.Status, scheduler.CancelOutcomeCancelled)

	// Idempotent on the second call.
	rec = ts.do(t, http.MethodPost, "/api/v1/jobs/1/cancel", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	rsp = &CancelJobResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.Status, scheduler.CancelOutcomeAlreadyFinished)
}

func TestCancelJobNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/99/cancel", nil)
	assert.Equal(t, rec.Code, http.StatusNotFound)
}

func TestGetJobHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "t", Command: "sleep 60"})
	ts.do(t, http.MethodPost, "/api/v1/jobs/1/cancel", nil)

	rec := ts.do(t, http.MethodGet, "/api/v1/jobs/1/history", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &JobHistoryResponse{}
	ts.decode(t, rec, rsp)
	assert.Equal(t, rsp.JobId, int64(1))
	assert.Equal(t, len(rsp.History), 2)
	// Newest first.
	assert.Equal(t, rsp.History[0].Action, store.ActionCancelled)
	assert.Equal(t, rsp.History[1].Action, store.ActionStarted)
}

func TestMonitorNow(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/api/v1/agent/report-in", validReport())
	ts.do(t, http.MethodPost, "/api/v1/jobs/submit",
		&SubmitJobRequest{WorkloadType: "t", Command: "sleep 60"})

	// The tracked process exits.
	delete(ts.prober.alive, 4242)

	rec := ts.do(t, http.MethodPost, "/api/v1/jobs/monitor", nil)
	assert.Equal(t, rec.Code, http.StatusOK)

	job, err := ts.store.GetJob(context.Background(), 1)
	assert.NilError(t, err)
	assert.Equal(t, job.Status, store.JobStatusCompleted)
}

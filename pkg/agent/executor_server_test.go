/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"gotest.tools/assert"

	"github.com/gpu-nebula/control-plane/pkg/executor"
)

type stubRunner struct {
	pid      int64
	err      error
	gpuIndex int
}

func (r *stubRunner) Start(_ string, gpuIndex int) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	r.gpuIndex = gpuIndex
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

func newTestExecutorServer(runner *stubRunner, prober *stubProber) *gin.Engine {
	gin.SetMode(gin.TestMode)
	s := &ExecutorServer{
		runner: runner,
		prober: prober,
		pids:   make(map[int64]int64),
	}
	engine := gin.New()
	s.InitRouters(engine)
	return engine
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
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
	router.ServeHTTP(rec, req)
	return rec
}

func TestRunJob(t *testing.T) {
	runner := &stubRunner{pid: 4242}
	router := newTestExecutorServer(runner, &stubProber{alive: map[int64]bool{4242: true}})

	rec := doRequest(t, router, http.MethodPost, executor.RunJobPath, &executor.RunJobRequest{
		JobId:        1,
		Command:      "python run.py",
		GpuId:        "gpu-3",
		WorkloadType: "train",
	})
	assert.Equal(t, rec.Code, http.StatusOK)

	rsp := &executor.RunJobResponse{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), rsp))
	assert.Equal(t, rsp.Status, executor.StatusStarted)
	assert.Equal(t, rsp.Pid, int64(4242))
	assert.Equal(t, runner.gpuIndex, 3)
}

func TestRunJobValidation(t *testing.T) {
	router := newTestExecutorServer(&stubRunner{pid: 1}, &stubProber{alive: map[int64]bool{}})
	rec := doRequest(t, router, http.MethodPost, executor.RunJobPath, &executor.RunJobRequest{JobId: 1})
	assert.Equal(t, rec.Code, http.StatusBadRequest)
}

func TestRunJobLaunchFailure(t *testing.T) {
	runner := &stubRunner{err: fmt.Errorf("no such binary")}
	router := newTestExecutorServer(runner, &stubProber{alive: map[int64]bool{}})

	rec := doRequest(t, router, http.MethodPost, executor.RunJobPath, &executor.RunJobRequest{
		JobId:   1,
		Command: "bad-binary",
		GpuId:   "gpu-0",
	})
	assert.Equal(t, rec.Code, http.StatusInternalServerError)
}

func TestJobStatus(t *testing.T) {
	prober := &stubProber{alive: map[int64]bool{4242: true}}
	router := newTestExecutorServer(&stubRunner{pid: 4242}, prober)

	// Pid never launched here.
	rec := doRequest(t, router, http.MethodGet, executor.JobStatusPath+"/999", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	rsp := &executor.JobStatusResponse{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), rsp))
	assert.Equal(t, rsp.Status, executor.StatusNotFound)

	// Launch, then probe: running.
	doRequest(t, router, http.MethodPost, executor.RunJobPath, &executor.RunJobRequest{
		JobId: 1, Command: "sleep 60", GpuId: "gpu-0",
	})
	rec = doRequest(t, router, http.MethodGet, executor.JobStatusPath+"/4242", nil)
	assert.Equal(t, rec.Code, http.StatusOK)
	rsp = &executor.JobStatusResponse{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), rsp))
	assert.Equal(t, rsp.Status, executor.StatusRunning)

	// The process exits: not_running, still known.
	delete(prober.alive, 4242)
	rec = doRequest(t, router, http.MethodGet, executor.JobStatusPath+"/4242", nil)
	rsp = &executor.JobStatusResponse{}
	assert.NilError(t, json.Unmarshal(rec.Body.Bytes(), rsp))
	assert.Equal(t, rsp.Status, executor.StatusNotRunning)
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/assert"
)

func TestGetAndPost(t *testing.T) {
	type echo struct {
		Path   string `json:"path"`
		Method string `json:"method"`
		Value  string `json:"value,omitempty"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp := echo{Path: r.URL.Path, Method: r.Method}
		if r.Method == http.MethodPost {
			body := map[string]string{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			rsp.Value = body["key"]
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rsp)
	}))
	defer server.Close()

	c := NewHttpClient()
	ctx := context.Background()

	result, err := c.Get(ctx, server.URL+"/ping")
	assert.NilError(t, err)
	assert.Assert(t, result.IsSuccess())
	got := echo{}
	assert.NilError(t, result.Decode(&got))
	assert.Equal(t, got.Path, "/ping")
	assert.Equal(t, got.Method, http.MethodGet)

	result, err = c.Post(ctx, server.URL+"/submit", map[string]string{"key": "val"})
	assert.NilError(t, err)
	assert.Assert(t, result.IsSuccess())
	got = echo{}
	assert.NilError(t, result.Decode(&got))
	assert.Equal(t, got.Value, "val")
}

func TestRetryResendsFullBody(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(data))
		if len(bodies) == 1 {
			// Drop the first connection without a response so the
			// client sees a transport error and retries.
			hj, ok := w.(http.Hijacker)
			assert.Assert(t, ok)
			conn, _, err := hj.Hijack()
			assert.NilError(t, err)
			_ = conn.Close()
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewHttpClient()
	result, err := c.Post(context.Background(), server.URL+"/submit", map[string]string{"key": "val"})
	assert.NilError(t, err)
	assert.Assert(t, result.IsSuccess())
	assert.Equal(t, len(bodies), 2)
	// The second attempt carries the same payload, not an empty reader.
	assert.Equal(t, bodies[1], bodies[0])
	assert.Assert(t, len(bodies[1]) > 0)
}

func TestResultIsSuccess(t *testing.T) {
	assert.Assert(t, (&Result{StatusCode: 200}).IsSuccess())
	assert.Assert(t, (&Result{StatusCode: 204}).IsSuccess())
	assert.Assert(t, !(&Result{StatusCode: 404}).IsSuccess())
	assert.Assert(t, !(&Result{StatusCode: 500}).IsSuccess())
	var nilResult *Result
	assert.Assert(t, !nilResult.IsSuccess())
}

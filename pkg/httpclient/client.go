/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

type client struct {
	*http.Client
}

const (
	DefaultMaxTry = 2
)

var (
	once     sync.Once
	instance *client
)

type Interface interface {
	Get(ctx context.Context, url string, headers ...string) (*Result, error)
	Post(ctx context.Context, url string, body interface{}, headers ...string) (*Result, error)
}

// NewHttpClient returns the shared HTTP client. Per-request deadlines are
// carried by the context, not the client.
func NewHttpClient() Interface {
	once.Do(func() {
		instance = &client{
			Client: &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:          128,
					MaxConnsPerHost:       64,
					IdleConnTimeout:       1 * time.Minute,
					ExpectContinueTimeout: 10 * time.Second,
				},
			},
		}
	})
	return instance
}

func (c *client) Get(ctx context.Context, url string, headers ...string) (*Result, error) {
	return c.do(ctx, url, http.MethodGet, nil, headers...)
}

func (c *client) Post(ctx context.Context, url string, body interface{}, headers ...string) (*Result, error) {
	return c.do(ctx, url, http.MethodPost, body, headers...)
}

func (c *client) do(ctx context.Context, url, method string, body interface{}, headers ...string) (*Result, error) {
	req, err := BuildRequest(ctx, url, method, body, headers...)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// Do executes the HTTP request with retry logic.
// It attempts to send the request up to DefaultMaxTry times; a request
// whose body cannot be rewound is not retried. On success, it reads the
// response body and returns a Result containing the status code, response
// body, and headers. The response body is closed.
func (c *client) Do(req *http.Request) (*Result, error) {
	var rsp *http.Response
	var err error
	for i := 0; i < DefaultMaxTry; i++ {
		if rsp, err = c.Client.Do(req); err == nil {
			break
		} else if i == DefaultMaxTry-1 {
			return nil, err
		}
		// The first attempt consumed the body; rewind it before resending.
		if req.Body != nil {
			if req.GetBody == nil {
				return nil, err
			}
			if req.Body, err = req.GetBody(); err != nil {
				return nil, err
			}
		}
	}
	if rsp == nil {
		return nil, fmt.Errorf("no result")
	}
	data, err := io.ReadAll(rsp.Body)
	defer rsp.Body.Close()
	if err != nil {
		return nil, err
	}
	return &Result{StatusCode: rsp.StatusCode, Body: data, Header: rsp.Header}, nil
}

// BuildRequest creates an HTTP request with the given URL, method, body, and headers.
// Headers are set in pairs (key, value), and Content-Type defaults to "application/json".
func BuildRequest(ctx context.Context, url, method string, body interface{}, headers ...string) (*http.Request, error) {
	reader, err := cvtIOReader(body)
	if err != nil {
		return nil, err
	}
	request, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		request.Header.Set(headers[i], headers[i+1])
	}
	return request, nil
}

func cvtIOReader(body interface{}) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	switch val := body.(type) {
	case []byte:
		return bytes.NewReader(val), nil
	case string:
		return bytes.NewReader([]byte(val)), nil
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
}

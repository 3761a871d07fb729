/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiutil

import (
	"fmt"
	"io"
	"net/http"

	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
	jsonutils "github.com/gpu-nebula/control-plane/pkg/json"
)

const (
	DefaultMaxRequestBodyBytes = int64(2 * 1024 * 1024)
)

// ReadBody reads the HTTP request body with a size limit to prevent excessive
// memory consumption. The request body is closed after reading.
func ReadBody(req *http.Request) ([]byte, error) {
	defer req.Body.Close()
	lr := &io.LimitedReader{
		R: req.Body,
		N: DefaultMaxRequestBodyBytes + 1,
	}
	data, err := io.ReadAll(lr)
	if err != nil {
		return nil, nebulaerrors.NewInternalError(err.Error())
	}
	if lr.N <= 0 {
		return nil, nebulaerrors.NewRequestEntityTooLargeError(
			fmt.Sprintf("the max length is %d bytes", DefaultMaxRequestBodyBytes))
	}
	return data, nil
}

// ParseRequestBody reads the request body and unmarshals it into bodyStruct.
// An empty body returns nil for both body and error; a malformed one returns
// the raw body together with a BadRequest error.
func ParseRequestBody(req *http.Request, bodyStruct interface{}) ([]byte, error) {
	body, err := ReadBody(req)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	if err = jsonutils.Unmarshal(body, bodyStruct); err != nil {
		return body, nebulaerrors.NewBadRequest(err.Error())
	}
	return body, nil
}

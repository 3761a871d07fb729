/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiutil

import (
	"errors"

	"github.com/gin-gonic/gin"

	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

type ApiError struct {
	HttpCode     int    `json:"-"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

func (err *ApiError) Error() string {
	return err.ErrorMessage
}

// AbortWithApiError records err on the gin context for the logging
// middleware and writes the error response.
func AbortWithApiError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	rsp := cvtToErrResponse(err)
	c.AbortWithStatusJSON(rsp.HttpCode, rsp)
}

func cvtToErrResponse(err error) ApiError {
	var result *ApiError
	if errors.As(err, &result) {
		return *result
	}
	var statusErr *nebulaerrors.StatusError
	if !errors.As(err, &statusErr) {
		statusErr = nebulaerrors.NewInternalError(err.Error())
	}
	return ApiError{
		HttpCode:     statusErr.HttpCode,
		ErrorCode:    statusErr.Reason,
		ErrorMessage: statusErr.Error(),
	}
}

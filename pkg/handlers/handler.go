/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	"github.com/gpu-nebula/control-plane/pkg/scheduler"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

var (
	jsonContentType = "application/json; charset=utf-8"
)

type Handler struct {
	store          store.Interface
	engine         *scheduler.Engine
	offlineTimeout time.Duration
}

func NewHandler(st store.Interface, engine *scheduler.Engine, offlineTimeout time.Duration) *Handler {
	return &Handler{
		store:          st,
		engine:         engine,
		offlineTimeout: offlineTimeout,
	}
}

type handleFunc func(*gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	rsp, err := fn(c)
	if err != nil {
		apiutil.AbortWithApiError(c, err)
		return
	}
	code := http.StatusOK
	// If a status was previously set, use that status in the response.
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	switch rspType := rsp.(type) {
	case []byte:
		c.Data(code, jsonContentType, rspType)
	case string:
		c.Data(code, jsonContentType, []byte(rspType))
	default:
		c.JSON(code, rspType)
	}
}

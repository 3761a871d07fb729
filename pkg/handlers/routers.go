/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	nebulaerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

const (
	JobId = "id"
)

// InitHttpHandlers builds the gin engine with middleware and all routes.
func InitHttpHandlers(h *Handler) *gin.Engine {
	engine := gin.New()
	engine.Use(apiutil.Logger(), gin.Recovery())
	engine.NoRoute(func(c *gin.Context) {
		apiutil.AbortWithApiError(c, nebulaerrors.NewNotFoundWithMessage(c.Request.RequestURI+" not found"))
	})
	InitRouters(engine, h)
	return engine
}

func InitRouters(e *gin.Engine, h *Handler) {
	group := e.Group("/api/v1")
	{
		group.POST("agent/report-in", h.ReportIn)

		group.POST("jobs/submit", h.SubmitJob)
		group.GET("jobs", h.ListJobs)
		group.GET("jobs/:"+JobId+"/status", h.GetJobStatus)
		group.POST("jobs/:"+JobId+"/cancel", h.CancelJob)
		group.GET("jobs/:"+JobId+"/history", h.GetJobHistory)
		group.POST("jobs/monitor", h.MonitorJobs)

		group.GET("topology", h.GetTopology)
	}
}

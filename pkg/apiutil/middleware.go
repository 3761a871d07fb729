/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package apiutil

import (
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"
)

// Logger returns a gin middleware that writes one access line per request
// through klog, including the errors handlers attached to the context.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		if len(c.Errors) > 0 {
			klog.Warningf("%s %s %d %v, errs: %s",
				c.Request.Method, c.Request.URL.Path, status, latency, c.Errors.String())
			return
		}
		klog.V(2).Infof("%s %s %d %v",
			c.Request.Method, c.Request.URL.Path, status, latency)
	}
}

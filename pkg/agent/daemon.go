/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

// Package agent implements the reference worker daemon: it serves the
// executor contract and keeps the control plane informed about the local
// GPUs through the ingest endpoint.
package agent

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/apiutil"
	"github.com/gpu-nebula/control-plane/pkg/config"
	"github.com/gpu-nebula/control-plane/pkg/options"
)

var (
	jsonContentType = "application/json; charset=utf-8"
)

type Daemon struct {
	opts       *options.Options
	reporter   *Reporter
	executor   *ExecutorServer
	httpServer *http.Server
	isInited   bool
}

func NewDaemon() (*Daemon, error) {
	d := &Daemon{
		opts: &options.Options{},
	}
	if err := d.init(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Daemon) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = d.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if d.opts.Config != "" {
		fullPath, err2 := filepath.Abs(d.opts.Config)
		if err2 != nil {
			return err2
		}
		if err = config.LoadConfig(fullPath); err != nil {
			return err
		}
	}
	if d.reporter, err = NewReporter(config.GetAgentControlPlaneUrl(),
		config.GetAgentReportInterval()); err != nil {
		return err
	}
	d.executor = NewExecutorServer()
	d.isInited = true
	return nil
}

func (d *Daemon) Start() {
	if !d.isInited {
		klog.Errorf("please init the agent daemon first")
		return
	}
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	klog.Infof("starting agent daemon")
	d.reporter.Start()

	go func() {
		if err := d.startHttpServer(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start executor server")
			os.Exit(-1)
		}
	}()

	<-ctx.Done()
	d.Stop()
}

func (d *Daemon) Stop() {
	if d.reporter != nil {
		d.reporter.Stop()
	}
	if d.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.httpServer.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "failed to shutdown executor server")
		}
	}
	klog.Info("agent daemon is stopped")
	klog.Flush()
}

func (d *Daemon) startHttpServer() error {
	engine := gin.New()
	engine.Use(apiutil.Logger(), gin.Recovery())
	d.executor.InitRouters(engine)
	addr := config.GetAgentListenAddr()
	d.httpServer = &http.Server{Addr: addr, Handler: engine}
	klog.Infof("executor server listen addr: %s", addr)
	return d.httpServer.ListenAndServe()
}

type handleFunc func(*gin.Context) (interface{}, error)

func handle(c *gin.Context, fn handleFunc) {
	rsp, err := fn(c)
	if err != nil {
		apiutil.AbortWithApiError(c, err)
		return
	}
	code := http.StatusOK
	if c.Writer.Status() > 0 {
		code = c.Writer.Status()
	}
	switch rspType := rsp.(type) {
	case []byte:
		c.Data(code, jsonContentType, rspType)
	default:
		c.JSON(code, rspType)
	}
}

/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"k8s.io/klog/v2"

	"github.com/gpu-nebula/control-plane/pkg/config"
	"github.com/gpu-nebula/control-plane/pkg/executor"
	"github.com/gpu-nebula/control-plane/pkg/handlers"
	"github.com/gpu-nebula/control-plane/pkg/options"
	"github.com/gpu-nebula/control-plane/pkg/scheduler"
	"github.com/gpu-nebula/control-plane/pkg/store"
)

type Server struct {
	opts       *options.Options
	dbClient   *store.Client
	engine     *scheduler.Engine
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	isInited   bool
}

func NewServer() (*Server, error) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	s := &Server{
		opts:   &options.Options{},
		ctx:    ctx,
		cancel: cancel,
	}
	if err := s.init(); err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (s *Server) init() error {
	gin.SetMode(gin.ReleaseMode)
	var err error
	if err = s.opts.InitFlags(); err != nil {
		klog.ErrorS(err, "failed to parse flags")
		return err
	}
	if err = s.initConfig(); err != nil {
		klog.ErrorS(err, "failed to init config")
		return err
	}
	if err = s.initStore(); err != nil {
		klog.ErrorS(err, "failed to init store")
		return err
	}
	if err = s.initEngine(); err != nil {
		klog.ErrorS(err, "failed to init scheduler engine")
		return err
	}
	s.isInited = true
	return nil
}

func (s *Server) initConfig() error {
	if s.opts.Config == "" {
		klog.Infof("no config file given, using defaults")
		return nil
	}
	fullPath, err := filepath.Abs(s.opts.Config)
	if err != nil {
		return err
	}
	if err = config.LoadConfig(fullPath); err != nil {
		return fmt.Errorf("config path: %s, err: %v", fullPath, err)
	}
	return nil
}

func (s *Server) initStore() error {
	dataSource := config.GetDatabaseUrl()
	if dataSource == "" {
		return fmt.Errorf("database_url is not defined")
	}
	dbClient, err := store.NewClient(dataSource)
	if err != nil {
		return err
	}
	if err = dbClient.Migrate(s.ctx); err != nil {
		return err
	}
	s.dbClient = dbClient
	return nil
}

func (s *Server) initEngine() error {
	hostname, err := os.Hostname()
	if err != nil {
		return err
	}
	execClient := executor.NewClient(config.GetAgentExecutorPort(),
		config.GetRemoteLaunchTimeout(), config.GetRemoteProbeTimeout())
	s.engine = scheduler.NewEngine(s.dbClient, execClient, scheduler.Options{
		Hostname:       hostname,
		Weights:        scheduler.WeightsFromConfig(),
		TickInterval:   config.GetSupervisorTickInterval(),
		OfflineTimeout: config.GetAgentOfflineTimeout(),
	})
	return nil
}

func (s *Server) Start() {
	if !s.isInited {
		klog.Errorf("please init the control plane first")
		return
	}
	gin.EnableJsonDecoderDisallowUnknownFields()

	klog.Infof("starting control plane")
	s.engine.Start()

	go func() {
		if err := s.startHttpServer(); err != nil && err != http.ErrServerClosed {
			klog.ErrorS(err, "failed to start http-server")
			os.Exit(-1)
		}
	}()

	<-s.ctx.Done()
	s.Stop()
}

func (s *Server) Stop() {
	s.engine.Stop()
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(ctx); err != nil {
			klog.ErrorS(err, "failed to shutdown httpserver")
		}
	}
	if s.dbClient != nil {
		if err := s.dbClient.Close(); err != nil {
			klog.ErrorS(err, "failed to close db client")
		}
	}
	s.cancel()
	klog.Info("control plane is stopped")
	klog.Flush()
}

func (s *Server) startHttpServer() error {
	handler := handlers.NewHandler(s.dbClient, s.engine, config.GetAgentOfflineTimeout())
	addr := config.GetListenAddr()
	s.httpServer = &http.Server{Addr: addr, Handler: handlers.InitHttpHandlers(handler)}
	klog.Infof("http-server listen addr: %s", addr)
	return s.httpServer.ListenAndServe()
}

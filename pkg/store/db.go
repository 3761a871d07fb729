/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"k8s.io/klog/v2"
)

type DBDriver string

const (
	PgDriver DBDriver = "postgres"
)

const (
	defaultMaxOpenConns = 32
	defaultMaxIdleConns = 8
	defaultMaxIdleTime  = 5 * time.Minute
)

// Client is the sqlx-backed state store. It implements Interface.
type Client struct {
	db             *sqlx.DB
	RequestTimeout time.Duration
}

var _ Interface = &Client{}

// NewClient connects to the database addressed by dataSource, which is a
// lib/pq connection URL or keyword/value string.
func NewClient(dataSource string) (*Client, error) {
	if dataSource == "" {
		return nil, fmt.Errorf("the database url is empty")
	}
	db, err := sqlx.Connect(string(PgDriver), dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to connect db, err: %v", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxIdleTime(defaultMaxIdleTime)
	return &Client{db: db}, nil
}

// Migrate applies the schema and indices. Safe to run on every boot.
func (c *Client) Migrate(ctx context.Context) error {
	for _, cmd := range schemaCommands {
		if _, err := c.db.ExecContext(ctx, cmd); err != nil {
			klog.ErrorS(err, "failed to apply schema command", "cmd", cmd)
			return err
		}
	}
	klog.Infof("database schema is up to date")
	return nil
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

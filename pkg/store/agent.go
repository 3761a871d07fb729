/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	commonerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

const (
	TAgents = "agents"
)

var (
	// last_seen only moves forward, even if a caller hands in a stale clock.
	upsertAgentCmd = fmt.Sprintf(`INSERT INTO %s (hostname, ip_address, os, last_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (hostname) DO UPDATE
		SET ip_address = EXCLUDED.ip_address,
		    os = EXCLUDED.os,
		    last_seen = GREATEST(%s.last_seen, EXCLUDED.last_seen)
		RETURNING id`, TAgents, TAgents)
)

func (c *Client) UpsertAgent(ctx context.Context, hostname, ip, os string, now time.Time) (int64, error) {
	if c.db == nil {
		return 0, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	var agentId int64
	err := c.db.GetContext(ctx, &agentId, upsertAgentCmd, hostname, ip, NullString(os), now.UTC())
	return agentId, err
}

func upsertAgentTx(ctx context.Context, tx *sqlx.Tx, hostname, ip, os string, now time.Time) (int64, error) {
	var agentId int64
	err := tx.GetContext(ctx, &agentId, upsertAgentCmd, hostname, ip, NullString(os), now.UTC())
	return agentId, err
}

func (c *Client) GetAgent(ctx context.Context, agentId int64) (*Agent, error) {
	return c.getAgent(ctx, sqrl.Eq{"id": agentId})
}

func (c *Client) GetAgentByHostname(ctx context.Context, hostname string) (*Agent, error) {
	return c.getAgent(ctx, sqrl.Eq{"hostname": hostname})
}

func (c *Client) getAgent(ctx context.Context, query sqrl.Sqlizer) (*Agent, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TAgents).
		Where(query).
		Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	agent := &Agent{}
	if err = c.db.Unsafe().GetContext(ctx, agent, cmd, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return agent, nil
}

func (c *Client) ListAgents(ctx context.Context) ([]*Agent, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TAgents).
		OrderBy("hostname").ToSql()
	if err != nil {
		return nil, err
	}
	var agents []*Agent
	err = c.db.Unsafe().SelectContext(ctx, &agents, cmd, args...)
	return agents, err
}

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
	"k8s.io/klog/v2"

	commonerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

const (
	TGpus = "gpus"
)

var (
	selectAgentGpuIdsCmd = fmt.Sprintf(`SELECT id FROM %s WHERE agent_id = $1`, TGpus)
	deleteAgentGpusCmd   = fmt.Sprintf(`DELETE FROM %s WHERE agent_id = $1`, TGpus)
	insertGpuFormat      = `INSERT INTO ` + TGpus + ` (%s) VALUES (%s)`
)

func (c *Client) ReplaceAgentGPUs(ctx context.Context, agentId int64, gpus []*GPU) (int, int, error) {
	if c.db == nil {
		return 0, 0, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	added, removed, err := replaceAgentGpusTx(ctx, tx, agentId, gpus)
	if err != nil {
		_ = tx.Rollback()
		return 0, 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, err
	}
	return added, removed, nil
}

func (c *Client) RecordAgentReport(ctx context.Context, hostname, ip, os string,
	gpus []*GPU, now time.Time) (int64, int, int, error) {
	if c.db == nil {
		return 0, 0, 0, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, 0, 0, err
	}
	agentId, added, removed, err := func() (int64, int, int, error) {
		agentId, err := upsertAgentTx(ctx, tx, hostname, ip, os, now)
		if err != nil {
			return 0, 0, 0, err
		}
		for _, gpu := range gpus {
			gpu.AgentId = agentId
			gpu.LastUpdated = NullTime(now.UTC())
		}
		added, removed, err := replaceAgentGpusTx(ctx, tx, agentId, gpus)
		return agentId, added, removed, err
	}()
	if err != nil {
		_ = tx.Rollback()
		klog.ErrorS(err, "failed to record agent report", "hostname", hostname)
		return 0, 0, 0, err
	}
	if err = tx.Commit(); err != nil {
		return 0, 0, 0, err
	}
	return agentId, added, removed, nil
}

// replaceAgentGpusTx deletes the agent's GPU rows and inserts the new set.
// The added/removed counters compare device ids, not metric values.
func replaceAgentGpusTx(ctx context.Context, tx *sqlx.Tx, agentId int64, gpus []*GPU) (int, int, error) {
	var priorIds []string
	if err := tx.SelectContext(ctx, &priorIds, selectAgentGpuIdsCmd, agentId); err != nil {
		return 0, 0, err
	}
	if _, err := tx.ExecContext(ctx, deleteAgentGpusCmd, agentId); err != nil {
		return 0, 0, err
	}
	prior := make(map[string]bool, len(priorIds))
	for _, id := range priorIds {
		prior[id] = true
	}
	added := 0
	current := make(map[string]bool, len(gpus))
	for _, gpu := range gpus {
		if _, err := tx.NamedExecContext(ctx, generateCommand(*gpu, insertGpuFormat, ""), gpu); err != nil {
			return 0, 0, err
		}
		current[gpu.Id] = true
		if !prior[gpu.Id] {
			added++
		}
	}
	removed := 0
	for id := range prior {
		if !current[id] {
			removed++
		}
	}
	return added, removed, nil
}

func (c *Client) ListAvailableGPUs(ctx context.Context) ([]*GPU, error) {
	return c.selectGpus(ctx, sqrl.Eq{"status": GpuStatusHealthy, "is_available": true})
}

func (c *Client) ListAgentGPUs(ctx context.Context, agentId int64) ([]*GPU, error) {
	return c.selectGpus(ctx, sqrl.Eq{"agent_id": agentId})
}

func (c *Client) selectGpus(ctx context.Context, query sqrl.Sqlizer) ([]*GPU, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TGpus).
		Where(query).
		OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	var gpus []*GPU
	err = c.db.Unsafe().SelectContext(ctx, &gpus, cmd, args...)
	return gpus, err
}

func (c *Client) GetGPU(ctx context.Context, gpuId string) (*GPU, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TGpus).
		Where(sqrl.Eq{"id": gpuId}).
		Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	gpu := &GPU{}
	if err = c.db.Unsafe().GetContext(ctx, gpu, cmd, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return gpu, nil
}

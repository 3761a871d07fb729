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

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

const (
	TJobs = "jobs"
)

var (
	insertJobFormat = `INSERT INTO ` + TJobs + ` (%s) VALUES (%s) RETURNING id`

	// The status guard keeps terminal states monotone: the supervisor and
	// the cancel path may race on the same row, and whichever loses the
	// race becomes a no-op.
	updateJobCmd = fmt.Sprintf(`UPDATE %s
		SET status = :status,
		    assigned_gpu_id = :assigned_gpu_id,
		    agent_id = :agent_id,
		    pid = :pid,
		    started_at = :started_at,
		    finished_at = :finished_at
		WHERE id = :id
		  AND status NOT IN ('%s', '%s', '%s')`,
		TJobs, JobStatusCompleted, JobStatusFailed, JobStatusCancelled)

	countActiveJobsCmd = fmt.Sprintf(`SELECT assigned_gpu_id, COUNT(*) AS cnt FROM %s
		WHERE status IN ('%s', '%s') AND assigned_gpu_id IS NOT NULL
		GROUP BY assigned_gpu_id`, TJobs, JobStatusRunning, JobStatusPending)
)

func (c *Client) CreateJob(ctx context.Context, job *Job) (int64, error) {
	if c.db == nil {
		return 0, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	rows, err := c.db.NamedQueryContext(ctx, generateCommand(*job, insertJobFormat, "id"), job)
	if err != nil {
		klog.ErrorS(err, "failed to insert job db", "workloadType", job.WorkloadType)
		return 0, err
	}
	defer rows.Close()
	var jobId int64
	if rows.Next() {
		if err = rows.Scan(&jobId); err != nil {
			return 0, err
		}
	}
	job.Id = jobId
	return jobId, nil
}

func (c *Client) UpdateJob(ctx context.Context, job *Job) error {
	if c.db == nil {
		return commonerrors.NewInternalError("The client of db has not been initialized")
	}
	result, err := c.db.NamedExecContext(ctx, updateJobCmd, job)
	if err != nil {
		klog.ErrorS(err, "failed to update job db", "id", job.Id)
		return err
	}
	if affected, err2 := result.RowsAffected(); err2 == nil && affected == 0 {
		klog.V(2).Infof("job %d is already terminal, update dropped", job.Id)
	}
	return nil
}

func (c *Client) GetJob(ctx context.Context, jobId int64) (*Job, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TJobs).
		Where(sqrl.Eq{"id": jobId}).
		Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	job := &Job{}
	if err = c.db.Unsafe().GetContext(ctx, job, cmd, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return job, nil
}

func (c *Client) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return c.selectJobs(ctx, nil, []string{"created_at " + DESC, "id " + DESC}, uint64(limit))
}

func (c *Client) ListRunningJobs(ctx context.Context) ([]*Job, error) {
	return c.selectJobs(ctx, sqrl.Eq{"status": JobStatusRunning}, []string{"id " + ASC}, 0)
}

func (c *Client) ListQueuedJobs(ctx context.Context) ([]*Job, error) {
	return c.selectJobs(ctx, sqrl.Eq{"status": JobStatusQueued}, []string{"created_at " + ASC, "id " + ASC}, 0)
}

// ListActiveJobs returns jobs that occupy or are about to occupy a GPU.
func (c *Client) ListActiveJobs(ctx context.Context) ([]*Job, error) {
	return c.selectJobs(ctx, sqrl.Eq{"status": []string{JobStatusRunning, JobStatusPending}},
		[]string{"id " + ASC}, 0)
}

func (c *Client) selectJobs(ctx context.Context, query sqrl.Sqlizer, orderBy []string, limit uint64) ([]*Job, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	builder := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(TJobs).
		OrderBy(orderBy...)
	if query != nil {
		builder = builder.Where(query)
	}
	if limit > 0 {
		builder = builder.Limit(limit)
	}
	cmd, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	var jobs []*Job
	err = c.db.Unsafe().SelectContext(ctx, &jobs, cmd, args...)
	return jobs, err
}

func (c *Client) CountActiveJobsPerGPU(ctx context.Context) (map[string]int, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	rows, err := c.db.QueryxContext(ctx, countActiveJobsCmd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	result := make(map[string]int)
	for rows.Next() {
		var gpuId string
		var cnt int
		if err = rows.Scan(&gpuId, &cnt); err != nil {
			return nil, err
		}
		result[gpuId] = cnt
	}
	return result, rows.Err()
}

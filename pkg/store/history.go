/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"context"
	"fmt"
	"time"

	sqrl "github.com/Masterminds/squirrel"
	"k8s.io/klog/v2"

	commonerrors "github.com/gpu-nebula/control-plane/pkg/errors"
)

const (
	THistory = "history"
)

var (
	insertHistoryCmd = fmt.Sprintf(`INSERT INTO %s (job_id, action, details, timestamp)
		VALUES ($1, $2, $3, $4)`, THistory)
)

// AppendHistory writes one event to the append-only job log. Events are
// never mutated or deleted.
func (c *Client) AppendHistory(ctx context.Context, jobId int64, action, details string, now time.Time) error {
	if c.db == nil {
		return commonerrors.NewInternalError("The client of db has not been initialized")
	}
	_, err := c.db.ExecContext(ctx, insertHistoryCmd, jobId, action, NullString(details), now.UTC())
	if err != nil {
		klog.ErrorS(err, "failed to append history", "jobId", jobId, "action", action)
	}
	return err
}

func (c *Client) ListHistory(ctx context.Context, jobId int64) ([]*HistoryEvent, error) {
	if c.db == nil {
		return nil, commonerrors.NewInternalError("The client of db has not been initialized")
	}
	cmd, args, err := sqrl.Select("*").PlaceholderFormat(sqrl.Dollar).
		From(THistory).
		Where(sqrl.Eq{"job_id": jobId}).
		OrderBy("timestamp "+DESC, "id "+DESC).ToSql()
	if err != nil {
		return nil, err
	}
	var events []*HistoryEvent
	err = c.db.Unsafe().SelectContext(ctx, &events, cmd, args...)
	return events, err
}

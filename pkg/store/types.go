/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	DESC = "desc"
	ASC  = "asc"
)

// GPU status values reported by agents.
const (
	GpuStatusHealthy     = "healthy"
	GpuStatusOverheating = "overheating"
	GpuStatusUnknown     = "unknown"
	GpuStatusOffline     = "offline"
)

// Job status values.
const (
	JobStatusQueued    = "queued"
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

// History action tags.
const (
	ActionQueued    = "queued"
	ActionStarted   = "started"
	ActionCompleted = "completed"
	ActionFailed    = "failed"
	ActionCancelled = "cancelled"
)

// IsTerminalJobStatus reports whether status is one of the terminal job states.
// Terminal states are monotone: a job never transitions out of them.
func IsTerminalJobStatus(status string) bool {
	switch status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

type Agent struct {
	Id        int64          `db:"id"`
	Hostname  string         `db:"hostname"`
	IpAddress string         `db:"ip_address"`
	Os        sql.NullString `db:"os"`
	LastSeen  pq.NullTime    `db:"last_seen"`
}

type GPU struct {
	Id               string         `db:"id"`
	AgentId          int64          `db:"agent_id"`
	Model            sql.NullString `db:"model"`
	Status           string         `db:"status"`
	Temperature      int            `db:"temperature"`
	Utilization      int            `db:"utilization"`
	MemoryTotalBytes int64          `db:"memory_total_bytes"`
	MemoryUsedBytes  int64          `db:"memory_used_bytes"`
	IsAvailable      bool           `db:"is_available"`
	PciBusId         sql.NullString `db:"pci_bus_id"`
	LastUpdated      pq.NullTime    `db:"last_updated"`
}

type Job struct {
	Id            int64          `db:"id"`
	WorkloadType  string         `db:"workload_type"`
	Command       string         `db:"command"`
	Status        string         `db:"status"`
	AssignedGpuId sql.NullString `db:"assigned_gpu_id"`
	AgentId       sql.NullInt64  `db:"agent_id"`
	Pid           sql.NullInt64  `db:"pid"`
	CreatedAt     pq.NullTime    `db:"created_at"`
	StartedAt     pq.NullTime    `db:"started_at"`
	FinishedAt    pq.NullTime    `db:"finished_at"`
}

type HistoryEvent struct {
	Id        int64          `db:"id"`
	JobId     int64          `db:"job_id"`
	Action    string         `db:"action"`
	Details   sql.NullString `db:"details"`
	Timestamp pq.NullTime    `db:"timestamp"`
}

func ParseNullString(str sql.NullString) string {
	if str.Valid {
		return str.String
	}
	return ""
}

func ParseNullInt64(val sql.NullInt64) int64 {
	if val.Valid {
		return val.Int64
	}
	return 0
}

func ParseNullTime(t pq.NullTime) time.Time {
	if t.Valid {
		return t.Time
	}
	return time.Time{}
}

func NullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: str, Valid: true}
}

func NullInt64(val int64) sql.NullInt64 {
	if val == 0 {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: val, Valid: true}
}

func NullTime(t time.Time) pq.NullTime {
	if t.IsZero() {
		return pq.NullTime{Valid: false}
	}
	return pq.NullTime{Time: t, Valid: true}
}

// generateCommand generates a SQL command string using reflection.
// Iterates through struct fields and builds column and value lists,
// skipping fields with the specified ignoreTag.
func generateCommand(obj interface{}, format, ignoreTag string) string {
	t := reflect.TypeOf(obj)
	columns := make([]string, 0, t.NumField())
	values := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("db")
		if tag == ignoreTag {
			continue
		}
		columns = append(columns, tag)
		values = append(values, fmt.Sprintf(":%s", tag))
	}
	return fmt.Sprintf(format, strings.Join(columns, ", "), strings.Join(values, ", "))
}

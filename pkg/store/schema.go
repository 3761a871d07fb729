/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package store

// Logical tables: agents, gpus, jobs, history.
// gpus.agent_id references agents.id; jobs.agent_id and
// jobs.assigned_gpu_id are nullable; history.job_id references jobs.id.
var schemaCommands = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id          BIGSERIAL PRIMARY KEY,
		hostname    TEXT NOT NULL UNIQUE,
		ip_address  TEXT NOT NULL,
		os          TEXT,
		last_seen   TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS gpus (
		id                  TEXT PRIMARY KEY,
		agent_id            BIGINT NOT NULL REFERENCES agents(id),
		model               TEXT,
		status              TEXT NOT NULL DEFAULT 'unknown',
		temperature         INT NOT NULL DEFAULT 0,
		utilization         INT NOT NULL DEFAULT 0,
		memory_total_bytes  BIGINT NOT NULL DEFAULT 0,
		memory_used_bytes   BIGINT NOT NULL DEFAULT 0,
		is_available        BOOLEAN NOT NULL DEFAULT FALSE,
		pci_bus_id          TEXT,
		last_updated        TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id               BIGSERIAL PRIMARY KEY,
		workload_type    TEXT NOT NULL,
		command          TEXT NOT NULL,
		status           TEXT NOT NULL,
		assigned_gpu_id  TEXT,
		agent_id         BIGINT,
		pid              BIGINT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		started_at       TIMESTAMPTZ,
		finished_at      TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id         BIGSERIAL PRIMARY KEY,
		job_id     BIGINT NOT NULL REFERENCES jobs(id),
		action     TEXT NOT NULL,
		details    TEXT,
		timestamp  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_agents_hostname ON agents(hostname)`,
	`CREATE INDEX IF NOT EXISTS idx_gpus_agent_id ON gpus(agent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
	`CREATE INDEX IF NOT EXISTS idx_history_job_id ON history(job_id)`,
}

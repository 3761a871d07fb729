/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

const (
	// control plane
	listenAddr         = "control_plane_listen_addr"
	databaseUrl        = "database_url"
	agentExecutorPort  = "agent_executor_port"
	supervisorInterval = "supervisor_tick_interval"
	agentTimeout       = "agent_offline_timeout"
	launchTimeout      = "remote_launch_timeout"
	probeTimeout       = "remote_probe_timeout"

	// placement
	placementPrefix   = "placement."
	temperatureWeight = placementPrefix + "temperature_weight"
	utilizationWeight = placementPrefix + "utilization_weight"
	activeJobsWeight  = placementPrefix + "active_jobs_weight"
	memoryWeight      = placementPrefix + "memory_weight"

	// agent daemon
	agentPrefix          = "agent."
	agentControlPlaneUrl = agentPrefix + "control_plane_url"
	agentListenAddr      = agentPrefix + "listen_addr"
	agentReportInterval  = agentPrefix + "report_interval"
)

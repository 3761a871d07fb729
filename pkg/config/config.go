/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package config

import (
	"time"

	"github.com/spf13/viper"
)

func SetValue(key string, value interface{}) {
	viper.Set(key, value)
}

func LoadConfig(path string) error {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")
	return viper.ReadInConfig()
}

func getString(key, defaultValue string) string {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetString(key)
}

func getInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

func getFloat(key string, defaultValue float64) float64 {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetFloat64(key)
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetDuration(key)
}

func GetListenAddr() string {
	return getString(listenAddr, ":8080")
}

func GetDatabaseUrl() string {
	return getString(databaseUrl, "")
}

func GetAgentExecutorPort() int {
	return getInt(agentExecutorPort, 8001)
}

func GetSupervisorTickInterval() time.Duration {
	return getDuration(supervisorInterval, 5*time.Second)
}

func GetAgentOfflineTimeout() time.Duration {
	return getDuration(agentTimeout, 300*time.Second)
}

func GetRemoteLaunchTimeout() time.Duration {
	return getDuration(launchTimeout, 30*time.Second)
}

func GetRemoteProbeTimeout() time.Duration {
	return getDuration(probeTimeout, 5*time.Second)
}

func GetTemperatureWeight() float64 {
	return getFloat(temperatureWeight, 2.0)
}

func GetUtilizationWeight() float64 {
	return getFloat(utilizationWeight, 3.0)
}

func GetActiveJobsWeight() float64 {
	return getFloat(activeJobsWeight, 5.0)
}

func GetMemoryWeight() float64 {
	return getFloat(memoryWeight, 1.5)
}

func GetAgentControlPlaneUrl() string {
	return getString(agentControlPlaneUrl, "http://localhost:8080")
}

func GetAgentListenAddr() string {
	return getString(agentListenAddr, ":8001")
}

func GetAgentReportInterval() time.Duration {
	return getDuration(agentReportInterval, 30*time.Second)
}

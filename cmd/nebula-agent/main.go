/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"
	"os"

	"github.com/gpu-nebula/control-plane/pkg/agent"
)

func main() {
	d, err := agent.NewDaemon()
	if err != nil {
		fmt.Println("failed to new agent daemon, err: ", err.Error())
		os.Exit(1)
	}
	d.Start()
}

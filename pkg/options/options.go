/*
 * Copyright (c) 2025, GPU Nebula Authors. All rights reserved.
 * See LICENSE for license information.
 */

package options

import (
	"flag"
	"fmt"

	"k8s.io/klog/v2"
)

type Options struct {
	Config      string
	LogfilePath string
	LogFileSize int
}

func (opt *Options) InitFlags() error {
	if opt == nil {
		return fmt.Errorf("the options is not initialized")
	}
	flag.StringVar(&opt.Config, "config", "", "Path to the config.yaml")
	flag.IntVar(&opt.LogFileSize, "log_file_size", 0,
		"Defines the maximum size of the log file. Unit is megabytes. "+
			"The default is 0, which means that the size is unlimited.")
	flag.StringVar(&opt.LogfilePath, "log_file_path", "", "Path to the log file")
	klog.InitFlags(nil)
	flag.Parse()
	return opt.applyLogFlags()
}

func (opt *Options) applyLogFlags() error {
	if opt.LogfilePath == "" {
		return nil
	}
	if err := flag.Set("log_file", opt.LogfilePath); err != nil {
		return err
	}
	if err := flag.Set("logtostderr", "false"); err != nil {
		return err
	}
	if opt.LogFileSize > 0 {
		return flag.Set("log_file_max_size", fmt.Sprintf("%d", opt.LogFileSize))
	}
	return nil
}

// SPDX-License-Identifier: Apache-2.0
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	_ "github.com/tliron/commonlog/simple"

	"calyx/internal/config"
)

func main() {
	var (
		configPath = flag.String("config", "", "configuration file (default: nearest calyx.yaml)")
		passes     = flag.String("passes", "", "comma-separated passes to run, overriding the configuration")
		outDir     = flag.String("o", "", "write optimized programs into this directory instead of stdout")
		rig        = flag.Bool("rig", false, "print the reduced register interference graph of every function")
		run        = flag.String("run", "", "interpret this function before and after optimization and compare the traces")
		runArgs    = flag.String("args", "", "comma-separated arguments for -run")
		verifyOnly = flag.Bool("verify-only", false, "parse and verify without optimizing")
		watch      = flag.Bool("watch", false, "process the files again whenever they change")
		verbosity  = flag.Int("v", 0, "log verbosity (0 uses the configuration)")
	)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] <file.calyx>...\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Verifies and optimizes Calyx IR programs.\n\n")
		fmt.Fprintf(os.Stderr, "OPTIONS:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		color.Red("%s", err)
		os.Exit(1)
	}
	if *passes != "" {
		cfg.Optimizer.Passes = strings.Split(*passes, ",")
		if err := cfg.Validate(); err != nil {
			color.Red("%s", err)
			os.Exit(1)
		}
	}
	cfg.Configure(*verbosity)

	d := &driver{
		cfg:        cfg,
		out:        os.Stdout,
		errOut:     os.Stderr,
		outDir:     *outDir,
		rig:        *rig,
		run:        *run,
		verifyOnly: *verifyOnly,
	}
	if *runArgs != "" {
		d.runArgs = strings.Split(*runArgs, ",")
	}

	if *watch {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := d.watch(ctx, flag.Args()); err != nil {
			color.Red("watch: %s", err)
			os.Exit(1)
		}
		return
	}

	if !d.batch(flag.Args()) {
		os.Exit(1)
	}
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	dir, err := os.Getwd()
	if err != nil {
		return config.Config{}, err
	}
	cfg, _, err := config.Find(dir)
	return cfg, err
}

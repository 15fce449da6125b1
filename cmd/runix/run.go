package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joshdevyn/Runix-sub000/internal/config"
	"github.com/joshdevyn/Runix-sub000/internal/driver"
	"github.com/joshdevyn/Runix-sub000/internal/engine"
	"github.com/joshdevyn/Runix-sub000/internal/logger"
	"github.com/joshdevyn/Runix-sub000/internal/manifest"
	"github.com/joshdevyn/Runix-sub000/internal/process"
	"github.com/joshdevyn/Runix-sub000/internal/report"
	"github.com/joshdevyn/Runix-sub000/internal/steps"
)

type runOptions struct {
	featurePath string
	driverDir   string
	tags        []string
	parallel    bool
	reportPath  string
	timeout     int
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run <feature>",
		Short: "Run a Gherkin feature file against the discovered drivers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.featurePath = args[0]

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver-dir") {
				cfg.DriverDir = opts.driverDir
			}
			if cmd.Flags().Changed("tags") {
				cfg.Tags = opts.tags
			}
			if cmd.Flags().Changed("parallel") {
				cfg.Parallel = opts.parallel
			}
			if cmd.Flags().Changed("report") {
				cfg.ReportPath = opts.reportPath
			}
			if cmd.Flags().Changed("timeout") {
				cfg.CallTimeout = opts.timeout
			}

			return runFeature(root, cfg, opts.featurePath)
		},
	}

	cmd.Flags().StringVar(&opts.driverDir, "driver-dir", "", "Directory containing driver manifests")
	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "Only run scenarios carrying at least one of these tags")
	cmd.Flags().BoolVar(&opts.parallel, "parallel", false, "Fan out matching scenarios concurrently")
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "Report output path (empty disables the report file)")
	cmd.Flags().IntVar(&opts.timeout, "timeout", 0, "Per-call timeout in seconds")

	return cmd
}

func runFeature(root *rootFlags, cfg *config.Config, featurePath string) error {
	level := cfg.LogLevel
	if root.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: true})
	if err != nil {
		return err
	}

	store := manifest.NewStore(log)
	if err := store.Load(cfg.DriverDir); err != nil {
		return err
	}

	procs := process.NewManager(process.Options{
		StartupTimeout: cfg.StartupTimeoutDuration(),
		ShutdownGrace:  cfg.ShutdownGraceDuration(),
		CallTimeout:    cfg.CallTimeoutDuration(),
	}, log)

	stepReg := steps.NewRegistry(log)
	drivers := driver.NewRegistry(store, procs, stepReg, cfg.DriverConfig, log)

	var sink report.Sink
	if cfg.ReportPath != "" {
		sink = report.NewJSONSink(cfg.ReportPath)
	}

	eng := engine.New(engine.Options{
		DefaultDriver: cfg.DefaultDriver,
		Tags:          cfg.Tags,
		Parallel:      cfg.Parallel,
	}, stepReg, drivers, sink, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runReport, err := eng.RunFeature(ctx, featurePath)
	if err != nil {
		return err
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Print(report.Summary(runReport, styled))

	if runReport.Failed > 0 {
		return fmt.Errorf("%d of %d steps failed", runReport.Failed, len(runReport.Results))
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"digital.vasic.netprobe/pkg/config"
	"digital.vasic.netprobe/pkg/env"
	"digital.vasic.netprobe/pkg/logging"
	"digital.vasic.netprobe/pkg/metrics"
	"digital.vasic.netprobe/pkg/monitor"
	"digital.vasic.netprobe/pkg/probe"
	"digital.vasic.netprobe/pkg/report"
	"digital.vasic.netprobe/pkg/runner"
	"digital.vasic.netprobe/pkg/scheduler"
	"digital.vasic.netprobe/pkg/statestore"
	"digital.vasic.netprobe/pkg/store"
)

func newRunCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the probe scheduler until interrupted or stopped",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(
				cmd.Context(), os.Interrupt, syscall.SIGTERM,
			)
			defer stop()
			return runDaemon(ctx, runOptions{
				configPath: v.GetString("config"),
				addr:       v.GetString("addr"),
				logLevel:   v.GetString("log-level"),
				envFile:    v.GetString("env-file"),
				noDB:       v.GetBool("no-db"),
			})
		},
	}
	cmd.Flags().String("config", "main.json", "scenario configuration file")
	cmd.Flags().String("addr", "", "status server listen address (default global_settings.status_addr)")
	cmd.Flags().String("log-level", "", "log level (default global_settings.log_level)")
	cmd.Flags().String("env-file", ".env", "environment file with DB_* settings")
	cmd.Flags().Bool("no-db", false, "disable the database sink")
	return cmd
}

type runOptions struct {
	configPath string
	addr       string
	logLevel   string
	envFile    string
	noDB       bool
}

// daemon holds everything runDaemon must release on exit.
type daemon struct {
	logger   logging.Logger
	exporter *report.Exporter
	db       *store.Store
	state    *statestore.BoltStore
}

func (d *daemon) close() {
	if d.exporter != nil {
		if err := d.exporter.Close(); err != nil {
			d.logger.Warn("session summary failed", logging.ErrorField(err))
		}
	}
	if d.db != nil {
		_ = d.db.Close()
	}
	if d.state != nil {
		_ = d.state.Close()
	}
	_ = d.logger.Close()
}

func runDaemon(ctx context.Context, opts runOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	g := cfg.GlobalSettings
	if opts.logLevel != "" {
		g.LogLevel = opts.logLevel
	}
	if opts.addr != "" {
		g.StatusAddr = opts.addr
	}
	level, err := logging.ParseLevel(g.LogLevel)
	if err != nil {
		return err
	}

	loader := env.NewLoader()
	if err := loader.Load(opts.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load env file: %w", err)
	}
	dbCfg, err := env.LoadDatabase(loader)
	if err != nil {
		return err
	}

	fileLogger, err := logging.SetupLogging(g.LogDir, level)
	if err != nil {
		return err
	}
	console := logging.NewConsoleLogger(level == logging.LevelDebug)
	console.SetLevel(level)
	logger := logging.NewRedactingLogger(
		logging.NewMultiLogger(console, fileLogger),
		env.Secrets(loader, env.KeyDBPassword)...,
	)

	d := &daemon{logger: logger}
	defer d.close()

	specs, cfgErrs := cfg.Validate(time.Now())
	for _, ce := range cfgErrs {
		logger.Warn("scenario excluded", logging.ErrorField(ce))
	}
	if len(specs) == 0 {
		return errors.New("no valid enabled scenarios")
	}

	promMetrics := metrics.NewPrometheusMetrics()
	collector := monitor.NewEventCollector(0)

	d.exporter, err = report.NewExporter(g.ReportPath)
	if err != nil {
		return err
	}
	sinks := []runner.Sink{d.exporter}

	if !opts.noDB {
		d.db, err = store.Open(ctx, dbCfg, store.WithLogger(logger))
		if err != nil {
			// Results still reach the flat files.
			logger.Warn("database sink disabled",
				logging.StringField("dsn", dbCfg.Redacted()),
				logging.ErrorField(err),
			)
		} else {
			sinks = append(sinks, d.db)
		}
	}

	iperf := probe.NewIperf3(probe.WithLogger(logger))
	if !iperf.Available() {
		logger.Warn("iperf3 not found in PATH; probes will fail")
	} else {
		vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		version, err := iperf.Version(vctx)
		cancel()
		if err != nil {
			logger.Warn("iperf3 version check failed", logging.ErrorField(err))
		} else {
			logger.Info("iperf3 found", logging.StringField("version", version))
		}
	}

	r := runner.NewRunner(
		runner.WithProbe(iperf),
		runner.WithSinks(sinks...),
		runner.WithLogger(logger),
		runner.WithMetrics(promMetrics),
		runner.WithEmitter(collector),
	)

	schedOpts := []scheduler.Option{
		scheduler.WithLogger(logger),
		scheduler.WithMetrics(promMetrics),
		scheduler.WithEmitter(collector),
		scheduler.WithTick(g.Tick.Std()),
		scheduler.WithGrace(g.GracePeriod.Std()),
	}
	if g.StatePath != "" {
		d.state, err = statestore.Open(g.StatePath)
		if err != nil {
			return err
		}
		schedOpts = append(schedOpts, scheduler.WithStateStore(d.state))
	}
	sched := scheduler.New(r, schedOpts...)

	for _, spec := range specs {
		if err := sched.Register(spec); err != nil {
			logger.Warn("scenario excluded", logging.ErrorField(err))
		}
	}
	if sched.Count() == 0 {
		return errors.New("no scenarios registered")
	}
	if _, err := sched.PruneState(); err != nil {
		logger.Warn("state prune failed", logging.ErrorField(err))
	}

	server := monitor.NewServer(
		g.StatusAddr, sched, collector,
		monitor.WithMetricsHandler(promMetrics.Handler()),
		monitor.WithServerLogger(logger),
		monitor.WithStopTimeout(g.GracePeriod.Std()+30*time.Second),
	)
	srvCtx, cancelServer := context.WithCancel(context.Background())
	defer cancelServer()
	go func() {
		if err := server.Start(srvCtx); err != nil {
			logger.Error("monitor server failed", logging.ErrorField(err))
		}
	}()

	logger.Info("netprobe started",
		logging.StringField("config", cfg.Source),
		logging.IntField("scenarios", sched.Count()),
		logging.StringField("status_addr", g.StatusAddr),
	)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	// Start returns as soon as triggering stops; wait for the
	// in-flight runs before the sinks are closed.
	if err := sched.Stop(context.Background()); err != nil {
		logger.Warn("scheduler stop", logging.ErrorField(err))
	}

	logger.Info("netprobe stopped")
	return nil
}

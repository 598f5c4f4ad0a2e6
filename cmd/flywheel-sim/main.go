package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/librescoot/tickfsm"
	"github.com/librescoot/tickfsm/flywheel"
	"github.com/librescoot/tickfsm/internal/config"
	"github.com/librescoot/tickfsm/internal/logger"
	"github.com/librescoot/tickfsm/internal/metrics"
	"github.com/librescoot/tickfsm/internal/server"
	"github.com/librescoot/tickfsm/loop"
	"github.com/librescoot/tickfsm/mode"
	"github.com/librescoot/tickfsm/scheduler"
	"github.com/librescoot/tickfsm/telemetry"
)

const (
	cliParamConfig = "config"
	cliParamReplay = "replay"

	inputSpinUp = "spin-up"
	inputIdle   = "idle"
	inputStop   = "stop"

	shutdownTimeout = 5 * time.Second
)

func main() {
	if err := getRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func getRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "flywheel-sim",
		Short:        "Run the flywheel state machine against recorded motor IO",
		SilenceUsage: true,
		RunE:         cliRun,
	}
	rootCmd.Flags().String(cliParamConfig, "",
		"Path to a YAML config file")
	rootCmd.Flags().Bool(cliParamReplay, false,
		"Use no-op motor IO, as when replaying logs")
	return rootCmd
}

func cliRun(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString(cliParamConfig)
	if err != nil {
		return err
	}
	replay, err := cmd.Flags().GetBool(cliParamReplay)
	if err != nil {
		return err
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log := logger.New(cfg.LogLevel, logger.Format(cfg.LogFormat))
	defer func() { _ = log.Sync() }()

	var io flywheel.IO = flywheel.NewRecordingIO()
	if replay {
		io = flywheel.NopIO{}
	}
	fw, err := flywheel.New(io, cfg.Flywheel, log.Named("flywheel"))
	if err != nil {
		return err
	}

	table := telemetry.NewTable(cfg.TableTTL)
	prom, err := telemetry.NewPrometheusPublisher(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register state gauge: %w", err)
	}
	publisher := telemetry.Multi{table, prom, telemetry.NewLogPublisher(log.Named("telemetry"))}

	var modeSwitch mode.Switch
	inputs := map[string]*mode.Latch{
		inputSpinUp: {},
		inputIdle:   {},
		inputStop:   {},
	}

	sched := scheduler.NewScheduler(scheduler.WithLogger(log.Named("scheduler")))
	watcher := mode.NewWatcher(modeSwitch.Get, mode.WithLogger(log.Named("mode")))

	machine, err := flywheel.NewStateMachine(fw, sched,
		flywheel.Controls{
			SpinUp: inputs[inputSpinUp].Get,
			Idle:   inputs[inputIdle].Get,
			Stop:   inputs[inputStop].Get,
		},
		tickfsm.WithName("flywheel"),
		tickfsm.WithLogger(log.Named("fsm")),
		tickfsm.WithPublisher(publisher),
		tickfsm.WithStateChangeCallback(func(from, to tickfsm.StateID) {
			metrics.IncTransition("flywheel", string(from), string(to))
		}),
	)
	if err != nil {
		return fmt.Errorf("build flywheel machine: %w", err)
	}
	machine.RestartOn(watcher.Entering(mode.Teleop))

	// mode changes are applied before the subsystem and machine tick
	control := loop.New(sched, loop.WithPeriod(cfg.Period), loop.WithLogger(log.Named("loop")))
	control.Register(watcher, fw, machine)

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: server.NewRouter(server.Deps{
			Gatherer: prometheus.DefaultGatherer,
			Table:    table,
			Mode:     &modeSwitch,
			Inputs:   inputs,
			Flywheel: fw,
			Logger:   log.Named("http"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return control.Run(ctx)
	})
	g.Go(func() error {
		log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

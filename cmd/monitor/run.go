// cmd/monitor/run.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tamzrod/modbus-monitor/internal/logging"
	"github.com/tamzrod/modbus-monitor/internal/poller"
	"github.com/tamzrod/modbus-monitor/internal/recorder"
	"github.com/tamzrod/modbus-monitor/internal/server"
)

type runFlags struct {
	config     string
	listen     string
	statsEvery time.Duration
}

func newRunCmd() *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Poll the bus and serve live values",
		Example: `  # Poll with the settings in monitor.yaml
  monitor run --config monitor.yaml

  # Override the HTTP listen address
  monitor run --config monitor.toml --listen :8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMonitor(flags)
		},
	}

	cmd.Flags().StringVarP(&flags.config, "config", "c", "monitor.yaml", "Config file (.yaml or .toml)")
	cmd.Flags().StringVar(&flags.listen, "listen", "", "HTTP listen address (overrides server.listen_addr)")
	cmd.Flags().DurationVar(&flags.statsEvery, "stats-every", 30*time.Second, "Log poll statistics at this period (0 disables)")

	return cmd
}

var errConnectionLost = errors.New("connection lost")

func runMonitor(flags *runFlags) error {
	cfg, err := loadConfig(flags.config)
	if err != nil {
		return err
	}
	if flags.listen != "" {
		cfg.Server.ListenAddr = flags.listen
	}

	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	engine, closeEngine, err := poller.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeEngine(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	engine.Subscribe(poller.ObserverFuncs{
		OnError:          func(msg string) { log.Warn(msg) },
		OnConnectionLost: func() { cancel(errConnectionLost) },
	})

	recDone := make(chan struct{})
	if cfg.Recorder.Enabled {
		rec, err := recorder.Open(cfg.Recorder.Path, log)
		if err != nil {
			return err
		}
		defer rec.Close()

		unsub := engine.Subscribe(rec)
		defer unsub()

		go func() {
			defer close(recDone)
			rec.Run(ctx, engine,
				time.Duration(cfg.Recorder.IntervalMs)*time.Millisecond,
				time.Duration(cfg.Recorder.RetentionHours)*time.Hour)
		}()
		log.Info("recording", zap.String("path", cfg.Recorder.Path))
	} else {
		close(recDone)
	}

	if cfg.Server.ListenAddr != "" {
		srv := server.New(engine, log)
		go func() {
			if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil {
				cancel(err)
			}
		}()
	}

	engine.Start()

	if flags.statsEvery > 0 {
		go logStats(ctx, log, engine, flags.statsEvery)
	}

	<-ctx.Done()
	engine.Stop()
	<-recDone

	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	log.Info("shutdown")
	return nil
}

func logStats(ctx context.Context, log *zap.Logger, e *poller.Engine, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			st := e.Stats()
			log.Info("poll stats",
				zap.Uint64("polls", st.PollCount),
				zap.Uint64("errors", st.ErrorCount),
				zap.Duration("last_cycle", st.LastDuration),
				zap.Int("devices_in_error", len(st.ErrorSince)))
		}
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittonet/internal/logger"
	"github.com/marmos91/dittonet/pkg/config"
	"github.com/marmos91/dittonet/pkg/event"
	"github.com/marmos91/dittonet/pkg/metrics"
	"github.com/marmos91/dittonet/pkg/registry"
	"github.com/marmos91/dittonet/pkg/server"
	"github.com/marmos91/dittonet/pkg/session"
	"github.com/spf13/cobra"
)

type startOptions struct {
	configPath string
	logLevel   string
	port       int
	lowLatency bool
	echo       bool
}

func startCmd() *cobra.Command {
	opts := &startOptions{}

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the server",
		Long: `Start the accept engine and, when enabled, the admin HTTP server.

The server runs until it receives SIGINT or SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to config file (default: $XDG_CONFIG_HOME/dittonet/config.yaml)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Override the log level (DEBUG, INFO, WARN, ERROR)")
	cmd.Flags().IntVarP(&opts.port, "port", "p", 0, "Override the listen port")
	cmd.Flags().BoolVar(&opts.lowLatency, "low-latency", false, "Keep 10 accepts per logical CPU outstanding")
	cmd.Flags().BoolVar(&opts.echo, "echo", false, "Echo received data back to each session")

	return cmd
}

func runStart(cmd *cobra.Command, opts *startOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	// CLI flags take precedence over file and environment.
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = opts.port
	}
	if cmd.Flags().Changed("low-latency") {
		cfg.Server.LowLatency = opts.lowLatency
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var srv *server.Server
	sessions := func() []registry.Info { return srv.Sessions().Snapshot() }
	stats := func() metrics.StatsSnapshot { return srv.Stats().Snapshot() }

	metricsResult := config.InitializeMetrics(cfg, sessions, stats)

	serverOpts := []server.Option{server.WithMetrics(metricsResult.ServerMetrics)}
	if opts.echo {
		serverOpts = append(serverOpts, server.WithDataHandler(session.DataHandlerFunc(echo)))
	}

	srv, err = server.New(cfg.Server, serverOpts...)
	if err != nil {
		return err
	}

	srv.OnAccepted(func(_ *server.Server, a *server.Admission) server.Decision {
		logger.Debug("Connection accepted from %s", a.RemoteAddr())
		return server.Admit
	})
	srv.OnError(func(op event.Op, err error) {
		if errors.Is(err, event.ErrOperationAborted) {
			return
		}
		logger.Warn("%s failed: %v", op, err)
	})

	adminDone := make(chan struct{})
	if metricsResult.Server != nil {
		go func() {
			defer close(adminDone)
			if err := metricsResult.Server.Start(ctx); err != nil {
				logger.Error("Admin server error: %v", err)
			}
		}()
	} else {
		close(adminDone)
	}

	logger.Info("DittoNet %s starting (echo=%v)", version, opts.echo)

	if err := srv.Serve(ctx); err != nil {
		stop()
		<-adminDone
		return fmt.Errorf("server: %w", err)
	}

	<-adminDone
	logger.Info("DittoNet stopped")
	return nil
}

func echo(s *session.Session, data []byte) {
	if _, err := s.Send(data); err != nil {
		logger.Debug("Session %d: echo failed: %v", s.ID(), err)
	}
}

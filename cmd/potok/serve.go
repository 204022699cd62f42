package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MatweyL/Potok/internal/batch"
	"github.com/MatweyL/Potok/internal/bounds"
	"github.com/MatweyL/Potok/internal/broker"
	"github.com/MatweyL/Potok/internal/config"
	"github.com/MatweyL/Potok/internal/due"
	"github.com/MatweyL/Potok/internal/metrics"
	"github.com/MatweyL/Potok/internal/payload"
	"github.com/MatweyL/Potok/internal/scheduler"
	"github.com/MatweyL/Potok/internal/server"
	"github.com/MatweyL/Potok/internal/shared/logging"
	"github.com/MatweyL/Potok/internal/store/postgres"
)

const (
	payloadCacheSize = 4096
	shutdownTimeout  = 10 * time.Second
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduler process",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := logging.NewComponentLogger("Main")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURI)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	st, err := postgres.New(pool)
	if err != nil {
		return err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}

	conn, err := broker.Connect(ctx, cfg.Broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	publishCh, err := conn.Channel()
	if err != nil {
		return err
	}
	producer, err := broker.NewProducer(publishCh, cfg.Broker)
	if err != nil {
		return err
	}
	consumeCh, err := conn.Channel()
	if err != nil {
		return err
	}

	resolver, err := payload.NewResolver(st, payloadCacheSize)
	if err != nil {
		return err
	}
	dueTasks := due.NewRegistry(
		due.NewPeriodicProvider(st, nil),
		due.NewSingleProvider(st, nil, nil),
	)
	boundsProvider := bounds.NewTimeIntervalProvider(
		st, nil, cfg.Bounds.DefaultLeftDate,
		time.Duration(cfg.Bounds.FirstIntervalDays)*24*time.Hour,
	)
	materializer := scheduler.NewMaterializer(dueTasks, boundsProvider, resolver, st, st, nil, nil)

	source := metrics.NewRunMetrics(st, cfg.Batch.Window, cfg.Batch.PIDQueueCapacity)
	provider, err := batchProvider(cfg.Batch, st, source)
	if err != nil {
		return err
	}
	dispatcher := scheduler.NewDispatcher(provider, st, producer, cfg.Broker.RoutingKey, nil)

	ingestor := scheduler.NewIngestor(st)
	consumer, err := broker.NewConsumer(consumeCh, cfg.Broker, ingestor.Ingest)
	if err != nil {
		return err
	}

	transitioner := scheduler.NewTimeoutTransitioner(st, scheduler.DefaultRules(
		cfg.Jobs.QueuedTTL, cfg.Jobs.ExecutionTTL,
		cfg.Jobs.InterruptedTTL, cfg.Jobs.TempErrorTTL,
	), nil)

	gauges := metrics.MustNewGauges(prometheus.DefaultRegisterer)
	collector := metrics.NewCollector(st, cfg.Metrics.Period, cfg.Metrics.RunName, gauges)

	apiServer := server.New(cfg.Server, st, nil)

	runner := scheduler.NewRunner(
		scheduler.Job{Name: "materialize", Period: cfg.Jobs.MaterializePeriod, Run: materializer.Materialize},
		scheduler.Job{Name: "dispatch", Period: cfg.Jobs.DispatchPeriod, InitialDelay: cfg.Jobs.DispatchPeriod / 2, Run: dispatcher.Dispatch},
		scheduler.Job{Name: "transition", Period: cfg.Jobs.TransitionPeriod, Run: transitioner.Transition},
		scheduler.Job{Name: "collect", Period: cfg.Metrics.Period, Run: func(ctx context.Context) error {
			_, err := collector.Collect(ctx)
			return err
		}},
		scheduler.Job{Name: "prune", Period: cfg.Jobs.PrunePeriod, InitialDelay: cfg.Jobs.PrunePeriod, Run: func(ctx context.Context) error {
			pruned, err := st.PruneStatusLogs(ctx, time.Now().Add(-cfg.Jobs.PruneRetention))
			if err != nil {
				return err
			}
			if pruned > 0 {
				logger.Info("pruned %d status log rows", pruned)
			}
			return nil
		}},
	)
	runner.OnFatal = func(err error) {
		logger.Error("stopping after fatal error: %v", err)
		stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(apiServer.Start)
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return apiServer.Stop(shutdownCtx)
	})
	group.Go(func() error {
		return consumer.Run(groupCtx)
	})
	runner.Start(groupCtx)
	logger.Info("scheduler up: batch provider %s, API on %s", cfg.Batch.Provider, cfg.Server.Listen)

	<-groupCtx.Done()
	runner.Wait()

	if path, err := collector.WriteReport(cfg.Metrics.ReportDir); err != nil {
		logger.Warn("write run report: %v", err)
	} else {
		logger.Info("run report written to %s", path)
	}
	return group.Wait()
}

func batchProvider(cfg config.BatchConfig, runs batch.WaitingLister, source batch.MetricSource) (batch.Provider, error) {
	switch cfg.Provider {
	case "constant":
		return batch.NewConstant(runs, cfg.ConstantSize), nil
	case "aimd":
		return batch.NewAIMD(runs, source, batch.AIMDParams{
			Delta:    cfg.AIMDDelta,
			Beta:     cfg.AIMDBeta,
			BaseSize: cfg.AIMDBaseSize,
			MinSize:  cfg.AIMDMinSize,
			MaxSize:  cfg.AIMDMaxSize,
		}), nil
	case "adaptive_pid":
		return batch.NewAdaptivePID(runs, source, batch.AdaptivePIDParams{
			PID: batch.PIDParams{
				Kp:                cfg.PIDKp,
				Ki:                cfg.PIDKi,
				Kd:                cfg.PIDKd,
				TargetUtilization: cfg.PIDTargetUtilization,
				AntiWindupLimit:   cfg.PIDAntiWindupLimit,
			},
			InitialBatch:     cfg.PIDInitialBatch,
			AdaptationPeriod: cfg.PIDStrategicPeriod,
		}), nil
	default:
		return nil, fmt.Errorf("unknown batch provider %q", cfg.Provider)
	}
}

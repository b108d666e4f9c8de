package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/config"
	apihttp "interview-analyzer/pkg/http"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/messaging"
	"interview-analyzer/pkg/metrics"
	"interview-analyzer/pkg/ratelimit"
	"interview-analyzer/pkg/util"
)

const shutdownTimeout = 15 * time.Second

var (
	servePort int
	serveBank string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis API server",
	Long:  "Start an HTTP server exposing text and speech scoring, background analysis with lifecycle events over SSE and websocket, and session aggregation.",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides HTTP_PORT)")
	serveCmd.Flags().StringVar(&serveBank, "bank", "", "Question bank YAML file (overrides ANALYSIS_QUESTION_BANK)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.HTTP.Port = servePort
	}
	if serveBank != "" {
		cfg.Analysis.QuestionBank = serveBank
	}

	if cfg.HTTP.EnableMetrics {
		metrics.SetMetricsPath(cfg.HTTP.MetricsPath)
		metrics.Init(logger)
	} else {
		metrics.EnableMetrics(false)
	}

	var bank *interview.QuestionBank
	if cfg.Analysis.QuestionBank != "" {
		if bank, err = interview.LoadQuestionBank(cfg.Analysis.QuestionBank); err != nil {
			return err
		}
		logger.WithField("questions", len(bank.Questions)).Info("Loaded question bank")
	}

	bus := analysis.NewEventBus(logger)
	orchestrator := analysis.NewOrchestrator(logger, bus, nil, nil, analysis.Options{
		CacheCapacity:   cfg.Analysis.CacheCapacity,
		QueueCapacity:   cfg.Analysis.QueueCapacity,
		DrainDelay:      cfg.Analysis.DrainDelay,
		ProgressEnabled: cfg.Analysis.ProgressEnabled,
	})

	server := apihttp.NewServer(logger, &apihttp.Config{
		Port:          cfg.HTTP.Port,
		EnableMetrics: cfg.HTTP.EnableMetrics,
		MetricsPath:   cfg.HTTP.MetricsPath,
		ReadTimeout:   cfg.HTTP.ReadTimeout,
		WriteTimeout:  cfg.HTTP.WriteTimeout,
		EventBuffer:   cfg.Analysis.EventBuffer,
		RateLimit: &ratelimit.Config{
			Enabled:           cfg.HTTP.RateLimit.Enabled,
			RequestsPerSecond: cfg.HTTP.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.HTTP.RateLimit.BurstSize,
			BlockDuration:     cfg.HTTP.RateLimit.BlockDuration,
			WhitelistedIPs:    cfg.HTTP.RateLimit.WhitelistedIPs,
			WhitelistedPaths:  []string{"/health*", cfg.HTTP.MetricsPath},
		},
	}, apihttp.Services{
		Orchestrator: orchestrator,
		Bank:         bank,
	})

	broker := startBroker(cfg.Messaging, bus)
	if broker != nil {
		server.SetBroker(broker.client)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.ListenAndServe)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error shutting down HTTP server")
		}
		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Error stopping analysis orchestrator")
		}
		broker.stop(shutdownCtx)
		return nil
	})

	return g.Wait()
}

// eventBroker forwards bus events to AMQP
type eventBroker struct {
	client    *messaging.AMQPClient
	publisher *messaging.EventPublisher
	remove    func()
}

func startBroker(cfg config.MessagingConfig, bus *analysis.EventBus) *eventBroker {
	if !cfg.Enabled {
		return nil
	}

	client := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:          cfg.URL,
		QueueName:    cfg.QueueName,
		ExchangeName: cfg.Exchange,
		RoutingKey:   cfg.RoutingKey,
	})
	// connecting can take seconds; events queue up or are skipped meanwhile
	util.SafeGoGlobal("amqp_connect", func() {
		if err := client.Connect(); err != nil {
			logger.WithError(err).Warn("AMQP unavailable, analysis events will not be published")
		}
	})

	guarded := messaging.NewGuardedPublisher(logger, client, "amqp_"+cfg.QueueName, nil)
	publisher := messaging.NewEventPublisher(logger, guarded, cfg.QueueName, cfg.BufferSize)
	publisher.Start()

	return &eventBroker{
		client:    client,
		publisher: publisher,
		remove:    bus.AddSubscriber(publisher),
	}
}

func (b *eventBroker) stop(ctx context.Context) {
	if b == nil {
		return
	}
	b.remove()
	if err := b.publisher.Stop(ctx); err != nil {
		logger.WithError(err).Warn("Event publisher did not drain before shutdown")
	}
	b.client.Disconnect()
}

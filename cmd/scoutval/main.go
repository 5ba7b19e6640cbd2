// Command scoutval validates the scouting observations of an event or a
// single match and stores the results for reliability scoring.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/ahrav/scoutval/infrastructure/middleware"
	"github.com/ahrav/scoutval/infrastructure/postgres"
	"github.com/ahrav/scoutval/infrastructure/streams"
	"github.com/ahrav/scoutval/internal/application"
	"github.com/ahrav/scoutval/internal/domain"
	"github.com/ahrav/scoutval/internal/ports"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// options are the command-line flags.
type options struct {
	eventKey    string
	matchKey    string
	season      int
	executionID string
	migrate     bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("scoutval", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.eventKey, "event", "", "Event key to validate, e.g. 2025txhou")
	fs.StringVar(&opts.matchKey, "match", "", "Validate a single match instead of the whole event")
	fs.IntVar(&opts.season, "season", 0, "Season year (defaults to the event key's year)")
	fs.StringVar(&opts.executionID, "execution-id", "", "Execution id stamped on results (generated when empty)")
	fs.BoolVar(&opts.migrate, "migrate", false, "Apply the database schema before validating")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.eventKey == "" {
		return options{}, errors.New("-event is required")
	}
	if opts.season == 0 {
		if _, err := fmt.Sscanf(opts.eventKey, "%4d", &opts.season); err != nil {
			return options{}, errors.New("-season is required when the event key has no year prefix")
		}
	}
	return opts, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		os.Stderr.WriteString("invalid arguments: " + err.Error() + "\n")
		os.Exit(2)
	}

	cfg, err := application.LoadConfig()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	registry := application.NewStrategyRegistry()
	if err := cfg.Validate(registry); err != nil {
		os.Stderr.WriteString("invalid config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, registry, opts, logger); err != nil {
		logger.ErrorContext(ctx, "validation run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(
	ctx context.Context,
	cfg *application.Config,
	registry *application.StrategyRegistry,
	opts options,
	logger *slog.Logger,
) error {
	if cfg.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ExecutionTimeout)
		defer cancel()
	}

	metrics := middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)
	if cfg.MetricsAddr != "" {
		srv := serveMetrics(ctx, cfg.MetricsAddr, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL, cfg.DatabaseMaxConns)
	if err != nil {
		return err
	}
	defer db.Close()

	if opts.migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
	}

	var mappings []domain.FieldMapping
	if cfg.FieldMappingsPath != "" {
		doc, err := application.LoadFieldMappingsFile(cfg.FieldMappingsPath)
		if err != nil {
			return err
		}
		if doc.Season != opts.season {
			logger.WarnContext(ctx, "field mappings season differs from the validated season",
				slog.Int("mappings_season", doc.Season),
				slog.Int("season", opts.season),
			)
		}
		mappings = doc.FieldMappings
	}

	observations := postgres.NewObservationRepository(db)
	matches := postgres.NewMatchRepository(db)
	sinks := []ports.ResultSink{postgres.NewResultRepository(db, 0)}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		sinks = append(sinks, streams.NewResultPublisher(client, cfg.RedisStreamPrefix, cfg.RedisStreamMaxLen))
	}

	strats, err := registry.CreateStrategies(cfg.Strategies, application.StrategyDeps{
		Config:        *cfg,
		Observations:  observations,
		Matches:       matches,
		FieldMappings: mappings,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	orchestrator, err := application.NewOrchestrator(application.OrchestratorConfigFrom(*cfg), strats, matches, sinks,
		application.WithOrchestratorLogger(logger),
		application.WithOrchestratorMetrics(metrics),
	)
	if err != nil {
		return err
	}

	exec := orchestrator.NewExecution(opts.executionID)
	defer exec.Close()

	logger.InfoContext(ctx, "validation started",
		slog.String("execution_id", exec.ID()),
		slog.String("event_key", opts.eventKey),
		slog.String("match_key", opts.matchKey),
		slog.Int("season", opts.season),
	)

	if opts.matchKey != "" {
		_, err = exec.ValidateMatch(ctx, application.MatchRequest{
			MatchKey:   opts.matchKey,
			EventKey:   opts.eventKey,
			SeasonYear: opts.season,
		})
	} else {
		err = exec.ValidateEvent(ctx, opts.eventKey, opts.season)
	}

	logSummary(ctx, logger, exec.Summary())
	return err
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		logger.InfoContext(ctx, "serving metrics", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "metrics server failed", slog.Any("error", err))
		}
	}()
	return srv
}

func logSummary(ctx context.Context, logger *slog.Logger, summary application.ExecutionSummary) {
	logger.InfoContext(ctx, "validation finished",
		slog.String("execution_id", summary.ExecutionID),
		slog.Int("matches", summary.Matches),
		slog.Int("results", summary.Results),
		slog.Int("skipped_teams", summary.SkippedTeams),
		slog.Int("exact_matches", summary.ByOutcome[domain.OutcomeExactMatch]),
		slog.Int("close_matches", summary.ByOutcome[domain.OutcomeCloseMatch]),
		slog.Int("mismatches", summary.ByOutcome[domain.OutcomeMismatch]),
	)
	for _, scout := range summary.Scouts() {
		logger.DebugContext(ctx, "scout accuracy",
			slog.String("scouter_id", scout),
			slog.Float64("mean_accuracy", summary.ScoutAccuracy[scout]),
		)
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/engine"
	"github.com/bluesky-social/postwatch/riskmod/kvstore"
	"github.com/bluesky-social/postwatch/riskmod/ratelimit"
	"github.com/bluesky-social/postwatch/riskmod/resultcache"
	"github.com/bluesky-social/postwatch/riskmod/riskdb"
	"github.com/bluesky-social/postwatch/riskmod/rules"
	"github.com/bluesky-social/postwatch/riskmod/ruleset"
	"github.com/bluesky-social/postwatch/riskmod/service"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
	"gorm.io/plugin/opentelemetry/tracing"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "riskd",
		Usage:   "posting risk advisory daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"RISKD_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite://<path> or postgres://...)",
			Value:   "sqlite://data/riskd/riskd.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
		evaluateCmd,
		migrateCmd,
		checkRulesCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the risk evaluation API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3900",
			EnvVars: []string{"RISKD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3901",
			EnvVars: []string{"RISKD_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "kv-url",
			Usage:   "shared key/value store for rate limits and cached results: redis://<user>:<pass>@<hostname>:6379/<db>, memcache://<host>:<port>, or empty for in-process memory",
			EnvVars: []string{"RISKD_KV_URL", "REDIS_URL"},
		},
		&cli.IntFlag{
			Name:    "kv-mem-capacity",
			Usage:   "max entries held by the in-process key/value store",
			Value:   100_000,
			EnvVars: []string{"RISKD_KV_MEM_CAPACITY"},
		},
		&cli.StringFlag{
			Name:    "tier-policies",
			Usage:   "rate limit policy per account tier, as tier=limit/window-seconds pairs",
			Value:   "free=2/3600,pro=10/1800",
			EnvVars: []string{"RISKD_TIER_POLICIES"},
		},
		&cli.DurationFlag{
			Name:    "request-timeout",
			Usage:   "deadline for a single risk evaluation request",
			Value:   30 * time.Second,
			EnvVars: []string{"RISKD_REQUEST_TIMEOUT"},
		},
		&cli.BoolFlag{
			Name:    "enable-db-tracing",
			Usage:   "emit OTEL spans for database queries",
			EnvVars: []string{"RISKD_ENABLE_DB_TRACING"},
		},
	},
	Action: runServe,
}

func runServe(cctx *cli.Context) error {
	logger := configLogger(cctx, os.Stdout)
	shutdownOTEL := configOTEL("riskd")
	defer shutdownOTEL()

	db, err := riskdb.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
	if err != nil {
		return err
	}
	if cctx.Bool("enable-db-tracing") {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return err
		}
	}
	store := riskdb.NewStore(db)

	policies, err := ratelimit.ParsePolicies(cctx.String("tier-policies"))
	if err != nil {
		return err
	}
	kv, err := kvstore.Open(cctx.String("kv-url"), cctx.Int("kv-mem-capacity"))
	if err != nil {
		return fmt.Errorf("initializing key/value store: %w", err)
	}
	if cctx.String("kv-url") == "" {
		logger.Warn("no shared key/value store configured; rate limits and cached results are per-process")
	}

	eng := engine.Engine{
		Logger:    logger,
		Source:    store,
		Analyzers: rules.DefaultAnalyzers(),
	}
	svc := &service.Service{
		Logger:    logger,
		Accounts:  store,
		Limiter:   ratelimit.NewLimiter(kv, policies, logger),
		Cache:     resultcache.New(kv, logger),
		Evaluator: &eng,
	}

	srv, err := NewServer(svc, Config{
		Logger:         logger,
		Bind:           cctx.String("bind"),
		RequestTimeout: cctx.Duration("request-timeout"),
	})
	if err != nil {
		return fmt.Errorf("failed to construct server: %v", err)
	}

	go func() {
		if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
			slog.Error("failed to start metrics endpoint", "error", err)
			// NOTE: not crashing or halting process here
		}
	}()

	return srv.RunAPI()
}

var evaluateCmd = &cli.Command{
	Name:      "evaluate",
	Usage:     "run one risk evaluation for a user and print the result as JSON (skips rate limits and cache)",
	ArgsUsage: "<user-id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "history",
			Usage: "use the extended lookback window",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx, os.Stderr)

		userID := cctx.Args().First()
		if userID == "" {
			return fmt.Errorf("need to provide user id as an argument")
		}

		db, err := riskdb.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}
		store := riskdb.NewStore(db)
		if _, err := store.LookupAccount(ctx, userID); err != nil {
			return err
		}

		eng := engine.Engine{
			Logger:    logger,
			Source:    store,
			Analyzers: rules.DefaultAnalyzers(),
		}
		res, err := eng.Evaluate(ctx, userID, cctx.Bool("history"))
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or upgrade database tables",
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stderr)

		db, err := riskdb.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
		if err != nil {
			return err
		}
		if err := riskdb.AutoMigrate(db); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}
		logger.Info("database migration complete")
		return nil
	},
}

var checkRulesCmd = &cli.Command{
	Name:      "check-rules",
	Usage:     "normalize a destination rule payload (file, or - for stdin) and print the parsed rules",
	ArgsUsage: "<path>",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "save",
			Usage: "if the payload parses, store it as the rules for this destination",
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx, os.Stderr)

		path := cctx.Args().First()
		if path == "" {
			return fmt.Errorf("need to provide rule payload path as an argument")
		}
		var raw []byte
		var err error
		if path == "-" {
			raw, err = io.ReadAll(os.Stdin)
		} else {
			raw, err = os.ReadFile(path)
		}
		if err != nil {
			return err
		}

		p := ruleset.Normalize(raw)
		if p.Kind == ruleset.KindNone {
			return fmt.Errorf("payload matches no known rule schema: %w", p.Err)
		}
		if err := printJSON(map[string]any{"schema": p.Kind.String(), "rules": p.Rules}); err != nil {
			return err
		}

		if dest := cctx.String("save"); dest != "" {
			db, err := riskdb.SetupDatabase(cctx.String("database-url"), cctx.Int("max-db-connections"))
			if err != nil {
				return err
			}
			if err := riskdb.NewStore(db).PutRuleSet(ctx, dest, raw); err != nil {
				return err
			}
			logger.Info("saved destination rules", "destination", engine.NormalizeDestination(dest), "schema", p.Kind.String())
		}
		return nil
	},
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

func printJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}

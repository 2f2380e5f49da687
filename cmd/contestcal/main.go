package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"

	"contestcal/internal/aggregator"
	"contestcal/internal/calendar"
	"contestcal/internal/config"
	"contestcal/internal/contests"
	"contestcal/internal/ics"
	appLog "contestcal/internal/log"
	"contestcal/internal/web"
)

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	exportID   string
	outDir     string
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envFile); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envFile)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Configure(appLog.Options{
		Level:      appLog.ParseLevel(conf.Log.Level),
		File:       conf.Log.File,
		MaxSizeMB:  conf.Log.MaxSizeMB,
		MaxBackups: conf.Log.MaxBackups,
	})
	appLog.Info("contestcal starting", "version", "0.1.0")

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"api", conf.API.BaseURL,
		"platforms", fmt.Sprint(conf.Platforms),
		"timeframe", string(conf.Timeframe),
		"refresh", conf.RefreshCron,
		"cache", conf.Cache.Backend,
		"once", flags.once,
		"export", flags.exportID,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := contests.NewClient(conf.API.BaseURL,
		contests.WithTimeout(conf.RequestTimeout()),
		contests.WithRateLimit(conf.API.RequestsPerSecond),
		contests.WithCache(newCache(conf)),
	)
	agg := aggregator.New(client,
		aggregator.Filters{Platforms: conf.Platforms, Timeframe: conf.Timeframe},
		aggregator.WithLocation(conf.Location()),
		aggregator.WithLimit(conf.UpcomingLimit),
	)

	switch {
	case flags.exportID != "":
		if err := runExport(ctx, agg, flags.exportID, flags.outDir); err != nil {
			appLog.Error("export failed", err, "id", flags.exportID)
			os.Exit(1)
		}
		return
	case flags.once:
		if err := runOnce(ctx, agg); err != nil {
			appLog.Error("refresh failed", err)
			os.Exit(1)
		}
		return
	}

	// Initial fetch, then keep refreshing on schedule.
	agg.Refresh(ctx)
	sched, err := startScheduler(ctx, conf, agg)
	if err != nil {
		appLog.Error("failed to start scheduler", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	if sched != nil {
		defer func() { <-sched.Stop().Done() }()
	}

	if err := web.NewServer(conf, agg).Serve(ctx); err != nil {
		appLog.Error("HTTP server failed", err, "listen", conf.Listen)
		os.Exit(1)
	}
	appLog.Info("contestcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env", ".env", "Optional KEY=VALUE file applied before config")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Fetch once, log a summary and exit")
	flag.StringVar(&cfg.exportID, "export", "", "Contest ID to export as .ics, then exit")
	flag.StringVar(&cfg.outDir, "out", ".", "Output directory for -export")

	flag.Parse()

	return cfg
}

// newCache builds the conditional-request cache selected by config.
func newCache(conf *config.Config) contests.Cache {
	ttl := time.Duration(conf.Cache.TTLSeconds) * time.Second
	switch conf.Cache.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     conf.Cache.RedisAddr,
			Password: conf.Cache.RedisPassword,
			DB:       conf.Cache.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			appLog.Error("redis unavailable; caching disabled", err, "addr", conf.Cache.RedisAddr)
			_ = rdb.Close()
			return contests.NopCache{}
		}
		return contests.NewRedisCache(rdb, "", ttl)
	case "disk":
		return contests.NewDiskCache(afero.NewOsFs(), conf.Cache.Dir)
	default:
		return contests.NopCache{}
	}
}

func startScheduler(ctx context.Context, conf *config.Config, agg *aggregator.Aggregator) (*cron.Cron, error) {
	if conf.RefreshCron == "" {
		appLog.Info("scheduled refresh disabled")
		return nil, nil
	}
	c := cron.New(cron.WithLocation(conf.Location()))
	_, err := c.AddFunc(conf.RefreshCron, func() {
		appLog.Info("scheduled refresh")
		agg.Refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}

// runOnce fetches both lifecycles and logs the derived views.
func runOnce(ctx context.Context, agg *aggregator.Aggregator) error {
	st := agg.Refresh(ctx)
	now := agg.Now()

	kv := []any{
		"upcoming", len(st.Upcoming.Data),
		"calendar", len(st.Ranged.Data),
	}
	if next, ok := calendar.SelectNext(st.Upcoming.Data, now); ok {
		kv = append(kv, "next", next.Name, "next_start", next.StartTime.In(agg.Location()).Format(time.RFC3339))
	}
	if label, ok := calendar.EstimateFreshness(st.Combined(), now); ok {
		kv = append(kv, "freshness", label)
	}
	appLog.Info("refresh summary", kv...)

	return errors.Join(st.Upcoming.Err, st.Ranged.Err)
}

func runExport(ctx context.Context, agg *aggregator.Aggregator, id, outDir string) error {
	st := agg.Refresh(ctx)
	c, ok := st.FindContest(id)
	if !ok {
		if err := errors.Join(st.Upcoming.Err, st.Ranged.Err); err != nil {
			return fmt.Errorf("contest %q not found: %w", id, err)
		}
		return fmt.Errorf("contest %q not found", id)
	}
	path, err := ics.WriteContest(afero.NewOsFs(), outDir, c)
	if err != nil {
		return err
	}
	appLog.Info("exported contest", "id", id, "path", path)
	return nil
}

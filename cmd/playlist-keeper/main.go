// Command playlist-keeper: probe IPTV catalogs and emit one combined playlist.
//
//	run      One-run: check channels, check movies, combine. For cron/systemd.
//	check    Probe every channel link, update the channel catalog, export offline lists
//	movies   Probe every movie link, update the movie catalog
//	combine  Merge catalogs and M3U sources into the combined playlist
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/playlistkeeper/playlist-keeper/internal/catalog"
	"github.com/playlistkeeper/playlist-keeper/internal/checker"
	"github.com/playlistkeeper/playlist-keeper/internal/config"
	"github.com/playlistkeeper/playlist-keeper/internal/logging"
	"github.com/playlistkeeper/playlist-keeper/internal/merger"
	"github.com/playlistkeeper/playlist-keeper/internal/metrics"
	"github.com/playlistkeeper/playlist-keeper/internal/moviecheck"
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <run|check|movies|combine> [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  run      Check channels, check movies, combine (for cron/systemd)\n")
	fmt.Fprintf(os.Stderr, "  check    Probe channel links and update the channel catalog\n")
	fmt.Fprintf(os.Stderr, "  movies   Probe movie links and update the movie catalog\n")
	fmt.Fprintf(os.Stderr, "  combine  Merge catalogs and M3U sources into the combined playlist\n")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// Optional .env next to the binary, same keys as the environment.
	_ = config.LoadEnvFile(".env")

	checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
	checkConfig := checkCmd.String("config", "", "Config file (default: PLK_CONFIG or playlist-keeper.yaml)")
	checkCatalog := checkCmd.String("catalog", "", "Channel catalog path (overrides config)")
	checkFast := checkCmd.Bool("fast", false, "Lighter/faster ffmpeg probe")
	checkNoExport := checkCmd.Bool("no-export", false, "Skip offline/excluded M3U exports")

	moviesCmd := flag.NewFlagSet("movies", flag.ExitOnError)
	moviesConfig := moviesCmd.String("config", "", "Config file (default: PLK_CONFIG or playlist-keeper.yaml)")
	moviesCatalog := moviesCmd.String("catalog", "", "Movie catalog path (overrides config)")

	combineCmd := flag.NewFlagSet("combine", flag.ExitOnError)
	combineConfig := combineCmd.String("config", "", "Config file (default: PLK_CONFIG or playlist-keeper.yaml)")
	combineOutput := combineCmd.String("output", "", "Combined playlist path (overrides config)")

	runCmd := flag.NewFlagSet("run", flag.ExitOnError)
	runConfig := runCmd.String("config", "", "Config file (default: PLK_CONFIG or playlist-keeper.yaml)")
	runFast := runCmd.Bool("fast", false, "Lighter/faster ffmpeg probe")
	runSkipMovies := runCmd.Bool("skip-movies", false, "Skip the movie catalog pass")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "check":
		_ = checkCmd.Parse(os.Args[2:])
		cfg, log := load(*checkConfig)
		defer log.Sync()
		if *checkCatalog != "" {
			cfg.ChannelsFile = *checkCatalog
		}
		if *checkFast {
			cfg.FastMode = true
		}
		err = runCheck(ctx, cfg, log, !*checkNoExport)

	case "movies":
		_ = moviesCmd.Parse(os.Args[2:])
		cfg, log := load(*moviesConfig)
		defer log.Sync()
		if *moviesCatalog != "" {
			cfg.MoviesFile = *moviesCatalog
		}
		err = runMovies(ctx, cfg, log)

	case "combine":
		_ = combineCmd.Parse(os.Args[2:])
		cfg, log := load(*combineConfig)
		defer log.Sync()
		if *combineOutput != "" {
			cfg.OutputFile = *combineOutput
		}
		err = merger.New(cfg, log).Run(ctx)

	case "run":
		_ = runCmd.Parse(os.Args[2:])
		cfg, log := load(*runConfig)
		defer log.Sync()
		if *runFast {
			cfg.FastMode = true
		}
		err = runCheck(ctx, cfg, log, true)
		if err == nil && !*runSkipMovies {
			err = runMovies(ctx, cfg, log)
		}
		if err == nil {
			err = merger.New(cfg, log).Run(ctx)
		}

	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func load(path string) (*config.Config, *zap.Logger) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	return cfg, logging.New(cfg.LogLevel, cfg.PrettyLog)
}

// runCheck is the channel pass: probe everything, rewrite the catalog,
// export the offline and excluded lists, print the summary.
func runCheck(ctx context.Context, cfg *config.Config, log *zap.Logger, export bool) error {
	started := time.Now()
	channels, err := catalog.LoadChannels(cfg.ChannelsFile)
	if err != nil {
		return fmt.Errorf("load channel catalog: %w", err)
	}
	log.Info("channel catalog loaded",
		zap.String("path", cfg.ChannelsFile), zap.Int("channels", len(channels)))

	c := checker.New(cfg, log)
	c.Metrics = metrics.New()
	c.UpdateAll(ctx, channels)
	c.Maintain(channels)

	if err := channels.Save(cfg.ChannelsFile); err != nil {
		return fmt.Errorf("save channel catalog: %w", err)
	}

	if export && cfg.ObsoleteDir != "" {
		if err := c.ExportExcludedWhitelisted(channels, cfg.ObsoleteDir); err != nil {
			log.Warn("excluded/whitelisted export failed", zap.Error(err))
		}
		if n, err := c.ExportOffline(channels, cfg.ObsoleteDir); err != nil {
			log.Warn("offline export failed", zap.Error(err))
		} else {
			log.Info("offline export written",
				zap.String("dir", cfg.ObsoleteDir), zap.Int("links", n))
		}
	}

	c.WriteSummary(os.Stdout, channels, started)
	c.Metrics.SetRunDuration(time.Since(started))
	if err := c.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
		log.Warn("metrics textfile write failed", zap.Error(err))
	}
	return nil
}

// runMovies is the movie pass: one quick ffmpeg probe per link, then
// normalize and rewrite the catalog.
func runMovies(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	movies, err := catalog.LoadMovies(cfg.MoviesFile)
	if err != nil {
		return fmt.Errorf("load movie catalog: %w", err)
	}
	log.Info("movie catalog loaded",
		zap.String("path", cfg.MoviesFile), zap.Int("titles", len(movies)))

	u := moviecheck.New(cfg, log)
	u.UpdateAll(ctx, movies)
	if err := movies.Save(cfg.MoviesFile); err != nil {
		return fmt.Errorf("save movie catalog: %w", err)
	}
	u.WriteSummary(os.Stdout, movies)
	return nil
}

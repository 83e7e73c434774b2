package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/bluesky-social/chatmod/automod/actionlog"
	"github.com/bluesky-social/chatmod/automod/config"
	"github.com/bluesky-social/chatmod/automod/engine"
	"github.com/bluesky-social/chatmod/automod/flagstore"
	"github.com/bluesky-social/chatmod/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	return newApp().Run(args)
}

func newApp() *cli.App {
	app := &cli.App{
		Name:    "chatmod",
		Usage:   "chat moderation daemon (rule matching and responses)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Usage:   "path to rule configuration file (YAML or JSON)",
			Value:   "chatmod.yaml",
			EnvVars: []string{"CHATMOD_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"CHATMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format: text or json",
			EnvVars: []string{"CHATMOD_LOG_FMT"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		checkConfigCmd,
		statsCmd,
		clearFlagsCmd,
	}
	return app
}

func configLogger(cctx *cli.Context) (*slog.Logger, error) {
	return cliutil.SetupSlog(cliutil.LogOptions{
		LogLevel:  cctx.String("log-level"),
		LogFormat: cctx.String("log-format"),
	})
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "connect to the chat platform and moderate messages",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "discord-token",
			Usage:    "bot token for the Discord gateway and REST API",
			Required: true,
			EnvVars:  []string{"CHATMOD_DISCORD_TOKEN", "DISCORD_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for counters, flags, caches, and cooldowns; in-process stores if not set",
			EnvVars: []string{"CHATMOD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for the response audit log (sqlite:// or postgres://); disabled if not set",
			EnvVars: []string{"CHATMOD_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"CHATMOD_MAX_DB_CONNECTIONS"},
			Value:   10,
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook notified of bans and kicks",
			EnvVars: []string{"CHATMOD_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for health checks and metrics",
			Value:   ":3999",
			EnvVars: []string{"CHATMOD_BIND"},
		},
		&cli.BoolFlag{
			Name:    "watch-config",
			Usage:   "reload the configuration file when it changes on disk",
			Value:   true,
			EnvVars: []string{"CHATMOD_WATCH_CONFIG"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}

		shutdownTracing := configOTEL("chatmod")
		defer shutdownTracing()

		srv, err := NewServer(Config{
			DiscordToken:    cctx.String("discord-token"),
			ConfigPath:      cctx.String("config"),
			RedisURL:        cctx.String("redis-url"),
			DatabaseURL:     cctx.String("database-url"),
			MaxDBConns:      cctx.Int("max-db-connections"),
			SlackWebhookURL: cctx.String("slack-webhook-url"),
			Bind:            cctx.String("bind"),
			WatchConfig:     cctx.Bool("watch-config"),
			Logger:          logger,
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %v", err)
		}

		return srv.Run(ctx)
	},
}

var checkConfigCmd = &cli.Command{
	Name:      "check-config",
	Usage:     "validate a rule configuration file and exit",
	ArgsUsage: `[<path>]`,
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		path := cctx.Args().First()
		if path == "" {
			path = cctx.String("config")
		}
		cfg, err := config.LoadFile(path, config.BuildOptions{})
		if err != nil {
			return err
		}
		logger.Info("configuration is valid", "path", path, "guilds", len(cfg.Guilds), "rules", cfg.RuleCount())
		fmt.Fprintf(cctx.App.Writer, "%s: ok (%d guilds, %d rules)\n", path, len(cfg.Guilds), cfg.RuleCount())
		return nil
	},
}

var statsCmd = &cli.Command{
	Name:  "stats",
	Usage: "print per-rule hit totals for a guild from the action log",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "action log database (sqlite:// or postgres://)",
			Required: true,
			EnvVars:  []string{"CHATMOD_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.Uint64Flag{
			Name:     "guild",
			Usage:    "guild ID",
			Required: true,
		},
		&cli.DurationFlag{
			Name:  "since",
			Usage: "how far back to count",
			Value: 24 * time.Hour,
		},
	},
	Action: func(cctx *cli.Context) error {
		if _, err := configLogger(cctx); err != nil {
			return err
		}
		db, err := cliutil.SetupDatabase(cctx.String("database-url"), 1)
		if err != nil {
			return err
		}
		store, err := actionlog.NewDBStore(db)
		if err != nil {
			return err
		}
		totals, err := store.RuleTotals(cctx.Context, cctx.Uint64("guild"), time.Now().Add(-cctx.Duration("since")))
		if err != nil {
			return err
		}
		rules := make([]string, 0, len(totals))
		for name := range totals {
			rules = append(rules, name)
		}
		sort.Strings(rules)
		for _, name := range rules {
			fmt.Fprintf(cctx.App.Writer, "%s\t%d\n", name, totals[name])
		}
		return nil
	},
}

var clearFlagsCmd = &cli.Command{
	Name:  "clear-flags",
	Usage: "forget which rules a user has triggered (as listed in reports)",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "redis-url",
			Usage:    "redis connection URL used by the daemon",
			Required: true,
			EnvVars:  []string{"CHATMOD_REDIS_URL"},
		},
		&cli.Uint64Flag{
			Name:     "guild",
			Usage:    "guild ID",
			Required: true,
		},
		&cli.Uint64Flag{
			Name:     "user",
			Usage:    "user ID",
			Required: true,
		},
	},
	Action: func(cctx *cli.Context) error {
		logger, err := configLogger(cctx)
		if err != nil {
			return err
		}
		opt, err := redis.ParseURL(cctx.String("redis-url"))
		if err != nil {
			return fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()
		eng := &engine.Engine{
			Logger: logger,
			Flags:  flagstore.NewRedisFlagStore(rdb),
		}
		removed, err := eng.ClearUserFlags(cctx.Context, cctx.Uint64("guild"), cctx.Uint64("user"))
		if err != nil {
			return err
		}
		logger.Info("cleared user flags", "guild", cctx.Uint64("guild"), "user", cctx.Uint64("user"), "flags", removed)
		return nil
	},
}

// blocks until ctx is done, calling fn on each SIGHUP
func onHangup(ctx context.Context, fn func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP)
	defer signal.Stop(ch)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ch:
			fn()
		}
	}
}

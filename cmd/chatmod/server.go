package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bluesky-social/chatmod/automod/actionlog"
	"github.com/bluesky-social/chatmod/automod/cachestore"
	"github.com/bluesky-social/chatmod/automod/config"
	"github.com/bluesky-social/chatmod/automod/countstore"
	"github.com/bluesky-social/chatmod/automod/directory"
	"github.com/bluesky-social/chatmod/automod/engine"
	"github.com/bluesky-social/chatmod/automod/flagstore"
	"github.com/bluesky-social/chatmod/automod/platform/discord"
	"github.com/bluesky-social/chatmod/automod/ratelimit"
	"github.com/bluesky-social/chatmod/util/cliutil"

	"github.com/bwmarrin/discordgo"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	logger  *slog.Logger
	engine  *engine.Engine
	session *discordgo.Session
	echo    *echo.Echo
	rdb     *redis.Client

	bind        string
	configPath  string
	watchConfig bool
	buildOpts   config.BuildOptions
}

type Config struct {
	DiscordToken    string
	ConfigPath      string
	RedisURL        string
	DatabaseURL     string
	MaxDBConns      int
	SlackWebhookURL string
	Bind            string
	WatchConfig     bool
	Logger          *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent
	session.Client = &http.Client{
		Timeout:   20 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	var flags flagstore.FlagStore
	var rdb *redis.Client
	limiters := ratelimit.Factory(ratelimit.MemFactory)
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb = redis.NewClient(opt)
		// check redis connection
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, fmt.Errorf("redis ping failed: %v", err)
		}
		counters = countstore.NewRedisCountStore(rdb)
		cache = cachestore.NewRedisCacheStore(rdb, 30*time.Minute)
		flags = flagstore.NewRedisFlagStore(rdb)
		limiters = ratelimit.RedisFactory(rdb)
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, 30*time.Minute)
		flags = flagstore.NewMemFlagStore()
	}

	eng := &engine.Engine{
		Logger:    logger,
		Client:    discord.NewClient(session),
		Directory: directory.NewCacheDirectory(discord.NewDirectory(session), cache),
		Counters:  counters,
		Flags:     flags,
	}

	if cfg.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("setting up action log database: %w", err)
		}
		store, err := actionlog.NewDBStore(db)
		if err != nil {
			return nil, err
		}
		eng.Actions = store
	}
	if cfg.SlackWebhookURL != "" {
		eng.Notifier = engine.NewSlackNotifier(cfg.SlackWebhookURL)
	}

	s := &Server{
		logger:      logger,
		engine:      eng,
		session:     session,
		rdb:         rdb,
		bind:        cfg.Bind,
		configPath:  cfg.ConfigPath,
		watchConfig: cfg.WatchConfig,
		buildOpts:   config.BuildOptions{Limiters: limiters},
	}

	// an invalid file at startup is fatal; later reloads keep the previous config
	initial, err := s.loadConfig()
	if err != nil {
		return nil, err
	}
	eng.SetConfig(initial)
	logger.Info("loaded configuration", "path", cfg.ConfigPath, "guilds", len(initial.Guilds), "rules", initial.RuleCount())

	s.echo = s.newEcho()
	return s, nil
}

func (s *Server) loadConfig() (*config.Config, error) {
	return config.LoadFile(s.configPath, s.buildOpts)
}

func (s *Server) reload() {
	_ = s.engine.Reload(s.loadConfig)
}

func (s *Server) newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("chatmod"))
	e.Use(otelecho.Middleware("chatmod"))

	e.GET("/_health", s.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())
	return e
}

type HealthStatus struct {
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
	Guilds  int    `json:"guilds"`
	Rules   int    `json:"rules"`
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	ctx := c.Request().Context()
	status := HealthStatus{Status: "ok"}
	if cfg := s.engine.Config(); cfg != nil {
		status.Guilds = len(cfg.Guilds)
		status.Rules = cfg.RuleCount()
	}
	if s.rdb != nil {
		if err := s.rdb.Ping(ctx).Err(); err != nil {
			s.logger.Error("healthcheck can't connect to redis", "err", err)
			status.Status = "error"
			status.Message = "can't connect to redis"
			return c.JSON(http.StatusServiceUnavailable, status)
		}
	}
	return c.JSON(http.StatusOK, status)
}

// Connects the gateway and runs until ctx is cancelled or a component fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	removeHandlers := s.registerGatewayHandlers(ctx)
	defer removeHandlers()
	if err := s.session.Open(); err != nil {
		return fmt.Errorf("opening discord gateway: %w", err)
	}
	defer s.session.Close()

	g.Go(func() error {
		s.logger.Info("starting metrics and health server", "bind", s.bind)
		if err := s.echo.Start(s.bind); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		onHangup(ctx, func() {
			s.logger.Info("SIGHUP received, reloading configuration")
			s.reload()
		})
		return nil
	})

	if s.watchConfig {
		w := config.NewWatcher(s.configPath, s.reload)
		w.Logger = s.logger.With("component", "config-watcher")
		g.Go(func() error {
			return w.Run(ctx)
		})
	}

	err := g.Wait()
	s.logger.Info("shutting down", "err", err)
	return err
}

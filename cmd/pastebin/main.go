package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pastebin/cfg"
	"pastebin/svc/api"
	"pastebin/svc/cache"
	"pastebin/svc/db"
	"pastebin/svc/hist"
	"pastebin/svc/lim"
	"pastebin/svc/netif"
	"pastebin/svc/persist"
	"pastebin/svc/util"
	"pastebin/svc/web"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "-health" {
		os.Exit(healthCheck())
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		util.Warn().Err(err).Msg("failed to read .env")
	}
	c, err := cfg.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("failed to load configuration")
		os.Exit(1)
	}
	if err := cfg.Validate(c); err != nil {
		util.Fatal().Err(err).Msg("invalid configuration")
		os.Exit(1)
	}
	defer c.Wipe()
	util.InitLog(c.LogLevel, c.Environment == "development")
	util.Info().Str("backend", c.StoreBackend).Str("environment", c.Environment).Msg("starting pastebin")

	defaults := persist.Defaults{
		MaxActiveEntries:        c.DefaultMaxActiveEntries,
		MaxDeletedRetentionDays: c.DefaultRetentionDays,
	}
	var (
		sqlDB     *db.SQLite
		persister persist.Persister
	)
	switch c.StoreBackend {
	case cfg.BackendSQLite:
		sqlDB, err = db.NewSQLite(c.DatabasePath)
		if err != nil {
			util.Fatal().Err(err).Str("path", c.DatabasePath).Msg("failed to open database")
			os.Exit(1)
		}
		defer sqlDB.Close()
		persister = persist.NewSQLite(sqlDB, defaults)
	default:
		persister = persist.NewFile(c.SaveFile, defaults)
	}

	// The store is fully populated before the listener exists.
	st, err := persister.Load()
	if err != nil {
		util.Fatal().Err(err).Msg("cannot load history")
		os.Exit(1)
	}
	store := hist.New(st)
	util.Info().
		Int("active", len(st.Active)).
		Int("pinned", len(st.Pinned)).
		Int("deleted", len(st.Deleted)).
		Int("max_active", st.MaxActiveEntries).
		Int("retention_days", st.MaxDeletedRetentionDays).
		Msg("history store ready")

	var rdb *db.Redis
	if c.RedisURL != "" {
		rdb, err = db.NewRedis(c.RedisURL, c.RedisPassword.Value(), c.RedisTimeout)
		if err != nil {
			util.Warn().Err(err).Msg("redis unavailable, rate limiting is per process")
			rdb = nil
		} else {
			util.Info().Msg("redis connected")
			defer rdb.Close()
		}
	}

	limiter := lim.New(c.RateLimit.RPM, c.RateLimit.Burst, rdb, c.TrustedProxies)
	defer limiter.Stop()
	util.Info().
		Int("rpm", c.RateLimit.RPM).
		Int("burst", c.RateLimit.Burst).
		Strs("trusted_proxies", c.TrustedProxies).
		Msg("rate limiter initialized")

	renderer, err := web.NewRenderer(time.Local)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to parse templates")
		os.Exit(1)
	}
	pages, err := cache.NewPageCache(c.PageCacheSize)
	if err != nil {
		util.Fatal().Err(err).Msg("failed to create page cache")
		os.Exit(1)
	}

	addr, err := netif.ListenAddr(c.BindInterface, c.Port)
	if err != nil {
		util.Fatal().Err(err).Str("bind_interface", c.BindInterface).Msg("cannot choose listen address")
		os.Exit(1)
	}
	server := api.NewServer(c, addr, api.Deps{
		Store:    store,
		Renderer: renderer,
		Pages:    pages,
		Limiter:  limiter,
		DB:       sqlDB,
		Redis:    rdb,
	})

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()
	ctx, shutdown := context.WithCancel(sigCtx)
	defer shutdown()
	if c.ConsoleShutdown {
		go watchConsole(os.Stdin, shutdown)
	}

	g, gctx := errgroup.WithContext(ctx)
	autosaveCtx, stopAutosave := context.WithCancel(gctx)
	g.Go(server.Start)
	g.Go(func() error {
		store.RunAutosave(autosaveCtx, persister, c.AutosaveInterval)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		util.Info().Msg("shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		stopAutosave()
		return err
	})
	if err := g.Wait(); err != nil {
		util.Error().Err(err).Msg("server stopped with error")
	}

	if err := store.Save(persister); err != nil {
		util.Error().Err(err).Msg("final save failed, recent changes are lost")
	}
	util.Info().Msg("shutdown complete")
}

// healthCheck probes the local /health endpoint for container health checks.
func healthCheck() int {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://127.0.0.1:" + port + "/health")
	if err != nil {
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/hollowverse/releasemanager/internal/api"
	"github.com/hollowverse/releasemanager/internal/branch"
	"github.com/hollowverse/releasemanager/internal/config"
	"github.com/hollowverse/releasemanager/internal/directory"
	"github.com/hollowverse/releasemanager/internal/environments"
	"github.com/hollowverse/releasemanager/internal/logging"
	"github.com/hollowverse/releasemanager/internal/proxy"
	"github.com/hollowverse/releasemanager/internal/rollout"
	"github.com/hollowverse/releasemanager/internal/router"
	"github.com/hollowverse/releasemanager/internal/telemetry"
	"github.com/hollowverse/releasemanager/internal/trafficsplit"
)

func main() {
	boot := bootLogger(os.Stderr)

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("config")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("config")
	}

	log, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		boot.Fatal().Err(err).Msg("logging")
	}
	log = log.With().Str("app_env", cfg.AppEnv).Logger()
	telemetry.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envFile, err := environments.LoadFile(cfg.EnvironmentsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("load environments")
	}
	table, err := envFile.Table()
	if err != nil {
		log.Fatal().Err(err).Msg("weight table")
	}

	src, err := directory.NewSource(ctx, directory.SourceConfig{
		Kind:               cfg.DirectorySource,
		File:               envFile,
		DatabaseDSN:        cfg.DatabaseDSN,
		AWSRegion:          cfg.AWSRegion,
		AWSAccessKeyID:     cfg.AWSAccessKeyID,
		AWSSecretAccessKey: cfg.AWSSecretAccessKey,
		ApplicationName:    cfg.EBApplicationName,
		EnvironmentPrefix:  cfg.EBEnvironmentPrefix,
	})
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.DirectorySource).Msg("directory source")
	}
	defer src.Close()

	dir := directory.New(src, table, directory.WithLogger(log))
	if err := dir.Refresh(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial directory refresh")
	}
	snap := dir.Snapshot()
	log.Info().
		Str("source", src.Name()).
		Int("environments", len(snap.Environments)).
		Str("etag", snap.ETag).
		Msg("directory loaded")
	go dir.Run(ctx, cfg.DirectoryRefreshInterval)

	selector, err := rollout.NewSelector(cfg.Selector, table)
	if err != nil {
		log.Fatal().Err(err).Msg("selector")
	}
	split, err := trafficsplit.New(table, selector, dir, trafficsplit.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("traffic split")
	}

	branches := branch.NewBreakerResolver(branch.NewSourceResolver(src), branch.BreakerConfig{
		Timeout:     cfg.BranchLookupTimeout,
		MaxFailures: uint32(cfg.BranchBreakerFailures),
		OpenTimeout: cfg.BranchBreakerTimeout,
	}, log)

	var rt *router.Router
	fwd := proxy.New(proxy.Config{
		Scheme:             cfg.UpstreamScheme,
		InsecureSkipVerify: cfg.UpstreamInsecureSkipVerify,
	}, func(resp *http.Response) error { return rt.ModifyResponse(resp) }, log)

	rt = router.New(router.Config{
		TrafficSplitCookieName:   cfg.TrafficSplitCookieName,
		BranchCookieName:         cfg.BranchCookieName,
		TrafficSplitCookieMaxAge: cfg.TrafficSplitCookieMaxAge,
		BranchCookieMaxAge:       cfg.BranchCookieMaxAge,
	}, branches, split, fwd,
		router.WithLogger(log),
		router.WithCookiePolicy(router.PathPolicy{
			NoCookiePrefixes: cfg.NoCookiePathPrefixes,
			NoCookieSuffixes: cfg.NoCookiePathSuffixes,
		}),
	)

	edge := chi.NewRouter()
	edge.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	edge.Use(telemetry.Middleware, logging.Middleware(log))
	edge.Handle("/*", rt)

	ops := api.NewServer(dir, table,
		api.WithLogger(log),
		api.WithRateLimit(cfg.OpsRateLimitPerIP),
		api.WithSelectorName(cfg.Selector),
	)

	servers := []*http.Server{
		{
			Addr:              cfg.HTTPAddr,
			Handler:           edge,
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      0, // responses are streamed from upstream
			IdleTimeout:       60 * time.Second,
		},
		{
			Addr:              cfg.OpsAddr,
			Handler:           ops.Router(),
			ReadHeaderTimeout: 3 * time.Second,
			WriteTimeout:      0, // SSE
			IdleTimeout:       60 * time.Second,
		},
	}
	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Info().Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Str("addr", srv.Addr).Msg("server")
			}
		}(srv)
	}

	// graceful shutdown
	<-ctx.Done()
	ctxShut, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(ctxShut); err != nil {
			log.Warn().Err(err).Str("addr", srv.Addr).Msg("shutdown")
		}
	}
	log.Info().Msg("stopped")
}

// bootLogger reports failures that happen before logging is configured.
func bootLogger(out io.Writer) zerolog.Logger {
	return zerolog.New(out).With().Timestamp().Str("phase", "boot").Logger()
}

package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/hub"
	"github.com/boardsync/boardsync/internal/presence"
	"github.com/boardsync/boardsync/internal/server"
	"github.com/boardsync/boardsync/internal/store"
	"github.com/boardsync/boardsync/internal/store/memory"
	redisstore "github.com/boardsync/boardsync/internal/store/redis"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Initialize structured logging from environment.
	level, parseErr := zerolog.ParseLevel(os.Getenv("BOARDSYNC_LOG_LEVEL"))
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if os.Getenv("BOARDSYNC_LOG_FORMAT") == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Probe the shared store once; the mode chosen here holds for the
	// process lifetime.
	st, redisStore := selectStore(ctx, cfg)
	if redisStore != nil {
		defer redisStore.Close()
	}

	manager := presence.NewManager(st)

	h := hub.New(st, manager, hub.Options{
		PingInterval:   cfg.Sync.PingInterval,
		ReadTimeout:    cfg.Sync.ReadTimeout,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	})
	if redisStore != nil {
		h.SetBroadcaster(hub.NewRedisBroadcaster(redisstore.NewPubSub(redisStore), h.Deliver))
	}

	// Fanout receive loop.
	go func() {
		if runErr := h.Run(ctx); runErr != nil {
			log.Error().Err(runErr).Msg("fanout loop")
			cancel()
		}
	}()

	// Reaper for clients that stop heartbeating.
	go manager.Run(ctx, cfg.Sync.PresenceSweep, h.NotifyExpired)

	srv := server.New(ctx, cfg, st, h)

	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("starting server")
		if startErr := srv.Start(); startErr != nil {
			log.Error().Err(startErr).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		return shutdownErr
	}

	log.Info().Msg("stopped")
	return nil
}

// selectStore picks the backing store: Redis when reachable within the
// probe window, otherwise the in-process fallback. The second return
// is non-nil only in Redis mode.
func selectStore(ctx context.Context, cfg *config.Config) (store.Store, *redisstore.Store) {
	if cfg.Redis.ForceMemory {
		log.Info().Msg("forced in-memory store, cross-instance fanout disabled")
		return memory.New(), nil
	}

	rs, err := redisstore.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.ProbeTimeout)
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).
			Msg("redis unreachable, falling back to in-memory store for this process lifetime")
		return memory.New(), nil
	}

	log.Info().Str("addr", cfg.Redis.Addr).Msg("redis connected, shared-store mode")
	return rs, rs
}

// originPatterns converts configured CORS origins to the host patterns
// coder/websocket matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "http://")
		o = strings.TrimPrefix(o, "https://")
		patterns = append(patterns, o)
	}
	return patterns
}

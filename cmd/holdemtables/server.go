package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtables/internal/server"
)

// ServerCmd runs the HTTP and WebSocket server
type ServerCmd struct {
	Config string `short:"c" default:"holdemtables.hcl" help:"Path to HCL configuration file"`
	Addr   string `short:"a" help:"Server address to bind to (overrides config)"`
	Seed   *int64 `help:"Deterministic RNG seed for every room (optional)"`
}

func (c *ServerCmd) Run(cli *CLI) error {
	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := newLogger(cli.LogLevel, cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	srv := server.NewServer(cfg.Server.Address, logger)
	broadcasters := server.MultiBroadcaster{srv}
	if deps.nats != nil {
		broadcasters = append(broadcasters, deps.nats)
	}

	opts := []server.OrchestratorOption{
		server.WithStateStore(deps.states),
		server.WithResultRecorder(deps.results),
		server.WithBroadcaster(broadcasters),
		server.WithLogger(logger),
	}
	if c.Seed != nil {
		logger.Info("Using deterministic seed", "seed", *c.Seed)
		opts = append(opts, server.WithSeed(*c.Seed))
	}
	orch := server.NewOrchestrator(server.NewRegistry(), deps.rooms, cfg.OrchestratorConfig(), opts...)
	srv.SetOrchestrator(orch)
	if deps.postgres != nil {
		srv.SetStatsSource(deps.postgres)
	}

	logger.Info("Starting holdemtables server",
		"addr", cfg.Server.Address,
		"rooms", len(cfg.Rooms),
		"open_rooms", cfg.Server.OpenRooms,
		"blinds", fmt.Sprintf("%d/%d", cfg.Table.SmallBlind, cfg.Table.BigBlind),
		"redis", deps.redis != nil,
		"postgres", deps.postgres != nil,
		"nats", deps.nats != nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), orch.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

// backends holds the optional external services named in the config.
type backends struct {
	rooms   server.RoomStore
	states  server.StateStore
	results server.ResultRecorder

	redis    *server.RedisStateStore
	postgres *server.PostgresStore
	nats     *server.NATSBroadcaster
}

func openBackends(ctx context.Context, cfg *server.Config, logger *log.Logger) (*backends, error) {
	b := &backends{}
	b.rooms = server.NewMemoryRoomStore()
	b.states = server.NewMemoryStateStore()
	b.results = server.NewMemoryResultRecorder()

	if cfg.Postgres != nil {
		pg, err := server.OpenPostgres(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		b.postgres = pg
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				b.Close()
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		b.rooms, b.results = pg, pg
	}
	for _, r := range cfg.Rooms {
		if err := b.rooms.SaveRoomConfig(ctx, r.ID, r.RoomConfig()); err != nil {
			b.Close()
			return nil, fmt.Errorf("register room %s: %w", r.ID, err)
		}
		logger.Debug("Registered room", "room", r.ID, "creator", r.Creator)
	}

	if cfg.Redis != nil {
		rs := server.NewRedisStateStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.RedisTTL())
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			b.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
		b.redis, b.states = rs, rs
	} else if cfg.Server.StateDir != "" {
		fs, err := server.NewFileStateStore(cfg.Server.StateDir)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.states = fs
	}

	if cfg.NATS != nil {
		nb, err := server.NewNATSBroadcaster(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		b.nats = nb
	}
	return b, nil
}

func (b *backends) Close() {
	if b.nats != nil {
		_ = b.nats.Close()
	}
	if b.redis != nil {
		_ = b.redis.Close()
	}
	if b.postgres != nil {
		b.postgres.Close()
	}
}

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sudooom.cardroom/internal/archive"
	"sudooom.cardroom/internal/config"
	"sudooom.cardroom/internal/deck"
	"sudooom.cardroom/internal/gateway"
	"sudooom.cardroom/internal/health"
	"sudooom.cardroom/internal/nats"
	"sudooom.cardroom/internal/redis"
	"sudooom.cardroom/internal/room"
	"sudooom.cardroom/internal/server"
	"sudooom.cardroom/internal/snowflake"
	"sudooom.cardroom/internal/transport"
	"sudooom.cardroom/internal/workerpool"
)

func main() {
	configPath := flag.String("config", envOr("CARDROOM_CONFIG", "configs/config.yaml"), "config file path")
	flag.Parse()

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 初始化日志
	level := parseLevel(cfg.App.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	if level > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	logger.Debug("Effective config\n" + cfg.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 初始化雪花ID生成器（连接标识）
	sfNode, err := snowflake.NewNode(cfg.App.NodeID)
	if err != nil {
		logger.Error("Failed to create snowflake node", "error", err)
		os.Exit(1)
	}

	// 房间
	store := room.NewStore(
		room.WithShuffler(deck.NewShuffler()),
		room.WithHostGrace(cfg.Room.EmptyRoomExpiry),
		room.WithCodeAttempts(cfg.Room.CodeAttempts),
	)
	reaper := room.NewReaper(store, cfg.Room.SweepInterval, cfg.Room.EmptyRoomExpiry)

	// 连接与网关
	hub := transport.NewHub()
	gw := gateway.New(store, hub, cfg.Room.MaxUsername)
	reaper.OnEvict(gw.RoomsEvicted)

	pool := workerpool.New(cfg.Worker.Shards, cfg.Worker.QueueSize, logger)
	dispatcher := transport.NewDispatcher(ctx, hub, pool, gw, sfNode, transport.ConnConfig{
		SendQueue: cfg.Server.SendQueue,
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	})

	checker := health.NewChecker(cfg.App.Name, store, hub, health.CounterFunc(gw.SessionCount))
	deps := server.Deps{
		Store:     store,
		WebSocket: transport.NewWebSocketHandler(dispatcher, cfg.Server),
		Health:    checker,
	}

	// 可选依赖：NATS 事件镜像
	if cfg.NATS.Enabled {
		natsClient, err := nats.NewClient(cfg.NATS)
		if err != nil {
			logger.Error("Failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer natsClient.Close()
		gw.SetMirror(nats.NewMirror(natsClient, cfg.NATS.SubjectPrefix))
		checker.WithNATS(natsClient)
		logger.Info("Connected to NATS", "url", cfg.NATS.URL)
	}

	// 可选依赖：Redis 房间摘要
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(cfg.Redis)
		defer redisClient.Close()
		if err := redisClient.Ping(ctx); err != nil {
			logger.Warn("Redis not reachable, stats will be retried per update", "addr", cfg.Redis.Addr, "error", err)
		}
		statsMirror := redis.NewStatsMirror(redisClient, cfg.Room.EmptyRoomExpiry, cfg.Worker.QueueSize)
		go statsMirror.Run(ctx)
		gw.SetStats(statsMirror)
		checker.WithRedis(redisClient)
		logger.Info("Redis stats mirror enabled", "addr", cfg.Redis.Addr)
	}

	// 可选依赖：PostgreSQL 历史归档
	if cfg.Database.Enabled {
		db, err := archive.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := archive.Migrate(ctx, db); err != nil {
			logger.Error("Failed to migrate archive schema", "error", err)
			os.Exit(1)
		}
		archiver := archive.NewArchiver(db)
		reaper.OnEvict(archiver.Hook())
		checker.WithDatabase(archiver)
		deps.Archive = archiver
		logger.Info("Connected to PostgreSQL", "host", cfg.Database.Host)
	}

	go reaper.Run(ctx)

	// HTTP / WebSocket
	httpServer := server.New(cfg.Server.Addr, server.SetupRouter(cfg.Server, deps))
	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	// WebTransport
	var wtServer *transport.WebTransportServer
	if cfg.WebTransport.Enabled {
		wtServer = transport.NewWebTransportServer(cfg.WebTransport, cfg.Server.AllowOrigins, int(cfg.Server.ReadLimit), dispatcher)
		go func() {
			if err := wtServer.Start(ctx); err != nil {
				logger.Error("WebTransport server stopped", "error", err)
			}
		}()
	}

	logger.Info("Card room server started",
		"addr", cfg.Server.Addr,
		"webtransport", cfg.WebTransport.Enabled,
		"sweep_interval", cfg.Room.SweepInterval,
		"empty_room_expiry", cfg.Room.EmptyRoomExpiry)

	// 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	if wtServer != nil {
		wtServer.Shutdown()
	}

	// 关闭剩余连接，断开命令排在各连接已提交的命令之后
	for _, c := range hub.GetAllConnections() {
		dispatcher.Disconnected(c)
	}
	pool.Shutdown()
	cancel()

	logger.Info("Server stopped", "rooms", store.Count())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

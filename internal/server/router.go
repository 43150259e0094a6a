package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sudooom.cardroom/internal/apperr"
	"sudooom.cardroom/internal/config"
	"sudooom.cardroom/internal/health"
	"sudooom.cardroom/internal/room"
)

// HistoryReader 已归档房间的历史，由 archive.Archiver 实现
type HistoryReader interface {
	History(ctx context.Context, roomID string) ([]room.HistoryEntry, error)
}

// Deps 路由依赖
type Deps struct {
	Store     *room.Store
	WebSocket http.Handler
	Health    *health.Checker
	Archive   HistoryReader // 可选
}

// SetupRouter 设置路由
func SetupRouter(cfg config.ServerConfig, deps Deps) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(corsConfig(cfg.AllowOrigins)))

	r.GET("/ws", gin.WrapH(deps.WebSocket))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Health.Check(c.Request.Context()))
	})
	r.GET("/ready", func(c *gin.Context) {
		status := deps.Health.Check(c.Request.Context())
		code := http.StatusOK
		if !status.Ready() {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})

	h := &roomHandler{store: deps.Store, archive: deps.Archive}
	r.GET("/stats", h.stats)
	r.GET("/rooms/:id", h.room)
	if deps.Archive != nil {
		r.GET("/archive/rooms/:id/history", h.history)
	}

	if cfg.StaticDir != "" {
		r.NoRoute(gin.WrapH(http.FileServer(http.Dir(cfg.StaticDir))))
	}

	return r
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "OPTIONS"},
		AllowHeaders: []string{
			"Content-Type",
			"Upgrade",
			"Connection",
			"Sec-WebSocket-Key",
			"Sec-WebSocket-Version",
			"Sec-WebSocket-Extensions",
			"Sec-WebSocket-Protocol",
		},
		MaxAge: 12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

type roomHandler struct {
	store   *room.Store
	archive HistoryReader
}

// stats 当前所有房间摘要，按创建时间排序
func (h *roomHandler) stats(c *gin.Context) {
	rooms := make([]room.Stats, 0, h.store.Count())
	h.store.Range(func(r *room.Room) bool {
		rooms = append(rooms, r.Stats())
		return true
	})
	sort.Slice(rooms, func(i, j int) bool {
		return rooms[i].CreatedAt.Before(rooms[j].CreatedAt)
	})

	members := 0
	for _, s := range rooms {
		members += s.Members
	}
	c.JSON(http.StatusOK, gin.H{
		"count":   len(rooms),
		"members": members,
		"rooms":   rooms,
	})
}

func (h *roomHandler) room(c *gin.Context) {
	id, err := room.NormalizeID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	r, err := h.store.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r.Stats())
}

func (h *roomHandler) history(c *gin.Context) {
	id, err := room.NormalizeID(c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := h.archive.History(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(entries) == 0 {
		writeError(c, room.ErrRoomNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roomId": id, "history": entries})
}

// writeError 按错误分类映射 HTTP 状态码
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	code := http.StatusInternalServerError
	switch kind {
	case apperr.KindNotFound:
		code = http.StatusNotFound
	case apperr.KindUnauthorized:
		code = http.StatusUnauthorized
	case apperr.KindInvalidInput:
		code = http.StatusBadRequest
	case apperr.KindInvalidState:
		code = http.StatusConflict
	default:
		slog.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{"message": apperr.MessageOf(err), "code": kind.String()})
}

func requestLogger() gin.HandlerFunc {
	logger := slog.Default().With("component", "HTTP")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Debug("Request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP())
	}
}

// Server HTTP 服务器
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

func New(addr string, handler http.Handler) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: slog.Default().With("component", "HTTPServer"),
	}
}

// Start 阻塞直到服务器关闭，正常关闭时返回 nil
func (s *Server) Start() error {
	s.logger.Info("HTTP server started", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"github.com/quic-go/webtransport-go"

	"sudooom.cardroom/internal/config"
)

// WebTransportServer 可选的 WebTransport 接入
// 每个会话只使用客户端打开的第一个双向流，帧格式见 frame.go
type WebTransportServer struct {
	cfg          config.WebTransportConfig
	allowOrigins []string
	maxFrame     int
	d            *Dispatcher
	wtServer     *webtransport.Server
	wg           sync.WaitGroup
	logger       *slog.Logger
}

func NewWebTransportServer(cfg config.WebTransportConfig, allowOrigins []string, maxFrame int, d *Dispatcher) *WebTransportServer {
	return &WebTransportServer{
		cfg:          cfg,
		allowOrigins: allowOrigins,
		maxFrame:     maxFrame,
		d:            d,
		logger:       slog.Default().With("component", "WebTransport"),
	}
}

// Start 阻塞直到服务器关闭
func (s *WebTransportServer) Start(ctx context.Context) error {
	cert, hash, err := loadCertificate(s.cfg.CertFile, s.cfg.KeyFile)
	if err != nil {
		return err
	}
	if s.cfg.CertFile == "" {
		s.logger.Warn("No TLS certificate configured, using self-signed certificate", "sha256", hash)
	}

	quicConfig := &quic.Config{
		MaxIdleTimeout:  s.cfg.MaxIdleTimeout,
		KeepAlivePeriod: s.cfg.KeepAlivePeriod,
		EnableDatagrams: true, // WebTransport 需要启用数据报支持
	}

	s.wtServer = &webtransport.Server{
		H3: http3.Server{
			Addr:       s.cfg.Addr,
			TLSConfig:  webtransportTLSConfig(cert),
			QUICConfig: quicConfig,
		},
		CheckOrigin: func(r *http.Request) bool {
			return OriginAllowed(s.allowOrigins, r.Header.Get("Origin"))
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webtransport", func(w http.ResponseWriter, r *http.Request) {
		session, err := s.wtServer.Upgrade(w, r)
		if err != nil {
			s.logger.Warn("WebTransport upgrade failed", "error", err)
			return
		}
		s.wg.Add(1)
		go s.handleSession(ctx, session)
	})
	s.wtServer.H3.Handler = mux

	checker := NewHeartbeatChecker(s.d.Hub(), KindWebTransport,
		s.cfg.HeartbeatTimeout, s.cfg.HeartbeatCheckInterval, s.d.Disconnected)
	go checker.Start(ctx)

	s.logger.Info("WebTransport server starting", "addr", s.cfg.Addr)
	return s.wtServer.ListenAndServe()
}

func (s *WebTransportServer) handleSession(ctx context.Context, session *webtransport.Session) {
	defer s.wg.Done()

	stream, err := session.AcceptStream(ctx)
	if err != nil {
		return
	}
	defer stream.Close()

	c := s.d.Register(KindWebTransport, func() {
		_ = session.CloseWithError(0, "connection closed")
	})
	s.serveStream(stream, c)
}

// serveStream 在双向流上收发帧，读取失败后断开连接
func (s *WebTransportServer) serveStream(rw io.ReadWriter, c *Conn) {
	defer s.d.Disconnected(c)

	w := &frameWriter{w: rw}
	go s.writeLoop(c, w)

	for {
		frameType, body, err := ReadFrame(rw, s.maxFrame)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Debug("Failed to read frame", "conn_id", c.ID(), "error", err)
			}
			return
		}

		c.Touch()
		switch frameType {
		case FrameHeartbeat:
			if err := w.write(FrameHeartbeat, nil); err != nil {
				return
			}
		case FrameEvent:
			s.d.Dispatch(c, body)
		default:
			s.logger.Debug("Unknown frame type", "conn_id", c.ID(), "type", frameType)
		}
	}
}

func (s *WebTransportServer) writeLoop(c *Conn, w *frameWriter) {
	for {
		select {
		case data := <-c.Outbound():
			if err := w.write(FrameEvent, data); err != nil {
				s.logger.Debug("Failed to write frame", "conn_id", c.ID(), "error", err)
				c.Close()
				return
			}
		case <-c.Done():
			return
		}
	}
}

func (s *WebTransportServer) Shutdown() {
	if s.wtServer != nil {
		_ = s.wtServer.Close()
	}
	for _, c := range s.d.Hub().GetAllConnections() {
		if c.Kind() == KindWebTransport {
			c.Close()
		}
	}
	s.wg.Wait()
}

// frameWriter 串行化同一个流上的写操作
type frameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (f *frameWriter) write(frameType uint16, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return WriteFrame(f.w, frameType, body)
}

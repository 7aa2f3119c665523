package server

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"
	"golang.org/x/time/rate"

	"github.com/HnustLzh2/http-server/internal/config"
	"github.com/HnustLzh2/http-server/internal/request"
	"github.com/HnustLzh2/http-server/internal/response"
	"github.com/HnustLzh2/http-server/internal/router"
)

// ReadBufferSize 每个连接只读一次，超过这个长度的请求会被截断
const ReadBufferSize = 1024

// httpMarker 读到的数据里没有它就不按 HTTP 解析
var httpMarker = []byte("HTTP/1.")

// rejectResponse 非 HTTP 数据或空读取时直接写回的响应
var rejectResponse = []byte("HTTP/1.1 500 Internal Server Error\r\n\r\n")

// Stats 连接计数
type Stats struct {
	Active uint64
	Served uint64
	Failed uint64
}

// Server 每个连接一个 goroutine：读一次、解析、路由、写回、关闭
type Server struct {
	cfg     config.Config
	router  *router.Router
	logger  zerolog.Logger
	limiter *rate.Limiter

	active atomic.Int64
	served atomic.Uint64
	failed atomic.Uint64
}

// New 创建服务器，路由应在 Serve 之前注册完
func New(cfg config.Config, r *router.Router, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		router: r,
		logger: logger,
	}
	if cfg.AcceptRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRate), cfg.AcceptBurst)
	}
	return s
}

// ListenAndServe 监听配置中的地址并处理连接，直到 ctx 结束
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return errors.Wrap(err, "绑定端口失败")
	}
	return s.Serve(ctx, ln)
}

// Serve 在 ln 上循环 Accept，每个连接交给独立的 goroutine。
// ctx 结束时关闭监听器并返回 nil。
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-stop:
		}
	}()
	defer func() {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn().Err(err).Msg("关闭监听器时出错")
		}
		st := s.Stats()
		s.logger.Info().
			Uint64("served", st.Served).
			Uint64("failed", st.Failed).
			Msg("监听器已关闭")
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("服务器开始监听")
	for {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return nil
			}
			s.logger.Error().Err(err).Msg("接受连接时出错")
			continue
		}
		go s.HandleConnection(conn)
	}
}

// Stats 返回当前计数的快照
func (s *Server) Stats() Stats {
	return Stats{
		Active: uint64(s.active.Load()),
		Served: s.served.Load(),
		Failed: s.failed.Load(),
	}
}

// HandleConnection 处理一个连接上的唯一请求，结束后关闭连接。
// 解析失败或写失败只影响当前连接。
func (s *Server) HandleConnection(conn net.Conn) {
	s.active.Inc()
	log := s.logger.With().Str("remote", conn.RemoteAddr().String()).Logger()
	defer func() {
		if v := recover(); v != nil {
			s.failed.Inc()
			log.Error().Interface("panic", v).Msg("连接异常中止")
		}
		s.active.Dec()
		_ = conn.Close()
	}()
	log.Debug().Msg("接受新连接")

	buf := make([]byte, ReadBufferSize)
	n, err := conn.Read(buf)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		s.failed.Inc()
		log.Warn().Err(err).Msg("读取请求失败")
		return
	}

	// 对端不发送任何数据就关闭写端时 n 为 0，交给 Handle 走快速拒绝
	out, err := s.Handle(buf[:n])
	if err != nil {
		s.failed.Inc()
		log.Warn().Err(err).Msg("解析请求失败")
		return
	}
	if _, err := conn.Write(out); err != nil {
		s.failed.Inc()
		log.Warn().Err(err).Msg("写回响应失败")
		return
	}
	s.served.Inc()
}

// Handle 把一次读取的原始数据转换为要写回的响应报文。
// 返回的错误只来自请求解析，调用方应直接结束连接而不写任何响应。
func (s *Server) Handle(raw []byte) ([]byte, error) {
	if !bytes.Contains(raw, httpMarker) {
		return rejectResponse, nil
	}

	req, err := request.Parse(string(raw))
	if err != nil {
		return nil, err
	}
	req.Logger = s.logger.With().
		Str("method", req.Method.String()).
		Str("path", req.Path).
		Logger()

	res := response.For(req)
	handler, offsets := s.router.Resolve(req.Method, req.Path)
	if handler == nil {
		res.SetStatus(response.StatusNotFound)
	} else {
		req.Params = offsets.Extract(req.Path)
		if err := invoke(handler, req, res); err != nil {
			req.Logger.Error().Err(err).Msg("处理函数出错")
			res = response.For(req)
			res.SetStatus(response.StatusInternalServerError)
		}
	}

	if len(res.Body()) > 0 && req.AcceptsEncoding("gzip") {
		compressed, err := Compress(res.Body())
		if err != nil {
			req.Logger.Error().Err(err).Msg("gzip 压缩失败")
			res = response.For(req)
			res.SetStatus(response.StatusInternalServerError)
		} else {
			res.SetBody(compressed, response.ContentType(res.Header("Content-Type")))
			res.SetHeader("Content-Encoding", "gzip")
		}
	}

	req.Logger.Info().Int("status", int(res.Status)).Msg("请求处理完成")
	return res.Serialize(), nil
}

// invoke 调用 handler，把 panic 转换为错误
func invoke(h router.HandlerFunc, req *request.Request, res *response.Response) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = errors.Errorf("handler panic: %v", v)
		}
	}()
	return h(req, res)
}

// Compress 对 body 做 gzip 压缩
func Compress(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	if _, err := gw.Write(body); err != nil {
		return nil, errors.Wrap(err, "gzip write")
	}
	if err := gw.Close(); err != nil {
		return nil, errors.Wrap(err, "gzip close")
	}
	return buf.Bytes(), nil
}

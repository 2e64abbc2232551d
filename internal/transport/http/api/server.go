package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"candlesig/internal/backtest"
	"candlesig/internal/chart"
	"candlesig/internal/config/writer"
	"candlesig/internal/decision"
	"candlesig/internal/gateway/database"
	"candlesig/internal/logger"
	"candlesig/internal/service"
	"candlesig/internal/transport/http/api/ui"
	"candlesig/internal/transport/http/profile"
)

// SignalHistory 已持久化信号的查询，由 database.SignalStore 实现。
type SignalHistory interface {
	ListSignals(ctx context.Context, q database.SignalQuery) ([]database.SignalRecord, error)
	ListBacktests(ctx context.Context, symbol string, limit int) ([]database.BacktestRun, error)
}

// Config 服务器参数，Profiles 与 History 可为 nil。
type Config struct {
	Addr     string
	Svc      *service.Service
	Profiles *writer.ProfileWriter
	History  SignalHistory
	Snapshot chart.SnapshotOptions
	// Analysis 未指定 profile 且无默认 profile 时使用的分析参数。
	Analysis decision.Options
	// Backtest 请求未带 options 时的回测参数。
	Backtest backtest.Options
}

// Server 分析接口与内嵌前端。
type Server struct {
	addr      string
	svc       *service.Service
	profiles  *writer.ProfileWriter
	history   SignalHistory
	snapshot  chart.SnapshotOptions
	analysis  decision.Options
	backtest  backtest.Options
	router    *gin.Engine
	indexHTML []byte
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Svc == nil {
		return nil, errors.New("service 不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	staticFS, err := ui.StaticFS()
	if err != nil {
		return nil, fmt.Errorf("加载前端静态资源失败: %w", err)
	}
	indexHTML, err := ui.Index()
	if err != nil {
		return nil, fmt.Errorf("加载前端首页失败: %w", err)
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())
	router.StaticFS("/static", staticFS)

	s := &Server{
		addr:      cfg.Addr,
		svc:       cfg.Svc,
		profiles:  cfg.Profiles,
		history:   cfg.History,
		snapshot:  cfg.Snapshot,
		analysis:  cfg.Analysis,
		backtest:  cfg.Backtest,
		router:    router,
		indexHTML: indexHTML,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.handleIndex)
	api := s.router.Group("/api")
	api.GET("/analysis", s.handleAnalysis)
	api.GET("/patterns", s.handlePatterns)
	api.GET("/signals", s.handleSignals)
	api.GET("/indicators", s.handleIndicators)
	api.POST("/backtest", s.handleBacktest)
	api.GET("/chart", s.handleChart)
	api.GET("/algorithms", s.handleAlgorithms)
	api.POST("/import", s.handleImport)
	api.GET("/export", s.handleExport)
	api.POST("/batch", s.handleBatchSubmit)
	api.GET("/batch", s.handleBatchList)
	api.GET("/batch/:id", s.handleBatchStatus)
	api.GET("/history/signals", s.handleHistorySignals)
	api.GET("/history/backtests", s.handleHistoryBacktests)
	if s.profiles != nil {
		profile.NewRouter(s.profiles).Register(api.Group("/profiles"))
	}
}

// Handler 暴露给测试与外部组合。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", s.indexHTML)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("[http] %s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond))
	}
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[http] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

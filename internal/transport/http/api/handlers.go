package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"candlesig/internal/analysis/indicator"
	"candlesig/internal/analysis/pattern"
	"candlesig/internal/backtest"
	"candlesig/internal/config/writer"
	"candlesig/internal/decision"
	"candlesig/internal/export"
	"candlesig/internal/gateway/database"
	"candlesig/internal/market"
	"candlesig/internal/service"
	"candlesig/internal/strategy"
)

func bindRequest(c *gin.Context) (service.Request, bool) {
	var req service.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return req, false
	}
	if strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return req, false
	}
	return req, true
}

// fail 按错误类型选择状态码。
func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrNoData):
		status = http.StatusNotFound
	case errors.Is(err, market.ErrInvalidSeries),
		errors.Is(err, market.ErrMissingColumn),
		errors.Is(err, strategy.ErrUnknownStrategy),
		errors.Is(err, decision.ErrEmptySeries),
		errors.Is(err, backtest.ErrNoSignals),
		errors.Is(err, service.ErrUnknownSource),
		errors.Is(err, writer.ErrProfileNotFound):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// analysisOptions 解析 ?profile=，为空时依次回退到默认 profile 与服务器配置。
func (s *Server) analysisOptions(name string) (decision.Options, error) {
	if s.profiles == nil {
		if name != "" {
			return decision.Options{}, fmt.Errorf("%w: %s", writer.ErrProfileNotFound, name)
		}
		return s.analysis, nil
	}
	if name != "" {
		entry, err := s.profiles.GetProfile(name)
		if err != nil {
			return decision.Options{}, err
		}
		return entry.Analysis, nil
	}
	_, entry, ok, err := s.profiles.DefaultProfile()
	if err != nil || !ok {
		return s.analysis, err
	}
	return entry.Analysis, nil
}

func (s *Server) handleAnalysis(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	opts, err := s.analysisOptions(c.Query("profile"))
	if err != nil {
		fail(c, err)
		return
	}
	out, err := s.svc.Analyze(c.Request.Context(), req, opts)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func parsePatternTypes(raw string) ([]pattern.Type, error) {
	var types []pattern.Type
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, ok := pattern.Lookup(part)
		if !ok {
			return nil, fmt.Errorf("未知形态: %s", part)
		}
		types = append(types, t)
	}
	return types, nil
}

func (s *Server) handlePatterns(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	types, err := parsePatternTypes(c.Query("types"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.analysisOptions(c.Query("profile"))
	if err != nil {
		fail(c, err)
		return
	}
	occ, err := s.svc.Patterns(c.Request.Context(), req, opts.Pattern, types...)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": strings.ToUpper(req.Symbol), "count": len(occ), "patterns": occ})
}

func (s *Server) handleSignals(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	types, err := strategy.ParseTypes(c.Query("strategies"))
	if err != nil {
		fail(c, err)
		return
	}
	sreq := service.SignalsRequest{
		Request:    req,
		Strategies: types,
		Merge:      c.DefaultQuery("merge", "true") == "true",
	}
	if c.Query("fusion") == "true" {
		cfg := strategy.DefaultFusionConfig()
		sreq.Fusion = &cfg
	}
	if c.Query("by_strategy") == "true" {
		results, err := s.svc.StrategyResults(c.Request.Context(), sreq)
		if err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results})
		return
	}
	signals, err := s.svc.Signals(c.Request.Context(), sreq)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(signals), "signals": signals})
}

func (s *Server) handleIndicators(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	report, err := s.svc.Indicators(c.Request.Context(), req, indicator.Settings{})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type backtestPayload struct {
	service.Request
	Strategies string            `json:"strategies"`
	Source     string            `json:"source"`
	Profile    string            `json:"profile"`
	Options    *backtest.Options `json:"options"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var body backtestPayload
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(body.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	types, err := strategy.ParseTypes(body.Strategies)
	if err != nil {
		fail(c, err)
		return
	}
	opts, err := s.analysisOptions(body.Profile)
	if err != nil {
		fail(c, err)
		return
	}
	bopts := s.backtest
	if body.Options != nil {
		bopts = *body.Options
	}
	res, err := s.svc.Backtest(c.Request.Context(), service.BacktestRequest{
		SignalsRequest: service.SignalsRequest{Request: body.Request, Strategies: types, Merge: true},
		Source:         body.Source,
		Decision:       opts,
		Options:        bopts,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func parseMA(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("ma 参数非法: %s", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func (s *Server) handleChart(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	ma, err := parseMA(c.Query("ma"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.analysisOptions(c.Query("profile"))
	if err != nil {
		fail(c, err)
		return
	}
	creq := service.ChartRequest{Request: req, Decision: opts, MA: ma}
	switch c.DefaultQuery("format", "html") {
	case "html":
		page, err := s.svc.ChartHTML(c.Request.Context(), creq)
		if err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	case "png":
		img, err := s.svc.ChartPNG(c.Request.Context(), creq, s.snapshot)
		if err != nil {
			fail(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", img)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format 仅支持 html/png"})
	}
}

func (s *Server) handleAlgorithms(c *gin.Context) {
	opts, err := s.analysisOptions(c.Query("profile"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"decision":   decision.AlgorithmInfo(opts),
		"patterns":   pattern.AlgorithmInfo(),
		"strategies": strategy.Guide(),
	})
}

func (s *Server) handleImport(c *gin.Context) {
	symbol := c.Query("symbol")
	if strings.TrimSpace(symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "symbol 不能为空"})
		return
	}
	candles, err := market.LoadCSV(c.Request.Body)
	if err != nil {
		fail(c, err)
		return
	}
	if err := s.svc.Import(c.Request.Context(), symbol, c.Query("interval"), candles); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": strings.ToUpper(symbol), "count": len(candles)})
}

func (s *Server) handleExport(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}
	exp, err := export.New(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.analysisOptions(c.Query("profile"))
	if err != nil {
		fail(c, err)
		return
	}
	rows, err := s.svc.ExportRows(c.Request.Context(), req, opts)
	if err != nil {
		fail(c, err)
		return
	}
	dir, err := os.MkdirTemp("", "candlesig-export-")
	if err != nil {
		fail(c, err)
		return
	}
	defer os.RemoveAll(dir)
	name := fmt.Sprintf("%s_%s.%s", strings.ToUpper(req.Symbol), c.DefaultQuery("interval", "1d"), exp.Extension())
	path := filepath.Join(dir, name)
	if err := exp.Save(rows, path); err != nil {
		fail(c, err)
		return
	}
	c.FileAttachment(path, name)
}

func (s *Server) handleBatchSubmit(c *gin.Context) {
	var body struct {
		Symbols  []string `json:"symbols" binding:"required"`
		Interval string   `json:"interval"`
		Limit    int      `json:"limit"`
		Profile  string   `json:"profile"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts, err := s.analysisOptions(body.Profile)
	if err != nil {
		fail(c, err)
		return
	}
	job, err := s.svc.SubmitBatch(service.BatchParams{
		Symbols:  body.Symbols,
		Interval: body.Interval,
		Limit:    body.Limit,
		Options:  opts,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

func (s *Server) handleBatchStatus(c *gin.Context) {
	job, ok := s.svc.JobSnapshot(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleBatchList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.svc.JobsSnapshot()})
}

func (s *Server) handleHistorySignals(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未启用数据库"})
		return
	}
	q := database.SignalQuery{
		Symbol:   strings.ToUpper(c.Query("symbol")),
		Interval: c.Query("interval"),
		Source:   c.Query("source"),
	}
	q.From, _ = strconv.ParseInt(c.Query("from"), 10, 64)
	q.To, _ = strconv.ParseInt(c.Query("to"), 10, 64)
	q.Limit, _ = strconv.Atoi(c.Query("limit"))
	records, err := s.history.ListSignals(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "signals": records})
}

func (s *Server) handleHistoryBacktests(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未启用数据库"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	runs, err := s.history.ListBacktests(c.Request.Context(), strings.ToUpper(c.Query("symbol")), limit)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

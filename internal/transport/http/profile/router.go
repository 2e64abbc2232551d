package profile

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"

	"candlesig/internal/config/writer"
	"candlesig/internal/decision"
	"candlesig/internal/logger"
	"candlesig/internal/strategy"
)

// Router 命名分析参数（profile）的增删改查接口。
type Router struct {
	writer *writer.ProfileWriter
}

func NewRouter(w *writer.ProfileWriter) *Router {
	return &Router{writer: w}
}

// Register 注册 profile 路由。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("", r.handleList)
	group.GET("/:name", r.handleGet)
	group.PUT("/:name", r.handleUpdate)
	group.POST("", r.handleCreate)
	group.DELETE("/:name", r.handleDelete)
	group.GET("/meta/strategies", r.handleListStrategies)
	group.GET("/meta/defaults", r.handleDefaults)
}

// ProfileResponse 接口返回的 profile。
type ProfileResponse struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Symbols     []string               `json:"symbols"`
	Intervals   []string               `json:"intervals"`
	Limit       int                    `json:"limit"`
	Strategies  []string               `json:"strategies"`
	Fusion      *strategy.FusionConfig `json:"fusion,omitempty"`
	Analysis    decision.Options       `json:"analysis"`
	Default     bool                   `json:"default"`
}

// ProfileUpdateRequest 更新请求，Analysis 为空时保留原值。
type ProfileUpdateRequest struct {
	Description string                 `json:"description"`
	Symbols     []string               `json:"symbols"`
	Intervals   []string               `json:"intervals,omitempty"`
	Limit       int                    `json:"limit"`
	Strategies  []string               `json:"strategies"`
	Fusion      *strategy.FusionConfig `json:"fusion,omitempty"`
	Analysis    *decision.Options      `json:"analysis,omitempty"`
	Default     bool                   `json:"default"`
}

// ProfileCreateRequest 新建请求，可从已有 profile 复制。
type ProfileCreateRequest struct {
	Name     string `json:"name"`
	CopyFrom string `json:"copy_from,omitempty"`
	ProfileUpdateRequest
}

func (r *Router) handleList(c *gin.Context) {
	cfg, err := r.writer.Read()
	if err != nil {
		logger.Errorf("[profile-api] list failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	profiles := make([]ProfileResponse, 0, len(cfg.Profiles))
	for name, entry := range cfg.Profiles {
		profiles = append(profiles, entryToResponse(name, entry))
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	c.JSON(http.StatusOK, gin.H{"profiles": profiles})
}

func (r *Router) handleGet(c *gin.Context) {
	name := c.Param("name")
	entry, err := r.writer.GetProfile(name)
	if err != nil {
		r.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, entryToResponse(name, *entry))
}

func (r *Router) handleUpdate(c *gin.Context) {
	name := c.Param("name")
	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	existing, err := r.writer.GetProfile(name)
	if err != nil {
		r.fail(c, err)
		return
	}
	if err := applyRequest(existing, req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.writer.UpdateProfile(name, *existing); err != nil {
		r.fail(c, err)
		return
	}
	logger.Infof("[profile-api] profile '%s' updated by %s", name, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile 已更新"})
}

func (r *Router) handleCreate(c *gin.Context) {
	var req ProfileCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}
	name := strings.TrimSpace(req.Name)
	if !validName(name) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Profile 名称只能包含字母、数字和下划线"})
		return
	}
	cfg, err := r.writer.Read()
	if err != nil {
		r.fail(c, err)
		return
	}
	if _, exists := cfg.Profiles[name]; exists {
		c.JSON(http.StatusConflict, gin.H{"error": "Profile 已存在"})
		return
	}

	entry := writer.ProfileEntry{Intervals: []string{"1d"}, Limit: 500, Analysis: decision.DefaultOptions()}
	if req.CopyFrom != "" {
		src, ok := cfg.Profiles[req.CopyFrom]
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "源 Profile 不存在"})
			return
		}
		entry = src
		entry.Default = false
	}
	if err := applyRequest(&entry, req.ProfileUpdateRequest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := r.writer.UpdateProfile(name, entry); err != nil {
		r.fail(c, err)
		return
	}
	logger.Infof("[profile-api] profile '%s' created by %s", name, c.ClientIP())
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Profile 已创建", "name": name})
}

func (r *Router) handleDelete(c *gin.Context) {
	name := c.Param("name")
	if err := r.writer.DeleteProfile(name); err != nil {
		r.fail(c, err)
		return
	}
	logger.Infof("[profile-api] profile '%s' deleted by %s", name, c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Profile 已删除"})
}

func (r *Router) handleListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": strategy.Guide()})
}

func (r *Router) handleDefaults(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"analysis": decision.DefaultOptions(), "fusion": strategy.DefaultFusionConfig()})
}

func (r *Router) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, writer.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case strings.Contains(err.Error(), "唯一"):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Errorf("[profile-api] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func applyRequest(entry *writer.ProfileEntry, req ProfileUpdateRequest) error {
	entry.Description = req.Description
	if len(req.Symbols) > 0 {
		entry.Symbols = normalizeSymbols(req.Symbols)
	}
	if len(req.Intervals) > 0 {
		entry.Intervals = normalizeIntervals(req.Intervals)
	}
	if req.Limit > 0 {
		entry.Limit = req.Limit
	}
	if req.Strategies != nil {
		if _, err := strategy.ParseTypes(strings.Join(req.Strategies, ",")); err != nil {
			return err
		}
		entry.Strategies = req.Strategies
	}
	if req.Fusion != nil {
		f := req.Fusion.Normalize()
		entry.Fusion = &f
	}
	if req.Analysis != nil {
		entry.Analysis = req.Analysis.Normalize()
	}
	entry.Default = req.Default
	return nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, ch := range name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_') {
			return false
		}
	}
	return true
}

func entryToResponse(name string, entry writer.ProfileEntry) ProfileResponse {
	return ProfileResponse{
		Name:        name,
		Description: entry.Description,
		Symbols:     entry.Symbols,
		Intervals:   entry.Intervals,
		Limit:       entry.Limit,
		Strategies:  entry.Strategies,
		Fusion:      entry.Fusion,
		Analysis:    entry.Analysis,
		Default:     entry.Default,
	}
}

func normalizeSymbols(symbols []string) []string {
	var out []string
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeIntervals(intervals []string) []string {
	var out []string
	for _, s := range intervals {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

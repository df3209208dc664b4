package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/roworks/meshusd/registry"
)

// =============================================================================
// 🏥 健康检查 Handler
// =============================================================================

// HealthHandler 健康检查处理器
type HealthHandler struct {
	registry    *registry.Registry
	scratchRoot string
	logger      *zap.Logger
}

// ServiceHealthResponse 健康状态响应
type ServiceHealthResponse struct {
	Status      string    `json:"status"`
	Service     string    `json:"service"`
	Workflow    string    `json:"workflow"`
	TotalAssets int       `json:"total_assets"`
	ScratchDir  string    `json:"temp_dir"`
	Timestamp   time.Time `json:"timestamp"`
}

// VersionResponse 版本信息响应
type VersionResponse struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(reg *registry.Registry, scratchRoot string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		registry:    reg,
		scratchRoot: scratchRoot,
		logger:      logger,
	}
}

// HandleHealth 处理 /health 请求（存活探针 + 聚合统计）
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.registry.Stats()
	WriteJSON(w, http.StatusOK, ServiceHealthResponse{
		Status:      "healthy",
		Service:     stats.Service,
		Workflow:    "mesh ZIP to USD conversion and scene attachment",
		TotalAssets: stats.TotalAssets,
		ScratchDir:  h.scratchRoot,
		Timestamp:   time.Now(),
	})
}

// HandleStatus 处理 /status 请求（仅注册表统计）
func (h *HealthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.registry.Stats())
}

// HandleVersion 处理 /version 请求
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, VersionResponse{
			Version:   version,
			BuildTime: buildTime,
			GitCommit: gitCommit,
		})
	}
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/api/handlers"
	"github.com/roworks/meshusd/archive"
	"github.com/roworks/meshusd/attach"
	"github.com/roworks/meshusd/builder"
	"github.com/roworks/meshusd/config"
	"github.com/roworks/meshusd/internal/events"
	"github.com/roworks/meshusd/internal/metrics"
	"github.com/roworks/meshusd/internal/server"
	"github.com/roworks/meshusd/pipeline"
	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/usd"
	"github.com/roworks/meshusd/web"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是网格导入服务的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 领域组件
	scene     *usd.LiveContext
	registry  *registry.Registry
	engine    *attach.Engine
	processor *pipeline.Processor
	hub       *events.Hub

	// Handlers
	importHandler *handlers.ImportHandler
	assetHandler  *handlers.AssetHandler
	healthHandler *handlers.HealthHandler
	eventsHandler *handlers.EventsHandler

	// 指标收集器
	metricsCollector *metrics.Collector

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例并装配流水线
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logger,
	}
	if err := s.initPipeline(); err != nil {
		return nil, err
	}
	return s, nil
}

// =============================================================================
// 🔧 流水线装配
// =============================================================================

// initPipeline 装配从上传到挂载的整条流水线
func (s *Server) initPipeline() error {
	if err := os.MkdirAll(s.cfg.Pipeline.ScratchRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch root: %w", err)
	}

	// 指标收集器
	s.metricsCollector = metrics.NewCollector("meshusd", s.logger)

	// 注册表，大小变化同步到 gauge
	s.registry = registry.New(s.logger)
	s.registry.OnSizeChange(s.metricsCollector.SetRegistrySize)

	// 事件 hub
	s.hub = events.NewHub(s.logger)

	// 进程内实时场景
	if s.cfg.Scene.Enabled {
		scene, err := usd.NewLiveContext(s.cfg.Scene.WorldPath, s.logger)
		if err != nil {
			return fmt.Errorf("failed to create live scene: %w", err)
		}
		s.scene = scene
	}

	// 挂载引擎
	attachCfg := attach.Config{
		ReadyTimeout: s.cfg.Attach.ReadyTimeout,
		PollInterval: s.cfg.Attach.PollInterval,
		AssetRoot:    s.cfg.Attach.AssetRoot,
	}
	var sceneCtx usd.Context
	if s.scene != nil {
		sceneCtx = s.scene
	}
	s.engine = attach.NewEngine(sceneCtx, attachCfg, s.logger,
		attach.WithEventSink(s.hub),
		attach.WithRecorder(s.metricsCollector),
		attach.WithSceneManager(attach.ResolveSceneManager(nil)),
	)

	// 校验器、构建器、处理器
	validator := archive.NewValidator(s.cfg.Pipeline.ScratchRoot, s.logger)
	docBuilder := builder.New(s.cfg.Pipeline.ScratchRoot, s.cfg.Pipeline.DocExt,
		s.cfg.Pipeline.GenerateNormals, s.logger)
	s.processor = pipeline.New(validator, docBuilder, s.engine,
		s.registry, s.hub, s.metricsCollector, s.logger)

	// Handlers
	s.importHandler = handlers.NewImportHandler(s.processor, s.registry,
		s.cfg.Pipeline.ScratchRoot, s.cfg.Server.MaxUploadBytes, s.logger)
	s.assetHandler = handlers.NewAssetHandler(s.registry, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.registry, s.cfg.Pipeline.ScratchRoot, s.logger)
	s.eventsHandler = handlers.NewEventsHandler(s.hub, s.logger)

	s.logger.Info("Pipeline assembled",
		zap.String("scratch_root", s.cfg.Pipeline.ScratchRoot),
		zap.String("asset_root", s.cfg.Attach.AssetRoot),
		zap.Bool("scene_enabled", s.cfg.Scene.Enabled),
	)
	return nil
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 2. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)

	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动 HTTP 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查端点
	// ========================================
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/status", s.healthHandler.HandleStatus)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// ========================================
	// 导入与资产路由
	// ========================================
	mux.HandleFunc("/mesh/import", s.importHandler.HandleImport)
	mux.HandleFunc("/assets", s.assetHandler.HandleAssets)
	mux.HandleFunc("/assets/clear", s.assetHandler.HandleClear)
	mux.HandleFunc("/scene/info", s.assetHandler.HandleSceneInfo)
	mux.HandleFunc("/formats/supported", s.importHandler.HandleFormats)

	// ========================================
	// 调试与事件路由
	// ========================================
	mux.HandleFunc("/debug/analyze-zip", s.importHandler.HandleAnalyze)
	mux.HandleFunc("/debug/import-status", s.importHandler.HandleImportStatus)
	mux.HandleFunc("/ws/events", s.eventsHandler.HandleEvents)

	// 上传页面
	mux.Handle("/", web.Handler())

	// ========================================
	// 构建中间件链
	// ========================================
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel
	handler := Chain(mux,
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		TLSCertFile:     s.cfg.Server.TLSCertFile,
		TLSKeyFile:      s.cfg.Server.TLSKeyFile,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}

	// 执行清理
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}

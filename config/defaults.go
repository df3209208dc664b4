// =============================================================================
// 📦 网格导入服务默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:   DefaultServerConfig(),
		Pipeline: DefaultPipelineConfig(),
		Attach:   DefaultAttachConfig(),
		Scene:    DefaultSceneConfig(),
		Log:      DefaultLogConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:           49101,
		MetricsPort:        49102,
		ReadTimeout:        60 * time.Second,
		WriteTimeout:       120 * time.Second,
		ShutdownTimeout:    15 * time.Second,
		RateLimitRPS:       50,
		RateLimitBurst:     100,
		CORSAllowedOrigins: []string{"*"},
		MaxUploadBytes:     100 * 1024 * 1024,
	}
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		ScratchRoot:     filepath.Join(os.TempDir(), "roworks_mesh"),
		DocExt:          "usda",
		GenerateNormals: true,
	}
}

// DefaultAttachConfig 返回默认挂载配置
func DefaultAttachConfig() AttachConfig {
	return AttachConfig{
		ReadyTimeout: 30 * time.Second,
		PollInterval: 250 * time.Millisecond,
		AssetRoot:    "/World/RoWorks/Assets",
	}
}

// DefaultSceneConfig 返回默认场景配置
func DefaultSceneConfig() SceneConfig {
	return SceneConfig{
		Enabled:   true,
		WorldPath: "/World",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

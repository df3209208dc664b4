// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 上传流水线指标
	uploadsTotal      *prometheus.CounterVec
	uploadBytes       prometheus.Histogram
	trianglesParsed   prometheus.Counter
	buildDuration     prometheus.Histogram

	// 挂载指标
	attachAttemptsTotal *prometheus.CounterVec
	attachDuration      *prometheus.HistogramVec

	// 注册表指标
	registrySize prometheus.Gauge

	logger *zap.Logger
}

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 上传流水线指标
	c.uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Total number of mesh uploads by outcome",
		},
		[]string{"outcome"},
	)

	c.uploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_size_bytes",
			Help:      "Uploaded archive size in bytes",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		},
	)

	c.trianglesParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "triangles_parsed_total",
			Help:      "Total number of triangles parsed from geometry files",
		},
	)

	c.buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Asset document build duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// 挂载指标
	c.attachAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attach_attempts_total",
			Help:      "Attachment attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	c.attachDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attach_duration_seconds",
			Help:      "Attachment chain duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"strategy"},
	)

	// 注册表指标
	c.registrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registry_assets",
			Help:      "Current number of assets in the registry",
		},
	)

	return c
}

// =============================================================================
// 🎯 记录方法
// =============================================================================

// RecordHTTPRequest 记录一次 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusClass(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordUpload 记录一次上传结果
func (c *Collector) RecordUpload(outcome string, sizeBytes int64) {
	c.uploadsTotal.WithLabelValues(outcome).Inc()
	if sizeBytes > 0 {
		c.uploadBytes.Observe(float64(sizeBytes))
	}
}

// RecordTriangles 记录解析出的三角形数量
func (c *Collector) RecordTriangles(count int) {
	c.trianglesParsed.Add(float64(count))
}

// RecordBuildDuration 记录文档构建耗时
func (c *Collector) RecordBuildDuration(d time.Duration) {
	c.buildDuration.Observe(d.Seconds())
}

// RecordAttachAttempt 记录一次挂载尝试（实现 attach.Recorder）
func (c *Collector) RecordAttachAttempt(strategy string, succeeded bool, duration time.Duration) {
	outcome := "failure"
	if succeeded {
		outcome = "success"
	}
	c.attachAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	c.attachDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// SetRegistrySize 更新注册表大小 Gauge（实现 registry.SizeObserver）
func (c *Collector) SetRegistrySize(size int) {
	c.registrySize.Set(float64(size))
}

// statusClass 将状态码归类为 2xx/3xx/4xx/5xx
func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

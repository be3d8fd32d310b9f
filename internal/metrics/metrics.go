// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_album"

// 变体请求结果
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics 服务指标集合，nil 接收者上的调用均为空操作
type Metrics struct {
	registry *prometheus.Registry

	variantRequests   *prometheus.CounterVec
	variantGeneration *prometheus.HistogramVec
	mediaIngested     *prometheus.CounterVec
	ingestFailures    *prometheus.CounterVec
	reaperDeleted     *prometheus.CounterVec
	reaperFailures    prometheus.Counter
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New 创建指标并注册到独立的 registry
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		variantRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "variant_requests_total",
			Help:      "Variant lookups by result (hit, miss, error).",
		}, []string{"result"}),
		variantGeneration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "variant_generation_seconds",
			Help:      "Time spent generating a variant file.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "backend"}),
		mediaIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_ingested_total",
			Help:      "Media accepted by the ingestion pipeline.",
		}, []string{"mode"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_failures_total",
			Help:      "Rejected or failed uploads by error kind.",
		}, []string{"kind"}),
		reaperDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_deleted_total",
			Help:      "Objects removed by the orphan reaper.",
		}, []string{"kind"}),
		reaperFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reaper_failures_total",
			Help:      "Individual reaper deletions that failed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	all := []prometheus.Collector{
		m.variantRequests, m.variantGeneration, m.mediaIngested, m.ingestFailures,
		m.reaperDeleted, m.reaperFailures, m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range all {
		if err := m.registry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回底层 registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// VariantRequest 记录一次变体查询
func (m *Metrics) VariantRequest(result string) {
	if m == nil {
		return
	}
	m.variantRequests.WithLabelValues(result).Inc()
}

// VariantGenerated 记录变体生成耗时
func (m *Metrics) VariantGenerated(operation, backend string, d time.Duration) {
	if m == nil {
		return
	}
	m.variantGeneration.WithLabelValues(operation, backend).Observe(d.Seconds())
}

// MediaIngested 记录一次成功上传
func (m *Metrics) MediaIngested(autosave bool) {
	if m == nil {
		return
	}
	mode := "staged"
	if autosave {
		mode = "autosave"
	}
	m.mediaIngested.WithLabelValues(mode).Inc()
}

// IngestFailed 记录上传失败
func (m *Metrics) IngestFailed(kind string) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "internal"
	}
	m.ingestFailures.WithLabelValues(kind).Inc()
}

// ReaperDeleted 记录清理删除数量
func (m *Metrics) ReaperDeleted(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaperDeleted.WithLabelValues(kind).Add(float64(n))
}

// ReaperFailed 记录清理失败数量
func (m *Metrics) ReaperFailed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reaperFailures.Add(float64(n))
}

// ObserveHTTP 记录 HTTP 请求
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, fmt.Sprintf("%d", status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

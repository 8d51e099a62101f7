package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal общее количество запросов
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration продолжительность запросов
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// RidesSimulated смоделированные поездки по типу неисправности
	RidesSimulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rides_simulated_total",
			Help: "Total number of simulated rides",
		},
		[]string{"fault_type", "asset_id"},
	)

	// GenerationLatency время генерации одной трассы
	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ride_generation_seconds",
			Help:    "Time to synthesize one ride trace",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1},
		},
		[]string{"fault_type"},
	)

	// DatasetRows строки, записанные в наборы данных
	DatasetRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_rows_total",
			Help: "Total number of labeled rows written to datasets",
		},
	)

	// AnomaliesDetected обнаруженные аномалии
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anomalies_detected_total",
			Help: "Total number of anomalies detected",
		},
		[]string{"type", "asset_id"},
	)

	// AnalysisLatency задержка анализа
	AnalysisLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_latency_seconds",
			Help:    "Analysis processing latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// CurrentZScore текущий z-score (gauge)
	CurrentZScore = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "current_zscore",
			Help: "Current z-score for assets",
		},
		[]string{"asset_id"},
	)

	// RollingAverage текущее скользящее среднее
	RollingAverage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rolling_average",
			Help: "Current rolling average of ride statistics",
		},
		[]string{"asset_id", "metric_type"},
	)

	// ActiveAssets объекты с открытым окном анализа
	ActiveAssets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_assets",
			Help: "Number of assets tracked by the analyzer",
		},
	)

	// QueueSize размер очереди обработки
	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "processing_queue_size",
			Help: "Current size of the processing queue",
		},
	)

	// RedisOperations операции с Redis
	RedisOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Total number of Redis operations",
		},
		[]string{"operation", "status"},
	)

	// StoreOperations операции с архивом поездок
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_operations_total",
			Help: "Total number of ride archive operations",
		},
		[]string{"operation", "status"},
	)

	// Exports выгрузки наборов данных в S3
	Exports = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_exports_total",
			Help: "Total number of dataset uploads",
		},
		[]string{"status"},
	)

	// CacheHitRate коэффициент попаданий в кэш
	CacheHitRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Cache hit rate",
		},
		[]string{"cache_type"},
	)
)

// Status метка результата операции
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

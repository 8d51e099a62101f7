package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"bearing-fault-sim/internal/analytics"
	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/metrics"
	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/simulator"
	"bearing-fault-sim/internal/tracing"
)

// DefaultAssetID объект по умолчанию, если запрос его не указал
const DefaultAssetID = "asset-1"

// maxActiveAlerts размер журнала активных оповещений
const maxActiveAlerts = 10

var (
	// ErrNoExporter выгрузка не настроена
	ErrNoExporter = errors.New("dataset export is not configured")
	// ErrAlertNotFound оповещения нет среди активных
	ErrAlertNotFound = errors.New("alert not found")
)

// RideCache кэш сводок поездок и аномалий
type RideCache interface {
	StoreRide(ctx context.Context, s models.RideSummary) error
	StoreAnomaly(ctx context.Context, a models.Alert) error
	GetRecentAnomalies(ctx context.Context, assetID string, limit int) ([]models.Alert, error)
	Ping(ctx context.Context) error
}

// Archive долговременное хранилище сгенерированных поездок
type Archive interface {
	PutRides(rides []models.RideSample) error
	Count() (int, error)
}

// Exporter выгрузка набора данных во внешнее хранилище
type Exporter interface {
	ExportRides(ctx context.Context, name string, rides []models.RideSample) (string, error)
}

// Options необязательные зависимости монитора, nil отключает соответствующую функцию
type Options struct {
	Cache    RideCache
	Archive  Archive
	Exporter Exporter
	Log      *logger.Logger
}

// Monitor сервис моделирования поездок.
// Генератор однопоточный, доступ к нему сериализуется mu.
type Monitor struct {
	mu  sync.Mutex
	sim *simulator.RideSimulator

	analyzer *analytics.Analyzer
	cache    RideCache
	archive  Archive
	exporter Exporter
	log      *logger.Logger
	tracer   trace.Tracer

	alerts      alertBook
	baseline    BaselineReport
	sampleRate  float64
	baselineLen int
}

// RideReport ответ на моделирование поездки
type RideReport struct {
	Success          bool                    `json:"success"`
	RideID           int64                   `json:"ride_id"`
	AssetID          string                  `json:"asset_id"`
	ActualFaultType  models.FaultLabel       `json:"actual_fault_type"`
	Severity         float64                 `json:"severity"`
	Duration         float64                 `json:"duration"`
	MaxGForce        float64                 `json:"max_gforce"`
	RMSAcceleration  float64                 `json:"rms_acceleration"`
	PeakEvents       int                     `json:"peak_events"`
	IsActuallyFaulty bool                    `json:"is_actually_faulty"`
	ChartData        analytics.ChartData     `json:"chart_data"`
	FrequencyData    []models.FrequencyPoint `json:"frequency_data"`
	FaultFrequencies []float64               `json:"fault_frequencies"`
	Timestamp        time.Time               `json:"timestamp"`
}

// BaselineReport графики исходной записи для сравнения
type BaselineReport struct {
	Success       bool                    `json:"success"`
	ChartData     analytics.ChartData     `json:"chart_data"`
	FrequencyData []models.FrequencyPoint `json:"frequency_data"`
	FaultType     models.FaultLabel       `json:"fault_type"`
}

// StatusReport состояние симулятора
type StatusReport struct {
	SimulatorReady   bool                     `json:"simulator_ready"`
	TotalRides       int64                    `json:"total_rides"`
	FaultTypes       []models.FaultLabel      `json:"fault_types"`
	FaultFrequencies models.FaultFrequencies  `json:"fault_frequencies"`
	Bearing          models.BearingParameters `json:"bearing"`
	SampleRate       float64                  `json:"sample_rate"`
	BaselineSamples  int                      `json:"baseline_samples"`
	ArchivedRides    int                      `json:"archived_rides"`
	CacheConnected   bool                     `json:"cache_connected"`
	ExportEnabled    bool                     `json:"export_enabled"`
}

// DatasetResult итог генерации набора данных
type DatasetResult struct {
	Success         bool   `json:"success"`
	Rides           int    `json:"rides"`
	Rows            int    `json:"rows"`
	SamplesPerClass int    `json:"samples_per_class"`
	Archived        bool   `json:"archived"`
	URI             string `json:"uri,omitempty"`

	Samples []models.RideSample `json:"-"`
}

// New создает монитор. Анализатор запускает и останавливает вызывающая сторона.
func New(sim *simulator.RideSimulator, analyzer *analytics.Analyzer, opts Options) *Monitor {
	log := opts.Log
	if log == nil {
		log = logger.New("info")
	}
	m := &Monitor{
		sim:      sim,
		analyzer: analyzer,
		cache:    opts.Cache,
		archive:  opts.Archive,
		exporter: opts.Exporter,
		log:      log,
		tracer:   tracing.Tracer(),
		alerts:   alertBook{max: maxActiveAlerts},
	}
	m.baseline = m.buildBaseline()
	return m
}

func (m *Monitor) buildBaseline() BaselineReport {
	base := m.sim.Generator().Baseline()
	m.sampleRate = base.SampleRate()
	m.baselineLen = base.Len()
	freq, err := spectrum(base)
	if err != nil {
		m.log.Warn().Err(err).Msg("baseline spectrum unavailable")
	}
	return BaselineReport{
		Success:       true,
		ChartData:     analytics.Chart(base, analytics.ChartStride),
		FrequencyData: freq,
		FaultType:     models.Normal,
	}
}

// spectrum спектр модуля ускорения в дБ до MaxDisplayHz
func spectrum(tr models.VibrationTrace) ([]models.FrequencyPoint, error) {
	psd, err := analytics.Welch(tr.Magnitude(), tr.SampleRate(), analytics.DefaultSegment)
	if err != nil {
		return []models.FrequencyPoint{}, err
	}
	return psd.FrequencyData(analytics.MaxDisplayHz), nil
}

// RunRide моделирует одну поездку объекта. force != nil задает тип неисправности.
func (m *Monitor) RunRide(ctx context.Context, assetID string, force *models.FaultLabel) (RideReport, error) {
	if assetID == "" {
		assetID = DefaultAssetID
	}
	ctx, span := m.tracer.Start(ctx, "monitor.RunRide")
	defer span.End()

	start := time.Now()
	m.mu.Lock()
	res, err := m.sim.RunRideCycle(force)
	freqs := m.sim.Generator().Frequencies()
	m.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return RideReport{}, fmt.Errorf("simulate ride: %w", err)
	}
	label := res.FaultType.String()
	metrics.GenerationLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	metrics.RidesSimulated.WithLabelValues(label, assetID).Inc()
	span.SetAttributes(
		attribute.String("asset_id", assetID),
		attribute.Int64("ride_id", res.RideID),
		attribute.String("fault_type", label),
	)

	summary := analytics.Summarize(res.RideSample, assetID, res.StartedAt)

	freqData, err := spectrum(res.Trace)
	if err != nil {
		m.log.Warn().Err(err).Int64("ride_id", res.RideID).Msg("frequency analysis failed")
	}

	if m.cache != nil {
		err := m.cache.StoreRide(ctx, summary)
		metrics.RedisOperations.WithLabelValues("store_ride", metrics.Status(err)).Inc()
		if err != nil {
			m.log.Error().Err(err).Int64("ride_id", res.RideID).Msg("store ride summary")
		}
	}

	if m.analyzer != nil && !m.analyzer.AddRide(analytics.RideDataFromSummary(summary)) {
		m.log.Warn().Str("asset_id", assetID).Msg("analyzer queue full, ride skipped")
	}

	ff := simulator.FaultInfo(freqs)[res.FaultType].FaultFrequencies
	if ff == nil {
		ff = []float64{}
	}

	m.log.Debug().
		Str("asset_id", assetID).
		Int64("ride_id", res.RideID).
		Str("fault_type", label).
		Float64("severity", res.Severity).
		Float64("rms", summary.RMSAcceleration).
		Msg("ride simulated")

	return RideReport{
		Success:          true,
		RideID:           summary.RideID,
		AssetID:          assetID,
		ActualFaultType:  summary.FaultType,
		Severity:         summary.Severity,
		Duration:         summary.Duration,
		MaxGForce:        summary.MaxAcceleration,
		RMSAcceleration:  summary.RMSAcceleration,
		PeakEvents:       summary.PeakEvents,
		IsActuallyFaulty: summary.IsFaulty,
		ChartData:        analytics.Chart(res.Trace, analytics.ChartStride),
		FrequencyData:    freqData,
		FaultFrequencies: ff,
		Timestamp:        summary.SimulatedAt,
	}, nil
}

// GenerateDataset генерирует perClass поездок каждого типа, сохраняет их в архив
// и, если задано имя, выгружает CSV.
func (m *Monitor) GenerateDataset(ctx context.Context, perClass int, exportName string) (DatasetResult, error) {
	ctx, span := m.tracer.Start(ctx, "monitor.GenerateDataset")
	defer span.End()
	span.SetAttributes(attribute.Int("samples_per_class", perClass))

	if exportName != "" && m.exporter == nil {
		return DatasetResult{}, ErrNoExporter
	}

	m.mu.Lock()
	rides, err := m.sim.Generator().GenerateFaultDataset(perClass)
	m.mu.Unlock()
	if err != nil {
		span.RecordError(err)
		return DatasetResult{}, err
	}

	rows := 0
	for _, r := range rides {
		rows += r.Trace.Len()
		metrics.RidesSimulated.WithLabelValues(r.FaultType.String(), "dataset").Inc()
	}
	metrics.DatasetRows.Add(float64(rows))
	res := DatasetResult{
		Success:         true,
		Rides:           len(rides),
		Rows:            rows,
		SamplesPerClass: perClass,
		Samples:         rides,
	}

	if m.archive != nil {
		err := m.archive.PutRides(rides)
		metrics.StoreOperations.WithLabelValues("put_rides", metrics.Status(err)).Inc()
		if err != nil {
			return DatasetResult{}, fmt.Errorf("archive dataset: %w", err)
		}
		res.Archived = true
	}

	if exportName != "" {
		uri, err := m.exporter.ExportRides(ctx, exportName, rides)
		metrics.Exports.WithLabelValues(metrics.Status(err)).Inc()
		if err != nil {
			return DatasetResult{}, err
		}
		res.URI = uri
	}

	m.log.Info().
		Int("rides", res.Rides).
		Int("rows", rows).
		Bool("archived", res.Archived).
		Str("uri", res.URI).
		Msg("dataset generated")
	return res, nil
}

// Status текущее состояние симулятора
func (m *Monitor) Status(ctx context.Context) StatusReport {
	m.mu.Lock()
	gen := m.sim.Generator()
	st := StatusReport{
		SimulatorReady:   true,
		TotalRides:       gen.RideCount(),
		FaultTypes:       models.AllFaultLabels,
		FaultFrequencies: gen.Frequencies(),
		Bearing:          gen.Params(),
	}
	m.mu.Unlock()

	st.SampleRate = m.sampleRate
	st.BaselineSamples = m.baselineLen
	st.ExportEnabled = m.exporter != nil
	if m.archive != nil {
		if n, err := m.archive.Count(); err == nil {
			st.ArchivedRides = n
		}
	}
	if m.cache != nil {
		st.CacheConnected = m.cache.Ping(ctx) == nil
	}
	return st
}

// Baseline графики исходной записи
func (m *Monitor) Baseline() BaselineReport { return m.baseline }

// FaultInfo справочник неисправностей с частотами текущего подшипника
func (m *Monitor) FaultInfo() map[models.FaultLabel]simulator.FaultDescription {
	return simulator.FaultInfo(m.sim.Generator().Frequencies())
}

// Alerts активные оповещения. Для конкретного объекта при наличии кэша
// читается история из Redis.
func (m *Monitor) Alerts(ctx context.Context, assetID string) ([]models.Alert, error) {
	if assetID != "" && m.cache != nil {
		alerts, err := m.cache.GetRecentAnomalies(ctx, assetID, maxActiveAlerts)
		metrics.RedisOperations.WithLabelValues("get_anomalies", metrics.Status(err)).Inc()
		if err != nil {
			return nil, err
		}
		if alerts == nil {
			alerts = []models.Alert{}
		}
		return alerts, nil
	}
	return m.alerts.list(assetID), nil
}

// AcknowledgeAlert отмечает активное оповещение как подтвержденное
func (m *Monitor) AcknowledgeAlert(ctx context.Context, id int64) error {
	alert, ok := m.alerts.acknowledge(id)
	if !ok {
		return ErrAlertNotFound
	}
	if m.cache != nil {
		err := m.cache.StoreAnomaly(ctx, alert)
		metrics.RedisOperations.WithLabelValues("store_anomaly", metrics.Status(err)).Inc()
		if err != nil {
			m.log.Error().Err(err).Int64("alert_id", id).Msg("store acknowledged alert")
		}
	}
	m.log.Info().Int64("alert_id", id).Str("asset_id", alert.AssetID).Msg("alert acknowledged")
	return nil
}

// ProcessResults обрабатывает результаты анализатора до закрытия канала
func (m *Monitor) ProcessResults(ctx context.Context) {
	if m.analyzer == nil {
		return
	}
	for result := range m.analyzer.GetResultsChan() {
		m.HandleResult(ctx, result)
	}
}

// HandleResult обновляет метрики и регистрирует аномалию
func (m *Monitor) HandleResult(ctx context.Context, result analytics.AnalysisResult) {
	start := time.Now()

	metrics.RollingAverage.WithLabelValues(result.AssetID, "rms").Set(result.RollingAvgRMS)
	metrics.RollingAverage.WithLabelValues(result.AssetID, "max").Set(result.RollingAvgMax)
	metrics.CurrentZScore.WithLabelValues(result.AssetID).Set(result.AnomalyScore)

	if result.IsAnomaly {
		metrics.AnomaliesDetected.WithLabelValues(result.AnomalyType, result.AssetID).Inc()

		alert := m.alerts.add(result.Alert())

		if m.cache != nil {
			err := m.cache.StoreAnomaly(ctx, alert)
			metrics.RedisOperations.WithLabelValues("store_anomaly", metrics.Status(err)).Inc()
			if err != nil {
				m.log.Error().Err(err).Str("asset_id", alert.AssetID).Msg("store anomaly")
			}
		}
		m.log.Warn().
			Str("asset_id", result.AssetID).
			Int64("ride_id", result.RideID).
			Str("type", result.AnomalyType).
			Float64("score", result.AnomalyScore).
			Float64("rolling_rms", result.RollingAvgRMS).
			Msg("anomaly detected")
	}

	metrics.AnalysisLatency.Observe(time.Since(start).Seconds())
}

// UpdateGauges переносит состояние анализатора в метрики
func (m *Monitor) UpdateGauges() {
	if m.analyzer == nil {
		return
	}
	stats := m.analyzer.GetStats()
	if n, ok := stats["assets_tracked"].(int); ok {
		metrics.ActiveAssets.Set(float64(n))
	}
	if n, ok := stats["queue_size"].(int); ok {
		metrics.QueueSize.Set(float64(n))
	}
}

// AnalyzerStats статистика анализатора для /stats
func (m *Monitor) AnalyzerStats() map[string]interface{} {
	if m.analyzer == nil {
		return map[string]interface{}{}
	}
	return m.analyzer.GetStats()
}

// alertBook ограниченный журнал оповещений.
// Новое оповещение вытесняет прежнее того же объекта и типа.
type alertBook struct {
	mu    sync.Mutex
	items []models.Alert
	max   int
	seq   int64
}

// add присваивает оповещению номер и возвращает сохраненную запись
func (b *alertBook) add(a models.Alert) models.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	a.ID = b.seq
	a.Acknowledged = false
	kept := b.items[:0]
	for _, it := range b.items {
		if it.AssetID == a.AssetID && it.AnomalyType == a.AnomalyType {
			continue
		}
		kept = append(kept, it)
	}
	b.items = append(kept, a)
	if len(b.items) > b.max {
		b.items = b.items[len(b.items)-b.max:]
	}
	return a
}

func (b *alertBook) acknowledge(id int64) (models.Alert, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.items {
		if b.items[i].ID == id {
			b.items[i].Acknowledged = true
			return b.items[i], true
		}
	}
	return models.Alert{}, false
}

// list новые первыми; пустой assetID означает все объекты
func (b *alertBook) list(assetID string) []models.Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []models.Alert{}
	for i := len(b.items) - 1; i >= 0; i-- {
		if assetID == "" || b.items[i].AssetID == assetID {
			out = append(out, b.items[i])
		}
	}
	return out
}

package analytics

import (
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"bearing-fault-sim/internal/models"
)

// Типы аномалий
const (
	AnomalyRMSSpike  = "RMS_SPIKE"
	AnomalyRMSDrop   = "RMS_DROP"
	AnomalyPeakSpike = "PEAK_SPIKE"
	AnomalyPeakDrop  = "PEAK_DROP"
	AnomalyMultiple  = "MULTIPLE_ANOMALY"
)

// RideWindow хранит скользящее окно поездок объекта
type RideWindow struct {
	rmsValues  []float64
	peakValues []float64
	timestamps []time.Time
	mu         sync.Mutex
	maxSize    int
}

// Analyzer анализатор поездок с rolling average и z-score по объектам
type Analyzer struct {
	windows          map[string]*RideWindow
	mu               sync.RWMutex
	windowSize       int
	anomalyThreshold float64
	ridesChan        chan RideData
	resultsChan      chan AnalysisResult
	stopChan         chan struct{}
	wg               sync.WaitGroup
	dropped          uint64
}

// RideData данные поездки для анализа
type RideData struct {
	AssetID   string
	RideID    int64
	FaultType models.FaultLabel
	Timestamp time.Time
	RMS       float64
	Peak      float64
}

// RideDataFromSummary преобразует сводку поездки в данные анализа
func RideDataFromSummary(s models.RideSummary) RideData {
	return RideData{
		AssetID:   s.AssetID,
		RideID:    s.RideID,
		FaultType: s.FaultType,
		Timestamp: s.SimulatedAt,
		RMS:       s.RMSAcceleration,
		Peak:      s.MaxAcceleration,
	}
}

// AnalysisResult результат анализа
type AnalysisResult struct {
	AssetID       string
	RideID        int64
	FaultType     models.FaultLabel
	Timestamp     time.Time
	RollingAvgRMS float64
	RollingAvgMax float64
	IsAnomaly     bool
	AnomalyScore  float64
	AnomalyType   string
	StandardDev   float64
}

// Alert преобразует результат в оповещение
func (r AnalysisResult) Alert() models.Alert {
	return models.Alert{
		AssetID:      r.AssetID,
		RideID:       r.RideID,
		FaultType:    r.FaultType,
		AnomalyType:  r.AnomalyType,
		AnomalyScore: r.AnomalyScore,
		Timestamp:    r.Timestamp,
	}
}

// NewAnalyzer создает новый анализатор
func NewAnalyzer(windowSize int, anomalyThreshold float64) *Analyzer {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &Analyzer{
		windows:          make(map[string]*RideWindow),
		windowSize:       windowSize,
		anomalyThreshold: anomalyThreshold,
		ridesChan:        make(chan RideData, 1000),
		resultsChan:      make(chan AnalysisResult, 1000),
		stopChan:         make(chan struct{}),
	}
}

// Start запускает обработчики в goroutines
func (a *Analyzer) Start(workers int) {
	for i := 0; i < workers; i++ {
		a.wg.Add(1)
		go a.processRides()
	}
}

// Stop останавливает анализатор
func (a *Analyzer) Stop() {
	close(a.stopChan)
	a.wg.Wait()
	close(a.resultsChan)
}

// AddRide добавляет поездку для анализа. Возвращает false, если очередь полна.
func (a *Analyzer) AddRide(data RideData) bool {
	select {
	case a.ridesChan <- data:
		return true
	default:
		a.mu.Lock()
		a.dropped++
		a.mu.Unlock()
		return false
	}
}

// GetResultsChan возвращает канал с результатами
func (a *Analyzer) GetResultsChan() <-chan AnalysisResult {
	return a.resultsChan
}

// processRides обрабатывает поездки из канала
func (a *Analyzer) processRides() {
	defer a.wg.Done()

	for {
		select {
		case <-a.stopChan:
			return
		case data := <-a.ridesChan:
			result := a.Analyze(data)
			select {
			case a.resultsChan <- result:
			case <-a.stopChan:
				return
			}
		}
	}
}

// Analyze синхронно добавляет поездку в окно объекта и вычисляет z-score
func (a *Analyzer) Analyze(data RideData) AnalysisResult {
	a.mu.Lock()
	window, exists := a.windows[data.AssetID]
	if !exists {
		window = &RideWindow{
			rmsValues:  make([]float64, 0, a.windowSize),
			peakValues: make([]float64, 0, a.windowSize),
			timestamps: make([]time.Time, 0, a.windowSize),
			maxSize:    a.windowSize,
		}
		a.windows[data.AssetID] = window
	}
	a.mu.Unlock()

	window.mu.Lock()
	defer window.mu.Unlock()

	// Добавляем новые значения
	window.rmsValues = append(window.rmsValues, data.RMS)
	window.peakValues = append(window.peakValues, data.Peak)
	window.timestamps = append(window.timestamps, data.Timestamp)

	// Ограничиваем размер окна
	if len(window.rmsValues) > window.maxSize {
		window.rmsValues = window.rmsValues[1:]
		window.peakValues = window.peakValues[1:]
		window.timestamps = window.timestamps[1:]
	}

	avgRMS, stdRMS := stat.PopMeanStdDev(window.rmsValues, nil)
	avgMax, stdMax := stat.PopMeanStdDev(window.peakValues, nil)

	var zRMS, zMax float64
	if stdRMS > 0 {
		zRMS = (data.RMS - avgRMS) / stdRMS
	}
	if stdMax > 0 {
		zMax = (data.Peak - avgMax) / stdMax
	}

	isAnomaly := false
	anomalyType := ""

	if math.Abs(zRMS) > a.anomalyThreshold {
		isAnomaly = true
		if zRMS > 0 {
			anomalyType = AnomalyRMSSpike
		} else {
			anomalyType = AnomalyRMSDrop
		}
	}

	if math.Abs(zMax) > a.anomalyThreshold {
		isAnomaly = true
		if anomalyType != "" {
			anomalyType = AnomalyMultiple
		} else if zMax > 0 {
			anomalyType = AnomalyPeakSpike
		} else {
			anomalyType = AnomalyPeakDrop
		}
	}

	return AnalysisResult{
		AssetID:       data.AssetID,
		RideID:        data.RideID,
		FaultType:     data.FaultType,
		Timestamp:     data.Timestamp,
		RollingAvgRMS: avgRMS,
		RollingAvgMax: avgMax,
		IsAnomaly:     isAnomaly,
		AnomalyScore:  math.Max(math.Abs(zRMS), math.Abs(zMax)),
		AnomalyType:   anomalyType,
		StandardDev:   math.Max(stdRMS, stdMax),
	}
}

// span промежуток времени между первой и последней поездкой окна
func (w *RideWindow) span() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.timestamps) < 2 {
		return 0
	}
	return w.timestamps[len(w.timestamps)-1].Sub(w.timestamps[0])
}

// GetStats возвращает статистику анализатора
func (a *Analyzer) GetStats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()

	spans := make(map[string]float64, len(a.windows))
	for asset, w := range a.windows {
		spans[asset] = w.span().Seconds()
	}

	return map[string]interface{}{
		"assets_tracked":      len(a.windows),
		"window_span_seconds": spans,
		"window_size":         a.windowSize,
		"threshold":           a.anomalyThreshold,
		"queue_size":          len(a.ridesChan),
		"dropped":             a.dropped,
	}
}

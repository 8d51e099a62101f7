package analytics

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bearing-fault-sim/internal/models"
)

// peakQuantile порог пиковых событий по модулю ускорения
const peakQuantile = 0.95

// Summarize вычисляет сводную статистику поездки
func Summarize(ride models.RideSample, assetID string, at time.Time) models.RideSummary {
	mag := ride.Trace.Magnitude()
	s := models.RideSummary{
		RideID:      ride.RideID,
		AssetID:     assetID,
		FaultType:   ride.FaultType,
		Severity:    ride.Severity,
		Duration:    ride.Trace.Duration(),
		IsFaulty:    ride.FaultType.IsFaulty(),
		SimulatedAt: at,
	}
	if len(mag) == 0 {
		return s
	}
	s.MaxAcceleration = floats.Max(mag)
	s.RMSAcceleration = rms(mag)
	s.PeakEvents = countAbove(mag, quantile(mag, peakQuantile))
	return s
}

// Features признаки трассы для детекторов аномалий
type Features struct {
	MeanMagnitude float64 `json:"mean_magnitude"`
	StdMagnitude  float64 `json:"std_magnitude"`
	MaxMagnitude  float64 `json:"max_magnitude"`
	MinMagnitude  float64 `json:"min_magnitude"`
	MeanX         float64 `json:"mean_x"`
	StdX          float64 `json:"std_x"`
	MeanY         float64 `json:"mean_y"`
	StdY          float64 `json:"std_y"`
	MeanZ         float64 `json:"mean_z"`
	StdZ          float64 `json:"std_z"`
	PeakCount     int     `json:"peak_count"`
	SmoothnessX   float64 `json:"smoothness_x"`
	SmoothnessY   float64 `json:"smoothness_y"`
	SmoothnessZ   float64 `json:"smoothness_z"`
}

// Vector признаки в фиксированном порядке
func (f Features) Vector() []float64 {
	return []float64{
		f.MeanMagnitude, f.StdMagnitude, f.MaxMagnitude, f.MinMagnitude,
		f.MeanX, f.StdX, f.MeanY, f.StdY, f.MeanZ, f.StdZ,
		float64(f.PeakCount),
		f.SmoothnessX, f.SmoothnessY, f.SmoothnessZ,
	}
}

// ExtractFeatures вычисляет признаки трассы
func ExtractFeatures(tr models.VibrationTrace) Features {
	if tr.Len() == 0 {
		return Features{}
	}
	mag := tr.Magnitude()
	x, y, z := axes(tr)

	return Features{
		MeanMagnitude: stat.Mean(mag, nil),
		StdMagnitude:  stdDev(mag),
		MaxMagnitude:  floats.Max(mag),
		MinMagnitude:  floats.Min(mag),
		MeanX:         stat.Mean(x, nil),
		StdX:          stdDev(x),
		MeanY:         stat.Mean(y, nil),
		StdY:          stdDev(y),
		MeanZ:         stat.Mean(z, nil),
		StdZ:          stdDev(z),
		PeakCount:     countAbove(mag, quantile(mag, peakQuantile)),
		SmoothnessX:   smoothness(x),
		SmoothnessY:   smoothness(y),
		SmoothnessZ:   smoothness(z),
	}
}

func axes(tr models.VibrationTrace) (x, y, z []float64) {
	n := tr.Len()
	x, y, z = make([]float64, n), make([]float64, n), make([]float64, n)
	for i, s := range tr.Samples {
		x[i], y[i], z[i] = s.AccelX, s.AccelY, s.AccelZ
	}
	return x, y, z
}

func rms(v []float64) float64 {
	return math.Sqrt(floats.Dot(v, v) / float64(len(v)))
}

// stdDev выборочное стандартное отклонение (0 для одной точки)
func stdDev(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	return stat.StdDev(v, nil)
}

// smoothness среднее абсолютное приращение
func smoothness(v []float64) float64 {
	if len(v) < 2 {
		return 0
	}
	sum := 0.0
	for i := 1; i < len(v); i++ {
		sum += math.Abs(v[i] - v[i-1])
	}
	return sum / float64(len(v)-1)
}

// quantile с линейной интерполяцией между соседними порядковыми
// статистиками по позиции (n-1)*p
func quantile(v []float64, p float64) float64 {
	if len(v) == 0 {
		return math.NaN()
	}
	sorted := make([]float64, len(v))
	copy(sorted, v)
	sort.Float64s(sorted)
	h := float64(len(sorted)-1) * p
	lo := int(math.Floor(h))
	if lo >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

func countAbove(v []float64, thr float64) int {
	n := 0
	for _, x := range v {
		if x > thr {
			n++
		}
	}
	return n
}

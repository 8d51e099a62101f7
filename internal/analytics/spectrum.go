package analytics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"bearing-fault-sim/internal/models"
)

const (
	// DefaultSegment длина сегмента Welch
	DefaultSegment = 256
	// MaxDisplayHz верхняя граница отображаемого спектра
	MaxDisplayHz = 25.0
	// ChartStride шаг прореживания временного графика
	ChartStride = 120

	minPower = 1e-12
)

// ErrShortSignal сигнал слишком короткий для спектрального анализа
var ErrShortSignal = errors.New("signal too short for spectral analysis")

// PSD односторонняя спектральная плотность мощности
type PSD struct {
	Freqs []float64
	Power []float64
}

// Welch оценивает PSD методом Уэлча: окно Ханна, перекрытие 50%,
// вычитание среднего в сегменте, нормировка на плотность.
// Если сигнал короче nperseg, длина сегмента уменьшается до длины сигнала.
func Welch(x []float64, fs float64, nperseg int) (PSD, error) {
	n := len(x)
	if nperseg <= 0 || nperseg > n {
		nperseg = n
	}
	if nperseg < 2 || fs <= 0 {
		return PSD{}, ErrShortSignal
	}
	step := nperseg - nperseg/2

	win := hann(nperseg)
	wss := 0.0
	for _, w := range win {
		wss += w * w
	}
	scale := 1 / (fs * wss)

	fft := fourier.NewFFT(nperseg)
	nf := nperseg/2 + 1
	power := make([]float64, nf)
	seg := make([]float64, nperseg)
	coeffs := make([]complex128, nf)

	segments := 0
	for start := 0; start+nperseg <= n; start += step {
		chunk := x[start : start+nperseg]
		mean := stat.Mean(chunk, nil)
		for i := range seg {
			seg[i] = (chunk[i] - mean) * win[i]
		}
		coeffs = fft.Coefficients(coeffs, seg)
		for k, c := range coeffs {
			power[k] += (real(c)*real(c) + imag(c)*imag(c)) * scale
		}
		segments++
	}

	freqs := make([]float64, nf)
	for k := range power {
		power[k] /= float64(segments)
		// удваиваем все бины кроме DC и Найквиста
		if k != 0 && !(nperseg%2 == 0 && k == nf-1) {
			power[k] *= 2
		}
		freqs[k] = float64(k) * fs / float64(nperseg)
	}
	return PSD{Freqs: freqs, Power: power}, nil
}

// Peak частота и мощность максимального бина в [minHz, maxHz]
func (p PSD) Peak(minHz, maxHz float64) (freq, power float64) {
	power = -1
	for i, f := range p.Freqs {
		if f < minHz || f > maxHz {
			continue
		}
		if p.Power[i] > power {
			freq, power = f, p.Power[i]
		}
	}
	return freq, power
}

// PowerAt мощность ближайшего к f бина
func (p PSD) PowerAt(f float64) float64 {
	best, bestDist := 0, math.Inf(1)
	for i, fr := range p.Freqs {
		if d := math.Abs(fr - f); d < bestDist {
			best, bestDist = i, d
		}
	}
	if len(p.Power) == 0 {
		return 0
	}
	return p.Power[best]
}

// FrequencyData точки спектра в дБ до maxHz
func (p PSD) FrequencyData(maxHz float64) []models.FrequencyPoint {
	out := make([]models.FrequencyPoint, 0, len(p.Freqs))
	for i, f := range p.Freqs {
		if f > maxHz {
			break
		}
		out = append(out, models.FrequencyPoint{
			Frequency: f,
			Power:     10 * math.Log10(math.Max(p.Power[i], minPower)),
		})
	}
	return out
}

// ToneAmplitude амплитуда гармоники частоты f в сигнале x(t) после вычитания среднего.
// Точна, когда сигнал покрывает целое число периодов.
func ToneAmplitude(x, t []float64, f float64) float64 {
	if len(x) == 0 || len(x) != len(t) {
		return 0
	}
	mean := stat.Mean(x, nil)
	var a, b float64
	for i, v := range x {
		w := 2 * math.Pi * f * t[i]
		a += (v - mean) * math.Cos(w)
		b += (v - mean) * math.Sin(w)
	}
	n := float64(len(x))
	return 2 / n * math.Hypot(a, b)
}

// ModulationDepth глубина модуляции модуля ускорения на частоте f
// (амплитуда гармоники огибающей относительно среднего уровня)
func ModulationDepth(tr models.VibrationTrace, f float64) float64 {
	mag := tr.Magnitude()
	if len(mag) == 0 {
		return 0
	}
	mean := stat.Mean(mag, nil)
	if mean == 0 {
		return 0
	}
	return ToneAmplitude(mag, tr.Timestamps(), f) / mean
}

// ChartData прореженный временной график модуля ускорения
type ChartData struct {
	Timestamps []float64 `json:"timestamps"`
	Magnitude  []float64 `json:"magnitude"`
}

// Chart строит график, беря каждую stride-ю точку
func Chart(tr models.VibrationTrace, stride int) ChartData {
	if stride <= 0 {
		stride = 1
	}
	mag := tr.Magnitude()
	cd := ChartData{Timestamps: []float64{}, Magnitude: []float64{}}
	for i := 0; i < len(mag); i += stride {
		cd.Timestamps = append(cd.Timestamps, tr.Samples[i].Timestamp)
		cd.Magnitude = append(cd.Magnitude, mag[i])
	}
	return cd
}

// hann периодическое окно Ханна
func hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

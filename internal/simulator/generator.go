package simulator

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/trace"
)

// Эвристические константы подобраны вручную и не выводятся из физической модели.
const (
	normalNoise = 0.02
	outerNoise  = 0.02
	innerNoise  = 0.03
	ballNoise   = 0.025
	cageNoise   = 0.02

	outerRatio = 0.4
	innerRatio = 0.6
	ballRatio  = 0.8
	cageRatio  = 0.4

	// частота модуляции зоны нагрузки для наружного кольца, Гц
	loadZoneFreq = 0.5
)

var (
	// ErrEmptyTrace базовая трасса не содержит измерений
	ErrEmptyTrace = trace.ErrEmptyTrace
	// ErrInvalidSeverity тяжесть вне допустимого диапазона
	ErrInvalidSeverity = errors.New("severity must be a finite non-negative number")
)

// SeverityRange диапазон тяжести для случайной выборки
type SeverityRange struct {
	Min, Max float64
}

// Стандартная тяжесть и диапазоны по меткам
var (
	DefaultSeverity = map[models.FaultLabel]float64{
		models.OuterRaceFault: 0.3,
		models.InnerRaceFault: 0.4,
		models.BallFault:      0.35,
		models.CageFault:      0.25,
	}
	DefaultSeverityRange = map[models.FaultLabel]SeverityRange{
		models.OuterRaceFault: {0.2, 0.5},
		models.InnerRaceFault: {0.3, 0.6},
		models.BallFault:      {0.2, 0.4},
		models.CageFault:      {0.1, 0.3},
	}
)

// ComputeFaultFrequencies вычисляет характерные частоты из параметров подшипника
func ComputeFaultFrequencies(p models.BearingParameters) models.FaultFrequencies {
	rot := p.ShaftSpeedRPM * float64(p.BallCount) / 60
	return models.FaultFrequencies{
		Shaft:     p.ShaftSpeedRPM / 60,
		OuterRace: rot * outerRatio,
		InnerRace: rot * innerRatio,
		Ball:      rot * ballRatio,
		Cage:      p.ShaftSpeedRPM / 60 * cageRatio,
	}
}

// Generator синтезирует вибрацию подшипника для пяти состояний.
// Счетчик поездок принадлежит экземпляру; одновременный вызов
// из нескольких горутин не поддерживается.
type Generator struct {
	baseline models.VibrationTrace
	t        []float64
	params   models.BearingParameters
	freqs    models.FaultFrequencies
	rng      *rand.Rand
	rides    int64
	idBase   int64
}

// NewGenerator создает генератор. Базовая трасса копируется.
func NewGenerator(baseline models.VibrationTrace, params models.BearingParameters, rng *rand.Rand) (*Generator, error) {
	if baseline.Len() == 0 {
		return nil, ErrEmptyTrace
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b := baseline.Clone()
	return &Generator{
		baseline: b,
		t:        b.Timestamps(),
		params:   params,
		freqs:    ComputeFaultFrequencies(params),
		rng:      rng,
	}, nil
}

// Frequencies характерные частоты, вычисленные при создании
func (g *Generator) Frequencies() models.FaultFrequencies { return g.freqs }

// Params параметры подшипника
func (g *Generator) Params() models.BearingParameters { return g.params }

// Baseline копия базовой трассы
func (g *Generator) Baseline() models.VibrationTrace { return g.baseline.Clone() }

// RideCount количество сгенерированных поездок
func (g *Generator) RideCount() int64 { return g.rides }

// StartAfter продолжает нумерацию поездок после id (например, после
// последней поездки в архиве). Счетчик поездок не меняется.
func (g *Generator) StartAfter(id int64) {
	if id > 0 {
		g.idBase = id
	}
}

// Normal исправный подшипник: независимый шум по каждой оси
func (g *Generator) Normal() models.RideSample {
	tr := g.baseline.Clone()
	for i := range tr.Samples {
		tr.Samples[i].AccelX += g.rng.NormFloat64() * normalNoise
		tr.Samples[i].AccelY += g.rng.NormFloat64() * normalNoise
		tr.Samples[i].AccelZ += g.rng.NormFloat64() * normalNoise
	}
	return g.stamp(tr, models.Normal, 0)
}

// OuterRace дефект наружного кольца: периодические удары на f_o
// с гармониками и модуляцией зоны нагрузки
func (g *Generator) OuterRace(severity float64) models.RideSample {
	f := g.freqs.OuterRace
	sig := make([]float64, len(g.t))
	for i, t := range g.t {
		s := severity * math.Sin(2*math.Pi*f*t)
		s += severity * 0.3 * math.Sin(2*math.Pi*f*2*t)
		s += severity * 0.1 * math.Sin(2*math.Pi*f*3*t)
		sig[i] = s * (1 + 0.2*math.Sin(2*math.Pi*loadZoneFreq*t))
	}
	tr := g.baseline.Clone()
	addAxes(tr, sig, 0.7, 0.5, 0.2)
	g.addSharedNoise(tr, outerNoise)
	return g.stamp(tr, models.OuterRaceFault, severity)
}

// InnerRace дефект внутреннего кольца: сильная модуляция частотой вала
func (g *Generator) InnerRace(severity float64) models.RideSample {
	f := g.freqs.InnerRace
	shaft := g.freqs.Shaft
	sig := make([]float64, len(g.t))
	for i, t := range g.t {
		m := 1 + 0.5*math.Sin(2*math.Pi*shaft*t)
		sig[i] = severity*math.Sin(2*math.Pi*f*t)*m +
			severity*0.4*math.Sin(2*math.Pi*f*2*t)*m
	}
	tr := g.baseline.Clone()
	addAxes(tr, sig, 0.8, 0.9, 0.3)
	g.addSharedNoise(tr, innerNoise)
	return g.stamp(tr, models.InnerRaceFault, severity)
}

// Ball дефект тела качения: двойной удар, модулированный частотой сепаратора
func (g *Generator) Ball(severity float64) models.RideSample {
	f := g.freqs.Ball
	cage := g.freqs.Cage
	sig := make([]float64, len(g.t))
	for i, t := range g.t {
		s := severity * (math.Sin(2*math.Pi*f*t) + 0.6*math.Sin(2*math.Pi*f*t+math.Pi/4))
		sig[i] = s * (1 + 0.3*math.Sin(2*math.Pi*cage*t))
	}
	tr := g.baseline.Clone()
	addAxes(tr, sig, 0.6, 0.7, 0.1)
	g.addSharedNoise(tr, ballNoise)
	return g.stamp(tr, models.BallFault, severity)
}

// Cage дефект сепаратора: низкочастотная модуляция существующего сигнала
// и аддитивная составляющая на f_c
func (g *Generator) Cage(severity float64) models.RideSample {
	f := g.freqs.Cage
	tr := g.baseline.Clone()
	for i := range tr.Samples {
		phase := math.Sin(2 * math.Pi * f * g.t[i])
		m := 1 + severity*phase
		c := severity * 0.5 * phase

		s := &tr.Samples[i]
		s.AccelX = s.AccelX*m + c
		s.AccelY = s.AccelY*m + c
		s.AccelZ = s.AccelZ*m + c*0.5
	}
	g.addSharedNoise(tr, cageNoise)
	return g.stamp(tr, models.CageFault, severity)
}

// Simulate генерирует поездку с заданной меткой и тяжестью.
// Для NORMAL тяжесть игнорируется.
func (g *Generator) Simulate(label models.FaultLabel, severity float64) (models.RideSample, error) {
	if label != models.Normal && (math.IsNaN(severity) || math.IsInf(severity, 0) || severity < 0) {
		return models.RideSample{}, fmt.Errorf("%w: %v", ErrInvalidSeverity, severity)
	}
	switch label {
	case models.Normal:
		return g.Normal(), nil
	case models.OuterRaceFault:
		return g.OuterRace(severity), nil
	case models.InnerRaceFault:
		return g.InnerRace(severity), nil
	case models.BallFault:
		return g.Ball(severity), nil
	case models.CageFault:
		return g.Cage(severity), nil
	}
	return models.RideSample{}, fmt.Errorf("%w: %d", models.ErrUnknownFault, int(label))
}

// SimulateDefault генерирует поездку со стандартной тяжестью метки
func (g *Generator) SimulateDefault(label models.FaultLabel) (models.RideSample, error) {
	return g.Simulate(label, DefaultSeverity[label])
}

// SimulateRandom генерирует поездку с тяжестью из стандартного диапазона метки
func (g *Generator) SimulateRandom(label models.FaultLabel) (models.RideSample, error) {
	return g.Simulate(label, g.DrawSeverity(label))
}

// DrawSeverity равномерно выбирает тяжесть из диапазона метки (0 для NORMAL)
func (g *Generator) DrawSeverity(label models.FaultLabel) float64 {
	r, ok := DefaultSeverityRange[label]
	if !ok {
		return 0
	}
	return r.Min + g.rng.Float64()*(r.Max-r.Min)
}

// GenerateFaultDataset возвращает сбалансированный набор:
// samplesPerClass поездок на каждую из пяти меток, по порядку меток
func (g *Generator) GenerateFaultDataset(samplesPerClass int) ([]models.RideSample, error) {
	if samplesPerClass < 0 {
		return nil, fmt.Errorf("samples per class must be non-negative, got %d", samplesPerClass)
	}
	out := make([]models.RideSample, 0, samplesPerClass*len(models.AllFaultLabels))
	for _, label := range models.AllFaultLabels {
		for i := 0; i < samplesPerClass; i++ {
			r, err := g.SimulateRandom(label)
			if err != nil {
				return nil, err
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func (g *Generator) stamp(tr models.VibrationTrace, label models.FaultLabel, severity float64) models.RideSample {
	g.rides++
	return models.RideSample{
		RideID:    g.idBase + g.rides,
		FaultType: label,
		Severity:  severity,
		Trace:     tr,
	}
}

// addSharedNoise добавляет один вектор шума ко всем трем осям
func (g *Generator) addSharedNoise(tr models.VibrationTrace, sigma float64) {
	for i := range tr.Samples {
		n := g.rng.NormFloat64() * sigma
		tr.Samples[i].AccelX += n
		tr.Samples[i].AccelY += n
		tr.Samples[i].AccelZ += n
	}
}

func addAxes(tr models.VibrationTrace, sig []float64, kx, ky, kz float64) {
	for i := range tr.Samples {
		tr.Samples[i].AccelX += sig[i] * kx
		tr.Samples[i].AccelY += sig[i] * ky
		tr.Samples[i].AccelZ += sig[i] * kz
	}
}

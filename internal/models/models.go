package models

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// FaultLabel тип состояния подшипника
type FaultLabel int

const (
	Normal FaultLabel = iota
	OuterRaceFault
	InnerRaceFault
	BallFault
	CageFault
)

// AllFaultLabels все метки в каноническом порядке
var AllFaultLabels = []FaultLabel{Normal, OuterRaceFault, InnerRaceFault, BallFault, CageFault}

var faultNames = [...]string{"NORMAL", "OUTER_RACE_FAULT", "INNER_RACE_FAULT", "BALL_FAULT", "CAGE_FAULT"}

// ErrUnknownFault неизвестная метка неисправности
var ErrUnknownFault = errors.New("unknown fault type")

func (f FaultLabel) String() string {
	if f >= 0 && int(f) < len(faultNames) {
		return faultNames[f]
	}
	return "UNKNOWN"
}

// IsFaulty true для всех меток кроме NORMAL
func (f FaultLabel) IsFaulty() bool { return f != Normal }

// ParseFaultLabel разбирает строковое имя метки (регистр не важен)
func ParseFaultLabel(s string) (FaultLabel, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for i, n := range faultNames {
		if n == name {
			return FaultLabel(i), nil
		}
	}
	return Normal, fmt.Errorf("%w: %q", ErrUnknownFault, s)
}

func (f FaultLabel) MarshalText() ([]byte, error) {
	if f < 0 || int(f) >= len(faultNames) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownFault, int(f))
	}
	return []byte(f.String()), nil
}

func (f *FaultLabel) UnmarshalText(b []byte) error {
	v, err := ParseFaultLabel(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// VibrationSample одно измерение акселерометра (секунды, g)
type VibrationSample struct {
	Timestamp float64 `json:"timestamp"`
	AccelX    float64 `json:"accel_x"`
	AccelY    float64 `json:"accel_y"`
	AccelZ    float64 `json:"accel_z"`
}

// Magnitude модуль вектора ускорения
func (s VibrationSample) Magnitude() float64 {
	return math.Sqrt(s.AccelX*s.AccelX + s.AccelY*s.AccelY + s.AccelZ*s.AccelZ)
}

// VibrationTrace упорядоченная последовательность измерений
type VibrationTrace struct {
	Samples []VibrationSample `json:"samples"`
}

// Len количество измерений
func (t VibrationTrace) Len() int { return len(t.Samples) }

// Clone возвращает независимую копию трассы
func (t VibrationTrace) Clone() VibrationTrace {
	out := make([]VibrationSample, len(t.Samples))
	copy(out, t.Samples)
	return VibrationTrace{Samples: out}
}

// Timestamps возвращает массив временных меток
func (t VibrationTrace) Timestamps() []float64 {
	ts := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		ts[i] = s.Timestamp
	}
	return ts
}

// Magnitude возвращает модуль ускорения sqrt(x²+y²+z²) для каждого измерения
func (t VibrationTrace) Magnitude() []float64 {
	m := make([]float64, len(t.Samples))
	for i, s := range t.Samples {
		m[i] = s.Magnitude()
	}
	return m
}

// Duration максимальная временная метка трассы
func (t VibrationTrace) Duration() float64 {
	if len(t.Samples) == 0 {
		return 0
	}
	d := t.Samples[0].Timestamp
	for _, s := range t.Samples[1:] {
		if s.Timestamp > d {
			d = s.Timestamp
		}
	}
	return d
}

// SampleRate частота дискретизации, выведенная из временных меток (Гц).
// Для трассы короче двух точек возвращает 0.
func (t VibrationTrace) SampleRate() float64 {
	n := len(t.Samples)
	if n < 2 {
		return 0
	}
	span := t.Samples[n-1].Timestamp - t.Samples[0].Timestamp
	if span <= 0 {
		return 0
	}
	return float64(n-1) / span
}

// BearingParameters геометрия подшипника и скорость вала
type BearingParameters struct {
	ShaftSpeedRPM   float64 `json:"shaft_speed_rpm" yaml:"shaftSpeedRPM"`
	BallCount       int     `json:"ball_count" yaml:"ballCount"`
	ContactAngleDeg float64 `json:"contact_angle_deg" yaml:"contactAngleDeg"`
	PitchDiameterMM float64 `json:"pitch_diameter_mm" yaml:"pitchDiameterMM"`
	BallDiameterMM  float64 `json:"ball_diameter_mm" yaml:"ballDiameterMM"`
}

// DefaultBearingParameters типичный подшипник аттракциона
func DefaultBearingParameters() BearingParameters {
	return BearingParameters{
		ShaftSpeedRPM:   25,
		BallCount:       8,
		ContactAngleDeg: 0,
		PitchDiameterMM: 50,
		BallDiameterMM:  8,
	}
}

// FaultFrequencies характерные частоты неисправностей (Гц)
type FaultFrequencies struct {
	Shaft     float64 `json:"shaft"`
	OuterRace float64 `json:"outer_race"`
	InnerRace float64 `json:"inner_race"`
	Ball      float64 `json:"ball_fault"`
	Cage      float64 `json:"cage_fault"`
}

// RideSample синтетическая трасса одной поездки с меткой неисправности
type RideSample struct {
	RideID    int64          `json:"ride_id"`
	FaultType FaultLabel     `json:"fault_type"`
	Severity  float64        `json:"severity"`
	Trace     VibrationTrace `json:"trace"`
}

// RideSummary сводная статистика поездки
type RideSummary struct {
	RideID          int64      `json:"ride_id"`
	AssetID         string     `json:"asset_id,omitempty"`
	FaultType       FaultLabel `json:"fault_type"`
	Severity        float64    `json:"severity"`
	Duration        float64    `json:"duration"`
	MaxAcceleration float64    `json:"max_acceleration"`
	RMSAcceleration float64    `json:"rms_acceleration"`
	PeakEvents      int        `json:"peak_events"`
	IsFaulty        bool       `json:"is_faulty"`
	SimulatedAt     time.Time  `json:"timestamp"`
}

// FrequencyPoint точка спектра мощности
type FrequencyPoint struct {
	Frequency float64 `json:"frequency"`
	Power     float64 `json:"power"` // дБ
}

// Alert аномалия, обнаруженная анализатором для объекта
type Alert struct {
	ID           int64      `json:"id"`
	AssetID      string     `json:"asset_id"`
	RideID       int64      `json:"ride_id"`
	FaultType    FaultLabel `json:"fault_type"`
	AnomalyType  string     `json:"anomaly_type"`
	AnomalyScore float64    `json:"anomaly_score"`
	Timestamp    time.Time  `json:"timestamp"`
	Acknowledged bool       `json:"acknowledged"`
}

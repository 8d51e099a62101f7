package simulator

import (
	"time"

	"bearing-fault-sim/internal/models"
)

// FaultProbabilities распределение неисправностей парка аттракционов
var FaultProbabilities = map[models.FaultLabel]float64{
	models.Normal:         0.70,
	models.OuterRaceFault: 0.12,
	models.InnerRaceFault: 0.08,
	models.BallFault:      0.06,
	models.CageFault:      0.04,
}

// RideResult результат одного цикла поездки
type RideResult struct {
	models.RideSample
	StartedAt time.Time
}

// RideSimulator запускает циклы поездок с реалистичным распределением неисправностей
type RideSimulator struct {
	gen *Generator
	now func() time.Time
}

// NewRideSimulator создает симулятор поездок поверх генератора
func NewRideSimulator(gen *Generator) *RideSimulator {
	return &RideSimulator{gen: gen, now: time.Now}
}

// Generator возвращает генератор сигналов
func (s *RideSimulator) Generator() *Generator { return s.gen }

// RunRideCycle выполняет одну поездку. Если force != nil, используется заданная метка,
// иначе метка выбирается по FaultProbabilities. Тяжесть берется из стандартного диапазона.
func (s *RideSimulator) RunRideCycle(force *models.FaultLabel) (RideResult, error) {
	var label models.FaultLabel
	if force != nil {
		label = *force
	} else {
		label = s.pickLabel()
	}
	ride, err := s.gen.SimulateRandom(label)
	if err != nil {
		return RideResult{}, err
	}
	return RideResult{RideSample: ride, StartedAt: s.now()}, nil
}

func (s *RideSimulator) pickLabel() models.FaultLabel {
	x := s.gen.rng.Float64()
	acc := 0.0
	for _, l := range models.AllFaultLabels {
		acc += FaultProbabilities[l]
		if x < acc {
			return l
		}
	}
	return models.Normal
}

// FaultDescription справочная информация о типе неисправности
type FaultDescription struct {
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	Symptoms         string    `json:"symptoms"`
	Severity         string    `json:"severity"`
	FaultFrequencies []float64 `json:"fault_frequencies"`
}

// FaultInfo справочник неисправностей с частотами для текущих параметров подшипника
func FaultInfo(f models.FaultFrequencies) map[models.FaultLabel]FaultDescription {
	return map[models.FaultLabel]FaultDescription{
		models.Normal: {
			Name:             "Normal Operation",
			Description:      "Healthy bearing with minimal vibration",
			Symptoms:         "Low, consistent vibration levels",
			Severity:         "None",
			FaultFrequencies: []float64{},
		},
		models.OuterRaceFault: {
			Name:             "Outer Race Fault",
			Description:      "Defect in outer bearing race causing periodic impacts",
			Symptoms:         "Regular impulses at outer race frequency",
			Severity:         "Medium to High",
			FaultFrequencies: []float64{f.OuterRace, 2 * f.OuterRace, 3 * f.OuterRace},
		},
		models.InnerRaceFault: {
			Name:             "Inner Race Fault",
			Description:      "Defect in inner bearing race with load modulation",
			Symptoms:         "Modulated impacts at inner race frequency",
			Severity:         "High",
			FaultFrequencies: []float64{f.InnerRace, 2 * f.InnerRace, 3 * f.InnerRace},
		},
		models.BallFault: {
			Name:             "Ball/Element Fault",
			Description:      "Damaged rolling element causing double impacts",
			Symptoms:         "Double-peak signature at ball frequency",
			Severity:         "Medium",
			FaultFrequencies: []float64{f.Ball, 2 * f.Ball},
		},
		models.CageFault: {
			Name:             "Cage Fault",
			Description:      "Cage damage causing low frequency modulation",
			Symptoms:         "Low frequency modulation of all vibration",
			Severity:         "Low to Medium",
			FaultFrequencies: []float64{f.Cage, 2 * f.Cage},
		},
	}
}

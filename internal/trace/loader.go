package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bearing-fault-sim/internal/models"
)

// Обязательные колонки базовой записи
const (
	ColTimestamp = "timestamp"
	ColAccelX    = "accel_x"
	ColAccelY    = "accel_y"
	ColAccelZ    = "accel_z"
)

// RequiredColumns колонки, без которых трасса не загружается
var RequiredColumns = []string{ColTimestamp, ColAccelX, ColAccelY, ColAccelZ}

var (
	// ErrEmptyTrace в трассе нет ни одного измерения
	ErrEmptyTrace = errors.New("baseline trace is empty")
	// ErrMissingColumn в заголовке нет обязательной колонки
	ErrMissingColumn = errors.New("baseline trace is missing a required column")
)

// MissingColumnError перечисляет отсутствующие колонки
type MissingColumnError struct {
	Columns []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("baseline trace is missing required column(s): %s", strings.Join(e.Columns, ", "))
}

func (e *MissingColumnError) Is(target error) bool { return target == ErrMissingColumn }

// LoadFile загружает базовую трассу из CSV файла
func LoadFile(path string) (models.VibrationTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.VibrationTrace{}, fmt.Errorf("open baseline %s: %w", path, err)
	}
	defer f.Close()

	tr, err := LoadCSV(f)
	if err != nil {
		return models.VibrationTrace{}, fmt.Errorf("load baseline %s: %w", path, err)
	}
	return tr, nil
}

// LoadCSV читает трассу из CSV. Порядок колонок произвольный,
// лишние колонки игнорируются.
func LoadCSV(r io.Reader) (models.VibrationTrace, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return models.VibrationTrace{}, ErrEmptyTrace
	}
	if err != nil {
		return models.VibrationTrace{}, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var missing []string
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return models.VibrationTrace{}, &MissingColumnError{Columns: missing}
	}

	cols := [4]int{idx[ColTimestamp], idx[ColAccelX], idx[ColAccelY], idx[ColAccelZ]}

	var samples []models.VibrationSample
	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return models.VibrationTrace{}, fmt.Errorf("read line %d: %w", line, err)
		}

		var v [4]float64
		for i, c := range cols {
			if c >= len(rec) {
				return models.VibrationTrace{}, fmt.Errorf("line %d: column %s: %w", line, RequiredColumns[i], ErrMissingColumn)
			}
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[c]), 64)
			if err != nil {
				return models.VibrationTrace{}, fmt.Errorf("line %d: column %s: %w", line, RequiredColumns[i], err)
			}
		}
		samples = append(samples, models.VibrationSample{
			Timestamp: v[0],
			AccelX:    v[1],
			AccelY:    v[2],
			AccelZ:    v[3],
		})
	}

	if len(samples) == 0 {
		return models.VibrationTrace{}, ErrEmptyTrace
	}
	return models.VibrationTrace{Samples: samples}, nil
}

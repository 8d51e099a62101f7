package trace

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"bearing-fault-sim/internal/models"
)

// DatasetHeader колонки набора данных, которые ожидают классификаторы
var DatasetHeader = []string{
	ColTimestamp, ColAccelX, ColAccelY, ColAccelZ,
	"fault_type", "ride_id", "severity",
}

// DatasetWriter пишет размеченные поездки в CSV.
// Не потокобезопасен.
type DatasetWriter struct {
	buf  *bufio.Writer
	csv  *csv.Writer
	rows uint64
}

// NewDatasetWriter создает writer и пишет заголовок
func NewDatasetWriter(w io.Writer) (*DatasetWriter, error) {
	bw := bufio.NewWriterSize(w, 256*1024)
	cw := csv.NewWriter(bw)
	if err := cw.Write(DatasetHeader); err != nil {
		return nil, fmt.Errorf("csv write header: %w", err)
	}
	return &DatasetWriter{buf: bw, csv: cw}, nil
}

// WriteRide добавляет все измерения поездки
func (w *DatasetWriter) WriteRide(r models.RideSample) error {
	label := r.FaultType.String()
	rideID := strconv.FormatInt(r.RideID, 10)
	severity := ftoa(r.Severity, 4)

	for _, s := range r.Trace.Samples {
		row := []string{
			ftoa(s.Timestamp, 6),
			ftoa(s.AccelX, 6), ftoa(s.AccelY, 6), ftoa(s.AccelZ, 6),
			label, rideID, severity,
		}
		if err := w.csv.Write(row); err != nil {
			return fmt.Errorf("csv write ride %d: %w", r.RideID, err)
		}
		w.rows++
	}
	return nil
}

// Flush сбрасывает буферы в нижележащий writer
func (w *DatasetWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return fmt.Errorf("csv flush: %w", err)
	}
	return w.buf.Flush()
}

// Rows количество записанных строк (без заголовка)
func (w *DatasetWriter) Rows() uint64 { return w.rows }

// WriteTrace пишет трассу без разметки в формате базовой записи
func WriteTrace(w io.Writer, t models.VibrationTrace) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RequiredColumns); err != nil {
		return err
	}
	for _, s := range t.Samples {
		if err := cw.Write([]string{
			ftoa(s.Timestamp, 6), ftoa(s.AccelX, 6), ftoa(s.AccelY, 6), ftoa(s.AccelZ, 6),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ftoa(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

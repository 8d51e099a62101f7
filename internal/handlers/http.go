package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bearing-fault-sim/internal/logger"
	"bearing-fault-sim/internal/metrics"
	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/monitor"
	"bearing-fault-sim/internal/simulator"
)

// MaxSamplesPerClass ограничение размера набора за один запрос
const MaxSamplesPerClass = 200

// Service операции симулятора, доступные через HTTP
type Service interface {
	RunRide(ctx context.Context, assetID string, force *models.FaultLabel) (monitor.RideReport, error)
	GenerateDataset(ctx context.Context, perClass int, exportName string) (monitor.DatasetResult, error)
	Status(ctx context.Context) monitor.StatusReport
	Baseline() monitor.BaselineReport
	FaultInfo() map[models.FaultLabel]simulator.FaultDescription
	Alerts(ctx context.Context, assetID string) ([]models.Alert, error)
	AcknowledgeAlert(ctx context.Context, id int64) error
	AnalyzerStats() map[string]interface{}
}

// CacheHealth состояние кэша для /health и /stats
type CacheHealth interface {
	Ping(ctx context.Context) error
	GetStats() map[string]interface{}
}

// Handler обработчик HTTP запросов
type Handler struct {
	svc   Service
	cache CacheHealth
	log   *logger.Logger
}

// NewHandler создает новый обработчик. cache может быть nil.
func NewHandler(svc Service, cache CacheHealth, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.New("info")
	}
	return &Handler{svc: svc, cache: cache, log: log}
}

// Router маршруты API
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(h.log.HTTPLogger)

	r.Route("/api", func(ar chi.Router) {
		ar.Post("/simulate-ride", instrument("/api/simulate-ride", h.SimulateRide))
		ar.Post("/datasets", instrument("/api/datasets", h.GenerateDataset))
		ar.Get("/status", instrument("/api/status", h.Status))
		ar.Get("/baseline-data", instrument("/api/baseline-data", h.BaselineData))
		ar.Get("/fault-info", instrument("/api/fault-info", h.FaultInfo))
		ar.Get("/alerts", instrument("/api/alerts", h.Alerts))
		ar.Post("/alerts/{id}/acknowledge", instrument("/api/alerts/acknowledge", h.AcknowledgeAlert))
	})
	r.Get("/health", h.HealthCheck)
	r.Get("/stats", instrument("/stats", h.GetStats))

	// Prometheus metrics endpoint
	r.Handle("/prometheus", promhttp.Handler())
	return r
}

// instrument учитывает длительность и статус ответа обработчика
func instrument(endpoint string, fn func(w http.ResponseWriter, r *http.Request) int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		status := fn(w, r)
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		metrics.RequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
	return status
}

func writeError(w http.ResponseWriter, status int, msg string) int {
	return writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}

// decodeOptional разбирает JSON тело; пустое тело допустимо
func decodeOptional(r *http.Request, v interface{}) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type simulateRideRequest struct {
	AssetID        string             `json:"asset_id"`
	ForceFaultType *models.FaultLabel `json:"force_fault_type"`
}

// SimulateRide обрабатывает POST /api/simulate-ride
func (h *Handler) SimulateRide(w http.ResponseWriter, r *http.Request) int {
	var req simulateRideRequest
	if err := decodeOptional(r, &req); err != nil {
		return writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
	}

	report, err := h.svc.RunRide(r.Context(), req.AssetID, req.ForceFaultType)
	if err != nil {
		if errors.Is(err, models.ErrUnknownFault) {
			return writeError(w, http.StatusBadRequest, err.Error())
		}
		h.log.Error().Err(err).Str("asset_id", req.AssetID).Msg("simulate ride")
		return writeError(w, http.StatusInternalServerError, err.Error())
	}
	return writeJSON(w, http.StatusOK, report)
}

type datasetRequest struct {
	SamplesPerClass int    `json:"samples_per_class"`
	ExportName      string `json:"export_name"`
}

// GenerateDataset обрабатывает POST /api/datasets
func (h *Handler) GenerateDataset(w http.ResponseWriter, r *http.Request) int {
	req := datasetRequest{SamplesPerClass: 10}
	if err := decodeOptional(r, &req); err != nil {
		return writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
	}
	if req.SamplesPerClass < 1 || req.SamplesPerClass > MaxSamplesPerClass {
		return writeError(w, http.StatusBadRequest,
			"samples_per_class must be between 1 and "+strconv.Itoa(MaxSamplesPerClass))
	}

	res, err := h.svc.GenerateDataset(r.Context(), req.SamplesPerClass, req.ExportName)
	if err != nil {
		if errors.Is(err, monitor.ErrNoExporter) {
			return writeError(w, http.StatusBadRequest, err.Error())
		}
		h.log.Error().Err(err).Int("samples_per_class", req.SamplesPerClass).Msg("generate dataset")
		return writeError(w, http.StatusInternalServerError, err.Error())
	}
	return writeJSON(w, http.StatusOK, res)
}

// Status обрабатывает GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, h.svc.Status(r.Context()))
}

// BaselineData обрабатывает GET /api/baseline-data
func (h *Handler) BaselineData(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, h.svc.Baseline())
}

// FaultInfo обрабатывает GET /api/fault-info
func (h *Handler) FaultInfo(w http.ResponseWriter, r *http.Request) int {
	return writeJSON(w, http.StatusOK, h.svc.FaultInfo())
}

// Alerts обрабатывает GET /api/alerts?asset_id=
func (h *Handler) Alerts(w http.ResponseWriter, r *http.Request) int {
	assetID := r.URL.Query().Get("asset_id")
	alerts, err := h.svc.Alerts(r.Context(), assetID)
	if err != nil {
		h.log.Error().Err(err).Str("asset_id", assetID).Msg("get alerts")
		return writeError(w, http.StatusInternalServerError, "failed to retrieve alerts")
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"alerts":  alerts,
	})
}

// AcknowledgeAlert обрабатывает POST /api/alerts/{id}/acknowledge
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) int {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return writeError(w, http.StatusBadRequest, "invalid alert id")
	}
	if err := h.svc.AcknowledgeAlert(r.Context(), id); err != nil {
		if errors.Is(err, monitor.ErrAlertNotFound) {
			return writeError(w, http.StatusNotFound, "Alert not found")
		}
		h.log.Error().Err(err).Int64("alert_id", id).Msg("acknowledge alert")
		return writeError(w, http.StatusInternalServerError, err.Error())
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// HealthCheck обрабатывает GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK
	var redis interface{} = "disabled"

	if h.cache != nil {
		redisOK := h.cache.Ping(r.Context()) == nil
		redis = redisOK
		if !redisOK {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"redis":     redis,
		"timestamp": time.Now(),
	})
}

// GetStats обрабатывает GET /stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) int {
	redisStats := map[string]interface{}{}
	if h.cache != nil {
		redisStats = h.cache.GetStats()
	}
	return writeJSON(w, http.StatusOK, map[string]interface{}{
		"analyzer":  h.svc.AnalyzerStats(),
		"redis":     redisStats,
		"timestamp": time.Now(),
	})
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bearing-fault-sim/internal/models"
	"bearing-fault-sim/internal/tracing"
)

type Server struct {
	Port            string        `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"` // ex: 30s
}

type Simulation struct {
	BaselinePath string                   `yaml:"baselinePath"` // CSV с базовой трассой
	Seed         uint64                   `yaml:"seed"`         // 0 = случайный
	Bearing      models.BearingParameters `yaml:"bearing"`
}

type Redis struct {
	Enabled   bool          `yaml:"enabled"`
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	Retention time.Duration `yaml:"retention"` // TTL сводок поездок, аномалии живут в 24 раза дольше
}

type Storage struct {
	Path string `yaml:"path"` // e.g. data/rides.db
}

type Analytics struct {
	WindowSize       int     `yaml:"windowSize"`
	AnomalyThreshold float64 `yaml:"anomalyThreshold"`
	Workers          int     `yaml:"workers"`
}

type Scheduler struct {
	Enabled bool     `yaml:"enabled"`
	Spec    string   `yaml:"spec"`   // cron, ex: "@every 30s"
	Assets  []string `yaml:"assets"` // объекты, для которых запускаются поездки
}

type S3 struct {
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"` // опционально, для S3-совместимых хранилищ
}

// Config конфигурация приложения
type Config struct {
	LogLevel   string         `yaml:"logLevel"`
	Server     Server         `yaml:"server"`
	Simulation Simulation     `yaml:"simulation"`
	Redis      Redis          `yaml:"redis"`
	Storage    Storage        `yaml:"storage"`
	Analytics  Analytics      `yaml:"analytics"`
	Scheduler  Scheduler      `yaml:"scheduler"`
	S3         S3             `yaml:"s3"`
	Tracing    tracing.Config `yaml:"tracing"`
}

// Default конфигурация без файла и переменных окружения
func Default() Config {
	return Config{
		LogLevel: "info",
		Server:   Server{Port: "8080", ShutdownTimeout: 30 * time.Second},
		Simulation: Simulation{
			BaselinePath: "data/vibration_data.csv",
			Bearing:      models.DefaultBearingParameters(),
		},
		Redis:     Redis{Enabled: true, Addr: "localhost:6379", Retention: time.Hour},
		Storage:   Storage{Path: "data/rides.db"},
		Analytics: Analytics{WindowSize: 50, AnomalyThreshold: 2.0, Workers: 4},
		Scheduler: Scheduler{Spec: "@every 30s", Assets: []string{"coaster-1"}},
		S3:        S3{Prefix: "datasets", Region: "eu-west-1"},
		Tracing:   tracing.Config{ServiceName: "bearing-fault-sim", OTLPEndpoint: "localhost:4317", SampleRatio: 1.0},
	}
}

// Load читает YAML поверх значений по умолчанию и применяет переменные
// окружения. Пустой path означает только умолчания и окружение.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("unmarshal yaml: %w", err)
		}
	}
	c.applyEnv()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnv переменные окружения имеют приоритет над файлом
func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.Server.Port = getEnv("SERVER_PORT", c.Server.Port)

	c.Simulation.BaselinePath = getEnv("BASELINE_PATH", c.Simulation.BaselinePath)
	c.Simulation.Seed = uint64(getEnvAsInt("SIM_SEED", int(c.Simulation.Seed)))
	c.Simulation.Bearing.ShaftSpeedRPM = getEnvAsFloat("SHAFT_SPEED_RPM", c.Simulation.Bearing.ShaftSpeedRPM)
	c.Simulation.Bearing.BallCount = getEnvAsInt("BALL_COUNT", c.Simulation.Bearing.BallCount)

	c.Redis.Enabled = getEnvAsBool("REDIS_ENABLED", c.Redis.Enabled)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)
	if h := getEnvAsInt("RIDE_RETENTION_HOURS", 0); h > 0 {
		c.Redis.Retention = time.Duration(h) * time.Hour
	}

	c.Storage.Path = getEnv("STORE_PATH", c.Storage.Path)

	c.Analytics.WindowSize = getEnvAsInt("WINDOW_SIZE", c.Analytics.WindowSize)
	c.Analytics.AnomalyThreshold = getEnvAsFloat("ANOMALY_THRESHOLD", c.Analytics.AnomalyThreshold)
	c.Analytics.Workers = getEnvAsInt("ANALYZER_WORKERS", c.Analytics.Workers)

	c.Scheduler.Enabled = getEnvAsBool("SCHEDULER_ENABLED", c.Scheduler.Enabled)
	c.Scheduler.Spec = getEnv("SCHEDULER_SPEC", c.Scheduler.Spec)
	if v := os.Getenv("SCHEDULER_ASSETS"); v != "" {
		c.Scheduler.Assets = splitList(v)
	}

	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)
	c.S3.Region = getEnv("AWS_REGION", c.S3.Region)
	c.S3.Endpoint = getEnv("S3_ENDPOINT", c.S3.Endpoint)

	c.Tracing.Enabled = getEnvAsBool("OTEL_ENABLED", c.Tracing.Enabled)
	c.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Tracing.OTLPEndpoint)
}

// Validate проверяет значения, без которых сервис не запустится
func (c *Config) Validate() error {
	var errs []error
	if c.Simulation.Bearing.ShaftSpeedRPM <= 0 {
		errs = append(errs, errors.New("simulation.bearing.shaftSpeedRPM must be positive"))
	}
	if c.Simulation.Bearing.BallCount <= 0 {
		errs = append(errs, errors.New("simulation.bearing.ballCount must be positive"))
	}
	if c.Analytics.WindowSize < 2 {
		errs = append(errs, errors.New("analytics.windowSize must be at least 2"))
	}
	if c.Analytics.AnomalyThreshold <= 0 {
		errs = append(errs, errors.New("analytics.anomalyThreshold must be positive"))
	}
	if c.Analytics.Workers < 1 {
		errs = append(errs, errors.New("analytics.workers must be at least 1"))
	}
	if c.Scheduler.Enabled && len(c.Scheduler.Assets) == 0 {
		errs = append(errs, errors.New("scheduler.assets is empty"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// getEnv получает environment variable или возвращает default
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt получает environment variable как int
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat получает environment variable как float64
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bearing-fault-sim/internal/models"
)

// Ключи счетчиков
const (
	CounterRidesTotal  = "rides_total"
	counterFaultPrefix = "rides_by_fault:"
)

// RedisCache обертка для Redis клиента
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache создает новый Redis кэш
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
	})

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func rideKey(assetID string, rideID int64) string {
	return fmt.Sprintf("ride:%s:%d", assetID, rideID)
}

func rideListKey(assetID string) string { return "ride_list:" + assetID }

func anomalyKey(assetID string, rideID int64) string {
	return fmt.Sprintf("anomaly:%s:%d", assetID, rideID)
}

func anomalyListKey(assetID string) string { return "anomaly_list:" + assetID }

// FaultCounterKey ключ счетчика поездок по типу неисправности
func FaultCounterKey(label models.FaultLabel) string { return counterFaultPrefix + label.String() }

// StoreRide сохраняет сводку поездки и обновляет счетчики
func (r *RedisCache) StoreRide(ctx context.Context, s models.RideSummary) error {
	key := rideKey(s.AssetID, s.RideID)

	jsonData, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal ride: %w", err)
	}

	listKey := rideListKey(s.AssetID)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, jsonData, r.ttl)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(s.RideID), Member: key})
	pipe.Expire(ctx, listKey, r.ttl)
	pipe.Incr(ctx, CounterRidesTotal)
	pipe.Incr(ctx, FaultCounterKey(s.FaultType))

	_, err = pipe.Exec(ctx)
	return err
}

// StoreAnomaly сохраняет аномалию (с более длительным TTL)
func (r *RedisCache) StoreAnomaly(ctx context.Context, a models.Alert) error {
	key := anomalyKey(a.AssetID, a.RideID)

	jsonData, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly: %w", err)
	}

	// Аномалии хранятся дольше
	anomalyTTL := r.ttl * 24

	listKey := anomalyListKey(a.AssetID)

	pipe := r.client.Pipeline()
	pipe.Set(ctx, key, jsonData, anomalyTTL)
	pipe.ZAdd(ctx, listKey, redis.Z{Score: float64(a.RideID), Member: key})
	pipe.Expire(ctx, listKey, anomalyTTL)

	_, err = pipe.Exec(ctx)
	return err
}

// GetRecentRides получает последние поездки объекта, новые первыми
func (r *RedisCache) GetRecentRides(ctx context.Context, assetID string, limit int) ([]models.RideSummary, error) {
	var out []models.RideSummary
	err := r.recent(ctx, rideListKey(assetID), limit, func(b []byte) error {
		var s models.RideSummary
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get rides: %w", err)
	}
	return out, nil
}

// GetRecentAnomalies получает последние аномалии объекта, новые первыми
func (r *RedisCache) GetRecentAnomalies(ctx context.Context, assetID string, limit int) ([]models.Alert, error) {
	var out []models.Alert
	err := r.recent(ctx, anomalyListKey(assetID), limit, func(b []byte) error {
		var a models.Alert
		if err := json.Unmarshal(b, &a); err != nil {
			return err
		}
		out = append(out, a)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get anomalies: %w", err)
	}
	return out, nil
}

// recent читает последние limit значений по ключам из sorted set.
// Истекшие ключи пропускаются.
func (r *RedisCache) recent(ctx context.Context, listKey string, limit int, decode func([]byte) error) error {
	if limit <= 0 {
		return nil
	}
	keys, err := r.client.ZRevRange(ctx, listKey, 0, int64(limit-1)).Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if err := decode([]byte(s)); err != nil {
			return err
		}
	}
	return nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(ctx context.Context, key string) error {
	return r.client.Incr(ctx, key).Err()
}

// GetCounter получает значение счетчика
func (r *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	val, err := r.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return val, err
}

// Close закрывает соединение с Redis
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// Ping проверяет доступность Redis
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// HitRate доля попаданий в пул соединений
func (r *RedisCache) HitRate() float64 {
	stats := r.client.PoolStats()
	total := stats.Hits + stats.Misses
	if total == 0 {
		return 0
	}
	return float64(stats.Hits) / float64(total)
}

// GetStats возвращает статистику Redis
func (r *RedisCache) GetStats() map[string]interface{} {
	stats := r.client.PoolStats()

	return map[string]interface{}{
		"hits":        stats.Hits,
		"misses":      stats.Misses,
		"timeouts":    stats.Timeouts,
		"total_conns": stats.TotalConns,
		"idle_conns":  stats.IdleConns,
		"stale_conns": stats.StaleConns,
	}
}

// Package cache реализует кэширование измерений и результатов SPC-анализа в Redis
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"spc-service/internal/models"
)

const (
	// MeasurementKeyPrefix префикс для ключей измерений
	MeasurementKeyPrefix = "measurement:"
	// LatestMeasurementsKey ключ для последних измерений
	LatestMeasurementsKey = "measurements:latest"
	// EvaluationKeyPrefix префикс для результатов оценки
	EvaluationKeyPrefix = "evaluation:"
	// LatestAlertsKey ключ для последних алертов
	LatestAlertsKey = "alerts:latest"
	// DefaultTTL время жизни записи по умолчанию
	DefaultTTL = 5 * time.Minute
	// MeasurementsTTL время жизни измерений
	MeasurementsTTL = 1 * time.Hour
	// latestListLimit сколько последних записей храним в списках
	latestListLimit = 999
)

// RedisCache реализует кэширование в Redis
type RedisCache struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisCache создает новое подключение к Redis
func NewRedisCache(addr, password string, db int) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     100,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx := context.Background()

	// Проверяем подключение
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client: client,
		ctx:    ctx,
	}, nil
}

// CacheMeasurement сохраняет измерение в Redis
func (r *RedisCache) CacheMeasurement(m models.Measurement) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal measurement: %w", err)
	}

	key := fmt.Sprintf("%s%s:%d", MeasurementKeyPrefix, m.Operator, m.Item)

	pipe := r.client.Pipeline()
	pipe.Set(r.ctx, key, data, MeasurementsTTL)
	pipe.LPush(r.ctx, LatestMeasurementsKey, data)
	pipe.LTrim(r.ctx, LatestMeasurementsKey, 0, latestListLimit)

	_, err = pipe.Exec(r.ctx)
	if err != nil {
		return fmt.Errorf("failed to cache measurement: %w", err)
	}

	return nil
}

// GetLatestMeasurements возвращает последние N измерений
func (r *RedisCache) GetLatestMeasurements(count int64) ([]models.Measurement, error) {
	data, err := r.client.LRange(r.ctx, LatestMeasurementsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest measurements: %w", err)
	}

	measurements := make([]models.Measurement, 0, len(data))
	for _, d := range data {
		var m models.Measurement
		if err := json.Unmarshal([]byte(d), &m); err != nil {
			continue
		}
		measurements = append(measurements, m)
	}

	return measurements, nil
}

// CacheEvaluation сохраняет результат оценки; алерты дополнительно
// попадают в ленту alerts:latest
func (r *RedisCache) CacheEvaluation(result models.EvaluatedMeasurement) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	key := fmt.Sprintf("%s%s:%d", EvaluationKeyPrefix, result.Operator, result.Item)

	pipe := r.client.Pipeline()
	pipe.Set(r.ctx, key, data, DefaultTTL)
	if result.Alert {
		pipe.LPush(r.ctx, LatestAlertsKey, data)
		pipe.LTrim(r.ctx, LatestAlertsKey, 0, latestListLimit)
	}

	_, err = pipe.Exec(r.ctx)
	if err != nil {
		return fmt.Errorf("failed to cache evaluation: %w", err)
	}

	return nil
}

// GetLatestAlerts возвращает последние N алертов
func (r *RedisCache) GetLatestAlerts(count int64) ([]models.EvaluatedMeasurement, error) {
	data, err := r.client.LRange(r.ctx, LatestAlertsKey, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest alerts: %w", err)
	}

	alerts := make([]models.EvaluatedMeasurement, 0, len(data))
	for _, d := range data {
		var e models.EvaluatedMeasurement
		if err := json.Unmarshal([]byte(d), &e); err != nil {
			continue
		}
		alerts = append(alerts, e)
	}

	return alerts, nil
}

// IncrementCounter увеличивает счетчик
func (r *RedisCache) IncrementCounter(key string) (int64, error) {
	return r.client.Incr(r.ctx, key).Result()
}

// GetCounter возвращает значение счетчика
func (r *RedisCache) GetCounter(key string) (int64, error) {
	val, err := r.client.Get(r.ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return val, err
}

// SetWithTTL устанавливает значение с TTL
func (r *RedisCache) SetWithTTL(key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(r.ctx, key, data, ttl).Err()
}

// Get получает значение по ключу
func (r *RedisCache) Get(key string, dest interface{}) error {
	data, err := r.client.Get(r.ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Ping проверяет соединение с Redis
func (r *RedisCache) Ping() error {
	return r.client.Ping(r.ctx).Err()
}

// Close закрывает соединение
func (r *RedisCache) Close() error {
	return r.client.Close()
}

// FlushDB очищает базу (только для тестов)
func (r *RedisCache) FlushDB() error {
	return r.client.FlushDB(r.ctx).Err()
}

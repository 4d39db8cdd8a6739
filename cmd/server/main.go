// Package main запускает сервис статистического контроля процесса (SPC)
// Сервис реализует:
// - HTTP API для приема измерений с производственной линии
// - Скользящее окно из 5 последних измерений на оператора
// - Контрольные границы avg ± 3σ/√5 и детекцию выхода за них
// - Кэширование в Redis
// - Экспорт метрик в Prometheus
package main

import (
	"context"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spc-service/internal/cache"
	"spc-service/internal/handlers"
	"spc-service/internal/metrics"
	"spc-service/internal/spc"
)

// Config содержит конфигурацию сервиса
type Config struct {
	ServerAddr    string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
}

func main() {
	log.Println("Starting SPC Service...")
	log.Printf("Go version: %s", runtime.Version())
	log.Printf("NumCPU: %d", runtime.NumCPU())

	// Загружаем конфигурацию
	cfg := loadConfig()

	// Инициализируем трекер контрольных окон
	tracker := spc.NewTracker()
	log.Printf("SPC tracker started (window=%d, limits=avg±%.0fσ/√%d)",
		spc.WindowSize, spc.SigmaMultiplier, spc.WindowSize)

	// Инициализируем Redis кэш
	var redisCache *cache.RedisCache
	var err error

	// Пробуем подключиться к Redis с повторами
	for i := 0; i < 5; i++ {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err == nil {
			log.Printf("Connected to Redis at %s", cfg.RedisAddr)
			break
		}
		log.Printf("Redis connection attempt %d failed: %v", i+1, err)
		if i < 4 {
			time.Sleep(time.Duration(i+1) * time.Second)
		}
	}

	if err != nil {
		log.Printf("Warning: Failed to connect to Redis, running without cache: %v", err)
		redisCache = nil
	}

	// Создаем обработчики
	handler := handlers.NewHandler(tracker, redisCache)

	// Настраиваем маршруты
	router := mux.NewRouter()

	// API эндпоинты
	router.HandleFunc("/measurements", handler.MeasurementHandler).Methods("POST")
	router.HandleFunc("/measurements/batch", handler.BatchHandler).Methods("POST")
	router.HandleFunc("/measurements/import", handler.ImportHandler).Methods("POST")
	router.HandleFunc("/measurements/latest", handler.LatestMeasurementsHandler).Methods("GET")
	router.HandleFunc("/alerts", handler.AlertsHandler).Methods("GET")
	router.HandleFunc("/control", handler.ControlHandler).Methods("GET")
	router.HandleFunc("/health", handler.HealthHandler).Methods("GET")
	router.HandleFunc("/stats", handler.StatsHandler).Methods("GET")

	// Prometheus метрики
	router.Handle("/prometheus", promhttp.Handler())

	// pprof для профилирования
	router.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	// Middleware для логирования и метрик
	router.Use(loggingMiddleware)

	// Создаем HTTP сервер с настройками таймаутов
	server := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	// Запускаем горутину для обновления метрик
	go updateMetricsLoop(tracker)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в горутине
	go func() {
		log.Printf("Server listening on %s", cfg.ServerAddr)
		log.Printf("Endpoints:")
		log.Printf("  POST /measurements        - Submit measurement")
		log.Printf("  POST /measurements/batch  - Submit batch of measurements")
		log.Printf("  POST /measurements/import - Import measurements from CSV")
		log.Printf("  GET  /measurements/latest - Get latest measurements")
		log.Printf("  GET  /alerts              - Get latest out-of-control alerts")
		log.Printf("  GET  /control             - Get control limits per operator")
		log.Printf("  GET  /health              - Health check")
		log.Printf("  GET  /stats               - Service statistics")
		log.Printf("  GET  /prometheus          - Prometheus metrics")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Ожидаем сигнал завершения
	<-stop
	log.Println("Shutting down server...")

	// Контекст с таймаутом для завершения
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Закрываем Redis
	if redisCache != nil {
		redisCache.Close()
	}

	// Завершаем HTTP сервер
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig загружает конфигурацию из переменных окружения
func loadConfig() Config {
	return Config{
		ServerAddr:    getEnv("SERVER_ADDR", ":8080"),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
	}
}

// getEnv получает переменную окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленную переменную окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// loggingMiddleware логирует HTTP запросы
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start))
	})
}

// updateMetricsLoop периодически обновляет метрики Prometheus
func updateMetricsLoop(tracker *spc.Tracker) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		metrics.OperatorsTracked.Set(float64(tracker.Operators()))
		metrics.ActiveGoroutines.Set(float64(runtime.NumGoroutine()))
	}
}

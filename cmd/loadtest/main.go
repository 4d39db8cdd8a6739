// Утилита нагрузочного тестирования: генерирует поток измерений
// Каждый worker ведет собственного оператора со своей последовательностью
// номеров деталей; изредка вбрасывается выброс, чтобы проверить алерты
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

var (
	requestCount  int64
	successCount  int64
	failCount     int64
	alertCount    int64
	totalLatency  int64 // в наносекундах
	minLatency    int64 = 1 << 62
	maxLatency    int64
	latencies     []int64
	latenciesLock sync.Mutex
)

const (
	baseValue      = 20.0 // номинальная высота детали
	noiseAmplitude = 0.5
	outlierEvery   = 50 // каждое N-е измерение - выброс
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./cmd/loadtest <url> [operators] [duration]")
		fmt.Println("Example: go run ./cmd/loadtest http://localhost:8080/measurements 8 30s")
		os.Exit(1)
	}

	url := os.Args[1]
	operators := 8
	duration := 30 * time.Second

	if len(os.Args) > 2 {
		fmt.Sscanf(os.Args[2], "%d", &operators)
	}
	if len(os.Args) > 3 {
		d, err := time.ParseDuration(os.Args[3])
		if err == nil {
			duration = d
		}
	}

	fmt.Printf("Load Test Configuration:\n")
	fmt.Printf("  URL: %s\n", url)
	fmt.Printf("  Operators: %d\n", operators)
	fmt.Printf("  Duration: %v\n\n", duration)

	latencies = make([]int64, 0, 10000)
	startTime := time.Now()
	endTime := startTime.Add(duration)

	// Один worker на оператора: последовательность номеров деталей
	// строится без общего состояния
	var wg sync.WaitGroup
	for o := 0; o < operators; o++ {
		wg.Add(1)
		go func(operator string) {
			defer wg.Done()
			worker(url, operator, endTime)
		}(fmt.Sprintf("Op-%d", o+1))
	}

	wg.Wait()
	totalDuration := time.Since(startTime)

	printResults(totalDuration)
}

func worker(url, operator string, endTime time.Time) {
	// HTTP клиент с connection pooling
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	item := 0
	for time.Now().Before(endTime) {
		item++
		sendMeasurement(client, url, operator, item, rng)
	}
}

func sendMeasurement(client *http.Client, url, operator string, item int, rng *rand.Rand) {
	value := baseValue + (rng.Float64()-0.5)*noiseAmplitude
	if item%outlierEvery == 0 {
		value += baseValue * 0.2 // заведомый выход за контрольные границы
	}

	measurement := map[string]interface{}{
		"operator": operator,
		"item":     item,
		"value":    value,
	}

	jsonData, _ := json.Marshal(measurement)
	req, _ := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	latency := time.Since(start)

	atomic.AddInt64(&requestCount, 1)

	if err != nil || resp.StatusCode != http.StatusOK {
		atomic.AddInt64(&failCount, 1)
		if resp != nil {
			resp.Body.Close()
		}
		return
	}

	var result struct {
		Alert bool `json:"alert"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && result.Alert {
		atomic.AddInt64(&alertCount, 1)
	}
	resp.Body.Close()

	atomic.AddInt64(&successCount, 1)

	// Обновление статистики задержек
	latencyNs := latency.Nanoseconds()
	atomic.AddInt64(&totalLatency, latencyNs)

	for {
		oldMin := atomic.LoadInt64(&minLatency)
		if latencyNs >= oldMin {
			break
		}
		if atomic.CompareAndSwapInt64(&minLatency, oldMin, latencyNs) {
			break
		}
	}

	for {
		oldMax := atomic.LoadInt64(&maxLatency)
		if latencyNs <= oldMax {
			break
		}
		if atomic.CompareAndSwapInt64(&maxLatency, oldMax, latencyNs) {
			break
		}
	}

	latenciesLock.Lock()
	latencies = append(latencies, latencyNs)
	latenciesLock.Unlock()
}

func printResults(duration time.Duration) {
	total := atomic.LoadInt64(&requestCount)
	success := atomic.LoadInt64(&successCount)
	failed := atomic.LoadInt64(&failCount)
	alerts := atomic.LoadInt64(&alertCount)
	totalLat := atomic.LoadInt64(&totalLatency)
	minLat := atomic.LoadInt64(&minLatency)
	maxLat := atomic.LoadInt64(&maxLatency)

	avgLatency := time.Duration(0)
	if success > 0 {
		avgLatency = time.Duration(totalLat / success)
	}

	// Вычисление перцентилей
	latenciesLock.Lock()
	latenciesCopy := make([]int64, len(latencies))
	copy(latenciesCopy, latencies)
	latenciesLock.Unlock()

	var p50, p95, p99 time.Duration
	if len(latenciesCopy) > 0 {
		sort.Slice(latenciesCopy, func(i, j int) bool {
			return latenciesCopy[i] < latenciesCopy[j]
		})

		p50Idx := len(latenciesCopy) * 50 / 100
		p95Idx := len(latenciesCopy) * 95 / 100
		p99Idx := len(latenciesCopy) * 99 / 100

		if p50Idx < len(latenciesCopy) {
			p50 = time.Duration(latenciesCopy[p50Idx])
		}
		if p95Idx < len(latenciesCopy) {
			p95 = time.Duration(latenciesCopy[p95Idx])
		}
		if p99Idx < len(latenciesCopy) {
			p99 = time.Duration(latenciesCopy[p99Idx])
		}
	}

	rps := float64(total) / duration.Seconds()

	fmt.Println("\n==========================================")
	fmt.Println("Load Test Results")
	fmt.Println("==========================================")
	fmt.Printf("Duration:       %v\n", duration)
	fmt.Printf("Total Requests: %d\n", total)
	fmt.Printf("Successful:     %d\n", success)
	fmt.Printf("Failed:         %d\n", failed)
	fmt.Printf("Alerts:         %d\n", alerts)
	if total > 0 {
		fmt.Printf("Success Rate:   %.2f%%\n", float64(success)/float64(total)*100)
	}
	fmt.Printf("Requests/sec:   %.2f\n", rps)
	fmt.Println("\nLatency Statistics:")
	fmt.Printf("  Min:          %v\n", time.Duration(minLat))
	fmt.Printf("  Max:          %v\n", time.Duration(maxLat))
	fmt.Printf("  Average:      %v\n", avgLatency)
	if p50 > 0 {
		fmt.Printf("  p50:          %v\n", p50)
	}
	if p95 > 0 {
		fmt.Printf("  p95:          %v\n", p95)
	}
	if p99 > 0 {
		fmt.Printf("  p99:          %v\n", p99)
	}
	fmt.Println("==========================================")
}

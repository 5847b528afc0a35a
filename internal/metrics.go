package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type telemetry struct {
	enabled bool
	mu      sync.RWMutex

	connectsTotal   map[string]uint64
	connectSum      map[string]float64
	upgradeFailures map[string]uint64
	framesTotal     map[string]uint64
	frameBytes      map[string]uint64
}

var (
	metricsMu sync.RWMutex
	metrics   = telemetry{}
)

// EnableMetrics turns on in-process telemetry. Disabled by default; every
// observe call is a cheap no-op until this runs.
func EnableMetrics() {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	if metrics.enabled {
		return
	}
	metrics.connectsTotal = make(map[string]uint64)
	metrics.connectSum = make(map[string]float64)
	metrics.upgradeFailures = make(map[string]uint64)
	metrics.framesTotal = make(map[string]uint64)
	metrics.frameBytes = make(map[string]uint64)
	metrics.enabled = true
}

// StartMetricsServer serves the text exposition on addr until ctx is done.
func StartMetricsServer(ctx context.Context, addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("empty metrics address")
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", metricsHandler)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	err := srv.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func observeConnect(host string, d time.Duration) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	k := fmt.Sprintf("host=%s", host)
	metrics.connectsTotal[k]++
	metrics.connectSum[k] += d.Seconds()
}

func observeUpgradeFailure(host string, err error) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	reason := failureReason(err)
	metrics.upgradeFailures[fmt.Sprintf("host=%s,reason=%s", host, reason)]++
}

func observeFrame(direction string, bytes int) {
	metricsMu.RLock()
	if !metrics.enabled {
		metricsMu.RUnlock()
		return
	}
	metrics.mu.Lock()
	metricsMu.RUnlock()
	defer metrics.mu.Unlock()
	k := fmt.Sprintf("dir=%s", direction)
	metrics.framesTotal[k]++
	metrics.frameBytes[k] += uint64(bytes)
}

func failureReason(err error) string {
	if err == nil {
		return "unknown"
	}
	var statusErr *InvalidResponseStatusError
	if errors.As(err, &statusErr) {
		return "status"
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "timeout") || strings.Contains(e, "deadline"):
		return "timeout"
	case strings.Contains(e, "tls") || strings.Contains(e, "x509") || strings.Contains(e, "certificate"):
		return "tls"
	case strings.Contains(e, "dns") || strings.Contains(e, "no such host"):
		return "dns"
	case strings.Contains(e, "refused"):
		return "refused"
	default:
		return "other"
	}
}

func metricsHandler(w http.ResponseWriter, _ *http.Request) {
	metricsMu.RLock()
	enabled := metrics.enabled
	metricsMu.RUnlock()
	if !enabled {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("# metrics disabled\n"))
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	metrics.mu.RLock()
	defer metrics.mu.RUnlock()

	writeCounterVec(w, "wsconnect_connects_total", metrics.connectsTotal)
	writeSumVec(w, "wsconnect_connect_duration_seconds_sum", metrics.connectSum)
	writeCounterVec(w, "wsconnect_upgrade_failures_total", metrics.upgradeFailures)
	writeCounterVec(w, "wsconnect_frames_total", metrics.framesTotal)
	writeCounterVec(w, "wsconnect_frame_bytes_total", metrics.frameBytes)
}

func writeCounterVec(w http.ResponseWriter, name string, data map[string]uint64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s} %d\n", name, toPromLabels(k), data[k])
	}
}

func writeSumVec(w http.ResponseWriter, name string, data map[string]float64) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{%s} %f\n", name, toPromLabels(k), data[k])
	}
}

func toPromLabels(s string) string {
	parts := strings.Split(s, ",")
	for i, p := range parts {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		parts[i] = fmt.Sprintf("%s=\"%s\"", kv[0], strings.ReplaceAll(kv[1], "\"", "\\\""))
	}
	return strings.Join(parts, ",")
}

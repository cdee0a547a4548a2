// Package registry tracks the chat backends listed in the console menu and
// reports whether each one is reachable. Health is probed over HTTP against
// the backend's /health/ endpoint and kept in a bounded per-backend history.
package registry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/chatvibe/console/internal/interfaces"
)

// Backend status values shown next to each menu entry.
const (
	StatusReady    = "ready"
	StatusOffline  = "offline"
	StatusError    = "error"
	StatusChecking = "checking"
	StatusUnknown  = "unknown"
)

// DefaultHistorySize bounds the number of snapshots kept per backend.
const DefaultHistorySize = 100

// HealthMonitor probes backends and keeps their recent results.
type HealthMonitor struct {
	httpClient     *http.Client
	healthHistory  map[string]*snapshotRing
	mutex          sync.RWMutex
	maxHistorySize int
}

// HealthSnapshot captures a point-in-time health assessment
type HealthSnapshot struct {
	Timestamp    time.Time     `json:"timestamp"`
	Status       string        `json:"status"`
	ResponseTime time.Duration `json:"responseTime"`
	StatusCode   int           `json:"statusCode,omitempty"`
	Error        string        `json:"error,omitempty"`
	ErrorClass   string        `json:"errorClass,omitempty"`
}

// HealthTrends summarises the history of one backend over a window.
type HealthTrends struct {
	Backend             string        `json:"backend"`
	AnalysisPeriod      time.Duration `json:"analysisPeriod"`
	SampleCount         int           `json:"sampleCount"`
	UptimePercentage    float64       `json:"uptimePercentage"`
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	AvailabilityTrend   string        `json:"availabilityTrend"` // "improving", "degrading", "stable"
}

// snapshotRing is a fixed-capacity ring of snapshots, oldest first on read.
type snapshotRing struct {
	items []HealthSnapshot
	next  int
	full  bool
}

func newSnapshotRing(size int) *snapshotRing {
	return &snapshotRing{items: make([]HealthSnapshot, size)}
}

func (r *snapshotRing) push(s HealthSnapshot) {
	r.items[r.next] = s
	r.next = (r.next + 1) % len(r.items)
	if r.next == 0 {
		r.full = true
	}
}

func (r *snapshotRing) snapshots() []HealthSnapshot {
	if !r.full {
		out := make([]HealthSnapshot, r.next)
		copy(out, r.items[:r.next])
		return out
	}
	out := make([]HealthSnapshot, 0, len(r.items))
	out = append(out, r.items[r.next:]...)
	return append(out, r.items[:r.next]...)
}

// NewHealthMonitor creates a monitor with its own pooled HTTP client.
func NewHealthMonitor(historySize int) *HealthMonitor {
	if historySize <= 0 {
		historySize = DefaultHistorySize
	}
	httpClient := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	return &HealthMonitor{
		httpClient:     httpClient,
		healthHistory:  make(map[string]*snapshotRing),
		maxHistorySize: historySize,
	}
}

// HealthURL is the probe address for a profile.
func HealthURL(profile *interfaces.Profile) string {
	return strings.TrimRight(profile.BaseURL, "/") + "/health/"
}

// CheckBackendHealth probes GET {baseURL}/health/. A 2xx answer is ready, a
// transport failure is offline and any other status is an error. The result
// is recorded in the backend's history.
func (hm *HealthMonitor) CheckBackendHealth(ctx context.Context, name string, profile *interfaces.Profile) *interfaces.BackendHealth {
	snapshot := hm.probe(ctx, HealthURL(profile))
	hm.recordHealthSnapshot(name, snapshot)

	return &interfaces.BackendHealth{
		Name:         name,
		Status:       snapshot.Status,
		LastChecked:  snapshot.Timestamp,
		ResponseTime: snapshot.ResponseTime,
		Error:        snapshot.Error,
	}
}

func (hm *HealthMonitor) probe(ctx context.Context, url string) HealthSnapshot {
	start := time.Now()
	snapshot := HealthSnapshot{Timestamp: start}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		snapshot.Status = StatusError
		snapshot.Error = fmt.Sprintf("invalid health url: %v", err)
		return snapshot
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hm.httpClient.Do(req)
	snapshot.ResponseTime = time.Since(start)
	if err != nil {
		snapshot.Status = StatusOffline
		snapshot.Error = err.Error()
		snapshot.ErrorClass = classifyNetworkError(err)
		return snapshot
	}
	defer resp.Body.Close()

	snapshot.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		snapshot.Status = StatusReady
		return snapshot
	}
	snapshot.Status = StatusError
	snapshot.Error = fmt.Sprintf("health endpoint returned HTTP %d", resp.StatusCode)
	return snapshot
}

// GetHealthHistory returns up to limit of the most recent snapshots, oldest
// first. A limit of zero returns everything kept.
func (hm *HealthMonitor) GetHealthHistory(name string, limit int) []HealthSnapshot {
	hm.mutex.RLock()
	defer hm.mutex.RUnlock()

	ring, exists := hm.healthHistory[name]
	if !exists {
		return []HealthSnapshot{}
	}
	history := ring.snapshots()
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}

// GetHealthTrends analyzes the snapshots taken within the last duration.
func (hm *HealthMonitor) GetHealthTrends(name string, duration time.Duration) (*HealthTrends, error) {
	hm.mutex.RLock()
	ring, exists := hm.healthHistory[name]
	var history []HealthSnapshot
	if exists {
		history = ring.snapshots()
	}
	hm.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no health history available for backend '%s'", name)
	}

	cutoff := time.Now().Add(-duration)
	var recent []HealthSnapshot
	for _, snapshot := range history {
		if snapshot.Timestamp.After(cutoff) {
			recent = append(recent, snapshot)
		}
	}

	trends := &HealthTrends{
		Backend:        name,
		AnalysisPeriod: duration,
		SampleCount:    len(recent),
	}
	if len(recent) == 0 {
		return trends, nil
	}

	var total time.Duration
	for _, snapshot := range recent {
		total += snapshot.ResponseTime
	}
	trends.UptimePercentage = uptime(recent)
	trends.AverageResponseTime = total / time.Duration(len(recent))

	trends.AvailabilityTrend = "stable"
	if len(recent) >= 2 {
		first, second := uptime(recent[:len(recent)/2]), uptime(recent[len(recent)/2:])
		switch {
		case second > first:
			trends.AvailabilityTrend = "improving"
		case second < first:
			trends.AvailabilityTrend = "degrading"
		}
	}
	return trends, nil
}

func uptime(snapshots []HealthSnapshot) float64 {
	ready := 0
	for _, snapshot := range snapshots {
		if snapshot.Status == StatusReady {
			ready++
		}
	}
	return float64(ready) / float64(len(snapshots)) * 100
}

// ClearHealthHistory removes all health history for a backend.
func (hm *HealthMonitor) ClearHealthHistory(name string) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()
	delete(hm.healthHistory, name)
}

func (hm *HealthMonitor) recordHealthSnapshot(name string, snapshot HealthSnapshot) {
	hm.mutex.Lock()
	defer hm.mutex.Unlock()

	ring, exists := hm.healthHistory[name]
	if !exists {
		ring = newSnapshotRing(hm.maxHistorySize)
		hm.healthHistory[name] = ring
	}
	ring.push(snapshot)
}

// classifyNetworkError categorizes transport errors for the log.
func classifyNetworkError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "connection refused"):
		return "connection_refused"
	case strings.Contains(errStr, "no such host"):
		return "dns_failure"
	case strings.Contains(errStr, "network is unreachable"):
		return "network_unreachable"
	}
	return "unknown_network_error"
}

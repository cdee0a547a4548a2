package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chatvibe/console/internal/config"
	"github.com/chatvibe/console/internal/devserver"
	"github.com/chatvibe/console/internal/interfaces"
)

type backendFixture struct {
	name string
	base string
}

// newTestRegistry registers one backend per fixture on top of a fresh config
// file and returns a manager over them.
func newTestRegistry(t *testing.T, fixtures ...backendFixture) *Manager {
	t.Helper()
	cm, err := config.NewManagerWithPath(filepath.Join(t.TempDir(), "profiles.yaml"))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	for _, f := range fixtures {
		profile := &interfaces.Profile{
			Name:           strings.ToLower(f.name),
			BaseURL:        f.base,
			SocketURL:      "ws" + strings.TrimPrefix(f.base, "http"),
			CredentialMode: interfaces.CredentialsBearer,
			Theme:          "mocha",
		}
		if err := cm.SaveProfile(profile); err != nil {
			t.Fatalf("SaveProfile: %v", err)
		}
		if err := cm.RegisterBackend(interfaces.RegisteredBackend{Name: f.name, Profile: profile.Name}); err != nil {
			t.Fatalf("RegisterBackend: %v", err)
		}
	}

	m, err := NewManager(cm, RegistryPreferences{HealthCheckTimeout: time.Second, HistorySize: 4})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func devBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(devserver.New(devserver.Options{CredentialMode: interfaces.CredentialsBearer, Secret: []byte("k")}))
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func failingBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func deadBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/api"
	srv.Close()
	return url
}

func TestCheckBackendHealth(t *testing.T) {
	m := newTestRegistry(t,
		backendFixture{"Dev", devBackend(t)},
		backendFixture{"Broken", failingBackend(t)},
		backendFixture{"Gone", deadBackend(t)},
	)

	tests := []struct {
		backend string
		want    string
		hasErr  bool
	}{
		{"Dev", StatusReady, false},
		{"Broken", StatusError, true},
		{"Gone", StatusOffline, true},
	}
	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			health, err := m.CheckBackendHealth(context.Background(), tt.backend)
			if err != nil {
				t.Fatalf("CheckBackendHealth: %v", err)
			}
			if health.Status != tt.want {
				t.Errorf("status = %q, want %q (%s)", health.Status, tt.want, health.Error)
			}
			if (health.Error != "") != tt.hasErr {
				t.Errorf("error = %q", health.Error)
			}
			if health.LastChecked.IsZero() {
				t.Error("LastChecked not set")
			}

			stored, err := m.GetBackendHealth(tt.backend)
			if err != nil || stored.Status != tt.want {
				t.Errorf("stored health = %+v, %v", stored, err)
			}
		})
	}

	stats := m.GetRegistryStatistics()
	if stats.ReadyBackends != 1 || stats.OfflineBackends != 1 || stats.ErrorBackends != 1 {
		t.Errorf("statistics = %+v", stats)
	}
}

func TestUnknownBackend(t *testing.T) {
	m := newTestRegistry(t)
	if _, err := m.CheckBackendHealth(context.Background(), "nope"); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := m.GetBackendHealth("nope"); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestRegisteredBackendsCarryStatus(t *testing.T) {
	m := newTestRegistry(t, backendFixture{"Dev", devBackend(t)})

	backends, _ := m.GetRegisteredBackends()
	if len(backends) != 2 || backends[1].Name != "Dev" || backends[1].Status != StatusUnknown {
		t.Fatalf("before check = %+v", backends)
	}

	if _, err := m.CheckBackendHealth(context.Background(), "Dev"); err != nil {
		t.Fatal(err)
	}
	backends, _ = m.GetRegisteredBackends()
	if backends[1].Status != StatusReady {
		t.Errorf("after check = %+v", backends[1])
	}
}

func TestHealthHistoryIsBounded(t *testing.T) {
	m := newTestRegistry(t, backendFixture{"Dev", devBackend(t)})

	for i := 0; i < 6; i++ {
		if _, err := m.CheckBackendHealth(context.Background(), "Dev"); err != nil {
			t.Fatal(err)
		}
	}

	history := m.HealthHistory("Dev", 0)
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}
	for i := 1; i < len(history); i++ {
		if history[i].Timestamp.Before(history[i-1].Timestamp) {
			t.Errorf("history not oldest first at %d", i)
		}
	}
	if got := m.HealthHistory("Dev", 2); len(got) != 2 || got[1] != history[3] {
		t.Errorf("limited history = %+v", got)
	}

	trends, err := m.HealthTrends("Dev", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if trends.SampleCount != 4 || trends.UptimePercentage != 100 || trends.AvailabilityTrend != "stable" {
		t.Errorf("trends = %+v", trends)
	}
}

func TestSnapshotRingWraps(t *testing.T) {
	r := newSnapshotRing(3)
	for i := 1; i <= 5; i++ {
		r.push(HealthSnapshot{StatusCode: i})
	}
	got := r.snapshots()
	if len(got) != 3 || got[0].StatusCode != 3 || got[2].StatusCode != 5 {
		t.Errorf("ring = %+v", got)
	}
}

func TestHealthMonitoringLifecycle(t *testing.T) {
	m := newTestRegistry(t, backendFixture{"Dev", devBackend(t)})

	if err := m.StopHealthMonitoring(); err == nil {
		t.Error("stop before start should fail")
	}
	if err := m.StartHealthMonitoring(context.Background(), 20*time.Millisecond); err != nil {
		t.Fatalf("StartHealthMonitoring: %v", err)
	}
	if err := m.StartHealthMonitoring(context.Background(), time.Second); err == nil {
		t.Error("second start should fail")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if h, err := m.GetBackendHealth("Dev"); err == nil && h.Status == StatusReady {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("monitoring never checked the backend")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := m.StopHealthMonitoring(); err != nil {
		t.Fatalf("StopHealthMonitoring: %v", err)
	}
	if m.MonitoringActive() {
		t.Error("monitoring still active")
	}

	checks := m.GetRegistryStatistics().BackendMetrics["Dev"].TotalChecks
	time.Sleep(60 * time.Millisecond)
	if after := m.GetRegistryStatistics().BackendMetrics["Dev"].TotalChecks; after != checks {
		t.Errorf("checks continued after stop: %d -> %d", checks, after)
	}
}

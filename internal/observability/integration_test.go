package observability

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestObservabilityServerIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	logger := NewLogger("error")
	healthChecker := NewHealthChecker(logger)
	healthChecker.RegisterCritical(ComponentWatcher)
	healthChecker.UpdateComponentHealth(ComponentWatcher, StatusHealthy, "")

	// Touch a metric so it shows up in the exposition
	GetMetrics().CyclesTotal.Add(0)

	metricsPort := 19390
	healthPort := 18381
	server := NewServer(metricsPort, healthPort, logger, healthChecker)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- server.Start(ctx)
	}()

	get := func(url string) (int, string) {
		t.Helper()
		var lastErr error
		for i := 0; i < 20; i++ {
			resp, err := http.Get(url)
			if err != nil {
				lastErr = err
				time.Sleep(25 * time.Millisecond)
				continue
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}
		t.Fatalf("GET %s failed: %v", url, lastErr)
		return 0, ""
	}

	t.Run("metrics endpoint", func(t *testing.T) {
		code, body := get(fmt.Sprintf("http://localhost:%d/metrics", metricsPort))
		if code != http.StatusOK {
			t.Errorf("expected status 200, got %d", code)
		}
		if !strings.Contains(body, "cvealert_cycles_total") {
			t.Error("expected cvealert metrics in exposition")
		}
	})

	t.Run("health endpoint", func(t *testing.T) {
		code, body := get(fmt.Sprintf("http://localhost:%d/health", healthPort))
		if code != http.StatusOK {
			t.Errorf("expected status 200, got %d", code)
		}
		if !strings.Contains(body, ComponentWatcher) {
			t.Errorf("expected watcher component in %s", body)
		}
	})

	t.Run("ready endpoint", func(t *testing.T) {
		code, _ := get(fmt.Sprintf("http://localhost:%d/ready", healthPort))
		if code != http.StatusOK {
			t.Errorf("expected status 200, got %d", code)
		}
	})

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}

package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func up(context.Context) ComponentHealth { return ComponentHealth{Status: StatusUp} }

func down(context.Context) ComponentHealth {
	return ComponentHealth{Status: StatusDown, Message: "connection refused"}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name      string
		required  Check
		optional  Check
		want      Status
		wantReady bool
	}{
		{"all up", up, up, StatusUp, true},
		{"optional down", up, down, StatusDegraded, true},
		{"required down", down, up, StatusDown, false},
		{"required degraded", func(context.Context) ComponentHealth {
			return ComponentHealth{Status: StatusDegraded}
		}, up, StatusDegraded, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(time.Second)
			c.Register("store", tt.required)
			c.RegisterOptional("cache", tt.optional)
			report := c.Run(context.Background())
			if report.Status != tt.want {
				t.Errorf("status = %s, want %s", report.Status, tt.want)
			}
			if report.Ready() != tt.wantReady {
				t.Errorf("ready = %v, want %v", report.Ready(), tt.wantReady)
			}
			if !report.Components["cache"].Optional || report.Components["store"].Optional {
				t.Errorf("optional flags wrong: %+v", report.Components)
			}
		})
	}
}

func TestCheckTimeout(t *testing.T) {
	c := NewChecker(10 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) ComponentHealth {
		<-ctx.Done()
		return ComponentHealth{Status: StatusDown, Message: ctx.Err().Error()}
	})
	start := time.Now()
	report := c.Run(context.Background())
	if time.Since(start) > time.Second {
		t.Error("check was not bounded by the timeout")
	}
	if report.Status != StatusDown {
		t.Errorf("status = %s", report.Status)
	}
}

func TestHandlers(t *testing.T) {
	c := NewChecker(time.Second)
	c.Register("store", down)

	rec := httptest.NewRecorder()
	c.LiveHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	c.ReadyHandler()(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want 503", rec.Code)
	}
	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Components["store"].Message != "connection refused" {
		t.Errorf("report = %+v", report)
	}
}

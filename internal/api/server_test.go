package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal/memory"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/internal/series"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

func newTestServer(t *testing.T) (*Server, *series.Store, *memory.Store) {
	t.Helper()

	store := series.New()
	journal := memory.New(16)
	metrics := telemetry.New()

	srv := NewServer(Options{
		MetricsPath: "/metrics",
		Store:       store,
		Journal:     journal,
		Metrics:     metrics,
		Connected:   func() bool { return true },
	})
	return srv, store, journal
}

func seedSeries(t *testing.T, store *series.Store) {
	t.Helper()
	rule := &rules.MetricRule{
		MetricName: "mqtt_metrics",
		MetricType: models.TypeGauge,
		MetricHelp: "values from mqtt",
	}
	store.Upsert(models.SeriesKey{Metric: "mqtt_metrics", Labels: `device="kitchen"`}, 21.5, time.Now(), rule)
}

func doRequest(t *testing.T, srv *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestMetricsEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedSeries(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}

	body := rec.Body.String()
	if !strings.Contains(body, `mqtt_metrics{device="kitchen"} 21.5`) {
		t.Errorf("bridged series missing from exposition:\n%s", body)
	}
	if !strings.Contains(body, "# TYPE mqtt_metrics gauge") {
		t.Errorf("TYPE header missing:\n%s", body)
	}
	if !strings.Contains(body, "mqttbridge_messages_received_total") {
		t.Errorf("self telemetry missing from exposition:\n%s", body)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedSeries(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var health HealthResponse
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || !health.BrokerConnected || health.Series != 1 {
		t.Errorf("unexpected health response %+v", health)
	}
}

func TestListSeries(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedSeries(t, store)

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/series")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data  []models.SeriesPoint `json:"data"`
		Total int                  `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Data) != 1 {
		t.Fatalf("total = %d, data = %d", resp.Total, len(resp.Data))
	}
	if resp.Data[0].Metric != "mqtt_metrics" || resp.Data[0].Value != 21.5 {
		t.Errorf("unexpected series %+v", resp.Data[0])
	}
}

func TestListEvents(t *testing.T) {
	srv, _, journal := newTestServer(t)
	for i := 0; i < 3; i++ {
		err := journal.Append(context.Background(), models.Event{
			Time:    time.Now(),
			Rule:    "mqtt_metrics",
			Topic:   "t",
			Outcome: models.OutcomeSeriesUpdated,
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/v1/events?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Data  []models.Event `json:"data"`
		Total int            `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want limit applied", resp.Total)
	}
}

func TestUnknownRoute(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := doRequest(t, srv, http.MethodGet, "/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

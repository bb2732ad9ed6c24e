package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status          string    `json:"status"`
	Timestamp       time.Time `json:"timestamp"`
	Uptime          string    `json:"uptime,omitempty"`
	BrokerConnected bool      `json:"broker_connected"`
	Series          int       `json:"series"`
}

var startTime = time.Now()

// HandleHealth returns the health status of the bridge.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	connected := false
	if s.opts.Connected != nil {
		connected = s.opts.Connected()
	}
	seriesCount := 0
	if s.opts.Store != nil {
		seriesCount = s.opts.Store.Len()
	}

	response := HealthResponse{
		Status:          "ok",
		Timestamp:       time.Now(),
		Uptime:          time.Since(startTime).String(),
		BrokerConnected: connected,
		Series:          seriesCount,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

package main

import (
	"encoding/json"
	"net/http"
	"time"

	"kchat/internal/metrics"

	"github.com/sirupsen/logrus"
)

// handleMetrics serves a JSON snapshot of the in-memory metrics registry.
func (s *Server) handleMetrics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot := map[string]interface{}{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"metrics":   metrics.GetAllMetrics(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(snapshot); err != nil {
			s.logger.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Error("Failed to encode metrics snapshot")
			http.Error(w, "Failed to encode metrics", http.StatusInternalServerError)
		}
	}
}

package handlers

import (
	"net/http"

	"github.com/kozaktomas/face-registry/internal/config"
)

// ConfigHandler handles configuration endpoints
type ConfigHandler struct {
	config  *config.Config
	storage string
}

// NewConfigHandler creates a new config handler. storage is a human readable
// description of the active backend.
func NewConfigHandler(cfg *config.Config, storage string) *ConfigHandler {
	return &ConfigHandler{
		config:  cfg,
		storage: storage,
	}
}

// ConfigResponse represents the configuration response
type ConfigResponse struct {
	Backend        string  `json:"backend"`
	Storage        string  `json:"storage"`
	MatchThreshold float64 `json:"match_threshold"`
	MatchMetric    string  `json:"match_metric"`
	MaxUploadBytes int64   `json:"max_upload_bytes"`
}

// Get returns the public part of the configuration
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, ConfigResponse{
		Backend:        h.config.Storage.Backend,
		Storage:        h.storage,
		MatchThreshold: h.config.Match.Threshold,
		MatchMetric:    h.config.Match.Metric,
		MaxUploadBytes: h.config.Web.MaxBodyBytes,
	})
}

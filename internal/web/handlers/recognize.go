package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/kozaktomas/face-registry/internal/recognize"
	"go.uber.org/zap"
)

// Matcher is implemented by recognize.Recognizer.
type Matcher interface {
	Match(ctx context.Context, query []float64, threshold float64) (recognize.Result, error)
}

// RecognizeHandler identifies a face descriptor against registered users.
type RecognizeHandler struct {
	matcher Matcher
	logger  *zap.Logger
}

// NewRecognizeHandler creates a new recognize handler.
func NewRecognizeHandler(m Matcher, logger *zap.Logger) *RecognizeHandler {
	return &RecognizeHandler{
		matcher: m,
		logger:  logger,
	}
}

// RecognizeRequest is the body of POST /api/recognize.
type RecognizeRequest struct {
	Descriptor []float64 `json:"descriptor"`
	Threshold  float64   `json:"threshold,omitempty"`
}

// RecognizeResponse reports the closest user. Name and ID are only set on a
// match; Distance is omitted when no descriptor of the same length exists.
type RecognizeResponse struct {
	Match     bool     `json:"match"`
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name,omitempty"`
	Distance  *float64 `json:"distance,omitempty"`
	Threshold float64  `json:"threshold"`
}

// Recognize handles POST /api/recognize.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	var req RecognizeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Threshold < 0 {
		respondError(w, http.StatusBadRequest, "threshold must not be negative")
		return
	}

	res, err := h.matcher.Match(r.Context(), req.Descriptor, req.Threshold)
	if err != nil {
		if errors.Is(err, recognize.ErrEmptyDescriptor) {
			respondError(w, http.StatusBadRequest, "descriptor is required")
			return
		}
		h.logger.Error("recognition failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to recognize face")
		return
	}

	resp := RecognizeResponse{
		Match:     res.Matched,
		Threshold: res.Threshold,
	}
	if res.Best != nil {
		dist := res.Best.Distance
		resp.Distance = &dist
		if res.Matched {
			resp.ID = res.Best.Record.ID
			resp.Name = res.Best.Record.Name
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// respondJSON sends a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Enrolled      int     `json:"enrolled"`
	PresentToday  int     `json:"present_today"`
	TotalAttempts int     `json:"total_attempts"`
	Matched       int     `json:"matched_attempts"`
	MatchRate     float64 `json:"match_rate"`
	AvgLatencyMS  float64 `json:"avg_latency_ms"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	enrolled, err := s.signatures.Count(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count identities")
		return
	}
	presentToday, err := s.log.CountMatchedToday(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to count presence")
		return
	}
	stats, err := s.log.Stats(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}

	respondJSON(w, http.StatusOK, statusResponse{
		Enrolled:      enrolled,
		PresentToday:  presentToday,
		TotalAttempts: stats.TotalAttempts,
		Matched:       stats.MatchedAttempts,
		MatchRate:     stats.MatchRate(),
		AvgLatencyMS:  stats.AvgLatencyMS,
	})
}

type attemptResponse struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id,omitempty"`
	Outcome    string    `json:"outcome"`
	Score      *float64  `json:"score,omitempty"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = parsed
	}

	attempts, err := s.log.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load attempts")
		return
	}

	out := make([]attemptResponse, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, attemptResponse{
			ID:         a.ID,
			IdentityID: a.IdentityID,
			Outcome:    string(a.Outcome),
			Score:      a.Score,
			LatencyMS:  a.LatencyMS,
			CreatedAt:  a.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"attempts": out,
		"count":    len(out),
	})
}

package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vidserve/records"
)

type reconvertRequest struct {
	VideoID string `json:"videoId"`
	Format  string `json:"format"`
}

type reconvertResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	VideoID string `json:"videoId,omitempty"`
}

// ReconvertHandler re-runs a caller-owned record's source against a new
// format. The response names the new record; the original is untouched.
func ReconvertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	var req reconvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.VideoID == "" || req.Format == "" {
		http.Error(w, "videoId and format are required", http.StatusBadRequest)
		return
	}

	rec, err := orch.Reconvert(r.Context(), claims.Subject, req.VideoID, req.Format)
	if errors.Is(err, records.ErrNotFound) {
		respondJSON(w, http.StatusNotFound, reconvertResponse{
			Success: false,
			Message: "Video not found",
		})
		return
	}
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, reconvertResponse{
			Success: false,
			Message: fmt.Sprintf("Error in video conversion: %v", err),
		})
		return
	}

	respondJSON(w, http.StatusOK, reconvertResponse{
		Success: true,
		Message: "Conversion completed",
		VideoID: rec.ID,
	})
}

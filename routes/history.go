package routes

import (
	"fmt"
	"net/http"

	"vidserve/logger"
	"vidserve/models"
	"vidserve/records"
)

// HistoryHandler returns the caller's conversion records, newest first.
func HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	recs, err := records.ListByOwner(claims.Subject)
	if err != nil {
		logger.Errorf("failed to list records for %s: %v", claims.Subject, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []models.VideoRecord{}
	}

	respondJSON(w, http.StatusOK, recs)
}

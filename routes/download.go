package routes

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"vidserve/logger"
	"vidserve/records"
)

// DownloadHandler streams the converted artifact of a caller-owned record.
// A missing record, a record owned by someone else and a record whose
// backing file has vanished all surface as the same 404; callers cannot
// probe for other owners' ids.
func DownloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Missing video id", http.StatusBadRequest)
		return
	}

	rec, err := records.Get(claims.Subject, id)
	if errors.Is(err, records.ErrNotFound) {
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Errorf("failed to fetch record %s: %v", id, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if _, err := os.Stat(rec.Result.StoragePath); err != nil {
		logger.Warnf("record %s has no backing file at %s: %v", id, rec.Result.StoragePath, err)
		http.Error(w, "Video not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+rec.Result.Filename+"\"")
	http.ServeFile(w, r, rec.Result.StoragePath)
}

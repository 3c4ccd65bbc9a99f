package routes

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"vidserve/config"
	"vidserve/job"
	"vidserve/logger"
	"vidserve/utils"
)

const defaultFormat = "avi"

// ConvertHandler accepts a multipart video upload plus a target format,
// runs the conversion to its terminal state and responds with the persisted
// record. The upload is rejected before any job exists when it is not an
// MP4; the format string itself is passed through to the engine unchecked.
func ConvertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := verifyJWT(r)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, config.GetMaxUploadBytes()+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "No file uploaded.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Header.Get("Content-Type") != "video/mp4" {
		http.Error(w, "Invalid file type. Only MP4 files are allowed.", http.StatusBadRequest)
		return
	}

	format := r.FormValue("format")
	if format == "" {
		format = defaultFormat
	}

	// Promote the upload out of the multipart spool into the sources
	// directory; the stored copy is what later reconversions run against.
	storedName := utils.UniqueUploadName(header.Filename)
	sourcePath := filepath.Join(config.GetUploadsDir(), storedName)

	out, err := os.Create(sourcePath)
	if err != nil {
		logger.Errorf("failed to create source file %s: %v", sourcePath, err)
		http.Error(w, "Failed to save upload", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(out, file)
	out.Close()
	if err != nil {
		_ = os.Remove(sourcePath)
		logger.Errorf("failed to persist upload %s: %v", sourcePath, err)
		http.Error(w, "Failed to save upload", http.StatusInternalServerError)
		return
	}

	rec, err := orch.Convert(r.Context(), job.Request{
		Owner:      claims.Subject,
		SourceName: storedName,
		SourcePath: sourcePath,
		SourceSize: size,
		Format:     format,
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Error in video conversion: %v", err), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

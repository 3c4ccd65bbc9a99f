package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vidserve/auth"
	"vidserve/config"
	"vidserve/engine"
	"vidserve/job"
	"vidserve/models"
	"vidserve/notify"
	"vidserve/records"

	"github.com/gorilla/websocket"
)

// fakeEngine produces a canned output file instead of running ffmpeg.
type fakeEngine struct {
	fail bool
}

func (f *fakeEngine) Transcode(ctx context.Context, sourcePath, targetFormat, destPath string) <-chan engine.Event {
	events := make(chan engine.Event, 8)
	go func() {
		defer close(events)
		events <- engine.Event{Type: engine.EventStarted, Command: "fake"}
		if f.fail {
			events <- engine.Event{Type: engine.EventFailed, Reason: "fake failure"}
			return
		}
		os.WriteFile(destPath, []byte("converted-bytes"), 0644)
		events <- engine.Event{Type: engine.EventCompleted}
	}()
	return events
}

func (f *fakeEngine) Probe(ctx context.Context, path string) (models.MediaInfo, error) {
	return models.MediaInfo{DurationSeconds: 5, Resolution: "640x480", Bitrate: 100000}, nil
}

func setupRoutes(t *testing.T, eng job.Engine) {
	t.Helper()
	base := t.TempDir()
	uploads := filepath.Join(base, "uploads")
	converted := filepath.Join(base, "converted")
	for _, dir := range []string{uploads, converted} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}
	t.Setenv("VIDSERVE_UPLOADS_DIR", uploads)
	t.Setenv("VIDSERVE_CONVERTED_DIR", converted)

	if err := records.Init(filepath.Join(base, "records.db")); err != nil {
		t.Fatalf("Failed to initialize record store: %v", err)
	}
	t.Cleanup(func() { records.Close() })

	SetOrchestrator(&job.Orchestrator{Engine: eng, ConvertedDir: converted})
}

func tokenFor(t *testing.T, subject string) string {
	t.Helper()
	now := time.Now().Unix()
	token, err := auth.CreateAccountJWT(&models.AccountJWT{
		Subject:   subject,
		IssuedAt:  now,
		ExpiresAt: now + 3600,
	}, []byte(config.GetJWTSecret()))
	if err != nil {
		t.Fatalf("Failed to create token: %v", err)
	}
	return token
}

// uploadRequest builds a multipart POST with one "video" part carrying the
// given content type.
func uploadRequest(t *testing.T, filename, contentType, format string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="video"; filename="`+filename+`"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("Failed to create part: %v", err)
	}
	part.Write(data)
	if format != "" {
		w.WriteField("format", format)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestConvertSuccess(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := uploadRequest(t, "clip.mp4", "video/mp4", "webm", []byte("mp4-bytes"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var rec models.VideoRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if rec.Owner != "alice" {
		t.Errorf("Expected owner alice, got %s", rec.Owner)
	}
	if rec.Result.Format != "webm" {
		t.Errorf("Expected format webm, got %s", rec.Result.Format)
	}
	if _, err := os.Stat(rec.Source.StoragePath); err != nil {
		t.Errorf("Uploaded source is missing: %v", err)
	}
	if _, err := records.Get("alice", rec.ID); err != nil {
		t.Errorf("Record was not persisted: %v", err)
	}
}

func TestConvertDefaultFormat(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := uploadRequest(t, "clip.mp4", "video/mp4", "", []byte("mp4-bytes"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var rec models.VideoRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if rec.Result.Format != "avi" {
		t.Errorf("Expected default format avi, got %s", rec.Result.Format)
	}
}

func TestConvertRejectsNonMP4(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := uploadRequest(t, "notes.txt", "text/plain", "avi", []byte("plain text"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Only MP4 files are allowed") {
		t.Errorf("Unexpected error body: %s", rr.Body.String())
	}

	// The rejected upload must leave no trace.
	entries, _ := os.ReadDir(config.GetUploadsDir())
	if len(entries) != 0 {
		t.Errorf("Rejected upload left %d file(s) in the uploads dir", len(entries))
	}
	recs, _ := records.ListByOwner("alice")
	if len(recs) != 0 {
		t.Errorf("Rejected upload created %d record(s)", len(recs))
	}
}

func TestConvertRequiresAuth(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := uploadRequest(t, "clip.mp4", "video/mp4", "avi", []byte("mp4-bytes"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without a token, got %d", rr.Code)
	}

	req = uploadRequest(t, "clip.mp4", "video/mp4", "avi", []byte("mp4-bytes"))
	req.Header.Set("Authorization", "Bearer garbage")
	rr = httptest.NewRecorder()
	ConvertHandler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with a bad token, got %d", rr.Code)
	}
}

func TestConvertMissingFile(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("format", "avi")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a video part, got %d", rr.Code)
	}
}

func TestConvertEngineFailure(t *testing.T) {
	setupRoutes(t, &fakeEngine{fail: true})

	req := uploadRequest(t, "clip.mp4", "video/mp4", "avi", []byte("mp4-bytes"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Error in video conversion") {
		t.Errorf("Unexpected error body: %s", rr.Body.String())
	}
	recs, _ := records.ListByOwner("alice")
	if len(recs) != 0 {
		t.Errorf("Failed conversion created %d record(s)", len(recs))
	}
}

func TestConvertMethodNotAllowed(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	rr := httptest.NewRecorder()
	ConvertHandler(rr, httptest.NewRequest(http.MethodGet, "/api/convert", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rr.Code)
	}
}

// convertFor uploads one file as subject and returns the created record.
func convertFor(t *testing.T, subject string) models.VideoRecord {
	t.Helper()
	req := uploadRequest(t, "clip.mp4", "video/mp4", "avi", []byte("mp4-bytes"))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, subject))
	rr := httptest.NewRecorder()
	ConvertHandler(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("Conversion setup failed: %d: %s", rr.Code, rr.Body.String())
	}
	var rec models.VideoRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Failed to decode record: %v", err)
	}
	return rec
}

func TestReconvert(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	rec := convertFor(t, "alice")

	body, _ := json.Marshal(map[string]string{"videoId": rec.ID, "format": "webm"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconvert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ReconvertHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("Expected success, got %+v", resp)
	}
	if resp.VideoID == "" || resp.VideoID == rec.ID {
		t.Errorf("Expected a fresh record id, got %q", resp.VideoID)
	}
}

func TestReconvertUnknownVideo(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	body, _ := json.Marshal(map[string]string{"videoId": "no-such-id", "format": "webm"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconvert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ReconvertHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Video not found") {
		t.Errorf("Unexpected body: %s", rr.Body.String())
	}
}

func TestReconvertCrossOwner(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	rec := convertFor(t, "alice")

	body, _ := json.Marshal(map[string]string{"videoId": rec.ID, "format": "webm"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconvert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "mallory"))
	rr := httptest.NewRecorder()
	ReconvertHandler(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another owner's record, got %d", rr.Code)
	}
}

func TestReconvertMissingFields(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	body, _ := json.Marshal(map[string]string{"videoId": "some-id"})
	req := httptest.NewRequest(http.MethodPost, "/api/reconvert", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	ReconvertHandler(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without a format, got %d", rr.Code)
	}
}

func TestHistory(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	convertFor(t, "alice")
	convertFor(t, "alice")
	convertFor(t, "bob")

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	rr := httptest.NewRecorder()
	HistoryHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var recs []models.VideoRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatalf("Failed to decode history: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if rec.Owner != "alice" {
			t.Errorf("History leaked a record owned by %s", rec.Owner)
		}
	}
	// Newest first.
	if recs[0].CreatedAt.Before(recs[1].CreatedAt) {
		t.Errorf("History out of order: %v then %v", recs[0].CreatedAt, recs[1].CreatedAt)
	}
}

func TestHistoryEmpty(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "nobody"))
	rr := httptest.NewRecorder()
	HistoryHandler(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("Expected an empty JSON array, got %s", rr.Body.String())
	}
}

func downloadRequest(id, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/download/"+id, nil)
	req.SetPathValue("id", id)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestDownload(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	rec := convertFor(t, "alice")

	rr := httptest.NewRecorder()
	DownloadHandler(rr, downloadRequest(rec.ID, tokenFor(t, "alice")))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	if string(body) != "converted-bytes" {
		t.Errorf("Downloaded bytes differ from the converted artifact: %q", body)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, rec.Result.Filename) {
		t.Errorf("Content-Disposition does not name the artifact: %q", disposition)
	}
}

func TestDownloadUnknownVideo(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	rr := httptest.NewRecorder()
	DownloadHandler(rr, downloadRequest("no-such-id", tokenFor(t, "alice")))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}

func TestDownloadCrossOwner(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	rec := convertFor(t, "alice")

	rr := httptest.NewRecorder()
	DownloadHandler(rr, downloadRequest(rec.ID, tokenFor(t, "mallory")))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for another owner's record, got %d", rr.Code)
	}
}

func TestDownloadMissingBackingFile(t *testing.T) {
	setupRoutes(t, &fakeEngine{})
	rec := convertFor(t, "alice")

	if err := os.Remove(rec.Result.StoragePath); err != nil {
		t.Fatalf("Failed to remove backing file: %v", err)
	}

	rr := httptest.NewRecorder()
	DownloadHandler(rr, downloadRequest(rec.ID, tokenFor(t, "alice")))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when the backing file is gone, got %d", rr.Code)
	}
}

func TestLiveRejectsBadToken(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	req := httptest.NewRequest(http.MethodGet, "/ws?token=garbage", nil)
	rr := httptest.NewRecorder()
	LiveHandler(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for a bad token, got %d", rr.Code)
	}
}

func TestLiveDeliversProgress(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	srv := httptest.NewServer(http.HandlerFunc(LiveHandler))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?token=" + tokenFor(t, "alice")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	// Connection registration races the publish; poll until delivered.
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			notify.Publish("alice", models.ProgressMessage{
				Status:  models.StatusProgress,
				VideoID: "vid-1",
				Percent: 10,
			})
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var msg models.ProgressMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read progress message: %v", err)
	}
	if msg.Status != models.StatusProgress || msg.VideoID != "vid-1" {
		t.Errorf("Got unexpected message: %+v", msg)
	}
}

func TestHealthHandler(t *testing.T) {
	setupRoutes(t, &fakeEngine{})

	rr := httptest.NewRecorder()
	HealthHandler(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp HealthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("Expected healthy status, got %s", resp.Status)
	}
}

func TestVersionHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	VersionHandler(rr, httptest.NewRequest(http.MethodGet, "/version", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode version response: %v", err)
	}
	if resp["version"] == "" {
		t.Error("Expected a version field")
	}
}

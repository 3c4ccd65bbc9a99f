package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// GetDataDir returns the directory where vidserve keeps its databases.
// Priority: VIDSERVE_DATA_DIR environment variable > "./data" default.
func GetDataDir() string {
	if dir := os.Getenv("VIDSERVE_DATA_DIR"); dir != "" {
		return dir
	}
	return "./data"
}

// GetRecordsDBPath returns the full path to the conversion records database.
// Path: {DATA_DIR}/records.db
func GetRecordsDBPath() string {
	return filepath.Join(GetDataDir(), "records.db")
}

// GetUploadsDir returns the directory holding uploaded sources. Sources
// referenced by a record stay here so reconversion never needs a re-upload;
// unreferenced leftovers are reaped by the orphan sweep. Configurable via
// VIDSERVE_UPLOADS_DIR.
func GetUploadsDir() string {
	if dir := os.Getenv("VIDSERVE_UPLOADS_DIR"); dir != "" {
		return dir
	}
	return "./uploads"
}

// GetConvertedDir returns the directory holding transcoded outputs. Files
// here back persisted records and must outlive them. Configurable via
// VIDSERVE_CONVERTED_DIR.
func GetConvertedDir() string {
	if dir := os.Getenv("VIDSERVE_CONVERTED_DIR"); dir != "" {
		return dir
	}
	return "./converted"
}

// GetListenAddr returns the HTTP listen address (VIDSERVE_ADDR, ":8080").
func GetListenAddr() string {
	if addr := os.Getenv("VIDSERVE_ADDR"); addr != "" {
		return addr
	}
	return ":8080"
}

// GetJWTSecret returns the HMAC secret shared with the auth issuer.
// Tokens are issued by an external collaborator; vidserve only verifies.
func GetJWTSecret() string {
	if secret := os.Getenv("VIDSERVE_JWT_SECRET"); secret != "" {
		return secret
	}
	// Development default, not suitable for production deployments.
	return "vidserve-dev-secret-change-me-32-bytes!"
}

// GetMaxUploadBytes returns the multipart upload size limit.
// Defaults to 100MB, matching the historical limit of the service.
func GetMaxUploadBytes() int64 {
	if v := os.Getenv("VIDSERVE_MAX_UPLOAD_BYTES"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 100 * 1024 * 1024
}

// GetArchiveBackend returns the configured artifact archive backend type:
// "s3", "gcs", "sftp", or "" when archiving is disabled.
func GetArchiveBackend() string {
	return os.Getenv("VIDSERVE_ARCHIVE_BACKEND")
}

// GetArchiveAccessInfo collects backend credentials and destination settings
// from VIDSERVE_ARCHIVE_* environment variables into the access-info map the
// archive writers consume. Keys follow each writer's contract (bucket,
// region, accessKey, host, remoteDir, ...).
func GetArchiveAccessInfo() map[string]string {
	keys := map[string]string{
		"bucket":          "VIDSERVE_ARCHIVE_BUCKET",
		"region":          "VIDSERVE_ARCHIVE_REGION",
		"accessKey":       "VIDSERVE_ARCHIVE_ACCESS_KEY",
		"secretKey":       "VIDSERVE_ARCHIVE_SECRET_KEY",
		"credentialsJSON": "VIDSERVE_ARCHIVE_CREDENTIALS_JSON",
		"host":            "VIDSERVE_ARCHIVE_HOST",
		"port":            "VIDSERVE_ARCHIVE_PORT",
		"user":            "VIDSERVE_ARCHIVE_USER",
		"password":        "VIDSERVE_ARCHIVE_PASSWORD",
		"privateKey":      "VIDSERVE_ARCHIVE_PRIVATE_KEY",
		"remoteDir":       "VIDSERVE_ARCHIVE_REMOTE_DIR",
	}

	accessInfo := make(map[string]string)
	for key, env := range keys {
		if v := os.Getenv(env); v != "" {
			accessInfo[key] = v
		}
	}
	return accessInfo
}

// EnsureDirs creates the data, uploads and converted directories.
func EnsureDirs() error {
	for _, dir := range []string{GetDataDir(), GetUploadsDir(), GetConvertedDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

package archive

import (
	"context"
	"fmt"
	"io"
	"os"

	"vidserve/config"
	"vidserve/logger"
	"vidserve/models"
)

// MirrorRecord copies a successful conversion's result file to the
// configured archive backend. Archiving is an operator extension: it is a
// no-op unless VIDSERVE_ARCHIVE_BACKEND is set, and a failure is logged
// without ever failing the job that produced the artifact.
func MirrorRecord(ctx context.Context, rec models.VideoRecord) {
	backend := config.GetArchiveBackend()
	if backend == "" {
		return
	}

	reader, err := os.Open(rec.Result.StoragePath)
	if err != nil {
		logger.Errorf("archive skipped, cannot open %s: %v", rec.Result.StoragePath, err)
		return
	}
	defer reader.Close()

	accessInfo := config.GetArchiveAccessInfo()
	accessInfo["filename"] = rec.Result.Filename

	if err := writeArtifact(ctx, backend, accessInfo, reader); err != nil {
		logger.Errorf("failed to archive %s to %s: %v", rec.Result.Filename, backend, err)
		return
	}
	logger.Infof("archived %s to %s", rec.Result.Filename, backend)
}

func writeArtifact(ctx context.Context, backend string, accessInfo map[string]string, reader io.Reader) error {
	switch backend {
	case "s3":
		return uploadToS3(ctx, accessInfo, reader)
	case "gcs":
		return uploadToGCS(ctx, accessInfo, reader)
	case "sftp":
		return uploadToSFTP(ctx, accessInfo, reader)
	default:
		return fmt.Errorf("unknown archive backend: %s", backend)
	}
}

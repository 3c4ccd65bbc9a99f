package job

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vidserve/archive"
	"vidserve/config"
	"vidserve/engine"
	"vidserve/logger"
	"vidserve/models"
	"vidserve/notify"
	"vidserve/records"
	"vidserve/utils"

	"github.com/google/uuid"
)

// Engine is the transcoding engine boundary the orchestrator drives. The
// event channel is a finite sequence ending in one terminal event; Probe is
// independent of any transcode.
type Engine interface {
	Transcode(ctx context.Context, sourcePath, targetFormat, destPath string) <-chan engine.Event
	Probe(ctx context.Context, path string) (models.MediaInfo, error)
}

// Request describes one conversion to run. SourcePath must exist for the
// duration of the job; it is never deleted by the orchestrator, since later
// reconversions share it.
type Request struct {
	Owner      string
	SourceName string
	SourcePath string
	SourceSize int64
	Format     string
}

// Orchestrator runs conversion jobs: it drives the engine, relays lifecycle
// events to the notification hub tagged with the record id, and persists the
// outcome. Jobs are not serialized against each other; each request runs in
// its caller's goroutine with its own source/destination pair.
type Orchestrator struct {
	Engine       Engine
	ConvertedDir string
}

// NewOrchestrator wires an orchestrator against the configured output
// directory.
func NewOrchestrator(eng Engine) *Orchestrator {
	return &Orchestrator{Engine: eng, ConvertedDir: config.GetConvertedDir()}
}

// Convert runs one conversion to its terminal state and returns the
// persisted record. On any failure the partial output is removed, exactly
// one error event is published, and no record survives.
func (o *Orchestrator) Convert(ctx context.Context, req Request) (*models.VideoRecord, error) {
	recordID := uuid.NewString()
	resultName := utils.ResultName(req.SourceName, recordID, req.Format)
	destPath := filepath.Join(o.ConvertedDir, resultName)

	// Every path the job writes or removes must stay inside the output
	// directory, whatever the request contained.
	if !strings.HasPrefix(destPath, filepath.Clean(o.ConvertedDir)+string(os.PathSeparator)) {
		return nil, fmt.Errorf("invalid output path for format %q", req.Format)
	}

	work := newWorkFiles(destPath)
	publish := func(msg models.ProgressMessage) {
		msg.VideoID = recordID
		notify.Publish(req.Owner, msg)
	}

	for ev := range o.Engine.Transcode(ctx, req.SourcePath, req.Format, destPath) {
		switch ev.Type {
		case engine.EventStarted:
			logger.Infof("transcode started: job=%s %s", recordID, ev.Command)
			publish(models.ProgressMessage{Status: models.StatusStart, Message: "Conversion started"})

		case engine.EventProgress:
			publish(models.ProgressMessage{Status: models.StatusProgress, Percent: ev.Percent})

		case engine.EventFailed:
			logger.Errorf("transcode failed: job=%s reason=%s", recordID, ev.Reason)
			work.discard()
			publish(models.ProgressMessage{Status: models.StatusError, Message: ev.Reason})
			return nil, fmt.Errorf("conversion failed: %s", ev.Reason)

		case engine.EventCompleted:
			rec, err := o.persistSuccess(ctx, req, recordID, resultName, destPath)
			if err != nil {
				logger.Errorf("conversion could not be recorded: job=%s: %v", recordID, err)
				work.discard()
				publish(models.ProgressMessage{Status: models.StatusError, Message: err.Error()})
				return nil, err
			}
			publish(models.ProgressMessage{Status: models.StatusComplete, Message: "Conversion completed"})
			logger.Infof("conversion completed: job=%s output=%s", recordID, destPath)
			return rec, nil
		}
	}

	// The engine closed its stream without a terminal event; treat it as a
	// failure so no half-done artifact survives.
	work.discard()
	publish(models.ProgressMessage{Status: models.StatusError, Message: "engine stopped without result"})
	return nil, fmt.Errorf("engine stopped without a terminal event")
}

// Reconvert re-runs a previously converted source against a new format. It
// never touches the existing record; the new record shares the old source.
func (o *Orchestrator) Reconvert(ctx context.Context, owner, videoID, format string) (*models.VideoRecord, error) {
	rec, err := records.Get(owner, videoID)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(rec.Source.StoragePath); err != nil {
		return nil, fmt.Errorf("source artifact for record %s is gone: %w", videoID, err)
	}

	return o.Convert(ctx, Request{
		Owner:      owner,
		SourceName: rec.Source.Filename,
		SourcePath: rec.Source.StoragePath,
		SourceSize: rec.Source.SizeBytes,
		Format:     format,
	})
}

// persistSuccess validates the finished output, enriches it with probed
// metadata and writes the record. Called exactly once per successful job.
func (o *Orchestrator) persistSuccess(ctx context.Context, req Request, recordID, resultName, destPath string) (*models.VideoRecord, error) {
	fi, err := os.Stat(destPath)
	if err != nil {
		return nil, fmt.Errorf("converted file missing after completion: %w", err)
	}
	if fi.Size() == 0 {
		return nil, fmt.Errorf("converted file %s is empty", resultName)
	}

	rec := models.VideoRecord{
		ID:    recordID,
		Owner: req.Owner,
		Source: models.SourceFile{
			Filename:    req.SourceName,
			StoragePath: req.SourcePath,
			SizeBytes:   req.SourceSize,
		},
		Result: models.ResultFile{
			Filename:    resultName,
			StoragePath: destPath,
			SizeBytes:   fi.Size(),
			Format:      strings.ToLower(strings.TrimSpace(req.Format)),
		},
		CreatedAt: time.Now(),
	}

	// Metadata is an enrichment: a probe failure is logged and swallowed,
	// the job is still a success.
	if info, probeErr := o.Engine.Probe(ctx, destPath); probeErr != nil {
		logger.Warnf("probe failed for %s, storing record without metadata: %v", destPath, probeErr)
	} else {
		rec.Metadata = &info
	}

	if err := records.Put(rec); err != nil {
		// Make sure no half-persisted row lingers.
		_ = records.Delete(req.Owner, recordID)
		return nil, fmt.Errorf("failed to persist record: %w", err)
	}

	archive.MirrorRecord(ctx, rec)
	return &rec, nil
}

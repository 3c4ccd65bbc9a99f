package job

import (
	"os"
	"path/filepath"
	"time"

	"vidserve/config"
	"vidserve/logger"
	"vidserve/records"
)

// SweepOrphans removes artifact files older than maxAge that no record
// references: uploaded sources whose conversion failed, and partial outputs
// left behind by a crash mid-job. Referenced sources and results are never
// touched, whatever their age.
func SweepOrphans(maxAge time.Duration) error {
	recs, err := records.ListAll()
	if err != nil {
		return err
	}

	referenced := make(map[string]struct{}, len(recs)*2)
	for _, rec := range recs {
		referenced[filepath.Clean(rec.Source.StoragePath)] = struct{}{}
		referenced[filepath.Clean(rec.Result.StoragePath)] = struct{}{}
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, dir := range []string{config.GetUploadsDir(), config.GetConvertedDir()} {
		entries, err := os.ReadDir(dir)
		if err != nil {
			logger.Warnf("sweep could not read %s: %v", dir, err)
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			path := filepath.Clean(filepath.Join(dir, entry.Name()))
			if _, ok := referenced[path]; ok {
				continue
			}
			info, err := entry.Info()
			if err != nil || info.ModTime().After(cutoff) {
				continue
			}
			if err := os.Remove(path); err != nil {
				logger.Errorf("sweep failed to remove orphan %s: %v", path, err)
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		logger.Infof("sweep removed %d orphaned artifact(s)", removed)
	}
	return nil
}

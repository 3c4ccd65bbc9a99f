package job

import (
	"os"

	"vidserve/logger"
)

// workFiles scopes the filesystem state a running job owns. Cleanup for
// every failure branch funnels through discard so a partial output can never
// be mistaken for a valid result by the retrieval side.
type workFiles struct {
	destPath string
}

func newWorkFiles(destPath string) workFiles {
	return workFiles{destPath: destPath}
}

// discard removes the (possibly partial) destination file.
func (w workFiles) discard() {
	if err := os.Remove(w.destPath); err != nil && !os.IsNotExist(err) {
		logger.Errorf("failed to remove partial output %s: %v", w.destPath, err)
	}
}

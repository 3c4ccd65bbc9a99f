package models

import "time"

// SourceFile describes the original uploaded artifact. Immutable after the
// record is created; reconversions share it with the record they were made
// from.
type SourceFile struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// ResultFile describes the transcoded artifact. Written exactly once, when
// the conversion reaches its terminal success state.
type ResultFile struct {
	Filename    string `json:"filename"`
	StoragePath string `json:"storagePath"`
	SizeBytes   int64  `json:"sizeBytes"`
	Format      string `json:"format"`
}

// MediaInfo holds metadata probed from a result file. Best effort: a failed
// probe leaves the record without metadata, the conversion still succeeds.
type MediaInfo struct {
	DurationSeconds float64 `json:"durationSeconds"`
	Resolution      string  `json:"resolution"`
	Bitrate         int64   `json:"bitrate"`
}

// VideoRecord is the durable row describing one conversion attempt.
// Failed conversions leave no record behind.
type VideoRecord struct {
	ID        string     `json:"id"`
	Owner     string     `json:"owner"`
	Source    SourceFile `json:"source"`
	Result    ResultFile `json:"result"`
	Metadata  *MediaInfo `json:"metadata,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

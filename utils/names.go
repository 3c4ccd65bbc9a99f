package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// SanitizeFileName strips path components and replaces anything outside a
// conservative character set, so client-supplied names are safe on disk.
func SanitizeFileName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, name)
	if name == "" || name == "." {
		return "video.bin"
	}
	return name
}

// UniqueUploadName derives an on-disk name from the uploaded filename,
// timestamp-suffixed so concurrent uploads of the same file never collide:
// "clip.mp4" -> "clip-1693526400123456789.mp4".
func UniqueUploadName(original string) string {
	original = SanitizeFileName(original)
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(original, ext)
	return fmt.Sprintf("%s-%d%s", base, time.Now().UnixNano(), ext)
}

// ResultName builds the converted artifact's on-disk name from the stored
// source name, the record id and the target format. Embedding the record id
// keeps repeated reconversions of one source from overwriting each other:
// ("clip-169.mp4", "8f14e45f", "avi") -> "clip-169-8f14e45f.avi".
// The format is client input and only ever used here as a file extension, so
// it is reduced to muxer-name characters; path separators and dots never
// survive into the output path.
func ResultName(sourceName, recordID, format string) string {
	format = extensionToken(format)
	base := strings.TrimSuffix(sourceName, filepath.Ext(sourceName))
	return base + "-" + recordID + "." + format
}

// extensionToken reduces a requested format to the characters ffmpeg muxer
// names are made of.
func extensionToken(format string) string {
	format = strings.ToLower(strings.TrimSpace(format))
	format = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return -1
	}, format)
	if format == "" {
		return "bin"
	}
	return format
}

package models

// Progress message statuses pushed to live listeners.
const (
	StatusStart    = "start"
	StatusProgress = "progress"
	StatusComplete = "complete"
	StatusError    = "error"
)

// ProgressMessage is the JSON shape pushed over the live channel. VideoID
// tags every message with the record it belongs to so listeners can tell
// concurrent jobs apart.
type ProgressMessage struct {
	Status  string  `json:"status"`
	VideoID string  `json:"videoId,omitempty"`
	Percent float64 `json:"percent,omitempty"`
	Message string  `json:"message,omitempty"`
}

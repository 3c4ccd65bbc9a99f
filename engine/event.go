package engine

// EventType identifies a lifecycle event emitted while a transcode runs.
type EventType int

const (
	EventStarted EventType = iota
	EventProgress
	EventCompleted
	EventFailed
)

// Event is one step of a job's lifecycle. A sequence carries one Started,
// zero or more Progress events (repeated or out-of-order percentages are
// legal, consumers must tolerate them) and exactly one terminal Completed
// or Failed, after which the channel closes.
type Event struct {
	Type    EventType
	Command string  // Started: description of the engine invocation
	Percent float64 // Progress: 0..100
	Reason  string  // Failed: human-readable cause
}

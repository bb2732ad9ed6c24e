package models

import "time"

// Event outcomes recorded in the journal.
const (
	OutcomeSeriesUpdated   = "series_updated"
	OutcomeValueRejected   = "value_rejected"
	OutcomeCommandStarted  = "command_started"
	OutcomeCommandSkipped  = "command_skipped"
	OutcomeCommandFailed   = "command_failed"
	OutcomeCommandFinished = "command_finished"
)

// Event is one journal entry: a message that matched a rule and what the
// engine did with it.
type Event struct {
	Time    time.Time `json:"time"`
	Rule    string    `json:"rule"`
	Topic   string    `json:"topic"`
	Payload string    `json:"payload"`
	Outcome string    `json:"outcome"`
	Value   float64   `json:"value,omitempty"`
}

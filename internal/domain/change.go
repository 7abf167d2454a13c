package domain

import "time"

// ChangeEntity names the table a change applies to.
type ChangeEntity string

const (
	ChangeEntityDisaster ChangeEntity = "disaster"
	ChangeEntityAQI      ChangeEntity = "aqi_measurement"
)

// ChangeAction distinguishes an insert from a replacement.
type ChangeAction string

const (
	ChangeCreated ChangeAction = "created"
	ChangeUpdated ChangeAction = "updated"
)

// Change is one record-change notification emitted on the optional feed
// after a successful upsert.
type Change struct {
	Entity   ChangeEntity `json:"entity"`
	Action   ChangeAction `json:"action"`
	Source   string       `json:"source"`
	SourceID string       `json:"source_id"`
	At       time.Time    `json:"at"`
}

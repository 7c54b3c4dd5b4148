package model

import (
	"time"
)

// Envelope is the minimal unit placed on the queue. It carries only routing
// information; session state is re-hydrated from the store at consume time so
// the store stays the source of truth.
type Envelope struct {
	ID         string    `json:"id"`
	Namespace  string    `json:"namespace"`
	Update     Update    `json:"update"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

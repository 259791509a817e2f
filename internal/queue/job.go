package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/UDDITwork/shipsarthi-sub005/internal/payload"
)

// State is the lifecycle position of a job.
//
//	queued -> processing -> completed
//	                     -> retry-scheduled -> queued
//	                     -> failed
type State string

const (
	StateQueued         State = "queued"
	StateProcessing     State = "processing"
	StateCompleted      State = "completed"
	StateRetryScheduled State = "retry-scheduled"
	StateFailed         State = "failed"
)

// Job is one accepted webhook awaiting background processing. Jobs live only
// in memory and are lost on restart.
type Job struct {
	ID          uuid.UUID
	Kind        payload.Kind
	Payload     payload.Payload
	RequestID   string
	EnqueuedAt  time.Time
	Attempts    int
	MaxAttempts int
	NotBefore   time.Time
	State       State
	LastError   string
}

// Package request defines the scheduler-level unit of work that flows from
// a session into the worker pool and parallel executor.
package request

import (
	"time"

	"github.com/google/uuid"
)

// Priority orders requests from most to least urgent.
type Priority int

const (
	PrioritySystem Priority = iota
	PriorityAdmin
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityBackground

	numPriorities = int(PriorityBackground) + 1
)

func (p Priority) String() string {
	switch p {
	case PrioritySystem:
		return "System"
	case PriorityAdmin:
		return "Admin"
	case PriorityHigh:
		return "High"
	case PriorityNormal:
		return "Normal"
	case PriorityLow:
		return "Low"
	case PriorityBackground:
		return "Background"
	default:
		return "Unknown"
	}
}

// NumPriorities is the number of fixed priority levels.
func NumPriorities() int { return numPriorities }

// Type enumerates the kind of work a Request represents.
type Type int

const (
	TypeSystem Type = iota
	TypeAdmin
	TypeQuery
	TypeWrite
	TypeTransaction
	TypeBatch
)

// typeWeight implements the §4.6 score formula's type_weight table.
func (t Type) typeWeight() float64 {
	switch t {
	case TypeSystem:
		return 0
	case TypeAdmin:
		return 0.5
	case TypeQuery:
		return 1
	case TypeWrite:
		return 1.5
	case TypeTransaction:
		return 2
	case TypeBatch:
		return 3
	default:
		return 1
	}
}

// TypeWeight exposes typeWeight to the scheduler package.
func TypeWeight(t Type) float64 { return t.typeWeight() }

// Request is a unit of scheduler work: a SQL statement bound to a session,
// a priority, a type, and a deadline.
type Request struct {
	ID             string
	Priority       Priority
	Type           Type
	CreatedAt      time.Time
	Timeout        time.Duration
	EstimatedCost  int64
	SessionID      string
	Database       string
	SQL            string
}

// New creates a Request with a generated id and CreatedAt set to now.
func New(priority Priority, typ Type, sessionID, database, sql string, timeout time.Duration, estimatedCost int64) *Request {
	return &Request{
		ID:            uuid.NewString(),
		Priority:      priority,
		Type:          typ,
		CreatedAt:     time.Now(),
		Timeout:       timeout,
		EstimatedCost: estimatedCost,
		SessionID:     sessionID,
		Database:      database,
		SQL:           sql,
	}
}

// Expired reports whether the request's deadline has passed as of now.
func (r *Request) Expired(now time.Time) bool {
	if r.Timeout <= 0 {
		return false
	}
	return now.Sub(r.CreatedAt) > r.Timeout
}

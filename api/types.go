// Package api holds the JSON types of the countdown HTTP API and a client for it.
package api

import (
	"time"

	"github.com/google/uuid"
)

// Timer is the API view of a countdown timer.
type Timer struct {
	Name                 string  `json:"name" yaml:"name"`
	TotalSeconds         int     `json:"totalSeconds" yaml:"totalSeconds"`
	SecondsLeft          int     `json:"secondsLeft" yaml:"secondsLeft"`
	Loop                 bool    `json:"loop" yaml:"loop"`
	Active               bool    `json:"active" yaml:"active"`
	ExpiredNoticePending bool    `json:"expiredNoticePending" yaml:"expiredNoticePending"`
	Remaining            string  `json:"remaining" yaml:"remaining"`
	Progress             float64 `json:"progress" yaml:"progress"`
}

// NewTimer is the request body for creating a timer.
type NewTimer struct {
	Name    string `json:"name" validate:"required,max=128"`
	Minutes int    `json:"minutes" validate:"gte=0"`
	Seconds int    `json:"seconds" validate:"gte=0,lte=59"`
	Loop    bool   `json:"loop"`
}

// TotalSeconds returns the requested duration in seconds.
func (n NewTimer) TotalSeconds() int {
	return n.Minutes*60 + n.Seconds
}

// LoopUpdate is the request body for changing a timer's loop flag.
type LoopUpdate struct {
	Loop *bool `json:"loop" validate:"required"`
}

// Expiry is a recorded timer expiry.
type Expiry struct {
	ID        uuid.UUID `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Loop      bool      `json:"loop" yaml:"loop"`
	ExpiredAt time.Time `json:"expiredAt" yaml:"expiredAt"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Code    int    `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
}

// HealthStatus is the state reported by the health endpoint.
type HealthStatus string

// Health statuses.
const (
	HealthStatusOk     HealthStatus = "ok"
	HealthStatusFailed HealthStatus = "failed"
)

// Health is the body of the health endpoint.
type Health struct {
	Status HealthStatus `json:"status"`
}

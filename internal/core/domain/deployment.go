package domain

import "time"

// Actions recorded in the deployment ledger.
const (
	ActionReplace  = "replace"
	ActionTeardown = "teardown"
)

// Outcomes recorded in the deployment ledger.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Deployment is one entry in the deployment ledger: a single replace or
// teardown of the managed service, successful or not.
type Deployment struct {
	ID          int64     `json:"id"`
	Action      string    `json:"action"`
	Service     string    `json:"service"`
	Image       string    `json:"image,omitempty"`
	ContainerID string    `json:"container_id,omitempty"`
	Outcome     string    `json:"outcome"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

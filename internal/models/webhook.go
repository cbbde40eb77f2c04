package models

import "time"

// GitHub event kinds handled by the deploy trigger
const (
	EventPush = "push"
	EventPing = "ping"
)

// SignedEvent is an inbound repository notification as received, before
// verification. Body is kept byte-for-byte for HMAC computation.
type SignedEvent struct {
	Body       []byte
	Signature  string
	Kind       string
	DeliveryID string
}

// PushPayload is the subset of a GitHub push payload the trigger reads
type PushPayload struct {
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	Repository struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
	Pusher struct {
		Name string `json:"name"`
	} `json:"pusher"`
	HeadCommit *struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"head_commit"`
}

// EventOutcome is the terminal state of a verified event
type EventOutcome string

const (
	OutcomeIgnored  EventOutcome = "ignored"
	OutcomeDeployed EventOutcome = "deployed"
)

// EventResult describes how a verified event was handled
type EventResult struct {
	Outcome   EventOutcome
	Event     string
	Deploy    *DeployResult
	Timestamp time.Time
}

// DeployResult is the captured outcome of one deploy script run
type DeployResult struct {
	ID        string
	ExitCode  int
	Stdout    string
	Stderr    string
	StartedAt time.Time
	Duration  time.Duration
}

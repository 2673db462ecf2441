package domain

import "time"

// JobState is the spooler side lifecycle of a print job.
type JobState string

const (
	JobQueued     JobState = "queued"
	JobProcessing JobState = "processing"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Outcome is what a poller needs to know: keep waiting, done, or failed.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeComplete Outcome = "complete"
	OutcomeFailed   Outcome = "failed"
)

func (s JobState) Outcome() Outcome {
	switch s {
	case JobCompleted:
		return OutcomeComplete
	case JobFailed:
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

type Artifact struct {
	ID  string
	URL string
}

type Job struct {
	ID            string
	SpoolerID     string
	SessionID     string
	ArtifactIndex int
	ArtifactURL   string
	Copies        int
	State         JobState
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ticket is what a spooler receives.
type Ticket struct {
	JobID         string
	SessionID     string
	ArtifactIndex int
	ArtifactURL   string
	Copies        int
}

type SpoolerStatus struct {
	State  JobState
	Reason string
}

type Status struct {
	JobID   string
	State   JobState
	Outcome Outcome
	Reason  string
}

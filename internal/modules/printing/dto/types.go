package dto

const (
	OutcomePending  = "pending"
	OutcomeComplete = "complete"
	OutcomeFailed   = "failed"
)

type ArtifactInput struct {
	ID  string
	URL string
}

type PrintInput struct {
	SessionID     string
	ArtifactIndex int
	Copies        int
	Artifacts     []ArtifactInput
}

type PrintOutput struct {
	JobID  string
	State  string
	Copies int
}

// StatusOutput.Outcome is one of pending, complete or failed; State carries
// the finer spooler state (queued, processing, completed, failed).
type StatusOutput struct {
	JobID   string
	State   string
	Outcome string
	Reason  string
}

type JobOutput struct {
	JobID         string
	SessionID     string
	ArtifactIndex int
	ArtifactURL   string
	Copies        int
	State         string
	Reason        string
	CreatedAt     string
}

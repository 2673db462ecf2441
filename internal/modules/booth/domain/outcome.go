package domain

// PollState is the coarse status of an external job as seen by the kiosk.
type PollState string

const (
	PollPending  PollState = "pending"
	PollComplete PollState = "complete"
	PollFailed   PollState = "failed"
)

type GenerationTicket struct {
	SessionID    string
	GenerationID string
	Degraded     bool
}

type GenerationStatus struct {
	State     PollState
	Artifacts []Artifact
	Degraded  bool
	Reason    string
}

type PrintStatus struct {
	State  PollState
	Detail string
	Reason string
}

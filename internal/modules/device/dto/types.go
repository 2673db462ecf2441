package dto

import "time"

type MetadataOutput struct {
	Name         string
	Version      string
	Capabilities []string
}

type PhotoOutput struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

type PrintInput struct {
	JobID       string
	SessionID   string
	ArtifactURL string
	Copies      int
}

type PrintOutput struct {
	DeviceJobID string
}

// PrintStatusOutput.State is one of queued, processing, completed or failed.
type PrintStatusOutput struct {
	DeviceJobID string
	State       string
	Reason      string
}

type DoctorResult struct {
	Name            string
	Binary          string
	BinaryReachable bool
	ChecksumValid   bool
	LifecycleOK     bool
	Capabilities    []string
	Error           string
}

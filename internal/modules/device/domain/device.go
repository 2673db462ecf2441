package domain

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

type Capability string

const (
	CapabilityCapture Capability = "capture"
	CapabilityPrint   Capability = "print"
)

var (
	ErrCapabilityMissing = errors.New("device capability missing")
	ErrChecksumMismatch  = errors.New("device driver checksum mismatch")
	ErrPluginTimeout     = errors.New("device driver timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest points at a driver binary. SHA256 is optional; when set the binary
// must match it before it is started.
type Manifest struct {
	Name   string
	Binary string
	SHA256 string
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("device name is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("device binary path is required")
	}
	if m.SHA256 != "" && !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("device sha256 must be lowercase 64-char hex")
	}
	return nil
}

func (c Capability) Validate() error {
	switch c {
	case CapabilityCapture, CapabilityPrint:
		return nil
	default:
		return fmt.Errorf("unknown capability: %s", c)
	}
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
}

func (m Metadata) HasCapability(capability Capability) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

type Photo struct {
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

func (p Photo) Validate() error {
	if len(p.Data) == 0 {
		return fmt.Errorf("device returned an empty photo")
	}
	if p.ContentType == "" {
		return fmt.Errorf("device returned a photo without content type")
	}
	return nil
}

type PrintTicket struct {
	JobID       string
	SessionID   string
	ArtifactURL string
	Copies      int
}

func (t PrintTicket) Validate() error {
	if t.JobID == "" {
		return fmt.Errorf("print job id is required")
	}
	if t.ArtifactURL == "" {
		return fmt.Errorf("artifact url is required")
	}
	if t.Copies < 1 {
		return fmt.Errorf("copies must be at least 1")
	}
	return nil
}

type PrintState string

const (
	PrintQueued     PrintState = "queued"
	PrintProcessing PrintState = "processing"
	PrintCompleted  PrintState = "completed"
	PrintFailed     PrintState = "failed"
)

func ParsePrintState(raw string) (PrintState, error) {
	switch s := PrintState(raw); s {
	case PrintQueued, PrintProcessing, PrintCompleted, PrintFailed:
		return s, nil
	default:
		return "", fmt.Errorf("unknown print state: %q", raw)
	}
}

type PrintStatus struct {
	State  PrintState
	Reason string
}

package out

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"pixelbooth/internal/modules/printing/domain"
	printingout "pixelbooth/internal/modules/printing/port/out"
	"pixelbooth/internal/platform/clock"
)

// SimSpooler pretends to print: each ticket is written to the spool dir and
// moves from queued to processing to completed as time passes.
type SimSpooler struct {
	dir          string
	clock        clock.Clock
	queueDelay   time.Duration
	processDelay time.Duration

	mu      sync.Mutex
	tickets map[string]time.Time
}

type spoolTicket struct {
	JobID         string `yaml:"job_id"`
	SessionID     string `yaml:"session_id"`
	ArtifactIndex int    `yaml:"artifact_index"`
	ArtifactURL   string `yaml:"artifact_url"`
	Copies        int    `yaml:"copies"`
	SubmittedAt   string `yaml:"submitted_at"`
}

func NewSimSpooler(dir string, clk clock.Clock, queueDelay, processDelay time.Duration) printingout.Spooler {
	return &SimSpooler{
		dir:          dir,
		clock:        clk,
		queueDelay:   queueDelay,
		processDelay: processDelay,
		tickets:      map[string]time.Time{},
	}
}

func (s *SimSpooler) Submit(ctx context.Context, ticket domain.Ticket) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if ticket.JobID == "" {
		return "", fmt.Errorf("ticket has no job id")
	}
	now := s.clock.Now()
	raw, err := yaml.Marshal(spoolTicket{
		JobID:         ticket.JobID,
		SessionID:     ticket.SessionID,
		ArtifactIndex: ticket.ArtifactIndex,
		ArtifactURL:   ticket.ArtifactURL,
		Copies:        ticket.Copies,
		SubmittedAt:   now.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create spool dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, ticket.JobID+".yaml"), raw, 0o644); err != nil {
		return "", fmt.Errorf("write ticket: %w", err)
	}
	s.mu.Lock()
	s.tickets[ticket.JobID] = now
	s.mu.Unlock()
	return ticket.JobID, nil
}

func (s *SimSpooler) Status(ctx context.Context, spoolerID string) (domain.SpoolerStatus, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpoolerStatus{}, err
	}
	s.mu.Lock()
	submitted, ok := s.tickets[spoolerID]
	s.mu.Unlock()
	if !ok {
		var err error
		submitted, ok, err = s.loadTicket(spoolerID)
		if err != nil {
			return domain.SpoolerStatus{}, err
		}
		if !ok {
			return domain.SpoolerStatus{State: domain.JobFailed, Reason: "job is not in the spool"}, nil
		}
	}
	elapsed := s.clock.Now().Sub(submitted)
	switch {
	case elapsed < s.queueDelay:
		return domain.SpoolerStatus{State: domain.JobQueued}, nil
	case elapsed < s.queueDelay+s.processDelay:
		return domain.SpoolerStatus{State: domain.JobProcessing}, nil
	default:
		return domain.SpoolerStatus{State: domain.JobCompleted}, nil
	}
}

// loadTicket reads a ticket another process submitted into the spool dir.
func (s *SimSpooler) loadTicket(spoolerID string) (time.Time, bool, error) {
	if spoolerID == "" || filepath.Base(spoolerID) != spoolerID {
		return time.Time{}, false, nil
	}
	raw, err := os.ReadFile(filepath.Join(s.dir, spoolerID+".yaml"))
	if errors.Is(err, fs.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read ticket: %w", err)
	}
	var ticket spoolTicket
	if err := yaml.Unmarshal(raw, &ticket); err != nil {
		return time.Time{}, false, fmt.Errorf("decode ticket: %w", err)
	}
	submitted, err := time.Parse(time.RFC3339Nano, ticket.SubmittedAt)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("decode ticket time: %w", err)
	}
	s.mu.Lock()
	s.tickets[spoolerID] = submitted
	s.mu.Unlock()
	return submitted, true, nil
}

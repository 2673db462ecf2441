package out

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pixelbooth/internal/modules/printing/domain"
	printingout "pixelbooth/internal/modules/printing/port/out"
)

// HTTPSpooler forwards tickets to a print server exposing POST /print and
// GET /print/status/{id}.
type HTTPSpooler struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSpooler(baseURL string, timeout time.Duration) printingout.Spooler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSpooler{baseURL: strings.TrimRight(baseURL, "/"), client: &http.Client{Timeout: timeout}}
}

type submitResponse struct {
	JobID  json.RawMessage `json:"job_id"`
	Status string          `json:"status"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

func (s *HTTPSpooler) Submit(ctx context.Context, ticket domain.Ticket) (string, error) {
	form := url.Values{}
	form.Set("session_id", ticket.SessionID)
	form.Set("image_index", strconv.Itoa(ticket.ArtifactIndex))
	form.Set("copies", strconv.Itoa(ticket.Copies))
	if ticket.ArtifactURL != "" {
		form.Set("image_url", ticket.ArtifactURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/print", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build print request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send print request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("print request: %s", readStatus(resp))
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode print response: %w", err)
	}
	jobID := strings.Trim(strings.TrimSpace(string(out.JobID)), `"`)
	if jobID == "" || jobID == "null" {
		return "", fmt.Errorf("print response has no job id")
	}
	return jobID, nil
}

func (s *HTTPSpooler) Status(ctx context.Context, spoolerID string) (domain.SpoolerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/print/status/"+url.PathEscape(spoolerID), nil)
	if err != nil {
		return domain.SpoolerStatus{}, fmt.Errorf("build status request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return domain.SpoolerStatus{}, fmt.Errorf("send status request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return domain.SpoolerStatus{State: domain.JobFailed, Reason: "print server does not know job " + spoolerID}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return domain.SpoolerStatus{}, fmt.Errorf("status request: %s", readStatus(resp))
	}
	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.SpoolerStatus{}, fmt.Errorf("decode status response: %w", err)
	}
	return domain.SpoolerStatus{State: parseState(out.Status), Reason: out.Error}, nil
}

func parseState(raw string) domain.JobState {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "completed", "complete", "done":
		return domain.JobCompleted
	case "failed", "error":
		return domain.JobFailed
	case "processing", "printing":
		return domain.JobProcessing
	default:
		return domain.JobQueued
	}
}

func readStatus(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if text := strings.TrimSpace(string(body)); text != "" {
		return resp.Status + ": " + text
	}
	return resp.Status
}

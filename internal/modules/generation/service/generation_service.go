package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pixelbooth/internal/modules/generation/domain"
	generationout "pixelbooth/internal/modules/generation/port/out"
	"pixelbooth/internal/platform/clock"
	apperrors "pixelbooth/internal/platform/errors"
	"pixelbooth/internal/platform/id"
	"pixelbooth/internal/platform/logging"
	"pixelbooth/internal/platform/telemetry"
)

type Options struct {
	ImageCount       int
	Width            int
	Height           int
	ModelID          string
	StyleModelID     string
	StylePoll        time.Duration
	StyleMaxAttempts int
	CallTimeout      time.Duration
	FallbackEnabled  bool
	FallbackDelay    time.Duration
}

func DefaultOptions() Options {
	return Options{
		ImageCount:       4,
		Width:            1024,
		Height:           768,
		StylePoll:        2 * time.Second,
		StyleMaxAttempts: 30,
		CallTimeout:      30 * time.Second,
		FallbackEnabled:  true,
		FallbackDelay:    10 * time.Second,
	}
}

type SubmitRequest struct {
	SessionID   string
	Image       []byte
	ContentType string
	Prompt      string
	StylePrompt string
}

type GenerationService struct {
	opts       Options
	clock      clock.Clock
	ids        id.Generator
	translator generationout.Translator
	images     generationout.ImageService
	store      generationout.JobStore
	metrics    telemetry.Recorder
	logger     *slog.Logger
}

// NewGenerationService wires the pipeline. translator may be nil, in which
// case prompts are sent as typed.
func NewGenerationService(
	opts Options,
	clk clock.Clock,
	ids id.Generator,
	translator generationout.Translator,
	images generationout.ImageService,
	store generationout.JobStore,
	metrics telemetry.Recorder,
	logger *slog.Logger,
) *GenerationService {
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.StyleMaxAttempts <= 0 {
		opts.StyleMaxAttempts = 1
	}
	return &GenerationService{
		opts:       opts,
		clock:      clk,
		ids:        ids,
		translator: translator,
		images:     images,
		store:      store,
		metrics:    metrics,
		logger:     logger,
	}
}

// Submit runs translation, upload, style synthesis and the final composite in
// that order. Any stage failure is reported as ErrGenerationFailed, unless the
// fallback is enabled, in which case a degraded placeholder job is recorded
// and returned instead.
func (s *GenerationService) Submit(ctx context.Context, req SubmitRequest) (domain.Job, error) {
	if strings.TrimSpace(req.SessionID) == "" {
		return domain.Job{}, fmt.Errorf("%w: session id is required", apperrors.ErrValidation)
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		return domain.Job{}, fmt.Errorf("%w: prompt is empty", apperrors.ErrValidation)
	}
	if len(req.Image) == 0 {
		return domain.Job{}, fmt.Errorf("%w: image is missing", apperrors.ErrValidation)
	}
	req.StylePrompt = strings.TrimSpace(req.StylePrompt)
	if req.StylePrompt == "" {
		req.StylePrompt = req.Prompt
	}
	if req.ContentType == "" {
		req.ContentType = "image/jpeg"
	}

	job, err := s.runPipeline(ctx, req)
	if err == nil {
		if err := s.store.Save(ctx, job); err != nil {
			return domain.Job{}, fmt.Errorf("save generation job: %w", err)
		}
		s.logger.Info("generation started", "session_id", job.SessionID, "generation_id", job.GenerationID)
		return job, nil
	}

	stage, _ := domain.StageOf(err)
	s.metrics.GenerationFailed(ctx, string(stage))
	s.logger.Warn("generation pipeline failed", "session_id", req.SessionID, "stage", stage, "err", err)
	if !s.opts.FallbackEnabled || ctx.Err() != nil {
		return domain.Job{}, fmt.Errorf("%w: %w", apperrors.ErrGenerationFailed, err)
	}
	return s.fallback(ctx, req, stage, err)
}

func (s *GenerationService) fallback(ctx context.Context, req SubmitRequest, stage domain.Stage, cause error) (domain.Job, error) {
	if err := sleep(ctx, s.opts.FallbackDelay); err != nil {
		return domain.Job{}, fmt.Errorf("%w: %w", apperrors.ErrGenerationFailed, errors.Join(cause, err))
	}
	job := domain.Job{
		SessionID:    req.SessionID,
		GenerationID: "fallback-" + s.ids.New(),
		Prompt:       req.Prompt,
		StylePrompt:  req.StylePrompt,
		ImageCount:   s.opts.ImageCount,
		Width:        s.opts.Width,
		Height:       s.opts.Height,
		Degraded:     true,
		FailureStage: stage,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.store.Save(ctx, job); err != nil {
		return domain.Job{}, fmt.Errorf("save fallback job: %w", err)
	}
	s.logger.Warn("serving placeholder images", "session_id", job.SessionID, "generation_id", job.GenerationID, "failed_stage", stage)
	return job, nil
}

func (s *GenerationService) runPipeline(ctx context.Context, req SubmitRequest) (domain.Job, error) {
	job := domain.Job{
		SessionID:        req.SessionID,
		Prompt:           req.Prompt,
		StylePrompt:      req.StylePrompt,
		TranslatedPrompt: req.Prompt,
		TranslatedStyle:  req.StylePrompt,
		ImageCount:       s.opts.ImageCount,
		Width:            s.opts.Width,
		Height:           s.opts.Height,
		CreatedAt:        s.clock.Now(),
	}

	if s.translator != nil {
		translated, err := s.translate(ctx, req.Prompt)
		if err != nil {
			return domain.Job{}, &domain.StageError{Stage: domain.StageTranslation, Err: err}
		}
		job.TranslatedPrompt = translated
		job.TranslatedStyle = translated
		if req.StylePrompt != req.Prompt {
			style, err := s.translate(ctx, req.StylePrompt)
			if err != nil {
				return domain.Job{}, &domain.StageError{Stage: domain.StageTranslation, Err: err}
			}
			job.TranslatedStyle = style
		}
	}

	uploadID, err := s.upload(ctx, req.Image, req.ContentType)
	if err != nil {
		return domain.Job{}, &domain.StageError{Stage: domain.StageUpload, Err: err}
	}
	job.UploadID = uploadID

	styleImageID, err := s.generateStyle(ctx, job.TranslatedStyle)
	if err != nil {
		return domain.Job{}, &domain.StageError{Stage: domain.StageStyle, Err: err}
	}
	job.StyleImageID = styleImageID

	generationID, err := s.start(ctx, domain.GenerateRequest{
		Prompt:     job.TranslatedPrompt,
		ModelID:    s.opts.ModelID,
		ImageCount: s.opts.ImageCount,
		Width:      s.opts.Width,
		Height:     s.opts.Height,
		References: []domain.Reference{
			{ImageID: uploadID, Kind: domain.KindUploaded, Role: domain.RoleCharacter},
			{ImageID: styleImageID, Kind: domain.KindGenerated, Role: domain.RoleStyle},
		},
	})
	if err != nil {
		return domain.Job{}, &domain.StageError{Stage: domain.StageFinal, Err: err}
	}
	job.GenerationID = generationID
	return job, nil
}

func (s *GenerationService) translate(ctx context.Context, text string) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	out, err := s.translator.Translate(callCtx, text)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("empty translation")
	}
	return out, nil
}

func (s *GenerationService) upload(ctx context.Context, data []byte, contentType string) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	return s.images.UploadImage(callCtx, data, contentType)
}

func (s *GenerationService) start(ctx context.Context, req domain.GenerateRequest) (string, error) {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	genID, err := s.images.StartGeneration(callCtx, req)
	if err != nil {
		return "", err
	}
	if genID == "" {
		return "", fmt.Errorf("no generation id returned")
	}
	return genID, nil
}

// generateStyle synthesizes the style reference and waits for it, returning
// the id of its first image.
func (s *GenerationService) generateStyle(ctx context.Context, prompt string) (string, error) {
	genID, err := s.start(ctx, domain.GenerateRequest{
		Prompt:     prompt,
		ModelID:    s.opts.StyleModelID,
		ImageCount: 1,
		Width:      s.opts.Width,
		Height:     s.opts.Height,
	})
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 1; attempt <= s.opts.StyleMaxAttempts; attempt++ {
		callCtx, cancel := s.callContext(ctx)
		remote, err := s.images.GetGeneration(callCtx, genID)
		cancel()
		switch {
		case err != nil:
			lastErr = err
			s.logger.Debug("poll style generation", "generation_id", genID, "attempt", attempt, "err", err)
		case remote.State == domain.JobComplete:
			if len(remote.Images) == 0 {
				return "", fmt.Errorf("style generation %s returned no images", genID)
			}
			return remote.Images[0].ID, nil
		case remote.State == domain.JobFailed:
			return "", fmt.Errorf("style generation %s: %s", genID, remote.Reason)
		}
		if attempt == s.opts.StyleMaxAttempts {
			break
		}
		if err := sleep(ctx, s.opts.StylePoll); err != nil {
			return "", err
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("style generation %s not ready: %w", genID, lastErr)
	}
	return "", fmt.Errorf("style generation %s not ready after %d polls", genID, s.opts.StyleMaxAttempts)
}

// PollStatus reports on the job recorded for sessionID. It never writes.
func (s *GenerationService) PollStatus(ctx context.Context, sessionID string) (domain.Status, error) {
	job, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return domain.Status{}, err
	}
	if job.Degraded {
		return domain.Status{
			State:     domain.JobComplete,
			Artifacts: domain.PlaceholderArtifacts(job.GenerationID, job.ImageCount, job.Width, job.Height),
			Degraded:  true,
		}, nil
	}

	callCtx, cancel := s.callContext(ctx)
	defer cancel()
	remote, err := s.images.GetGeneration(callCtx, job.GenerationID)
	if err != nil {
		return domain.Status{}, fmt.Errorf("get generation %s: %w", job.GenerationID, err)
	}
	switch remote.State {
	case domain.JobComplete:
		artifacts := make([]domain.Artifact, 0, len(remote.Images))
		for _, img := range remote.Images {
			artifacts = append(artifacts, domain.Artifact{ID: img.ID, URL: img.URL, Width: job.Width, Height: job.Height})
		}
		return domain.Status{State: domain.JobComplete, Artifacts: artifacts}, nil
	case domain.JobFailed:
		reason := remote.Reason
		if reason == "" {
			reason = "generation failed"
		}
		return domain.Status{State: domain.JobFailed, Reason: reason}, nil
	default:
		return domain.Status{State: domain.JobPending}, nil
	}
}

// Cleanup forgets the job for sessionID.
func (s *GenerationService) Cleanup(ctx context.Context, sessionID string) error {
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete generation job: %w", err)
	}
	return nil
}

func (s *GenerationService) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.CallTimeout)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package out

import (
	"context"
	"fmt"
	"sync"

	"pixelbooth/internal/modules/generation/domain"
	generationout "pixelbooth/internal/modules/generation/port/out"
	"pixelbooth/internal/platform/id"
)

// SimImageService is an in-process stand-in for the remote API. A generation
// reports pending until it has been polled completeAfter times.
type SimImageService struct {
	ids           id.Generator
	completeAfter int

	mu      sync.Mutex
	uploads map[string]int
	jobs    map[string]*simJob
}

type simJob struct {
	req   domain.GenerateRequest
	polls int
}

func NewSimImageService(ids id.Generator, completeAfter int) generationout.ImageService {
	if ids == nil {
		ids = id.UUID{}
	}
	if completeAfter < 0 {
		completeAfter = 0
	}
	return &SimImageService{
		ids:           ids,
		completeAfter: completeAfter,
		uploads:       map[string]int{},
		jobs:          map[string]*simJob{},
	}
}

func (s *SimImageService) UploadImage(ctx context.Context, data []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty upload")
	}
	uploadID := "upload-" + s.ids.New()
	s.mu.Lock()
	s.uploads[uploadID] = len(data)
	s.mu.Unlock()
	return uploadID, nil
}

func (s *SimImageService) StartGeneration(ctx context.Context, req domain.GenerateRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.ImageCount <= 0 {
		return "", fmt.Errorf("image count must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range req.References {
		if ref.Kind == domain.KindUploaded {
			if _, ok := s.uploads[ref.ImageID]; !ok {
				return "", fmt.Errorf("unknown upload %s", ref.ImageID)
			}
		}
	}
	genID := "gen-" + s.ids.New()
	s.jobs[genID] = &simJob{req: req}
	return genID, nil
}

func (s *SimImageService) GetGeneration(ctx context.Context, generationID string) (domain.RemoteGeneration, error) {
	if err := ctx.Err(); err != nil {
		return domain.RemoteGeneration{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[generationID]
	if !ok {
		return domain.RemoteGeneration{}, fmt.Errorf("generation %s not found", generationID)
	}
	job.polls++
	if job.polls <= s.completeAfter {
		return domain.RemoteGeneration{State: domain.JobPending}, nil
	}
	placeholders := domain.PlaceholderArtifacts(generationID, job.req.ImageCount, job.req.Width, job.req.Height)
	images := make([]domain.RemoteImage, 0, len(placeholders))
	for _, p := range placeholders {
		images = append(images, domain.RemoteImage{ID: p.ID, URL: p.URL})
	}
	return domain.RemoteGeneration{State: domain.JobComplete, Images: images}, nil
}

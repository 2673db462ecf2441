package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sync"

	"pixelbooth/internal/modules/device/domain"
	"pixelbooth/internal/modules/device/dto"
	deviceout "pixelbooth/internal/modules/device/port/out"
)

// DeviceService fronts one configured driver. Metadata is fetched once and
// reused to check capabilities before every call.
type DeviceService struct {
	manifest domain.Manifest
	host     deviceout.Host

	mu       sync.Mutex
	meta     domain.Metadata
	verified bool
}

func NewDeviceService(manifest domain.Manifest, host deviceout.Host) *DeviceService {
	return &DeviceService{manifest: manifest, host: host}
}

func (s *DeviceService) Metadata(ctx context.Context) (domain.Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified {
		return s.meta, nil
	}
	if err := s.manifest.Validate(); err != nil {
		return domain.Metadata{}, err
	}
	if s.manifest.SHA256 != "" {
		if err := checksumMatches(s.manifest.Binary, s.manifest.SHA256); err != nil {
			return domain.Metadata{}, err
		}
	}
	meta, err := s.host.GetMetadata(ctx, s.manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	for _, capability := range meta.Capabilities {
		if err := capability.Validate(); err != nil {
			return domain.Metadata{}, err
		}
	}
	s.meta = meta
	s.verified = true
	return meta, nil
}

func (s *DeviceService) Capture(ctx context.Context) (domain.Photo, error) {
	if err := s.require(ctx, domain.CapabilityCapture); err != nil {
		return domain.Photo{}, err
	}
	photo, err := s.host.Capture(ctx, s.manifest)
	if err != nil {
		return domain.Photo{}, err
	}
	if err := photo.Validate(); err != nil {
		return domain.Photo{}, err
	}
	return photo, nil
}

func (s *DeviceService) SubmitPrint(ctx context.Context, ticket domain.PrintTicket) (string, error) {
	if err := ticket.Validate(); err != nil {
		return "", err
	}
	if err := s.require(ctx, domain.CapabilityPrint); err != nil {
		return "", err
	}
	deviceJobID, err := s.host.SubmitPrint(ctx, s.manifest, ticket)
	if err != nil {
		return "", err
	}
	if deviceJobID == "" {
		return "", fmt.Errorf("device %s returned no print job id", s.manifest.Name)
	}
	return deviceJobID, nil
}

func (s *DeviceService) PrintStatus(ctx context.Context, deviceJobID string) (domain.PrintStatus, error) {
	if deviceJobID == "" {
		return domain.PrintStatus{}, fmt.Errorf("device job id is required")
	}
	if err := s.require(ctx, domain.CapabilityPrint); err != nil {
		return domain.PrintStatus{}, err
	}
	return s.host.PrintStatus(ctx, s.manifest, deviceJobID)
}

// Doctor reports whether the driver binary exists, matches its checksum and
// answers a metadata call. It never returns an error for a broken driver.
func (s *DeviceService) Doctor(ctx context.Context) dto.DoctorResult {
	result := dto.DoctorResult{Name: s.manifest.Name, Binary: s.manifest.Binary}
	if err := s.manifest.Validate(); err != nil {
		result.Error = err.Error()
		return result
	}
	if _, err := os.Stat(s.manifest.Binary); err != nil {
		result.Error = fmt.Sprintf("binary does not exist: %s", s.manifest.Binary)
		return result
	}
	result.BinaryReachable = true
	result.ChecksumValid = true
	if s.manifest.SHA256 != "" {
		if err := checksumMatches(s.manifest.Binary, s.manifest.SHA256); err != nil {
			result.ChecksumValid = false
			result.Error = err.Error()
			return result
		}
	}
	meta, err := s.Metadata(ctx)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.LifecycleOK = true
	for _, c := range meta.Capabilities {
		result.Capabilities = append(result.Capabilities, string(c))
	}
	return result
}

func (s *DeviceService) require(ctx context.Context, capability domain.Capability) error {
	meta, err := s.Metadata(ctx)
	if err != nil {
		return err
	}
	if !meta.HasCapability(capability) {
		return fmt.Errorf("%w: %s does not support %s", domain.ErrCapabilityMissing, s.manifest.Name, capability)
	}
	return nil
}

func checksumMatches(path, expected string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open device binary: %w", err)
	}
	defer f.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return fmt.Errorf("hash device binary: %w", err)
	}
	if actual := hex.EncodeToString(hash.Sum(nil)); actual != expected {
		return fmt.Errorf("%w: expected %s got %s", domain.ErrChecksumMismatch, expected, actual)
	}
	return nil
}

package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"pixelbooth/internal/modules/device/domain"
	"pixelbooth/internal/modules/device/service"
)

type fakeHost struct {
	meta         domain.Metadata
	metaCalls    int
	photo        domain.Photo
	captureErr   error
	printTickets []domain.PrintTicket
	status       domain.PrintStatus
}

func (f *fakeHost) GetMetadata(context.Context, domain.Manifest) (domain.Metadata, error) {
	f.metaCalls++
	return f.meta, nil
}

func (f *fakeHost) Capture(context.Context, domain.Manifest) (domain.Photo, error) {
	return f.photo, f.captureErr
}

func (f *fakeHost) SubmitPrint(_ context.Context, _ domain.Manifest, ticket domain.PrintTicket) (string, error) {
	f.printTickets = append(f.printTickets, ticket)
	return "dev-1", nil
}

func (f *fakeHost) PrintStatus(context.Context, domain.Manifest, string) (domain.PrintStatus, error) {
	return f.status, nil
}

func (f *fakeHost) Close() error { return nil }

func writeBinary(t *testing.T, payload string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "driver")
	if err := os.WriteFile(path, []byte(payload), 0o755); err != nil {
		t.Fatalf("write driver: %v", err)
	}
	sum := sha256.Sum256([]byte(payload))
	return path, hex.EncodeToString(sum[:])
}

func TestCaptureRequiresCapability(t *testing.T) {
	t.Parallel()
	host := &fakeHost{meta: domain.Metadata{Name: "printer-only", Capabilities: []domain.Capability{domain.CapabilityPrint}}}
	svc := service.NewDeviceService(domain.Manifest{Name: "printer-only", Binary: "/opt/driver"}, host)

	_, err := svc.Capture(context.Background())
	if !errors.Is(err, domain.ErrCapabilityMissing) {
		t.Fatalf("expected capability error, got %v", err)
	}
}

func TestCaptureReturnsPhotoAndCachesMetadata(t *testing.T) {
	t.Parallel()
	host := &fakeHost{
		meta:  domain.Metadata{Name: "cam", Capabilities: []domain.Capability{domain.CapabilityCapture}},
		photo: domain.Photo{Data: []byte{0x89, 'P', 'N', 'G'}, ContentType: "image/png"},
	}
	svc := service.NewDeviceService(domain.Manifest{Name: "cam", Binary: "/opt/cam"}, host)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		photo, err := svc.Capture(ctx)
		if err != nil {
			t.Fatalf("capture %d: %v", i, err)
		}
		if photo.ContentType != "image/png" {
			t.Fatalf("content type = %q", photo.ContentType)
		}
	}
	if host.metaCalls != 1 {
		t.Fatalf("metadata fetched %d times, want 1", host.metaCalls)
	}
}

func TestCaptureRejectsEmptyPhoto(t *testing.T) {
	t.Parallel()
	host := &fakeHost{meta: domain.Metadata{Capabilities: []domain.Capability{domain.CapabilityCapture}}}
	svc := service.NewDeviceService(domain.Manifest{Name: "cam", Binary: "/opt/cam"}, host)
	if _, err := svc.Capture(context.Background()); err == nil {
		t.Fatalf("expected empty photo error")
	}
}

func TestSubmitPrintValidatesTicket(t *testing.T) {
	t.Parallel()
	host := &fakeHost{meta: domain.Metadata{Capabilities: []domain.Capability{domain.CapabilityPrint}}}
	svc := service.NewDeviceService(domain.Manifest{Name: "printer", Binary: "/opt/printer"}, host)
	ctx := context.Background()

	if _, err := svc.SubmitPrint(ctx, domain.PrintTicket{JobID: "p1", Copies: 1}); err == nil {
		t.Fatalf("expected missing artifact error")
	}
	id, err := svc.SubmitPrint(ctx, domain.PrintTicket{JobID: "p1", ArtifactURL: "https://img/1", Copies: 2})
	if err != nil {
		t.Fatalf("submit print: %v", err)
	}
	if id != "dev-1" || len(host.printTickets) != 1 {
		t.Fatalf("unexpected submission: id=%s tickets=%v", id, host.printTickets)
	}
}

func TestChecksumMismatchBlocksDriver(t *testing.T) {
	t.Parallel()
	binary, _ := writeBinary(t, "driver-v2")
	host := &fakeHost{meta: domain.Metadata{Capabilities: []domain.Capability{domain.CapabilityCapture}}}
	svc := service.NewDeviceService(domain.Manifest{Name: "cam", Binary: binary, SHA256: strings.Repeat("0", 64)}, host)

	if _, err := svc.Metadata(context.Background()); !errors.Is(err, domain.ErrChecksumMismatch) {
		t.Fatalf("expected checksum mismatch, got %v", err)
	}
	if host.metaCalls != 0 {
		t.Fatalf("driver must not be started on checksum mismatch")
	}
	result := svc.Doctor(context.Background())
	if !result.BinaryReachable || result.ChecksumValid || result.LifecycleOK {
		t.Fatalf("unexpected doctor result: %+v", result)
	}
}

func TestDoctorHealthyDriver(t *testing.T) {
	t.Parallel()
	binary, sum := writeBinary(t, "driver-v1")
	host := &fakeHost{meta: domain.Metadata{Name: "devsim", Capabilities: []domain.Capability{domain.CapabilityCapture, domain.CapabilityPrint}}}
	svc := service.NewDeviceService(domain.Manifest{Name: "devsim", Binary: binary, SHA256: sum}, host)

	result := svc.Doctor(context.Background())
	if !result.BinaryReachable || !result.ChecksumValid || !result.LifecycleOK || result.Error != "" {
		t.Fatalf("unexpected doctor result: %+v", result)
	}
	if len(result.Capabilities) != 2 {
		t.Fatalf("capabilities = %v", result.Capabilities)
	}
}

func TestDoctorMissingBinary(t *testing.T) {
	t.Parallel()
	svc := service.NewDeviceService(domain.Manifest{Name: "cam", Binary: filepath.Join(t.TempDir(), "missing")}, &fakeHost{})
	result := svc.Doctor(context.Background())
	if result.BinaryReachable || result.Error == "" {
		t.Fatalf("unexpected doctor result: %+v", result)
	}
}

package out_test

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	deviceout "pixelbooth/internal/modules/device/adapter/out"
	"pixelbooth/internal/modules/device/domain"
)

func TestGRPCHostIntegrationDevsim(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the devsim driver")
	}
	manifest := domain.Manifest{Name: "devsim", Binary: buildDevsim(t)}

	host := deviceout.NewGRPCHost(5*time.Second, 5*time.Second, nil)
	defer host.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	meta, err := host.GetMetadata(ctx, manifest)
	if err != nil {
		t.Fatalf("get metadata: %v", err)
	}
	if meta.Name != "devsim" || !meta.HasCapability(domain.CapabilityCapture) || !meta.HasCapability(domain.CapabilityPrint) {
		t.Fatalf("unexpected metadata: %+v", meta)
	}

	photo, err := host.Capture(ctx, manifest)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if photo.ContentType != "image/png" || len(photo.Data) < 8 || string(photo.Data[1:4]) != "PNG" {
		t.Fatalf("unexpected photo: type=%s size=%d", photo.ContentType, len(photo.Data))
	}

	jobID, err := host.SubmitPrint(ctx, manifest, domain.PrintTicket{JobID: "p1", ArtifactURL: "https://img/1", Copies: 1})
	if err != nil {
		t.Fatalf("submit print: %v", err)
	}
	status, err := host.PrintStatus(ctx, manifest, jobID)
	if err != nil {
		t.Fatalf("print status: %v", err)
	}
	if status.State != domain.PrintQueued && status.State != domain.PrintProcessing {
		t.Fatalf("unexpected initial state: %s", status.State)
	}
}

func buildDevsim(t *testing.T) string {
	t.Helper()
	binPath := filepath.Join(t.TempDir(), "devsim")
	cmd := exec.Command("go", "build", "-o", binPath, "./plugins/devsim")
	cmd.Dir = repositoryRoot(t)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("build devsim: %v\n%s", err, string(out))
	}
	return binPath
}

func repositoryRoot(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller failed")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(file), "../../../../../"))
}

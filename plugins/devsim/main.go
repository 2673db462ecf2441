// Command devsim is a device driver for kiosks without hardware. Capture
// returns a generated test card and prints finish after a short delay.
package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/hashicorp/go-plugin"

	devicerpc "pixelbooth/internal/modules/device/adapter/out/rpc"
)

const (
	queueFor   = 500 * time.Millisecond
	processFor = 2 * time.Second
)

type printJob struct {
	copies    int32
	submitted time.Time
}

type server struct {
	mu    sync.Mutex
	next  int
	jobs  map[string]printJob
	shots int
}

func newServer() *server {
	return &server{jobs: map[string]printJob{}}
}

func (s *server) GetMetadata(_ context.Context, _ *devicerpc.Empty) (*devicerpc.Metadata, error) {
	return &devicerpc.Metadata{
		Name:         "devsim",
		Version:      "1.0.0",
		Capabilities: []string{"capture", "print"},
	}, nil
}

func (s *server) Capture(_ context.Context, _ *devicerpc.Empty) (*devicerpc.CaptureResponse, error) {
	s.mu.Lock()
	s.shots++
	shot := s.shots
	s.mu.Unlock()

	raw, err := testCard(320, 240, shot)
	if err != nil {
		return nil, err
	}
	return &devicerpc.CaptureResponse{
		Image:        raw,
		ContentType:  "image/png",
		CapturedAtMS: time.Now().UnixMilli(),
	}, nil
}

func (s *server) SubmitPrint(_ context.Context, in *devicerpc.PrintRequest) (*devicerpc.PrintResponse, error) {
	if in.ArtifactURL == "" {
		return nil, fmt.Errorf("artifact url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	id := fmt.Sprintf("devsim-%d", s.next)
	s.jobs[id] = printJob{copies: in.Copies, submitted: time.Now()}
	return &devicerpc.PrintResponse{DeviceJobID: id}, nil
}

func (s *server) PrintStatus(_ context.Context, in *devicerpc.PrintStatusRequest) (*devicerpc.PrintStatusResponse, error) {
	s.mu.Lock()
	job, ok := s.jobs[in.DeviceJobID]
	s.mu.Unlock()
	if !ok {
		return &devicerpc.PrintStatusResponse{State: "failed", Reason: "unknown print job " + in.DeviceJobID}, nil
	}
	elapsed := time.Since(job.submitted)
	switch {
	case elapsed < queueFor:
		return &devicerpc.PrintStatusResponse{State: "queued"}, nil
	case elapsed < queueFor+processFor*time.Duration(max(job.copies, 1)):
		return &devicerpc.PrintStatusResponse{State: "processing"}, nil
	default:
		return &devicerpc.PrintStatusResponse{State: "completed"}, nil
	}
}

// testCard draws colour bars shifted by shot so consecutive captures differ.
func testCard(w, h, shot int) ([]byte, error) {
	bars := []color.RGBA{
		{255, 255, 255, 255}, {255, 255, 0, 255}, {0, 255, 255, 255}, {0, 255, 0, 255},
		{255, 0, 255, 255}, {255, 0, 0, 255}, {0, 0, 255, 255},
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	barWidth := w / len(bars)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			idx := (x/max(barWidth, 1) + shot) % len(bars)
			img.Set(x, y, bars[idx])
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode test card: %w", err)
	}
	return buf.Bytes(), nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: devicerpc.HandshakeConfig,
		Plugins:         devicerpc.PluginMap(newServer()),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}

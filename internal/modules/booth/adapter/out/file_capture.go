package out

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	"pixelbooth/internal/platform/clock"
)

var imageExtensions = map[string]struct{}{".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}}

// FileCapture treats a directory as the camera: the newest image dropped into
// it is the capture. Tethered shooting software writes there.
type FileCapture struct {
	dir   string
	clock clock.Clock
}

func NewFileCapture(dir string, clk clock.Clock) boothout.CaptureDevice {
	return &FileCapture{dir: dir, clock: clk}
}

func (c *FileCapture) Capture(ctx context.Context) (domain.Image, error) {
	if err := ctx.Err(); err != nil {
		return domain.Image{}, err
	}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return domain.Image{}, fmt.Errorf("read capture dir: %w", err)
	}
	var newest string
	var newestInfo os.FileInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if newestInfo == nil || info.ModTime().After(newestInfo.ModTime()) {
			newest = entry.Name()
			newestInfo = info
		}
	}
	if newestInfo == nil {
		return domain.Image{}, fmt.Errorf("no image found in %s", c.dir)
	}
	data, err := os.ReadFile(filepath.Join(c.dir, newest))
	if err != nil {
		return domain.Image{}, fmt.Errorf("read capture: %w", err)
	}
	if len(data) == 0 {
		return domain.Image{}, fmt.Errorf("capture %s is empty", newest)
	}
	return domain.Image{
		Data:        data,
		ContentType: http.DetectContentType(data),
		CapturedAt:  c.clock.Now(),
	}, nil
}

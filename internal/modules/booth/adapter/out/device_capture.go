package out

import (
	"context"

	"pixelbooth/internal/modules/booth/domain"
	boothout "pixelbooth/internal/modules/booth/port/out"
	devicein "pixelbooth/internal/modules/device/port/in"
)

// DeviceCapture takes photos through a device driver plugin.
type DeviceCapture struct {
	device devicein.Usecase
}

func NewDeviceCapture(device devicein.Usecase) boothout.CaptureDevice {
	return &DeviceCapture{device: device}
}

func (c *DeviceCapture) Capture(ctx context.Context) (domain.Image, error) {
	photo, err := c.device.Capture(ctx)
	if err != nil {
		return domain.Image{}, err
	}
	return domain.Image{Data: photo.Data, ContentType: photo.ContentType, CapturedAt: photo.CapturedAt}, nil
}

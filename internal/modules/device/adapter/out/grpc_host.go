package out

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	devicerpc "pixelbooth/internal/modules/device/adapter/out/rpc"
	"pixelbooth/internal/modules/device/domain"
	deviceout "pixelbooth/internal/modules/device/port/out"
)

const (
	defaultStartTimeout = 5 * time.Second
	defaultCallTimeout  = 10 * time.Second
)

// GRPCHost keeps one driver process per binary alive between calls and
// restarts it when it has exited.
type GRPCHost struct {
	startTimeout time.Duration
	callTimeout  time.Duration
	logger       hclog.Logger

	mu      sync.Mutex
	clients map[string]*hostedDriver
}

type hostedDriver struct {
	client *plugin.Client
	rpc    devicerpc.DeviceClient
}

func NewGRPCHost(startTimeout, callTimeout time.Duration, logger hclog.Logger) deviceout.Host {
	if startTimeout <= 0 {
		startTimeout = defaultStartTimeout
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GRPCHost{
		startTimeout: startTimeout,
		callTimeout:  callTimeout,
		logger:       logger,
		clients:      map[string]*hostedDriver{},
	}
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	client, err := h.connect(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	meta, err := client.GetMetadata(callCtx)
	if err != nil {
		return domain.Metadata{}, h.callError(callCtx, manifest, "get metadata", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities}, nil
}

func (h *GRPCHost) Capture(ctx context.Context, manifest domain.Manifest) (domain.Photo, error) {
	client, err := h.connect(manifest)
	if err != nil {
		return domain.Photo{}, err
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	response, err := client.Capture(callCtx)
	if err != nil {
		return domain.Photo{}, h.callError(callCtx, manifest, "capture", err)
	}
	photo := domain.Photo{Data: response.Image, ContentType: response.ContentType}
	if response.CapturedAtMS > 0 {
		photo.CapturedAt = time.UnixMilli(response.CapturedAtMS).UTC()
	}
	return photo, nil
}

func (h *GRPCHost) SubmitPrint(ctx context.Context, manifest domain.Manifest, ticket domain.PrintTicket) (string, error) {
	client, err := h.connect(manifest)
	if err != nil {
		return "", err
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	response, err := client.SubmitPrint(callCtx, &devicerpc.PrintRequest{
		JobID:       ticket.JobID,
		SessionID:   ticket.SessionID,
		ArtifactURL: ticket.ArtifactURL,
		Copies:      int32(ticket.Copies),
	})
	if err != nil {
		return "", h.callError(callCtx, manifest, "submit print", err)
	}
	return response.DeviceJobID, nil
}

func (h *GRPCHost) PrintStatus(ctx context.Context, manifest domain.Manifest, deviceJobID string) (domain.PrintStatus, error) {
	client, err := h.connect(manifest)
	if err != nil {
		return domain.PrintStatus{}, err
	}
	callCtx, cancel := h.callContext(ctx)
	defer cancel()

	response, err := client.PrintStatus(callCtx, &devicerpc.PrintStatusRequest{DeviceJobID: deviceJobID})
	if err != nil {
		return domain.PrintStatus{}, h.callError(callCtx, manifest, "print status", err)
	}
	state, err := domain.ParsePrintState(response.State)
	if err != nil {
		return domain.PrintStatus{}, err
	}
	return domain.PrintStatus{State: state, Reason: response.Reason}, nil
}

// Close stops every driver process started by the host.
func (h *GRPCHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for binary, driver := range h.clients {
		driver.client.Kill()
		delete(h.clients, binary)
	}
	return nil
}

func (h *GRPCHost) connect(manifest domain.Manifest) (devicerpc.DeviceClient, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if driver, ok := h.clients[manifest.Binary]; ok {
		if !driver.client.Exited() {
			return driver.rpc, nil
		}
		h.logger.Warn("device driver exited, restarting", "device", manifest.Name)
		driver.client.Kill()
		delete(h.clients, manifest.Binary)
	}

	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  devicerpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          devicerpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     h.startTimeout,
		Logger:           h.logger.Named(manifest.Name),
	})
	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start device driver %s: %w", manifest.Name, err)
	}
	raw, err := rpcClient.Dispense(devicerpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense device driver: %w", err)
	}
	typed, ok := raw.(devicerpc.DeviceClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("device rpc client type mismatch")
	}
	h.clients[manifest.Binary] = &hostedDriver{client: client, rpc: typed}
	return typed, nil
}

func (h *GRPCHost) callError(callCtx context.Context, manifest domain.Manifest, op string, err error) error {
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s on %s", domain.ErrPluginTimeout, op, manifest.Name)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (h *GRPCHost) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, h.callTimeout)
}

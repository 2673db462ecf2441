package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

const (
	PluginMapKey      = "device"
	serviceName       = "pixelbooth.device.v1.Device"
	jsonCodecName     = "json"
	methodGetMetadata = "/" + serviceName + "/GetMetadata"
	methodCapture     = "/" + serviceName + "/Capture"
	methodSubmitPrint = "/" + serviceName + "/SubmitPrint"
	methodPrintStatus = "/" + serviceName + "/PrintStatus"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "PIXELBOOTH_DEVICE",
	MagicCookieValue: "pixelbooth",
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return jsonCodecName
}

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type Empty struct{}

type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type CaptureResponse struct {
	Image        []byte `json:"image"`
	ContentType  string `json:"content_type"`
	CapturedAtMS int64  `json:"captured_at_ms"`
}

type PrintRequest struct {
	JobID       string `json:"job_id"`
	SessionID   string `json:"session_id"`
	ArtifactURL string `json:"artifact_url"`
	Copies      int32  `json:"copies"`
}

type PrintResponse struct {
	DeviceJobID string `json:"device_job_id"`
}

type PrintStatusRequest struct {
	DeviceJobID string `json:"device_job_id"`
}

type PrintStatusResponse struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

type DeviceServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	Capture(ctx context.Context, in *Empty) (*CaptureResponse, error)
	SubmitPrint(ctx context.Context, in *PrintRequest) (*PrintResponse, error)
	PrintStatus(ctx context.Context, in *PrintStatusRequest) (*PrintStatusResponse, error)
}

type DeviceClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	Capture(ctx context.Context) (*CaptureResponse, error)
	SubmitPrint(ctx context.Context, in *PrintRequest) (*PrintResponse, error)
	PrintStatus(ctx context.Context, in *PrintStatusRequest) (*PrintStatusResponse, error)
}

type deviceClient struct {
	conn grpc.ClientConnInterface
}

func NewDeviceClient(conn grpc.ClientConnInterface) DeviceClient {
	return &deviceClient{conn: conn}
}

func (c *deviceClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceClient) Capture(ctx context.Context) (*CaptureResponse, error) {
	out := &CaptureResponse{}
	if err := c.conn.Invoke(ctx, methodCapture, &Empty{}, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceClient) SubmitPrint(ctx context.Context, in *PrintRequest) (*PrintResponse, error) {
	out := &PrintResponse{}
	if err := c.conn.Invoke(ctx, methodSubmitPrint, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *deviceClient) PrintStatus(ctx context.Context, in *PrintStatusRequest) (*PrintStatusResponse, error) {
	out := &PrintStatusResponse{}
	if err := c.conn.Invoke(ctx, methodPrintStatus, in, out, grpc.CallContentSubtype(jsonCodecName)); err != nil {
		return nil, err
	}
	return out, nil
}

// unary builds the method descriptor for one request/response call.
func unary[Req, Resp any](name string, call func(DeviceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			impl, ok := srv.(DeviceServer)
			if !ok {
				return nil, fmt.Errorf("invalid server type")
			}
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type")
				}
				return call(impl, ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterDeviceServer(server grpc.ServiceRegistrar, impl DeviceServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*DeviceServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("GetMetadata", DeviceServer.GetMetadata),
			unary("Capture", DeviceServer.Capture),
			unary("SubmitPrint", DeviceServer.SubmitPrint),
			unary("PrintStatus", DeviceServer.PrintStatus),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "pixelbooth/device/v1",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl DeviceServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterDeviceServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewDeviceClient(conn), nil
}

func PluginMap(impl DeviceServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}

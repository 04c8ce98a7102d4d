package grpcclient

import (
	"context"
	"encoding/base64"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"

	apperrors "github.com/GriffinCanCode/live-translate/internal/errors"
	"github.com/GriffinCanCode/live-translate/internal/recognition"
	"github.com/GriffinCanCode/live-translate/internal/resilience"
	"github.com/GriffinCanCode/live-translate/internal/trace"
)

// Client talks to the recognition engine. Requests and responses are
// structpb.Struct messages:
//
//	request:  {width, height, channels: "bgr"|"rgb", lang, image: base64 pixels}
//	response: {detections: [{text, score, box: [[x, y], ...]}]}
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	order   recognition.ChannelOrder
}

// New creates an engine client for addr. Extra dial options are appended
// after the defaults.
func New(addr string, opts ...grpc.DialOption) (*Client, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                DefaultKeepaliveTime,
			Timeout:             DefaultKeepaliveTimeout,
			PermitWithoutStream: true,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallSendMsgSize(maxMessageSize),
			grpc.MaxCallRecvMsgSize(maxMessageSize),
		),
	}
	conn, err := grpc.NewClient(addr, append(base, opts...)...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.Unavailable, "dial recognition engine").WithMetadata("addr", addr)
	}
	return &Client{
		conn:    conn,
		breaker: resilience.New(resilience.EngineConfig()),
		order:   recognition.BGR,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Order implements recognition.Engine. The engine expects BGR like OpenCV.
func (c *Client) Order() recognition.ChannelOrder { return c.order }

// Detect implements recognition.Engine.
func (c *Client) Detect(ctx context.Context, r recognition.Raster, lang string) ([]recognition.Detection, error) {
	req, err := structpb.NewStruct(map[string]any{
		"width":    r.Width,
		"height":   r.Height,
		"channels": r.Order.String(),
		"lang":     lang,
		"image":    base64.StdEncoding.EncodeToString(r.Pix),
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.InvalidArgument, "build detect request")
	}

	resp, err := resilience.ExecuteWithResult(c.breaker, func() (*structpb.Struct, error) {
		out := new(structpb.Struct)
		if err := c.conn.Invoke(ctx, DetectMethod, req, out); err != nil {
			return nil, err
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrOpen) {
			return nil, apperrors.Wrap(err, apperrors.Unavailable, "recognition engine circuit open")
		}
		return nil, apperrors.FromGRPCError(err)
	}
	return decodeDetections(resp)
}

func decodeDetections(resp *structpb.Struct) ([]recognition.Detection, error) {
	list := resp.GetFields()["detections"].GetListValue()
	dets := make([]recognition.Detection, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		item := v.GetStructValue()
		if item == nil {
			return nil, apperrors.Newf(apperrors.RecognitionFailed, "detection %d is not an object", i)
		}
		f := item.GetFields()
		d := recognition.Detection{
			Text:  f["text"].GetStringValue(),
			Score: f["score"].GetNumberValue(),
		}
		for _, pt := range f["box"].GetListValue().GetValues() {
			xy := pt.GetListValue().GetValues()
			if len(xy) < 2 {
				return nil, apperrors.Newf(apperrors.RecognitionFailed, "detection %d has a malformed vertex", i)
			}
			d.Quad = append(d.Quad, recognition.Point{X: xy[0].GetNumberValue(), Y: xy[1].GetNumberValue()})
		}
		dets = append(dets, d)
	}
	return dets, nil
}

// Healthy checks the engine through the standard gRPC health service.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, HealthCheckTimeout)
	defer cancel()
	resp, err := healthpb.NewHealthClient(c.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return apperrors.FromGRPCError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return apperrors.Newf(apperrors.Unavailable, "recognition engine %s", resp.GetStatus())
	}
	return nil
}

package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/logging"
)

// Wire contract of the extraction service. Payloads are google.protobuf.Struct:
//
//	request:  {"image": <base64 jpeg>, "format": "jpeg"}
//	response: {"faces": [{"box": {"x","y","w","h"}, "descriptor": [...]}]}
const (
	ServiceName   = "carguard.engine.v1.FaceEngine"
	ExtractMethod = "/" + ServiceName + "/Extract"
)

type GRPCExtractor struct {
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// Dial creates a lazily connecting client; nothing is sent until the
// first call. Extra options are appended after insecure transport.
func Dial(addr string, logger *zap.Logger, opts ...grpc.DialOption) (*GRPCExtractor, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, logging.NewOperationError("engine.dial", "", err)
	}
	return NewGRPCExtractor(conn, logger), nil
}

func NewGRPCExtractor(conn *grpc.ClientConn, logger *zap.Logger) *GRPCExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCExtractor{conn: conn, logger: logger.Named("engine")}
}

func (g *GRPCExtractor) Close() error {
	return g.conn.Close()
}

// Probe asks the standard health service whether the extractor is serving.
// Used once at startup to resolve the engine capability.
func (g *GRPCExtractor) Probe(ctx context.Context) bool {
	resp, err := healthpb.NewHealthClient(g.conn).Check(ctx, &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		g.logger.Warn("engine health probe failed", zap.Error(err))
		return false
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING
}

func (g *GRPCExtractor) Extract(ctx context.Context, img image.Image) ([]Face, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 92}); err != nil {
		return nil, fmt.Errorf("engine: encode probe: %w", err)
	}

	req, err := structpb.NewStruct(map[string]any{
		"image":  base64.StdEncoding.EncodeToString(buf.Bytes()),
		"format": "jpeg",
	})
	if err != nil {
		return nil, fmt.Errorf("engine: build request: %w", err)
	}

	resp := &structpb.Struct{}
	if err := g.conn.Invoke(ctx, ExtractMethod, req, resp); err != nil {
		wrapped := logging.NewOperationError("engine.extract", "", err)
		g.logger.Warn("extract call failed", zap.Error(wrapped))
		switch status.Code(err) {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Unimplemented, codes.Canceled:
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil, wrapped
	}

	return parseFaces(resp)
}

func parseFaces(resp *structpb.Struct) ([]Face, error) {
	list := resp.GetFields()["faces"].GetListValue()
	if list == nil {
		return nil, nil
	}

	faces := make([]Face, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, fmt.Errorf("engine: face %d is not an object", i)
		}

		raw := obj.GetFields()["descriptor"].GetListValue().GetValues()
		if len(raw) == 0 {
			return nil, fmt.Errorf("engine: face %d has no descriptor", i)
		}
		desc := make(model.Descriptor, len(raw))
		for j, x := range raw {
			if _, ok := x.GetKind().(*structpb.Value_NumberValue); !ok {
				return nil, fmt.Errorf("engine: face %d descriptor[%d] is not a number", i, j)
			}
			desc[j] = x.GetNumberValue()
		}

		box := obj.GetFields()["box"].GetStructValue().GetFields()
		x := int(box["x"].GetNumberValue())
		y := int(box["y"].GetNumberValue())
		faces = append(faces, Face{
			Box:        image.Rect(x, y, x+int(box["w"].GetNumberValue()), y+int(box["h"].GetNumberValue())),
			Descriptor: desc,
		})
	}
	return faces, nil
}

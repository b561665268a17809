package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
)

// EngineClient is the hand-written counterpart to a protoc-gen-go-grpc
// client stub: it calls the service registered by RegisterEngineServer
// directly through ClientConn.Invoke, using jsonCodec as the wire format.
type EngineClient struct {
	cc *grpclib.ClientConn
}

// NewEngineClient wraps an existing connection. Pass grpc.ForceCodec or
// grpc.CallContentSubtype("json") call options, or dial with
// grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})) so every
// invocation already negotiates the json codec.
func NewEngineClient(cc *grpclib.ClientConn) *EngineClient {
	return &EngineClient{cc: cc}
}

func (c *EngineClient) KnnExact(ctx context.Context, req *KnnExactRequest, opts ...grpclib.CallOption) (*KnnExactResponse, error) {
	out := new(KnnExactResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/KnnExact", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) BatchKnnExact(ctx context.Context, req *BatchKnnExactRequest, opts ...grpclib.CallOption) (*BatchKnnExactResponse, error) {
	out := new(BatchKnnExactResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/BatchKnnExact", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) AnnAllToAll(ctx context.Context, req *AnnAllToAllRequest, opts ...grpclib.CallOption) (*AnnAllToAllResponse, error) {
	out := new(AnnAllToAllResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/AnnAllToAll", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) AddVectors(ctx context.Context, req *AddVectorsRequest, opts ...grpclib.CallOption) (*AddVectorsResponse, error) {
	out := new(AddVectorsResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/AddVectors", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) Health(ctx context.Context, req *HealthCheckRequest, opts ...grpclib.CallOption) (*HealthCheckResponse, error) {
	out := new(HealthCheckResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/Health", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *EngineClient) GetStats(ctx context.Context, req *StatsRequest, opts ...grpclib.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.cc.Invoke(ctx, "/annknn.Engine/GetStats", req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

package grpc

import (
	"context"

	grpclib "google.golang.org/grpc"
)

// EngineServer is the service interface implemented by Server. Without a
// protoc-generated contract, this interface plays the role the
// protoc-gen-go-grpc output would normally play: it is the HandlerType
// registered alongside _ServiceDesc below.
type EngineServer interface {
	KnnExact(context.Context, *KnnExactRequest) (*KnnExactResponse, error)
	BatchKnnExact(context.Context, *BatchKnnExactRequest) (*BatchKnnExactResponse, error)
	AnnAllToAll(context.Context, *AnnAllToAllRequest) (*AnnAllToAllResponse, error)
	AddVectors(context.Context, *AddVectorsRequest) (*AddVectorsResponse, error)
	Health(context.Context, *HealthCheckRequest) (*HealthCheckResponse, error)
	GetStats(context.Context, *StatsRequest) (*StatsResponse, error)
}

func _Engine_KnnExact_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(KnnExactRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).KnnExact(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/KnnExact"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).KnnExact(ctx, req.(*KnnExactRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_BatchKnnExact_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(BatchKnnExactRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).BatchKnnExact(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/BatchKnnExact"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).BatchKnnExact(ctx, req.(*BatchKnnExactRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_AnnAllToAll_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(AnnAllToAllRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).AnnAllToAll(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/AnnAllToAll"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).AnnAllToAll(ctx, req.(*AnnAllToAllRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_AddVectors_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(AddVectorsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).AddVectors(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/AddVectors"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).AddVectors(ctx, req.(*AddVectorsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_Health_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(HealthCheckRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).Health(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/Health"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).Health(ctx, req.(*HealthCheckRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Engine_GetStats_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpclib.UnaryServerInterceptor) (interface{}, error) {
	in := new(StatsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EngineServer).GetStats(ctx, in)
	}
	info := &grpclib.UnaryServerInfo{Server: srv, FullMethod: "/annknn.Engine/GetStats"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EngineServer).GetStats(ctx, req.(*StatsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// _Engine_ServiceDesc stands in for the protoc-gen-go-grpc-generated
// ServiceDesc: same shape, hand-written because no .proto file backs this
// service (see codec.go).
var _Engine_ServiceDesc = grpclib.ServiceDesc{
	ServiceName: "annknn.Engine",
	HandlerType: (*EngineServer)(nil),
	Methods: []grpclib.MethodDesc{
		{MethodName: "KnnExact", Handler: _Engine_KnnExact_Handler},
		{MethodName: "BatchKnnExact", Handler: _Engine_BatchKnnExact_Handler},
		{MethodName: "AnnAllToAll", Handler: _Engine_AnnAllToAll_Handler},
		{MethodName: "AddVectors", Handler: _Engine_AddVectors_Handler},
		{MethodName: "Health", Handler: _Engine_Health_Handler},
		{MethodName: "GetStats", Handler: _Engine_GetStats_Handler},
	},
	Streams:  []grpclib.StreamDesc{},
	Metadata: "annknn/engine.proto",
}

// RegisterEngineServer wires srv into a *grpc.Server the way generated
// RegisterXxxServer functions normally do.
func RegisterEngineServer(s *grpclib.Server, srv EngineServer) {
	s.RegisterService(&_Engine_ServiceDesc, srv)
}

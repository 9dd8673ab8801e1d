// Package transport exposes band classification, selection and
// factorization over gRPC. Requests and responses are structpb.Struct
// messages, so the service needs no generated code.
package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region service-desc

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "bandroute.v1.Router"

// Method names.
const (
	MethodClassify   = "Classify"
	MethodSelectBand = "SelectBand"
	MethodAnalyze    = "Analyze"
	MethodFactorize  = "Factorize"
	MethodRecommend  = "Recommend"
)

// RouterServer is the server API of bandroute.v1.Router.
type RouterServer interface {
	Classify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SelectBand(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Analyze(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Factorize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Recommend(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes bandroute.v1.Router for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RouterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodClassify, Handler: unary(MethodClassify, RouterServer.Classify)},
		{MethodName: MethodSelectBand, Handler: unary(MethodSelectBand, RouterServer.SelectBand)},
		{MethodName: MethodAnalyze, Handler: unary(MethodAnalyze, RouterServer.Analyze)},
		{MethodName: MethodFactorize, Handler: unary(MethodFactorize, RouterServer.Factorize)},
		{MethodName: MethodRecommend, Handler: unary(MethodRecommend, RouterServer.Recommend)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "bandroute/v1/router.proto",
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv RouterServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type method func(RouterServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RouterServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RouterServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// #endregion service-desc

package grpcapi

import (
	"context"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the calculator service.
const ServiceName = "deskcalc.v1.Calculator"

const (
	evaluateMethod      = "/" + ServiceName + "/Evaluate"
	batchEvaluateMethod = "/" + ServiceName + "/BatchEvaluate"
)

// Metadata keys understood by the calculator service.
const (
	// StrictHeader selects strict tokenization when set to "true".
	StrictHeader = "deskcalc-strict"
	// ErrorKindTrailer carries the error kind of a failed Evaluate call.
	ErrorKindTrailer = "deskcalc-error-kind"
)

// CalculatorServer is the server API for the deskcalc.v1.Calculator service.
// Messages are well-known protobuf types so no generated code is needed.
type CalculatorServer interface {
	// Evaluate returns the result of one expression, or "Error!".
	Evaluate(context.Context, *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// BatchEvaluate starts a batch over a list of string expressions.
	BatchEvaluate(context.Context, *structpb.ListValue) (*longrunningpb.Operation, error)
}

// CalculatorServiceDesc describes the calculator service for grpc.Server.
var CalculatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CalculatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
		{MethodName: "BatchEvaluate", Handler: batchEvaluateHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "deskcalc/v1/calculator.proto",
}

// RegisterCalculatorServer registers srv on s.
func RegisterCalculatorServer(s grpc.ServiceRegistrar, srv CalculatorServer) {
	s.RegisterService(&CalculatorServiceDesc, srv)
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: evaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).Evaluate(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func batchEvaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.ListValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CalculatorServer).BatchEvaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: batchEvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(CalculatorServer).BatchEvaluate(ctx, req.(*structpb.ListValue))
	}
	return interceptor(ctx, in, info, handler)
}

// CalculatorClient is a client for the deskcalc.v1.Calculator service.
type CalculatorClient struct {
	cc grpc.ClientConnInterface
}

// NewCalculatorClient creates a client using cc.
func NewCalculatorClient(cc grpc.ClientConnInterface) *CalculatorClient {
	return &CalculatorClient{cc: cc}
}

// Evaluate calls deskcalc.v1.Calculator/Evaluate.
func (c *CalculatorClient) Evaluate(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, evaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BatchEvaluate calls deskcalc.v1.Calculator/BatchEvaluate.
func (c *CalculatorClient) BatchEvaluate(ctx context.Context, in *structpb.ListValue, opts ...grpc.CallOption) (*longrunningpb.Operation, error) {
	out := new(longrunningpb.Operation)
	if err := c.cc.Invoke(ctx, batchEvaluateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

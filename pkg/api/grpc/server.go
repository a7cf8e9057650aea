// Package grpcapi implements the gRPC calculator service together with the
// standard long-running Operations service used to track batch jobs.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
	"github.com/lemonberrylabs/deskcalc/pkg/types"
)

// OperationPrefix prefixes the batch ID in operation names.
const OperationPrefix = "operations/"

const defaultPageSize = 50

// waitPollInterval is how often WaitOperation re-checks a running batch.
var waitPollInterval = 20 * time.Millisecond

// Server implements the Calculator and Operations gRPC services.
type Server struct {
	longrunningpb.UnimplementedOperationsServer

	runner *runner.Runner
	grpc   *grpc.Server
}

// New creates a new gRPC server backed by r.
func New(r *runner.Runner) *Server {
	srv := &Server{runner: r}

	gs := grpc.NewServer()
	RegisterCalculatorServer(gs, srv)
	longrunningpb.RegisterOperationsServer(gs, srv)
	srv.grpc = gs

	return srv
}

// Serve starts listening on the given address and serves gRPC requests.
func (s *Server) Serve(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return s.grpc.Serve(lis)
}

// GracefulStop gracefully stops the gRPC server.
func (s *Server) GracefulStop() {
	s.grpc.GracefulStop()
}

// --- Calculator Service ---

// Evaluate evaluates one expression. Evaluation failures are not RPC errors:
// the result is "Error!" and the kind is sent in the ErrorKindTrailer trailer.
func (s *Server) Evaluate(ctx context.Context, req *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	result, err := s.runner.Engine(s.strict(ctx)).Diagnose(req.GetValue())
	if err != nil {
		if kind := types.KindOf(err); kind != "" {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(ErrorKindTrailer, kind))
		}
	}
	return wrapperspb.String(result), nil
}

// BatchEvaluate submits a batch of string expressions and returns its
// operation.
func (s *Server) BatchEvaluate(ctx context.Context, req *structpb.ListValue) (*longrunningpb.Operation, error) {
	values := req.GetValues()
	if len(values) == 0 {
		return nil, status.Error(codes.InvalidArgument, "at least one expression is required")
	}
	if len(values) > batch.MaxExpressions {
		return nil, status.Errorf(codes.InvalidArgument, "batch has %d expressions, maximum is %d", len(values), batch.MaxExpressions)
	}

	expressions := make([]string, len(values))
	for i, v := range values {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "expression %d is not a string", i+1)
		}
		expressions[i] = sv.StringValue
	}

	b := s.runner.Submit("", batch.EntriesFromStrings(expressions), s.strict(ctx))
	return batchToOperation(b)
}

// --- Operations Service ---

// GetOperation returns the current state of a batch operation.
func (s *Server) GetOperation(ctx context.Context, req *longrunningpb.GetOperationRequest) (*longrunningpb.Operation, error) {
	b, err := s.runner.Store().GetBatch(batchID(req.GetName()))
	if err != nil {
		return nil, storeError(err)
	}
	return batchToOperation(b)
}

// ListOperations lists batch operations newest first. The page token is the
// offset of the next page.
func (s *Server) ListOperations(ctx context.Context, req *longrunningpb.ListOperationsRequest) (*longrunningpb.ListOperationsResponse, error) {
	offset := 0
	if tok := req.GetPageToken(); tok != "" {
		n, err := strconv.Atoi(tok)
		if err != nil || n < 0 {
			return nil, status.Errorf(codes.InvalidArgument, "invalid page token %q", tok)
		}
		offset = n
	}
	pageSize := int(req.GetPageSize())
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	batches := s.runner.Store().ListBatches()
	if offset > len(batches) {
		offset = len(batches)
	}
	end := offset + pageSize
	if end > len(batches) {
		end = len(batches)
	}

	resp := &longrunningpb.ListOperationsResponse{}
	for _, b := range batches[offset:end] {
		op, err := batchToOperation(b)
		if err != nil {
			return nil, err
		}
		resp.Operations = append(resp.Operations, op)
	}
	if end < len(batches) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	return resp, nil
}

// CancelOperation cancels a running batch.
func (s *Server) CancelOperation(ctx context.Context, req *longrunningpb.CancelOperationRequest) (*emptypb.Empty, error) {
	if _, err := s.runner.Cancel(batchID(req.GetName())); err != nil {
		return nil, storeError(err)
	}
	return &emptypb.Empty{}, nil
}

// DeleteOperation removes a batch, cancelling it first if it is running.
func (s *Server) DeleteOperation(ctx context.Context, req *longrunningpb.DeleteOperationRequest) (*emptypb.Empty, error) {
	if err := s.runner.Delete(batchID(req.GetName())); err != nil {
		return nil, storeError(err)
	}
	return &emptypb.Empty{}, nil
}

// WaitOperation blocks until the batch is done, the request timeout elapses or
// ctx is cancelled, and returns the latest state of the operation.
func (s *Server) WaitOperation(ctx context.Context, req *longrunningpb.WaitOperationRequest) (*longrunningpb.Operation, error) {
	if d := req.GetTimeout(); d != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.AsDuration())
		defer cancel()
	}

	id := batchID(req.GetName())
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		b, err := s.runner.Store().GetBatch(id)
		if err != nil {
			return nil, storeError(err)
		}
		if b.Done() {
			return batchToOperation(b)
		}
		select {
		case <-ctx.Done():
			return batchToOperation(b)
		case <-ticker.C:
		}
	}
}

// --- Helpers ---

// strict reads StrictHeader from the incoming metadata, falling back to the
// runner's default.
func (s *Server) strict(ctx context.Context) bool {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return s.runner.StrictDefault()
	}
	vals := md.Get(StrictHeader)
	if len(vals) == 0 {
		return s.runner.StrictDefault()
	}
	return strings.EqualFold(vals[0], "true")
}

func batchID(name string) string {
	return strings.TrimPrefix(name, OperationPrefix)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, store.ErrNotActive):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// batchToOperation converts a stored batch to its long-running operation.
// Metadata is a Struct describing the batch; a succeeded batch carries its
// results as a ListValue response.
func batchToOperation(b *store.Batch) (*longrunningpb.Operation, error) {
	meta, err := structpb.NewStruct(map[string]interface{}{
		"batch":              b.Name,
		"displayName":        b.DisplayName,
		"state":              string(b.State),
		"strict":             b.Strict,
		"expressionCount":    len(b.Entries),
		"evaluated":          len(b.Outcomes),
		"failedExpectations": b.Failed,
		"createTime":         b.CreateTime.Format(time.RFC3339),
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to build operation metadata: %v", err)
	}
	metaAny, err := anypb.New(meta)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal operation metadata: %v", err)
	}

	op := &longrunningpb.Operation{
		Name:     OperationPrefix + b.ID,
		Metadata: metaAny,
		Done:     b.Done(),
	}

	switch b.State {
	case store.BatchSucceeded:
		results := &structpb.ListValue{}
		for _, o := range b.Outcomes {
			results.Values = append(results.Values, structpb.NewStringValue(o.Result))
		}
		resp, err := packResponse(results)
		if err != nil {
			return nil, err
		}
		op.Result = resp
	case store.BatchCancelled:
		op.Result = &longrunningpb.Operation_Error{
			Error: status.New(codes.Canceled, "batch cancelled").Proto(),
		}
	case store.BatchFailed:
		op.Result = &longrunningpb.Operation_Error{
			Error: status.New(codes.Internal, b.Error).Proto(),
		}
	}
	return op, nil
}

func packResponse(msg proto.Message) (*longrunningpb.Operation_Response, error) {
	any, err := anypb.New(msg)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to marshal operation result: %v", err)
	}
	return &longrunningpb.Operation_Response{Response: any}, nil
}

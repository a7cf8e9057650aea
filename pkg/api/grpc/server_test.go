package grpcapi

import (
	"context"
	"net"
	"testing"
	"time"

	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	lroauto "cloud.google.com/go/longrunning/autogen"
	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"

	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
)

func startTestServer(t *testing.T) (string, *runner.Runner, func()) {
	t.Helper()
	r := runner.New(store.New(), nil)
	srv := New(r)

	lis, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	go srv.grpc.Serve(lis)

	return lis.Addr().String(), r, func() {
		srv.grpc.Stop()
		r.Shutdown()
	}
}

func dial(t *testing.T, addr string) *grpc.ClientConn {
	t.Helper()
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}
	return conn
}

func TestEvaluate(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewCalculatorClient(conn)
	ctx := context.Background()

	tests := []struct {
		expr     string
		want     string
		wantKind string
	}{
		{"3+4*2", "11.0", ""},
		{"(1+2)*3", "9.0", ""},
		{"-3+4", "1.0", ""},
		{"5/0", "Error!", "ArithmeticError"},
		{"(1+2", "Error!", "StructuralError"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			var trailer metadata.MD
			got, err := client.Evaluate(ctx, wrapperspb.String(tt.expr), grpc.Trailer(&trailer))
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got.GetValue() != tt.want {
				t.Errorf("Evaluate(%q) = %q, want %q", tt.expr, got.GetValue(), tt.want)
			}
			kinds := trailer.Get(ErrorKindTrailer)
			if tt.wantKind == "" {
				if len(kinds) != 0 {
					t.Errorf("unexpected error kind trailer %v", kinds)
				}
				return
			}
			if len(kinds) != 1 || kinds[0] != tt.wantKind {
				t.Errorf("error kind trailer = %v, want %s", kinds, tt.wantKind)
			}
		})
	}
}

func TestEvaluateStrictHeader(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewCalculatorClient(conn)

	got, err := client.Evaluate(context.Background(), wrapperspb.String("3+4x"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.GetValue() != "7.0" {
		t.Errorf("lenient result = %q, want 7.0", got.GetValue())
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), StrictHeader, "true")
	got, err = client.Evaluate(ctx, wrapperspb.String("3+4x"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if got.GetValue() != "Error!" {
		t.Errorf("strict result = %q, want Error!", got.GetValue())
	}
}

func TestBatchEvaluateAndGetOperation(t *testing.T) {
	addr, r, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewCalculatorClient(conn)
	ops := longrunningpb.NewOperationsClient(conn)
	ctx := context.Background()

	list, err := structpb.NewList([]interface{}{"3+4*2", "5/0", "-3+4"})
	if err != nil {
		t.Fatalf("NewList: %v", err)
	}
	op, err := client.BatchEvaluate(ctx, list)
	if err != nil {
		t.Fatalf("BatchEvaluate: %v", err)
	}
	if op.GetName() == "" || op.GetName()[:len(OperationPrefix)] != OperationPrefix {
		t.Fatalf("unexpected operation name %q", op.GetName())
	}

	r.Wait()

	got, err := ops.GetOperation(ctx, &longrunningpb.GetOperationRequest{Name: op.GetName()})
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if !got.GetDone() {
		t.Fatal("expected operation to be done")
	}

	results := &structpb.ListValue{}
	if err := got.GetResponse().UnmarshalTo(results); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	want := []string{"11.0", "Error!", "1.0"}
	if len(results.GetValues()) != len(want) {
		t.Fatalf("got %d results, want %d", len(results.GetValues()), len(want))
	}
	for i, w := range want {
		if v := results.GetValues()[i].GetStringValue(); v != w {
			t.Errorf("result %d = %q, want %q", i, v, w)
		}
	}

	meta := &structpb.Struct{}
	if err := got.GetMetadata().UnmarshalTo(meta); err != nil {
		t.Fatalf("unmarshal metadata: %v", err)
	}
	if meta.GetFields()["state"].GetStringValue() != "SUCCEEDED" {
		t.Errorf("metadata state = %v", meta.GetFields()["state"])
	}
}

func TestBatchEvaluateInvalid(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewCalculatorClient(conn)
	ctx := context.Background()

	_, err := client.BatchEvaluate(ctx, &structpb.ListValue{})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("empty batch: code = %v, want InvalidArgument", status.Code(err))
	}

	list, _ := structpb.NewList([]interface{}{"1+1", 3.0})
	_, err = client.BatchEvaluate(ctx, list)
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("non-string entry: code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestOperationErrors(t *testing.T) {
	addr, r, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	ops := longrunningpb.NewOperationsClient(conn)
	ctx := context.Background()

	_, err := ops.GetOperation(ctx, &longrunningpb.GetOperationRequest{Name: "operations/missing"})
	if status.Code(err) != codes.NotFound {
		t.Errorf("GetOperation: code = %v, want NotFound", status.Code(err))
	}

	b := r.Submit("", nil, false)
	r.Wait()
	_, err = ops.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: OperationPrefix + b.ID})
	if status.Code(err) != codes.FailedPrecondition {
		t.Errorf("CancelOperation: code = %v, want FailedPrecondition", status.Code(err))
	}

	if _, err := ops.DeleteOperation(ctx, &longrunningpb.DeleteOperationRequest{Name: OperationPrefix + b.ID}); err != nil {
		t.Fatalf("DeleteOperation: %v", err)
	}
	_, err = ops.DeleteOperation(ctx, &longrunningpb.DeleteOperationRequest{Name: OperationPrefix + b.ID})
	if status.Code(err) != codes.NotFound {
		t.Errorf("second DeleteOperation: code = %v, want NotFound", status.Code(err))
	}
}

func TestListOperationsPaging(t *testing.T) {
	addr, r, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		r.Submit("", nil, false)
	}
	r.Wait()

	ops := longrunningpb.NewOperationsClient(conn)
	ctx := context.Background()

	seen := 0
	token := ""
	for {
		resp, err := ops.ListOperations(ctx, &longrunningpb.ListOperationsRequest{PageSize: 2, PageToken: token})
		if err != nil {
			t.Fatalf("ListOperations: %v", err)
		}
		if len(resp.GetOperations()) > 2 {
			t.Fatalf("page has %d operations, want at most 2", len(resp.GetOperations()))
		}
		seen += len(resp.GetOperations())
		token = resp.GetNextPageToken()
		if token == "" {
			break
		}
	}
	if seen != 5 {
		t.Errorf("listed %d operations, want 5", seen)
	}

	_, err := ops.ListOperations(ctx, &longrunningpb.ListOperationsRequest{PageToken: "bogus"})
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("bad token: code = %v, want InvalidArgument", status.Code(err))
	}
}

func TestWaitOperation(t *testing.T) {
	addr, _, cleanup := startTestServer(t)
	defer cleanup()

	conn := dial(t, addr)
	defer conn.Close()

	client := NewCalculatorClient(conn)
	ops := longrunningpb.NewOperationsClient(conn)
	ctx := context.Background()

	list, _ := structpb.NewList([]interface{}{"1+1"})
	op, err := client.BatchEvaluate(ctx, list)
	if err != nil {
		t.Fatalf("BatchEvaluate: %v", err)
	}

	got, err := ops.WaitOperation(ctx, &longrunningpb.WaitOperationRequest{
		Name:    op.GetName(),
		Timeout: durationpb.New(5 * time.Second),
	})
	if err != nil {
		t.Fatalf("WaitOperation: %v", err)
	}
	if !got.GetDone() {
		t.Error("expected operation to be done")
	}
}

// TestAutogenOperationsClient drives the Operations service through the
// generated Cloud client, the same way the remote CLI command does.
func TestAutogenOperationsClient(t *testing.T) {
	addr, r, cleanup := startTestServer(t)
	defer cleanup()

	ctx := context.Background()
	client, err := lroauto.NewOperationsClient(ctx,
		option.WithEndpoint(addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("NewOperationsClient: %v", err)
	}
	defer client.Close()

	b := r.Submit("auto", nil, false)
	r.Wait()

	op, err := client.GetOperation(ctx, &longrunningpb.GetOperationRequest{Name: OperationPrefix + b.ID})
	if err != nil {
		t.Fatalf("GetOperation: %v", err)
	}
	if !op.GetDone() {
		t.Error("expected operation to be done")
	}

	it := client.ListOperations(ctx, &longrunningpb.ListOperationsRequest{})
	count := 0
	for {
		_, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatalf("ListOperations: %v", err)
		}
		count++
	}
	if count != 1 {
		t.Errorf("listed %d operations, want 1", count)
	}
}

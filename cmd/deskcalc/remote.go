package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	lroauto "cloud.google.com/go/longrunning/autogen"
	longrunningpb "cloud.google.com/go/longrunning/autogen/longrunningpb"

	grpcapi "github.com/lemonberrylabs/deskcalc/pkg/api/grpc"
)

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Talk to a running deskcalc gRPC server",
}

var remoteEvalCmd = &cobra.Command{
	Use:   "eval EXPR...",
	Short: "Evaluate expressions on the server",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemoteEval,
}

var remoteBatchCmd = &cobra.Command{
	Use:   "batch EXPR...",
	Short: "Submit expressions as a batch and wait for the results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRemoteBatch,
}

var remoteOpsCmd = &cobra.Command{
	Use:   "ops",
	Short: "List batch operations",
	RunE:  runRemoteOps,
}

var remoteCancelCmd = &cobra.Command{
	Use:   "cancel OPERATION",
	Short: "Cancel a running batch operation",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoteCancel,
}

func init() {
	remoteCmd.PersistentFlags().String("endpoint", "", "gRPC server address (default localhost:8788, env DESKCALC_GRPC_ENDPOINT)")
	remoteEvalCmd.Flags().Bool("explain", false, "Show the error kind next to failed results")
	remoteBatchCmd.Flags().Duration("timeout", 30*time.Second, "How long to wait for the batch")
	remoteBatchCmd.Flags().Bool("no-wait", false, "Print the operation name and return immediately")

	remoteCmd.AddCommand(remoteEvalCmd, remoteBatchCmd, remoteOpsCmd, remoteCancelCmd)
}

func endpoint(cmd *cobra.Command) string {
	ep := envOrDefault("DESKCALC_GRPC_ENDPOINT", "localhost:8788")
	if v, _ := cmd.Flags().GetString("endpoint"); v != "" {
		ep = v
	}
	return ep
}

// callContext attaches the strict header when --strict or DESKCALC_STRICT is set.
func callContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if strict, ok := strictOverride(cmd); ok {
		ctx = metadata.AppendToOutgoingContext(ctx, grpcapi.StrictHeader, fmt.Sprintf("%t", strict))
	}
	return ctx
}

func dialCalculator(addr string) (*grpc.ClientConn, *grpcapi.CalculatorClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return conn, grpcapi.NewCalculatorClient(conn), nil
}

func operationsClient(ctx context.Context, addr string) (*lroauto.OperationsClient, error) {
	client, err := lroauto.NewOperationsClient(ctx,
		option.WithEndpoint(addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		return nil, fmt.Errorf("creating operations client: %w", err)
	}
	return client, nil
}

func runRemoteEval(cmd *cobra.Command, args []string) error {
	conn, client, err := dialCalculator(endpoint(cmd))
	if err != nil {
		return err
	}
	defer conn.Close()

	explain, _ := cmd.Flags().GetBool("explain")

	ctx := callContext(cmd)
	for _, expr := range args {
		var trailer metadata.MD
		resp, err := client.Evaluate(ctx, wrapperspb.String(expr), grpc.Trailer(&trailer))
		if err != nil {
			return fmt.Errorf("evaluate %q: %w", expr, err)
		}
		kinds := trailer.Get(grpcapi.ErrorKindTrailer)
		switch {
		case len(kinds) > 0 && explain:
			fmt.Fprintf(cmd.OutOrStdout(), "%s  (%s)\n", color.RedString(resp.GetValue()), kinds[0])
		case len(kinds) > 0:
			fmt.Fprintln(cmd.OutOrStdout(), color.RedString(resp.GetValue()))
		default:
			fmt.Fprintln(cmd.OutOrStdout(), resp.GetValue())
		}
	}
	return nil
}

func runRemoteBatch(cmd *cobra.Command, args []string) error {
	addr := endpoint(cmd)
	conn, client, err := dialCalculator(addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	values := make([]interface{}, len(args))
	for i, a := range args {
		values[i] = a
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return err
	}

	ctx := callContext(cmd)
	op, err := client.BatchEvaluate(ctx, list)
	if err != nil {
		return fmt.Errorf("submitting batch: %w", err)
	}

	if noWait, _ := cmd.Flags().GetBool("no-wait"); noWait {
		fmt.Fprintln(cmd.OutOrStdout(), op.GetName())
		return nil
	}

	ops, err := operationsClient(ctx, addr)
	if err != nil {
		return err
	}
	defer ops.Close()

	name := op.GetName()
	timeout, _ := cmd.Flags().GetDuration("timeout")
	op, err = ops.WaitOperation(ctx, &longrunningpb.WaitOperationRequest{
		Name:    name,
		Timeout: durationpb.New(timeout),
	})
	if err != nil {
		return fmt.Errorf("waiting for %s: %w", name, err)
	}
	return printOperationResults(cmd.OutOrStdout(), args, op)
}

// printOperationResults writes the results of a finished batch operation.
func printOperationResults(w io.Writer, expressions []string, op *longrunningpb.Operation) error {
	if !op.GetDone() {
		return fmt.Errorf("operation %s did not finish in time", op.GetName())
	}
	if e := op.GetError(); e != nil {
		return fmt.Errorf("operation %s failed: %s", op.GetName(), e.GetMessage())
	}

	results := &structpb.ListValue{}
	if err := op.GetResponse().UnmarshalTo(results); err != nil {
		return fmt.Errorf("decoding results of %s: %w", op.GetName(), err)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPRESSION\tRESULT")
	for i, v := range results.GetValues() {
		expr := ""
		if i < len(expressions) {
			expr = expressions[i]
		}
		fmt.Fprintf(tw, "%s\t%s\n", expr, v.GetStringValue())
	}
	return tw.Flush()
}

func runRemoteOps(cmd *cobra.Command, args []string) error {
	ctx := callContext(cmd)
	ops, err := operationsClient(ctx, endpoint(cmd))
	if err != nil {
		return err
	}
	defer ops.Close()

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "OPERATION\tSTATE\tEXPRESSIONS\tCREATED")

	it := ops.ListOperations(ctx, &longrunningpb.ListOperationsRequest{})
	for {
		op, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return fmt.Errorf("listing operations: %w", err)
		}
		meta := &structpb.Struct{}
		if err := op.GetMetadata().UnmarshalTo(meta); err != nil {
			return fmt.Errorf("decoding metadata of %s: %w", op.GetName(), err)
		}
		f := meta.GetFields()
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			op.GetName(),
			f["state"].GetStringValue(),
			int(f["expressionCount"].GetNumberValue()),
			f["createTime"].GetStringValue(),
		)
	}
	return tw.Flush()
}

func runRemoteCancel(cmd *cobra.Command, args []string) error {
	ctx := callContext(cmd)
	ops, err := operationsClient(ctx, endpoint(cmd))
	if err != nil {
		return err
	}
	defer ops.Close()

	if err := ops.CancelOperation(ctx, &longrunningpb.CancelOperationRequest{Name: args[0]}); err != nil {
		return fmt.Errorf("cancelling %s: %w", args[0], err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s\n", args[0])
	return nil
}

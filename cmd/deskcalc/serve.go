package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lemonberrylabs/deskcalc/pkg/api"
	grpcapi "github.com/lemonberrylabs/deskcalc/pkg/api/grpc"
	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
	"github.com/lemonberrylabs/deskcalc/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the REST API, web keypad and gRPC services",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "HTTP server port (default 8787, env PORT)")
	serveCmd.Flags().Int("grpc-port", 0, "gRPC server port (default 8788, env GRPC_PORT)")
	serveCmd.Flags().String("host", "", "Bind address (default 0.0.0.0, env HOST)")
	serveCmd.Flags().String("batch-dir", "", "Directory of batch YAML/JSON files to submit at startup (env DESKCALC_BATCH_DIR)")
	serveCmd.Flags().Bool("access-log", false, "Log every HTTP request")
}

func runServe(cmd *cobra.Command, args []string) error {
	port := envOrDefault("PORT", "8787")
	if v, _ := cmd.Flags().GetInt("port"); v != 0 {
		port = fmt.Sprintf("%d", v)
	}

	grpcPort := envOrDefault("GRPC_PORT", "8788")
	if v, _ := cmd.Flags().GetInt("grpc-port"); v != 0 {
		grpcPort = fmt.Sprintf("%d", v)
	}

	host := envOrDefault("HOST", "0.0.0.0")
	if v, _ := cmd.Flags().GetString("host"); v != "" {
		host = v
	}

	batchDir := os.Getenv("DESKCALC_BATCH_DIR")
	if v, _ := cmd.Flags().GetString("batch-dir"); v != "" {
		batchDir = v
	}

	accessLog, _ := cmd.Flags().GetBool("access-log")

	logger, err := newLogger(cmd)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%s", host, port)
	grpcAddr := fmt.Sprintf("%s:%s", host, grpcPort)

	strict := strictSetting(cmd)
	r := runner.New(store.New(), logger, runner.WithStrictDefault(strict))
	server := api.New(r, api.Config{AccessLog: accessLog})

	// Submit batch files from directory if specified
	if batchDir != "" {
		if _, err := server.LoadDir(batchDir); err != nil {
			log.Printf("Warning: failed to load batch directory: %v", err)
		}
	}

	// Register the web UI (non-fatal if template parsing fails)
	func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Warning: web UI disabled due to template error: %v", rec)
			}
		}()
		ui := web.New(r)
		ui.Register(server.App())
	}()

	// Start gRPC server
	grpcServer := grpcapi.New(r)
	go func() {
		log.Printf("gRPC server listening on %s", grpcAddr)
		if err := grpcServer.Serve(grpcAddr); err != nil {
			log.Fatalf("gRPC server error: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down deskcalc...")
		grpcServer.GracefulStop()
		if err := server.Shutdown(); err != nil {
			log.Printf("Error during shutdown: %v", err)
		}
		r.Shutdown()
	}()

	log.Printf("deskcalc listening on %s (strict=%v)", addr, strict)
	return server.Listen(addr)
}

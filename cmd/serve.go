package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-attendance/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	Long: `Start the Face Attendance API server.
The server exposes one-shot recognition, training jobs, live recognition
sessions with frame uploads, and attendance listings.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

// warmGalleryCache preloads every tenant's gallery so the first frame of a
// session doesn't pay the disk load. Failures are logged and skipped; a
// corrupt blob surfaces again, as an error, when the tenant is actually used.
func warmGalleryCache(ctx context.Context, svc *services) {
	tenants, err := svc.repo.Tenants(ctx)
	if err != nil {
		fmt.Printf("Gallery warmup skipped: %v\n", err)
		return
	}
	warmed := 0
	for _, tenant := range tenants {
		if _, err := svc.cache.Get(ctx, tenant.ID); err != nil {
			fmt.Printf("Gallery warmup for tenant %d failed: %v\n", tenant.ID, err)
			continue
		}
		warmed++
	}
	fmt.Printf("Warmed %d of %d tenant galleries\n", warmed, len(tenants))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := initServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	warmGalleryCache(ctx, svc)

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(svc.cfg, port, host, svc.repo, svc.engine, svc.trainer, svc.manager, svc.marker)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Face Attendance API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventlens/eventlens/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the EventLens API server.
The server accepts photographer batch uploads, runs ingestion jobs in
the background, and answers attendee selfie searches.`,
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

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	svc, err := newServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.checkIntegrity(ctx); err != nil {
		// Keep serving: searches still work over whatever the index holds.
		fmt.Printf("Integrity check failed: %v\n", err)
	}

	if err := os.MkdirAll(svc.cfg.Storage.UploadDir, 0750); err != nil {
		return fmt.Errorf("creating upload directory: %w", err)
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(web.Deps{
		Searcher:  svc.searcher,
		Ingestor:  svc.ingestor,
		Index:     svc.index,
		Records:   svc.faces,
		UploadDir: svc.cfg.Storage.UploadDir,
	}, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		if err := svc.index.Save(); err != nil {
			fmt.Printf("Warning: failed to save face index: %v\n", err)
		} else {
			fmt.Println("Face index saved to disk")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting EventLens API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	pagecapture "github.com/porticus-lab/go-page-capture"
	"github.com/porticus-lab/go-page-capture/internal/server"
)

var (
	flagAddr       string
	flagServeNoSbx bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve captures over HTTP",
	Long: `Serve starts an HTTP server backed by one shared browser.

Endpoints:
  GET /pdf?url=<url>          PDF attachment
  GET /archive?url=<url>      ZIP attachment of page images
  GET /screenshots?url=<url>  JSON object of page number to data URI
  GET /healthz

Capture endpoints accept max_pages and settle_ms query parameters.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (default :8080)")
	serveCmd.Flags().BoolVar(&flagServeNoSbx, "no-sandbox", false, "Disable the Chrome sandbox (containers)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.Server.Addr = flagAddr
	}
	if flagServeNoSbx {
		cfg.Browser.NoSandbox = true
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	c, err := pagecapture.NewCapturer(append(cfg.CapturerOptions(), pagecapture.WithLogger(log))...)
	if err != nil {
		return err
	}
	defer c.Close()

	handler := server.New(c, cfg.CaptureOptions(), server.Options{
		RateLimit:      cfg.Server.RateLimit,
		Burst:          cfg.Server.Burst,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	ctx := cmd.Context()
	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("serve: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("serve: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/server"
)

var (
	serverAddr   string
	serverDebug  bool
	readTimeout  time.Duration
	writeTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start an HTTP API server for DPS emission.

The API provides endpoints for:
  - POST /api/v1/dps/validate     - Validate and preview a DPS
  - POST /api/v1/dps/emit         - Sign and submit a DPS
  - POST /api/v1/dps/verify       - Verify a signed XML document
  - GET  /api/v1/nfse/:chave      - Query an issued NFS-e
  - GET  /api/v1/danfse/:chave    - Download a DANFSe
  - GET  /metrics                 - Prometheus metrics
  - GET  /health                  - Health check

The certificate, environment and default provider come from the same
configuration the other commands use.

Examples:
  # Start server on the configured address (SERVER_ADDR)
  nfse serve

  # Start on a custom port in debug mode
  nfse serve --address :9090 --debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverAddr, "address", "", "Server listen address (env: SERVER_ADDR)")
	serveCmd.Flags().BoolVar(&serverDebug, "debug", false, "Enable debug mode")
	serveCmd.Flags().DurationVar(&readTimeout, "read-timeout", 30*time.Second, "HTTP read timeout")
	serveCmd.Flags().DurationVar(&writeTimeout, "write-timeout", 2*time.Minute, "HTTP write timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serverAddr == "" {
		serverAddr = cfg.ServerAddr
	}

	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	trustStore, err := newTrustStore()
	if err != nil {
		return err
	}
	intermediates, err := loadCertificates(cfg.Cert.Intermediates)
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}

	// The default provider is optional; requests may carry their own
	var provider *model.Provider
	if p, err := model.LoadProviderFile(cfg.ProviderFile); err == nil {
		provider = p
	} else {
		log.Warn("no default provider loaded", zap.String("file", cfg.ProviderFile), zap.Error(err))
	}

	config := &server.Config{
		Address:       serverAddr,
		ReadTimeout:   readTimeout,
		WriteTimeout:  writeTimeout,
		Debug:         serverDebug,
		Environment:   cfg.Env(),
		Simulate:      cfg.DryRun,
		AppVersion:    cfg.AppVersion,
		Provider:      provider,
		Series:        cfg.DPS.Series,
		Credentials:   creds,
		Intermediates: intermediates,
		Client:        newClient(),
		TrustStore:    trustStore,
		Store:         store,
		SchemaPath:    cfg.SchemaFile,
		Logger:        log,
	}

	srv, err := server.NewServer(config)
	if err != nil {
		return err
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down server...")
		_ = log.Sync()
		os.Exit(0)
	}()

	fmt.Printf("Starting server on %s (%s)\n", serverAddr, cfg.Env())
	if cfg.DryRun {
		fmt.Println("Simulation mode: nothing will be submitted")
	}

	return srv.Run()
}

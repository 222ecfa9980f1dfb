package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/config"
	"github.com/rezonia/nfse-cli/internal/logger"
	"github.com/rezonia/nfse-cli/internal/model"
)

var (
	version = "2.0.0"

	// Global flags
	verbose      bool
	outputFormat string
	envFile      string
	ambiente     string

	cfg config.Config
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "nfse",
	Short: "Emit and manage Brazilian national service invoices (NFS-e)",
	Long: `nfse builds, signs and submits DPS documents to the national NFS-e
service (Sistema Nacional NFS-e) using the provider's ICP-Brasil certificate.

Configuration is read from the environment and an optional .env file
(NFSE_AMBIENTE, NFSE_CERT_PFX, NFSE_CERT_SENHA, NFSE_DRY_RUN, ...).

Examples:
  # Simulate an emission (no request is sent)
  nfse emitir --tomador cliente.json --servico servico_010101.json --valor 1500.00 --numero 42

  # Query an issued NFS-e
  nfse consultar 35503082123456780001950000000000000042250312345678

  # Download its DANFSe
  nfse danfse 35503082123456780001950000000000000042250312345678

  # Check the signing certificate
  nfse cert`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	defer func() { _ = log.Sync() }()
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format (json, table)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.PersistentFlags().StringVar(&ambiente, "ambiente", "", "Environment: producao or producaorestrita (env: NFSE_AMBIENTE)")
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(envFile)
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	if ambiente != "" {
		if _, err := model.ParseEnvironment(ambiente); err != nil {
			return err
		}
		cfg.Environment = ambiente
	}

	switch outputFormat {
	case "json", "table":
	default:
		return fmt.Errorf("invalid output format %q (expected json or table)", outputFormat)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err = logger.New(level, cfg.LogFormat)
	if err != nil {
		return err
	}
	return nil
}

func printVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

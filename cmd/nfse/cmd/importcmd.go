package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/emission"
)

var importCmd = &cobra.Command{
	Use:   "importar <chave>",
	Short: "Create provider, customer and service templates from an NFS-e",
	Long: `Query an issued NFS-e and write its provider, customer and service as
JSON templates under prestadores/, tomadores/ and servicos/ for later
emissions.

Examples:
  nfse importar 35503082123456780001950000000000000042250312345678`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline()
	if err != nil {
		return err
	}
	store, err := newStore()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout+5*time.Second)
	defer cancel()

	outcome, issued, err := pipeline.Lookup(ctx, cfg.Env(), creds, args[0])
	if err != nil {
		return printValidation(err)
	}
	if !outcome.IsAccepted() {
		return fmt.Errorf("NFS-e not available (HTTP %d): %s", outcome.StatusCode, outcome.ErrorDetail)
	}
	if issued == nil {
		return errors.New("returned NFS-e could not be parsed")
	}

	templates, err := emission.Import(store, issued, time.Now())
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(templates)
	}
	fmt.Println("✓ Modelos criados:")
	fmt.Printf("  %s\n  %s\n  %s\n", templates.Provider, templates.Customer, templates.Service)
	return nil
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/storage"
)

var querySave bool

var queryCmd = &cobra.Command{
	Use:   "consultar <chave>",
	Short: "Query an issued NFS-e by its access key",
	Long: `Fetch an NFS-e from the national service by its 50-digit access key
and print the parties and amount it carries.

Examples:
  nfse consultar 35503082123456780001950000000000000042250312345678
  nfse consultar 35503082123456780001950000000000000042250312345678 --salvar -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().BoolVar(&querySave, "salvar", false, "Write the returned NFS-e XML under nfse/")
}

func runQuery(cmd *cobra.Command, args []string) error {
	key := args[0]
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Timeout+5*time.Second)
	defer cancel()

	printVerbose("Consultando %s em %s\n", key, cfg.Env())
	outcome, issued, err := pipeline.Lookup(ctx, cfg.Env(), creds, key)
	if err != nil {
		return printValidation(err)
	}

	var saved string
	if querySave && outcome.IsAccepted() && len(outcome.Document) > 0 {
		store, err := newStore()
		if err != nil {
			return err
		}
		name := storage.Timestamp(time.Now()) + "_" + key + ".xml"
		if issued != nil {
			provDoc, _ := issued.Provider.Document()
			custDoc, _ := issued.Customer.Document()
			if provDoc != "" && custDoc != "" {
				name = storage.Name(storage.Timestamp(time.Now()), provDoc, custDoc, "xml")
			}
		}
		if saved, err = store.SaveNFSe(name, outcome.Document); err != nil {
			return err
		}
	}

	if outputFormat == "json" {
		if err := printJSON(map[string]interface{}{
			"resultado": outcome,
			"nfse":      issued,
			"arquivo":   saved,
		}); err != nil {
			return err
		}
	} else {
		switch outcome.Status {
		case model.Accepted:
			fmt.Printf("✓ NFS-e %s\n", outcome.AccessKey)
			if issued != nil {
				fmt.Printf("  Número:    %s\n", issued.Number)
				fmt.Printf("  Emissão:   %s\n", issued.IssuedAt)
				fmt.Printf("  Prestador: %s\n", issued.Provider.Name)
				fmt.Printf("  Tomador:   %s\n", issued.Customer.Name)
				fmt.Printf("  Serviço:   %s\n", issued.Service.CTribNac)
				fmt.Printf("  Valor:     %s\n", issued.Amount.StringFixed(2))
			}
		default:
			fmt.Printf("✗ Não encontrada (HTTP %d): %s\n", outcome.StatusCode, outcome.ErrorDetail)
		}
		for _, w := range outcome.Warnings {
			fmt.Printf("⚠ %s\n", w)
		}
		if saved != "" {
			fmt.Printf("Arquivo: %s\n", saved)
		}
	}

	if !outcome.IsAccepted() {
		return errors.New("NFS-e not available")
	}
	return nil
}

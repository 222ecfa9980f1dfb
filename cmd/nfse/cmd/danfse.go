package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/storage"
)

var danfseCmd = &cobra.Command{
	Use:   "danfse <chave>",
	Short: "Download the DANFSe PDF of an issued NFS-e",
	Long: `Download the DANFSe rendering of an NFS-e and save it under danfse/.

The file is named after the provider and customer documents when the
NFS-e can be queried, and after the access key otherwise.

Examples:
  nfse danfse 35503082123456780001950000000000000042250312345678`,
	Args: cobra.ExactArgs(1),
	RunE: runDanfse,
}

func init() {
	rootCmd.AddCommand(danfseCmd)
}

func runDanfse(cmd *cobra.Command, args []string) error {
	key := args[0]
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

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*cfg.Timeout+5*time.Second)
	defer cancel()

	var provDoc, custDoc string
	if _, issued, err := pipeline.Lookup(ctx, cfg.Env(), creds, key); err == nil && issued != nil {
		provDoc, _ = issued.Provider.Document()
		custDoc, _ = issued.Customer.Document()
	} else if err != nil {
		printVerbose("Consulta falhou, usando a chave no nome do arquivo: %v\n", err)
	}

	pdf, info, err := pipeline.Rendering(ctx, cfg.Env(), creds, key)
	if err != nil {
		return err
	}

	name := storage.RenderingName(storage.Timestamp(time.Now()), provDoc, custDoc, key)
	path, err := store.SaveRendering(name, pdf)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"arquivo": path,
			"info":    info,
		})
	}

	fmt.Printf("✓ DANFSe salvo em %s\n", path)
	if info != nil {
		fmt.Printf("  Páginas: %d, %d bytes\n", info.Pages, info.Size)
	}
	return nil
}

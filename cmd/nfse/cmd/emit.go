package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/config"
	dec "github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/model"
)

var (
	emitProvider string
	emitCustomer string
	emitService  string
	emitAmount   string
	emitDate     string
	emitNumber   int64
	emitSeries   int
	emitSimulate bool
	emitNoSave   bool
)

var emitCmd = &cobra.Command{
	Use:   "emitir",
	Short: "Emit an NFS-e from provider, customer and service files",
	Long: `Validate the input, build and sign the DPS, then submit it to the
national service. With --simular (or NFSE_DRY_RUN=true) the signed DPS is
produced and archived but nothing is sent.

The signed DPS, the returned NFS-e, the DANFSe and a JSON log record are
written under NFSE_SAIDA.

Examples:
  nfse emitir --tomador cliente.json --servico servico.json --valor 1500.00 --numero 42
  nfse emitir --tomador cliente.json --servico servico.json --valor 99.90 --numero 43 --data 2025-03-12T10:00:00-03:00
  nfse emitir --tomador cliente.json --servico servico.json --valor 10 --numero 1 --simular`,
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)
	addRequestFlags(emitCmd)
	emitCmd.Flags().BoolVar(&emitSimulate, "simular", false, "Sign but do not submit (also --dry-run)")
	emitCmd.Flags().BoolVar(&emitSimulate, "dry-run", false, "Alias for --simular")
	emitCmd.Flags().BoolVar(&emitNoSave, "sem-arquivos", false, "Do not write artifacts to disk")
}

// addRequestFlags registers the flags shared by emitir and validar
func addRequestFlags(c *cobra.Command) {
	c.Flags().StringVar(&emitProvider, "prestador", "", "Provider JSON file (env: NFSE_PRESTADOR)")
	c.Flags().StringVar(&emitCustomer, "tomador", "", "Customer JSON file, looked up in NFSE_TOMADORES_DIR")
	c.Flags().StringVar(&emitService, "servico", "", "Service JSON file, looked up in NFSE_SERVICOS_DIR")
	c.Flags().StringVar(&emitAmount, "valor", "", "Service amount, e.g. 1500.00")
	c.Flags().StringVar(&emitDate, "data", "", "Issue timestamp (RFC3339 or YYYY-MM-DD); defaults to now")
	c.Flags().Int64Var(&emitNumber, "numero", 0, "DPS number (env: NFSE_PROXIMO_NUMERO)")
	c.Flags().IntVar(&emitSeries, "serie", 0, "DPS series (env: NFSE_SERIE)")
	_ = c.MarkFlagRequired("tomador")
	_ = c.MarkFlagRequired("servico")
	_ = c.MarkFlagRequired("valor")
}

// buildRequest assembles an emission request from flags and configuration
func buildRequest() (*model.EmissionRequest, error) {
	providerFile := emitProvider
	if providerFile == "" {
		providerFile = cfg.ProviderFile
	}
	provider, err := model.LoadProviderFile(providerFile)
	if err != nil {
		return nil, err
	}
	customer, err := model.LoadCustomerFile(resolve(cfg.CustomersDir, emitCustomer))
	if err != nil {
		return nil, err
	}
	service, err := model.LoadServiceFile(resolve(cfg.ServicesDir, emitService))
	if err != nil {
		return nil, err
	}

	amount, err := dec.FromString(emitAmount)
	if err != nil {
		return nil, fmt.Errorf("invalid --valor: %w", err)
	}

	issuedAt := time.Now().In(dps.Brasilia)
	if emitDate != "" {
		if issuedAt, err = dps.ParseIssueDate(emitDate); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}

	series := emitSeries
	if series == 0 {
		series = cfg.DPS.Series
	}
	number := emitNumber
	if number == 0 {
		number = cfg.DPS.NextNumber
	}

	printVerbose("Prestador: %s\n", providerFile)
	printVerbose("Série %d, número %d, ambiente %s\n", series, number, cfg.Env())

	return &model.EmissionRequest{
		Provider:    *provider,
		Customer:    *customer,
		Service:     *service,
		Amount:      amount,
		IssuedAt:    issuedAt,
		Series:      series,
		Number:      number,
		Environment: cfg.Env(),
		Simulate:    cfg.DryRun || emitSimulate,
		AppVersion:  cfg.AppVersion,
	}, nil
}

func runEmit(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(emission.WithRendering(!emitNoSave))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	res, emitErr := pipeline.Emit(ctx, req, creds)
	printVerbose("Concluído em %v\n", time.Since(start))

	if emitErr != nil && res == nil {
		return printValidation(emitErr)
	}

	var archive *emission.Archive
	if !emitNoSave {
		store, err := newStore()
		if err != nil {
			return err
		}
		if archive, err = emission.Save(store, req, res, emitErr, time.Now()); err != nil {
			return fmt.Errorf("save artifacts: %w", err)
		}
	}

	if outputFormat == "json" {
		if err := printJSON(map[string]interface{}{
			"id_dps":      res.DPSID,
			"resultado":   res.Outcome,
			"certificado": res.Certificate,
			"arquivos":    archive,
			"warnings":    res.Warnings,
		}); err != nil {
			return err
		}
	} else {
		printEmission(res, archive)
	}

	if emitErr != nil {
		return emitErr
	}
	if res.Outcome != nil && res.Outcome.Status != model.Rejected {
		advanceNumber(cmd, req.Number)
	}
	if res.Outcome != nil && res.Outcome.Status == model.Rejected {
		return errors.New("DPS rejected by the national service")
	}
	return nil
}

// advanceNumber moves NFSE_PROXIMO_NUMERO past number when the number came
// from configuration. Failing to update the env file is only reported.
func advanceNumber(cmd *cobra.Command, number int64) {
	if cmd.Flags().Changed("numero") || envFile == "" {
		return
	}
	if err := config.AdvanceNumber(envFile, number+1); err != nil {
		fmt.Fprintf(os.Stderr, "⚠ could not update %s: %v\n", envFile, err)
		return
	}
	printVerbose("Próximo número: %d\n", number+1)
}

func printEmission(res *emission.Result, archive *emission.Archive) {
	fmt.Printf("DPS: %s\n", res.DPSID)

	if o := res.Outcome; o != nil {
		switch o.Status {
		case model.Simulated:
			fmt.Println("✓ Simulação concluída (nada foi enviado)")
		case model.Accepted:
			fmt.Println("✓ NFS-e autorizada")
			fmt.Printf("  Chave de acesso: %s\n", o.AccessKey)
			fmt.Printf("  Processada em:   %s\n", o.ProcessedAt)
		case model.Rejected:
			fmt.Printf("✗ Rejeitada (HTTP %d)\n", o.StatusCode)
			fmt.Printf("  %s\n", o.ErrorDetail)
		}
	}

	if res.Certificate != nil {
		fmt.Printf("Certificado: %s (expira em %d dias)\n", res.Certificate.Subject, res.Certificate.DaysToExpiry)
	}

	for _, w := range res.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}

	if archive != nil {
		fmt.Println("Arquivos:")
		for _, p := range []string{archive.DPSPath, archive.NFSePath, archive.RenderingPath, archive.LogPath} {
			if p != "" {
				fmt.Printf("  %s\n", p)
			}
		}
	}
}

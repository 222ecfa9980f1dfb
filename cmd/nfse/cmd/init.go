package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/config"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/storage"
)

var initExamples bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the working directory layout and a default .env",
	Long: `Create the directories the other commands read from and write to:

  cert/        : certificate bundle and password file
  prestadores/ : provider JSON files
  tomadores/   : customer JSON files
  servicos/    : service JSON files
  dps/         : signed DPS documents
  nfse/        : returned NFS-e documents
  danfse/      : downloaded DANFSe PDFs
  logs/        : emission log records

The env file given by --env-file is written with default values when it
does not exist yet. With --exemplos, example provider, customer and
service files are written as well.

Examples:
  nfse init
  nfse init --exemplos`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initExamples, "exemplos", false, "Write example provider, customer and service files")
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := newStore()
	if err != nil {
		return err
	}
	created := []string{}

	if envFile != "" {
		ok, err := config.WriteDefaults(envFile)
		if err != nil {
			return err
		}
		if ok {
			created = append(created, envFile)
		}
	}

	if initExamples {
		paths, err := writeExamples(store)
		if err != nil {
			return err
		}
		created = append(created, paths...)
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"raiz":     store.Root(),
			"arquivos": created,
		})
	}

	fmt.Printf("✓ Estrutura criada em %s\n", store.Root())
	for _, p := range created {
		fmt.Printf("  %s\n", p)
	}
	return nil
}

func writeExamples(store *storage.Store) ([]string, error) {
	provider := model.Provider{
		CNPJ: "12345678000195",
		Name: "PRESTADORA EXEMPLO LTDA",
		CMun: "3550308",
		Regime: model.TaxRegime{
			OpSimpNac: model.RegimeSimplifiedSmall,
		},
	}
	customer := model.Customer{
		CPF:  "52998224725",
		Name: "CLIENTE EXEMPLO",
		Address: &model.Address{
			Street:   "Rua Exemplo",
			Number:   "100",
			District: "Centro",
			CMun:     "3550308",
			CEP:      "01001000",
		},
	}
	service := model.Service{
		Description:    "Desenvolvimento de software sob encomenda",
		CTribNac:       "010101",
		CLocPrestacao:  "3550308",
		TaxationStatus: model.TaxationTaxable,
	}

	templates := []struct {
		dir, name string
		v         interface{}
	}{
		{storage.DirProviders, filepath.Base(cfg.ProviderFile), provider},
		{storage.DirCustomers, "tomador_exemplo.json", customer},
		{storage.DirServices, "servico_exemplo.json", service},
	}

	paths := make([]string, 0, len(templates))
	for _, tpl := range templates {
		path, err := store.SaveTemplate(tpl.dir, tpl.name, tpl.v)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/schema"
)

var validateSchema string

var validateCmd = &cobra.Command{
	Use:   "validar",
	Short: "Validate input and print the unsigned DPS",
	Long: `Run the validation rules and build the DPS without signing or sending
it. No certificate is needed.

With --xsd the built document is also checked against the DPS schema
(requires a binary built with -tags xsd).

Examples:
  nfse validar --tomador cliente.json --servico servico.json --valor 1500.00 --numero 42
  nfse validar --tomador cliente.json --servico servico.json --valor 1500.00 --numero 42 --xsd DPS_v1.00.xsd`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addRequestFlags(validateCmd)
	validateCmd.Flags().StringVar(&validateSchema, "xsd", "", "DPS schema to validate against (env: NFSE_XSD)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	pipeline, err := emission.NewPipeline(emission.WithLogger(log))
	if err != nil {
		return err
	}

	doc, err := pipeline.Preview(req)
	if err != nil {
		return printValidation(err)
	}

	indented, err := doc.Indented()
	if err != nil {
		return err
	}

	xsd := validateSchema
	if xsd == "" {
		xsd = cfg.SchemaFile
	}
	if xsd != "" {
		printVerbose("Validando contra %s\n", xsd)
		raw, err := doc.Bytes()
		if err != nil {
			return err
		}
		if err := schema.Validate(raw, xsd); err != nil {
			if errors.Is(err, schema.ErrUnavailable) {
				fmt.Println("⚠ XSD validation not available in this build")
			} else {
				return err
			}
		}
	}

	if outputFormat == "json" {
		return printJSON(map[string]interface{}{
			"valid":  true,
			"id_dps": doc.ID(),
			"xml":    string(indented),
		})
	}

	fmt.Printf("✓ DPS válida: %s\n\n", doc.ID())
	fmt.Println(string(indented))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var certCmd = &cobra.Command{
	Use:   "cert",
	Short: "Show the signing certificate and check it is usable",
	Long: `Decrypt the PKCS#12 bundle configured in NFSE_CERT_PFX and check its
validity period, chain and (optionally) revocation status.

Examples:
  nfse cert
  nfse cert -o json`,
	Args: cobra.NoArgs,
	RunE: runCert,
}

func init() {
	rootCmd.AddCommand(certCmd)
}

func runCert(cmd *cobra.Command, args []string) error {
	creds, err := loadCredentials()
	if err != nil {
		return err
	}
	pipeline, err := newPipeline()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	info, err := pipeline.Certificate(ctx, creds)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		return printJSON(info)
	}

	fmt.Println("✓ Certificado válido")
	fmt.Printf("  Titular:  %s\n", info.Subject)
	fmt.Printf("  Emissor:  %s\n", info.Issuer)
	fmt.Printf("  Série:    %s\n", info.SerialNumber)
	fmt.Printf("  Validade: %s a %s\n", info.NotBefore.Format("2006-01-02"), info.NotAfter.Format("2006-01-02"))
	fmt.Printf("  Expira em %d dias\n", info.DaysToExpiry)
	if info.Root != "" {
		fmt.Printf("  Raiz:     %s\n", info.Root)
	}
	for _, w := range info.Warnings {
		fmt.Printf("⚠ %s\n", w)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rezonia/nfse-cli/internal/signature/trust"
	"github.com/rezonia/nfse-cli/internal/signature/xml"
)

var (
	caFile            string
	intermediatesFile string
	skipOCSP          bool
)

var verifyCmd = &cobra.Command{
	Use:   "verificar [files...]",
	Short: "Verify signed DPS or NFS-e XML files",
	Long: `Verify the XML-DSig signature of DPS and NFS-e documents.

Verifies:
  - Signature validity over the referenced element
  - Certificate chain (to ICP-Brasil or --ca-file roots)
  - Certificate revocation (OCSP, when NFSE_OCSP=true and not --skip-ocsp)
  - Signer information

Directories are walked for .xml files.

Examples:
  # Verify a signed DPS
  nfse verificar dps/20250312_101500_12345678000195_12345678909.xml

  # Verify with a custom root and the intermediate CAs
  nfse verificar --ca-file raiz.pem --intermediarias ac.pem dps/

  # JSON output
  nfse verificar -o json nfse/`,
	Args: cobra.MinimumNArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVar(&caFile, "ca-file", "", "Trusted root certificates (PEM, env: NFSE_TRUST_ROOTS)")
	verifyCmd.Flags().StringVar(&intermediatesFile, "intermediarias", "", "Intermediate CA certificates (PEM, env: NFSE_INTERMEDIARIAS)")
	verifyCmd.Flags().BoolVar(&skipOCSP, "skip-ocsp", false, "Skip OCSP revocation check")
}

func runVerify(cmd *cobra.Command, args []string) error {
	files, err := collectVerifyFiles(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no files found to verify")
	}

	if caFile != "" {
		cfg.Cert.TrustRoots = caFile
	}
	if skipOCSP {
		cfg.Cert.OCSP = false
	}
	trustStore, err := newTrustStore()
	if err != nil {
		return err
	}

	if intermediatesFile == "" {
		intermediatesFile = cfg.Cert.Intermediates
	}
	intermediates, err := loadCertificates(intermediatesFile)
	if err != nil {
		return err
	}

	verifier := xml.NewXMLVerifier(trustStore, xml.WithIntermediates(intermediates...))

	results := make([]*VerifyResult, 0, len(files))
	allValid := true

	for _, file := range files {
		printVerbose("Verificando: %s\n", file)

		result := verifyFile(cmd.Context(), verifier, file)
		results = append(results, result)

		if !result.Valid {
			allValid = false
		}
	}

	if outputFormat == "json" {
		return printJSON(results)
	}

	printVerifyTable(os.Stdout, results, cfg.Cert.OCSP)

	if !allValid {
		return fmt.Errorf("verification failed for some files")
	}
	return nil
}

// printVerifyTable writes one block per verified file
func printVerifyTable(w io.Writer, results []*VerifyResult, ocspEnabled bool) {
	for _, r := range results {
		statusIcon := "✓"
		statusText := "VÁLIDA"
		if !r.Valid {
			statusIcon = "✗"
			statusText = "INVÁLIDA"
		}

		fmt.Fprintf(w, "%s %s: %s\n", statusIcon, r.File, statusText)

		if r.DocumentID != "" {
			fmt.Fprintf(w, "  Id:           %s\n", r.DocumentID)
		}
		if r.Signer != nil {
			fmt.Fprintf(w, "  Signatário:   %s\n", r.Signer.Name)
			if r.Signer.Document != "" {
				fmt.Fprintf(w, "  Documento:    %s\n", r.Signer.Document)
			}
			if r.Signer.Issuer != "" {
				fmt.Fprintf(w, "  Emissor:      %s\n", r.Signer.Issuer)
			}
		}

		if r.SignatureFound {
			fmt.Fprintf(w, "  Assinatura:   %s\n", mark(r.SignatureValid))
			fmt.Fprintf(w, "  Cadeia:       %s\n", mark(r.CertChainValid))
			revokeStatus := mark(r.NotRevoked)
			if !ocspEnabled {
				revokeStatus = "- (não verificada)"
			}
			fmt.Fprintf(w, "  Revogação:    %s\n", revokeStatus)
		}

		for _, e := range r.Errors {
			fmt.Fprintf(w, "  ✗ %s\n", e)
		}
		for _, wr := range r.Warnings {
			fmt.Fprintf(w, "  ⚠ %s\n", wr)
		}
	}
}

func mark(ok bool) string {
	if ok {
		return "✓"
	}
	return "✗"
}

func verifyFile(parent context.Context, verifier *xml.XMLVerifier, filePath string) *VerifyResult {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 60*time.Second)
	defer cancel()

	result := &VerifyResult{
		File:     filePath,
		Errors:   []string{},
		Warnings: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read file: %v", err))
		return result
	}

	verifyResult, err := verifier.Verify(ctx, data)
	if verifyResult == nil {
		result.Errors = append(result.Errors, fmt.Sprintf("verification error: %v", err))
		return result
	}

	result.Valid = verifyResult.Valid
	result.DocumentID = verifyResult.DocumentID
	result.SignatureFound = verifyResult.SignatureFound
	result.SignatureValid = verifyResult.SignatureValid
	result.CertChainValid = verifyResult.CertChainValid
	result.NotRevoked = verifyResult.NotRevoked
	result.Errors = append(result.Errors, verifyResult.Errors...)
	result.Warnings = append(result.Warnings, verifyResult.Warnings...)

	if verifyResult.Signer != nil {
		result.Signer = &SignerOutput{
			Name:         verifyResult.Signer.Name,
			Document:     verifyResult.Signer.Document,
			Organization: verifyResult.Signer.Organization,
			SerialNumber: verifyResult.Signer.SerialNumber,
			Issuer:       verifyResult.Signer.Issuer,
			ValidFrom:    &verifyResult.Signer.ValidFrom,
			ValidTo:      &verifyResult.Signer.ValidTo,
		}
		if len(verifyResult.CertChain) > 0 {
			root := verifyResult.CertChain[len(verifyResult.CertChain)-1]
			result.Signer.ICPBrasil = trust.IsICPBrasilRoot(root)
		}
	}

	return result
}

// collectVerifyFiles expands globs and directories into XML files
func collectVerifyFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		matches, err := filepath.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %s: %w", arg, err)
		}

		if len(matches) == 0 {
			info, err := os.Stat(arg)
			if err != nil {
				return nil, fmt.Errorf("file not found: %s", arg)
			}

			if info.IsDir() {
				err := filepath.Walk(arg, func(path string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					if !info.IsDir() && isVerifiableFile(path) {
						files = append(files, path)
					}
					return nil
				})
				if err != nil {
					return nil, err
				}
			} else {
				files = append(files, arg)
			}
			continue
		}

		for _, match := range matches {
			info, err := os.Stat(match)
			if err != nil {
				continue
			}
			if info.IsDir() {
				sub, err := collectVerifyFiles([]string{filepath.Join(match, "*")})
				if err != nil {
					return nil, err
				}
				files = append(files, sub...)
				continue
			}
			if isVerifiableFile(match) {
				files = append(files, match)
			}
		}
	}

	return files, nil
}

func isVerifiableFile(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".xml"
}

// VerifyResult holds the result of verifying a single file
type VerifyResult struct {
	File           string        `json:"file"`
	Valid          bool          `json:"valid"`
	DocumentID     string        `json:"document_id,omitempty"`
	SignatureFound bool          `json:"signature_found"`
	SignatureValid bool          `json:"signature_valid"`
	CertChainValid bool          `json:"cert_chain_valid"`
	NotRevoked     bool          `json:"not_revoked"`
	Signer         *SignerOutput `json:"signer,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// SignerOutput holds signer info for output
type SignerOutput struct {
	Name         string     `json:"name,omitempty"`
	Document     string     `json:"document,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
	ICPBrasil    bool       `json:"icp_brasil"`
}

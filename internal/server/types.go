package server

import (
	"encoding/json"
	"time"

	"github.com/rezonia/nfse-cli/internal/danfse"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
)

// EmitRequest is the body of the validate and emit endpoints. Amount and
// issuance date are supplied per request, never by the service template.
// The party and service documents are decoded with the same strict loaders
// the CLI uses for its JSON files.
type EmitRequest struct {
	Provider json.RawMessage `json:"prestador,omitempty"`
	Customer json.RawMessage `json:"tomador" binding:"required"`
	Service  json.RawMessage `json:"servico" binding:"required"`
	Amount   string          `json:"valor" binding:"required"`
	IssuedAt string          `json:"data_emissao,omitempty"`
	Series   int             `json:"serie,omitempty"`
	Number   int64           `json:"numero" binding:"required"`
	Simulate *bool           `json:"simular,omitempty"`
}

// ValidationResponse is the response for the validate endpoint
type ValidationResponse struct {
	Valid  bool              `json:"valid"`
	DPSID  string            `json:"id_dps,omitempty"`
	XML    string            `json:"xml,omitempty"`
	Errors []ValidationIssue `json:"errors,omitempty"`
}

// ValidationIssue is one rule violation
type ValidationIssue struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// EmitResponse is the response for the emit endpoint
type EmitResponse struct {
	DPSID       string                      `json:"id_dps"`
	Outcome     *model.Outcome              `json:"resultado,omitempty"`
	Certificate *credential.CertificateInfo `json:"certificado,omitempty"`
	Rendering   *danfse.Info                `json:"danfse,omitempty"`
	Archive     *emission.Archive           `json:"arquivos,omitempty"`
	Warnings    []string                    `json:"warnings,omitempty"`
}

// QueryResponse is the response for the NFS-e query endpoint
type QueryResponse struct {
	Outcome *model.Outcome `json:"resultado"`
	NFSe    string         `json:"nfse_xml,omitempty"`
	Issued  *dps.Issued    `json:"nfse,omitempty"`
}

// ErrorResponse is the standard error response
type ErrorResponse struct {
	Error    string            `json:"error"`
	Details  string            `json:"details,omitempty"`
	Issues   []ValidationIssue `json:"issues,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

// VerifyResponse is the response for signature verification endpoint
type VerifyResponse struct {
	Valid          bool              `json:"valid"`
	SignatureFound bool              `json:"signature_found"`
	SignatureValid bool              `json:"signature_valid"`
	CertChainValid bool              `json:"cert_chain_valid"`
	NotRevoked     bool              `json:"not_revoked"`
	DocumentID     string            `json:"document_id,omitempty"`
	Signer         *SignerInfoOutput `json:"signer,omitempty"`
	Warnings       []string          `json:"warnings,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
}

// SignerInfoOutput holds signer info for API response
type SignerInfoOutput struct {
	Name         string     `json:"name,omitempty"`
	Document     string     `json:"document,omitempty"`
	Organization string     `json:"organization,omitempty"`
	SerialNumber string     `json:"serial_number,omitempty"`
	Issuer       string     `json:"issuer,omitempty"`
	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
}

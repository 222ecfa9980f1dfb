package signature

import (
	"crypto/x509"
	"strings"
	"time"
)

// VerificationResult is the outcome of checking one signed DPS or NFS-e.
// Valid holds only when the signature was found and validated, the chain
// reached a trusted root, the signer is not revoked and no error was
// recorded.
type VerificationResult struct {
	Valid bool `json:"valid"`

	SignatureFound bool `json:"signature_found"`
	SignatureValid bool `json:"signature_valid"`
	CertChainValid bool `json:"cert_chain_valid"`
	NotRevoked     bool `json:"not_revoked"`

	// DocumentID is the Id of the signed element
	DocumentID string `json:"document_id,omitempty"`

	Signer *SignerInfo `json:"signer,omitempty"`

	// CertChain runs from the signer to the root
	CertChain []*x509.Certificate `json:"-"`

	Warnings []string `json:"warnings,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// SignerInfo describes the signing certificate. ICP-Brasil e-CNPJ and
// e-CPF certificates carry the holder as "NAME:DIGITS" in the common
// name; Holder and Document are split out of it when present.
type SignerInfo struct {
	Name         string `json:"name"`
	Holder       string `json:"holder,omitempty"`
	Document     string `json:"document,omitempty"`
	DocumentType string `json:"document_type,omitempty"`

	Organization string `json:"organization,omitempty"`
	SerialNumber string `json:"serial_number"`
	Issuer       string `json:"issuer"`

	ValidFrom time.Time `json:"valid_from"`
	ValidTo   time.Time `json:"valid_to"`
}

func NewVerificationResult() *VerificationResult {
	return &VerificationResult{
		Warnings: make([]string, 0),
		Errors:   make([]string, 0),
	}
}

func (r *VerificationResult) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// AddError records msg and marks the result invalid
func (r *VerificationResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Valid = false
}

// SetSigner is a no-op for a nil certificate
func (r *VerificationResult) SetSigner(cert *x509.Certificate) {
	if cert == nil {
		return
	}
	r.Signer = NewSignerInfo(cert)
}

// NewSignerInfo reads the subject, issuer and validity of cert
func NewSignerInfo(cert *x509.Certificate) *SignerInfo {
	info := &SignerInfo{
		Name:         cert.Subject.CommonName,
		SerialNumber: cert.SerialNumber.String(),
		Issuer:       firstName(cert.Issuer.CommonName, cert.Issuer.Organization),
		ValidFrom:    cert.NotBefore,
		ValidTo:      cert.NotAfter,
	}
	if len(cert.Subject.Organization) > 0 {
		info.Organization = cert.Subject.Organization[0]
	}
	info.Holder, info.Document, info.DocumentType = splitHolder(cert.Subject.CommonName)
	return info
}

// ComputeValidity derives Valid from the individual checks
func (r *VerificationResult) ComputeValidity() {
	checks := []bool{r.SignatureFound, r.SignatureValid, r.CertChainValid, r.NotRevoked}
	r.Valid = len(r.Errors) == 0
	for _, ok := range checks {
		r.Valid = r.Valid && ok
	}
}

func firstName(cn string, orgs []string) string {
	if cn != "" || len(orgs) == 0 {
		return cn
	}
	return orgs[0]
}

// splitHolder parses "NAME:12345678000195" (e-CNPJ) or "NAME:12345678909"
// (e-CPF). Other common names yield the name alone.
func splitHolder(cn string) (holder, document, kind string) {
	i := strings.LastIndexByte(cn, ':')
	if i < 0 {
		return cn, "", ""
	}
	holder, document = strings.TrimSpace(cn[:i]), strings.TrimSpace(cn[i+1:])
	for _, c := range document {
		if c < '0' || c > '9' {
			return cn, "", ""
		}
	}
	switch len(document) {
	case 14:
		return holder, document, "CNPJ"
	case 11:
		return holder, document, "CPF"
	}
	return cn, "", ""
}

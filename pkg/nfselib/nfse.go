// Package nfselib provides a public API for emitting Brazilian national
// service invoices (NFS-e).
//
// This package exposes the core types used to describe an emission and an
// Emitter that validates, signs and submits DPS documents to the national
// service.
//
// Example usage:
//
//	emitter, err := nfselib.NewEmitter(nfselib.DefaultOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := emitter.Emit(ctx, req, nfselib.Credentials{Bundle: pfx, Password: pw})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res.Outcome.AccessKey)
package nfselib

import (
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/signature"
)

// Re-export core types for public API
type (
	Provider         = model.Provider
	Customer         = model.Customer
	Address          = model.Address
	Service          = model.Service
	TaxRegime        = model.TaxRegime
	SupplementaryTax = model.SupplementaryTax
	EmissionRequest  = model.EmissionRequest
	Environment      = model.Environment
	Outcome          = model.Outcome
	OutcomeStatus    = model.OutcomeStatus
	Issued           = dps.Issued

	Credentials        = emission.Credentials
	Result             = emission.Result
	VerificationResult = signature.VerificationResult
)

// Re-export environments
const (
	Production = model.Production
	Restricted = model.Restricted
)

// Re-export outcome statuses
const (
	Accepted  = model.Accepted
	Rejected  = model.Rejected
	Simulated = model.Simulated
)

// Re-export taxation statuses
const (
	TaxationTaxable      = model.TaxationTaxable
	TaxationImmune       = model.TaxationImmune
	TaxationExport       = model.TaxationExport
	TaxationNonIncidence = model.TaxationNonIncidence
)

// Re-export error types
type (
	ParseError       = model.ParseError
	ValidationError  = model.ValidationError
	ValidationErrors = model.ValidationErrors
	TransportError   = model.TransportError
	SignatureError   = signature.SignatureError
	CredentialError  = signature.CredentialError
)

// ParseEnvironment accepts producao/producaorestrita or the tpAmb codes
func ParseEnvironment(s string) (Environment, error) {
	return model.ParseEnvironment(s)
}

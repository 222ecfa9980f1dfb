package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentType identifies which national taxpayer identifier a party uses
type DocumentType int

const (
	DocumentNone DocumentType = 0
	DocumentCNPJ DocumentType = 1
	DocumentCPF  DocumentType = 2
)

// Regime codes (opSimpNac)
const (
	RegimeStandard        = 1 // not opted into Simples Nacional
	RegimeSimplifiedMicro = 2 // MEI
	RegimeSimplifiedSmall = 3 // ME/EPP
)

// TaxRegime is the provider's regTrib group
type TaxRegime struct {
	OpSimpNac   int  `json:"opSimpNac"`
	RegEspTrib  int  `json:"regEspTrib"`
	RegApTribSN *int `json:"regApTribSN,omitempty"`
}

// Provider is the issuer of the DPS (prest)
type Provider struct {
	CNPJ   string    `json:"CNPJ,omitempty"`
	CPF    string    `json:"CPF,omitempty"`
	Name   string    `json:"xNome"`
	CMun   string    `json:"cMun"`
	IM     string    `json:"IM,omitempty"`
	Email  string    `json:"email,omitempty"`
	Regime TaxRegime `json:"regTrib"`
}

// Document returns the identifier in use and its type
func (p Provider) Document() (string, DocumentType) {
	return documentOf(p.CNPJ, p.CPF)
}

// Address is the customer's national address (end/endNac)
type Address struct {
	Street   string `json:"xLgr"`
	Number   string `json:"nro"`
	District string `json:"xBairro"`
	CMun     string `json:"cMun"`
	CEP      string `json:"CEP"`
}

// Customer is the recipient of the service (toma)
type Customer struct {
	CNPJ    string   `json:"CNPJ,omitempty"`
	CPF     string   `json:"CPF,omitempty"`
	Name    string   `json:"xNome"`
	Email   string   `json:"email,omitempty"`
	Address *Address `json:"end,omitempty"`
}

// Document returns the identifier in use and its type
func (c Customer) Document() (string, DocumentType) {
	return documentOf(c.CNPJ, c.CPF)
}

// Municipality returns the customer's municipality code, falling back to
// fallback when no address is known.
func (c Customer) Municipality(fallback string) string {
	if c.Address != nil && c.Address.CMun != "" {
		return c.Address.CMun
	}
	return fallback
}

// SupplementaryTax is the IBSCBS group
type SupplementaryTax struct {
	VIBS    *decimal.Decimal `json:"vIBS,omitempty"`
	VCBS    *decimal.Decimal `json:"vCBS,omitempty"`
	AliqIBS *decimal.Decimal `json:"aliqIBS,omitempty"`
	AliqCBS *decimal.Decimal `json:"aliqCBS,omitempty"`
}

// Taxation status (tribISSQN)
const (
	TaxationTaxable      = 1
	TaxationImmune       = 2
	TaxationExport       = 3
	TaxationNonIncidence = 4
)

// Service is a reusable service template. It never carries the amount or
// the issuance timestamp; those belong to the EmissionRequest.
type Service struct {
	Description       string            `json:"xDescServ"`
	CTribNac          string            `json:"cTribNac"`
	CLocPrestacao     string            `json:"cLocPrestacao"`
	CTribMun          string            `json:"cTribMun,omitempty"`
	CNBS              string            `json:"cNBS,omitempty"`
	CIntContrib       string            `json:"cIntContrib,omitempty"`
	Rate              *decimal.Decimal  `json:"aliquota,omitempty"`
	TaxationStatus    int               `json:"tribISSQN,omitempty"`
	IncidenceLocation string            `json:"cLocIncid,omitempty"`
	Supplementary     *SupplementaryTax `json:"ibscbs,omitempty"`
}

// Exempt reports whether the taxation status waives the incidence location
func (s Service) Exempt() bool {
	switch s.TaxationStatus {
	case TaxationImmune, TaxationExport, TaxationNonIncidence:
		return true
	}
	return false
}

// EmissionRequest is the per-call unit the pipeline operates on
type EmissionRequest struct {
	Provider    Provider
	Customer    Customer
	Service     Service
	Amount      decimal.Decimal
	IssuedAt    time.Time
	Series      int
	Number      int64
	Environment Environment
	Simulate    bool
	AppVersion  string
}

// CompetencyDate is the issuance timestamp truncated to the day, in the
// timestamp's own location.
func (r *EmissionRequest) CompetencyDate() time.Time {
	y, m, d := r.IssuedAt.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, r.IssuedAt.Location())
}

func documentOf(cnpj, cpf string) (string, DocumentType) {
	if cnpj != "" {
		return cnpj, DocumentCNPJ
	}
	if cpf != "" {
		return cpf, DocumentCPF
	}
	return "", DocumentNone
}

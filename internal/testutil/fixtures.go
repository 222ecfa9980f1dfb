// Package testutil provides fixtures shared by package tests: a valid
// emission request and a throwaway ICP-Brasil style certificate chain.
package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rezonia/nfse-cli/internal/model"
)

// BRT is the fixed -03:00 zone the fixtures use
var BRT = time.FixedZone("-03", -3*3600)

// Request returns a valid emission request for a Simples Nacional provider
// in São Paulo billing a customer in Rio de Janeiro.
func Request() *model.EmissionRequest {
	return &model.EmissionRequest{
		Provider: model.Provider{
			CNPJ:  "12345678000195",
			Name:  "Prestadora Exemplo LTDA",
			CMun:  "3550308",
			IM:    "1234567",
			Email: "financeiro@prestadora.com.br",
			Regime: model.TaxRegime{
				OpSimpNac:  model.RegimeSimplifiedSmall,
				RegEspTrib: 0,
			},
		},
		Customer: model.Customer{
			CPF:   "52998224725",
			Name:  "Cliente Exemplo",
			Email: "cliente@example.com",
			Address: &model.Address{
				Street:   "Rua das Laranjeiras",
				Number:   "100",
				District: "Laranjeiras",
				CMun:     "3304557",
				CEP:      "22240003",
			},
		},
		Service: model.Service{
			Description:   "Desenvolvimento de software sob encomenda",
			CTribNac:      "010101",
			CLocPrestacao: "3550308",
		},
		Amount:      decimal.RequireFromString("1500.00"),
		IssuedAt:    time.Date(2025, time.March, 15, 10, 30, 0, 0, BRT),
		Series:      1,
		Number:      42,
		Environment: model.Restricted,
		Simulate:    true,
		AppVersion:  "nfse-cli-test",
	}
}

package server

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	dec "github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/model"
)

// bindEmission decodes the body into an emission request filled with the
// server's environment, provider and series. It writes a 400 response and
// reports false when the body cannot be used.
func (s *Server) bindEmission(c *gin.Context) (*model.EmissionRequest, bool) {
	var body EmitRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Details: err.Error()})
		return nil, false
	}

	provider := s.config.Provider
	if present(body.Provider) {
		p, err := model.LoadProvider(bytes.NewReader(body.Provider))
		if err != nil {
			s.writeError(c, err)
			return nil, false
		}
		provider = p
	}
	if provider == nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "prestador is required"})
		return nil, false
	}
	if !present(body.Customer) || !present(body.Service) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "tomador and servico are required"})
		return nil, false
	}
	customer, err := model.LoadCustomer(bytes.NewReader(body.Customer))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	service, err := model.LoadService(bytes.NewReader(body.Service))
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}

	amount, err := dec.FromString(body.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid valor", Details: err.Error()})
		return nil, false
	}

	issuedAt := s.now().In(dps.Brasilia)
	if body.IssuedAt != "" {
		if issuedAt, err = dps.ParseIssueDate(body.IssuedAt); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid data_emissao", Details: err.Error()})
			return nil, false
		}
	}

	series := body.Series
	if series == 0 {
		series = s.config.Series
	}

	simulate := s.config.Simulate
	if body.Simulate != nil && *body.Simulate {
		simulate = true
	}

	return &model.EmissionRequest{
		Provider:    *provider,
		Customer:    *customer,
		Service:     *service,
		Amount:      amount,
		IssuedAt:    issuedAt,
		Series:      series,
		Number:      body.Number,
		Environment: s.config.Environment,
		Simulate:    simulate,
		AppVersion:  s.config.AppVersion,
	}, true
}

// present reports whether a raw document was sent and is not null
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

package validation

import (
	"strings"

	dec "github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/model"
)

const (
	maxSeries = 99999
	maxNumber = 999999999999999
)

// ValidateProvider checks the provider's identifiers and regime
func ValidateProvider(p model.Provider) model.ValidationErrors {
	errs := checkDocument("prest", p.CNPJ, p.CPF)
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, model.NewValidationError("prest.xNome", nil, model.RuleRequired, "name is required"))
	}
	if !IsMunicipalityCode(p.CMun) {
		errs = append(errs, model.NewValidationError("prest.cMun", p.CMun, model.RuleFormat,
			"municipality code must have 7 digits"))
	}
	return append(errs, CheckRegime(p.Regime)...)
}

// ValidateCustomer checks the customer's identifiers and address
func ValidateCustomer(c model.Customer) model.ValidationErrors {
	errs := checkDocument("toma", c.CNPJ, c.CPF)
	if strings.TrimSpace(c.Name) == "" {
		errs = append(errs, model.NewValidationError("toma.xNome", nil, model.RuleRequired, "name is required"))
	}
	if a := c.Address; a != nil {
		if !IsMunicipalityCode(a.CMun) {
			errs = append(errs, model.NewValidationError("toma.end.cMun", a.CMun, model.RuleFormat,
				"municipality code must have 7 digits"))
		}
		if !IsPostalCode(a.CEP) {
			errs = append(errs, model.NewValidationError("toma.end.CEP", a.CEP, model.RuleFormat,
				"CEP must have 8 digits"))
		}
		if strings.TrimSpace(a.Street) == "" {
			errs = append(errs, model.NewValidationError("toma.end.xLgr", nil, model.RuleRequired, "street is required"))
		}
	}
	return errs
}

// ValidateService checks a service template on its own
func ValidateService(s model.Service) model.ValidationErrors {
	var errs model.ValidationErrors
	if strings.TrimSpace(s.Description) == "" {
		errs = append(errs, model.NewValidationError("serv.xDescServ", nil, model.RuleRequired, "description is required"))
	}
	if !IsTaxClassificationCode(s.CTribNac) {
		errs = append(errs, model.NewValidationError("serv.cTribNac", s.CTribNac, model.RuleFormat,
			"cTribNac must have 6 digits"))
	}
	if !IsMunicipalityCode(s.CLocPrestacao) {
		errs = append(errs, model.NewValidationError("serv.cLocPrestacao", s.CLocPrestacao, model.RuleFormat,
			"municipality code must have 7 digits"))
	}
	if s.CTribMun != "" && !IsMunicipalTaxCode(s.CTribMun) {
		errs = append(errs, model.NewValidationError("serv.cTribMun", s.CTribMun, model.RuleFormat,
			"cTribMun must have 3 digits"))
	}
	if s.IncidenceLocation != "" && !IsMunicipalityCode(s.IncidenceLocation) {
		errs = append(errs, model.NewValidationError("serv.cLocIncid", s.IncidenceLocation, model.RuleFormat,
			"municipality code must have 7 digits"))
	}
	if s.TaxationStatus < 0 || s.TaxationStatus > model.TaxationNonIncidence {
		errs = append(errs, model.NewValidationError("serv.tribISSQN", s.TaxationStatus, model.RuleEnum,
			"must be 1, 2, 3 or 4"))
	}
	return append(errs, CheckSupplementaryGroup(s.Supplementary)...)
}

// ValidateRequest runs every local check on an emission request. It never
// touches the network; an empty result means the request may be built.
func ValidateRequest(req *model.EmissionRequest) model.ValidationErrors {
	var errs model.ValidationErrors
	errs = append(errs, ValidateProvider(req.Provider)...)
	errs = append(errs, ValidateCustomer(req.Customer)...)
	errs = append(errs, ValidateService(req.Service)...)

	if !dec.IsPositive(req.Amount) {
		errs = append(errs, model.NewValidationError("vServ", req.Amount.String(), model.RuleRange,
			"amount must be greater than zero"))
	}
	if req.IssuedAt.IsZero() {
		errs = append(errs, model.NewValidationError("dhEmi", nil, model.RuleRequired, "issuance timestamp is required"))
	}
	if req.Series < 1 || req.Series > maxSeries {
		errs = append(errs, model.NewValidationError("serie", req.Series, model.RuleRange, "series must be 1-99999"))
	}
	if req.Number < 1 || req.Number > maxNumber {
		errs = append(errs, model.NewValidationError("nDPS", req.Number, model.RuleRange,
			"sequence number must be 1-999999999999999"))
	}
	if req.Environment != model.Production && req.Environment != model.Restricted {
		errs = append(errs, model.NewValidationError("tpAmb", int(req.Environment), model.RuleEnum, "must be 1 or 2"))
	}

	if req.Service.Rate != nil {
		if err := CheckRate(req.Service.CTribNac, *req.Service.Rate); err != nil {
			errs = append(errs, err)
		}
	}
	customerMun := req.Customer.Municipality(req.Provider.CMun)
	if err := CheckIncidence(req.Service, req.Provider.CMun, customerMun); err != nil {
		errs = append(errs, err)
	}
	return errs
}

func checkDocument(prefix, cnpj, cpf string) model.ValidationErrors {
	switch {
	case cnpj != "" && cpf != "":
		return model.ValidationErrors{model.NewValidationError(prefix+".CNPJ", nil, model.RuleExclusive,
			"CNPJ and CPF are mutually exclusive")}
	case cnpj == "" && cpf == "":
		return model.ValidationErrors{model.NewValidationError(prefix+".CNPJ", nil, model.RuleRequired,
			"either CNPJ or CPF is required")}
	case cnpj != "":
		return checkIdentifier(prefix+".CNPJ", cnpj, 14, IsCNPJ)
	default:
		return checkIdentifier(prefix+".CPF", cpf, 11, IsCPF)
	}
}

func checkIdentifier(field, value string, n int, valid func(string) bool) model.ValidationErrors {
	if !isDigits(value, n) {
		return model.ValidationErrors{model.NewValidationError(field, value, model.RuleFormat,
			"must contain exactly the expected number of digits")}
	}
	if !valid(value) {
		return model.ValidationErrors{model.NewValidationError(field, value, model.RuleCheckDigit,
			"invalid check digits")}
	}
	return nil
}

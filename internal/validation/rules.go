package validation

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	dec "github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/model"
)

// ISS rate bounds, in percent
var (
	MinRate = decimal.NewFromInt(2)
	MaxRate = decimal.NewFromInt(5)
)

// SupplementaryCutover is the first competency date for which the IBSCBS
// group is mandatory regardless of regime.
var SupplementaryCutover = time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)

// Incidence says which municipality is owed the service tax
type Incidence int

const (
	IncidenceProvider Incidence = iota
	IncidenceRendering
	IncidenceCustomer
)

func (i Incidence) String() string {
	switch i {
	case IncidenceRendering:
		return "rendering"
	case IncidenceCustomer:
		return "customer"
	default:
		return "provider"
	}
}

// CheckRate validates an applied ISS rate against the 2%..5% bounds.
// Codes in the exception set may go below the floor.
func CheckRate(code string, rate decimal.Decimal) *model.ValidationError {
	if rate.GreaterThan(MaxRate) {
		return model.NewValidationError("aliquota", rate.String(), model.RuleRateMax,
			fmt.Sprintf("rate exceeds the maximum of %s%%", MaxRate))
	}
	if rate.IsNegative() {
		return model.NewValidationError("aliquota", rate.String(), model.RuleRange, "rate must not be negative")
	}
	if rate.LessThan(MinRate) && !rateExceptions.Contains(code) {
		return model.NewValidationError("aliquota", rate.String(), model.RuleRateMin,
			fmt.Sprintf("rate below the minimum of %s%% for cTribNac %s", MinRate, code))
	}
	return nil
}

// IsRateException reports whether code may be taxed below the 2% floor
func IsRateException(code string) bool {
	return rateExceptions.Contains(code)
}

// ResolveIncidence maps a cTribNac to its place of incidence. Codes in
// neither explicit table are taxed at the provider's municipality.
func ResolveIncidence(code string) Incidence {
	switch {
	case customerIncidence.Contains(code):
		return IncidenceCustomer
	case renderingIncidence.Contains(code):
		return IncidenceRendering
	default:
		return IncidenceProvider
	}
}

// IncidenceMunicipality returns the municipality code owed the tax
func IncidenceMunicipality(svc model.Service, providerMun, customerMun string) string {
	switch ResolveIncidence(svc.CTribNac) {
	case IncidenceCustomer:
		return customerMun
	case IncidenceRendering:
		return svc.CLocPrestacao
	default:
		return providerMun
	}
}

// CheckIncidence validates the service's declared incidence location. An
// absent location is accepted and resolved from the tables; for immune,
// export and non-incidence operations no location is allowed.
func CheckIncidence(svc model.Service, providerMun, customerMun string) *model.ValidationError {
	if svc.Exempt() {
		if svc.IncidenceLocation != "" {
			return model.NewValidationError("cLocIncid", svc.IncidenceLocation, model.RuleIncidence,
				fmt.Sprintf("no incidence location allowed for tribISSQN %d", svc.TaxationStatus))
		}
		return nil
	}
	if svc.IncidenceLocation == "" {
		return nil
	}

	want := IncidenceMunicipality(svc, providerMun, customerMun)
	if svc.IncidenceLocation != want {
		return model.NewValidationError("cLocIncid", svc.IncidenceLocation, model.RuleIncidence,
			fmt.Sprintf("cTribNac %s is taxed at the %s municipality (%s)",
				svc.CTribNac, ResolveIncidence(svc.CTribNac), want))
	}
	return nil
}

// SupplementaryGroupRequired reports whether the IBSCBS group is mandatory:
// always for standard-regime providers, and for everyone from the cutover on.
func SupplementaryGroupRequired(opSimpNac int, competency time.Time) bool {
	if opSimpNac == model.RegimeStandard {
		return true
	}
	y, m, d := competency.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !day.Before(SupplementaryCutover)
}

// CheckSupplementaryGroup validates the contents of an IBSCBS group
func CheckSupplementaryGroup(g *model.SupplementaryTax) model.ValidationErrors {
	if g == nil {
		return nil
	}
	var errs model.ValidationErrors
	if g.VIBS == nil && g.VCBS == nil {
		errs = append(errs, model.NewValidationError("ibscbs", nil, model.RuleRequired,
			"at least one of vIBS or vCBS must be informed"))
	}
	for _, v := range []struct {
		field string
		val   *decimal.Decimal
	}{{"vIBS", g.VIBS}, {"vCBS", g.VCBS}} {
		if v.val != nil && !dec.IsNonNegative(*v.val) {
			errs = append(errs, model.NewValidationError("ibscbs."+v.field, v.val.String(), model.RuleRange,
				"value must not be negative"))
		}
	}
	for _, r := range []struct {
		field string
		val   *decimal.Decimal
	}{{"aliqIBS", g.AliqIBS}, {"aliqCBS", g.AliqCBS}} {
		if r.val != nil && !dec.Between(*r.val, dec.Zero, dec.Hundred) {
			errs = append(errs, model.NewValidationError("ibscbs."+r.field, r.val.String(), model.RuleRange,
				"rate must be between 0 and 100"))
		}
	}
	return errs
}

// CheckRegime validates the regTrib group
func CheckRegime(r model.TaxRegime) model.ValidationErrors {
	var errs model.ValidationErrors
	switch r.OpSimpNac {
	case model.RegimeStandard, model.RegimeSimplifiedMicro, model.RegimeSimplifiedSmall:
	default:
		errs = append(errs, model.NewValidationError("regTrib.opSimpNac", r.OpSimpNac, model.RuleEnum,
			"must be 1, 2 or 3"))
	}

	switch r.RegEspTrib {
	case 0, 1, 2, 3, 4, 5, 6, 9:
	default:
		errs = append(errs, model.NewValidationError("regTrib.regEspTrib", r.RegEspTrib, model.RuleEnum,
			"must be 0-6 or 9"))
	}

	if r.RegApTribSN != nil {
		v := *r.RegApTribSN
		switch {
		case r.OpSimpNac != model.RegimeSimplifiedSmall:
			errs = append(errs, model.NewValidationError("regTrib.regApTribSN", v, model.RuleForbidden,
				"only allowed when opSimpNac is 3"))
		case v < 1 || v > 3:
			errs = append(errs, model.NewValidationError("regTrib.regApTribSN", v, model.RuleEnum,
				"must be 1, 2 or 3"))
		}
	}
	return errs
}

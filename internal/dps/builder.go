package dps

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	dec "github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/validation"
)

const (
	emitterProvider = "1"
	defaultVersion  = "nfse-cli-2.0.0"
)

// ID computes the infDPS identifier: provider municipality (7), identifier
// type (1), identifier padded to 14, series padded to 5 and number padded
// to 15.
func ID(req *model.EmissionRequest) (string, error) {
	doc, kind := req.Provider.Document()
	if kind == model.DocumentNone {
		return "", model.NewValidationError("prest.CNPJ", nil, model.RuleRequired, "provider has no CNPJ or CPF")
	}
	return fmt.Sprintf("%s%d%s%05d%015d", req.Provider.CMun, kind, zeroPad(doc, 14), req.Series, req.Number), nil
}

func zeroPad(s string, n int) string {
	if len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

// Build maps a validated emission request onto the DPS tree. The amount and
// issuance timestamp always come from req, never from the service template.
// Build fails when the IBSCBS group is mandatory and absent.
func Build(req *model.EmissionRequest) (*Document, error) {
	if validation.SupplementaryGroupRequired(req.Provider.Regime.OpSimpNac, req.CompetencyDate()) &&
		req.Service.Supplementary == nil {
		return nil, model.NewValidationError("ibscbs", nil, model.RuleGroupRequired,
			"IBSCBS group is required for this regime and competency date")
	}

	id, err := ID(req)
	if err != nil {
		return nil, err
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement(TagDPS)
	root.CreateAttr("xmlns", Namespace)
	root.CreateAttr("versao", SchemaVersion)

	inf := root.CreateElement(TagInfDPS)
	inf.CreateAttr(IDAttr, id)

	appVersion := req.AppVersion
	if appVersion == "" {
		appVersion = defaultVersion
	}

	text(inf, "tpAmb", strconv.Itoa(req.Environment.Code()))
	text(inf, "dhEmi", FormatTimestamp(req.IssuedAt))
	text(inf, "verAplic", appVersion)
	text(inf, "serie", strconv.Itoa(req.Series))
	text(inf, "nDPS", strconv.FormatInt(req.Number, 10))
	text(inf, "dCompet", req.CompetencyDate().Format(DateLayout))
	text(inf, "tpEmit", emitterProvider)
	text(inf, "cLocEmi", req.Provider.CMun)

	buildProvider(inf, req.Provider)
	buildCustomer(inf, req.Customer)
	buildService(inf, req.Service)
	buildValues(inf, req.Amount, req.Service.Supplementary)

	return &Document{doc: doc, id: id}, nil
}

func buildProvider(parent *etree.Element, p model.Provider) {
	prest := parent.CreateElement("prest")
	document(prest, p.CNPJ, p.CPF)
	optional(prest, "IM", p.IM)
	text(prest, "xNome", clean(p.Name))
	optional(prest, "email", p.Email)

	reg := prest.CreateElement("regTrib")
	text(reg, "opSimpNac", strconv.Itoa(p.Regime.OpSimpNac))
	if p.Regime.RegApTribSN != nil {
		text(reg, "regApTribSN", strconv.Itoa(*p.Regime.RegApTribSN))
	}
	text(reg, "regEspTrib", strconv.Itoa(p.Regime.RegEspTrib))
}

func buildCustomer(parent *etree.Element, c model.Customer) {
	toma := parent.CreateElement("toma")
	document(toma, c.CNPJ, c.CPF)
	text(toma, "xNome", clean(c.Name))
	optional(toma, "email", c.Email)

	if a := c.Address; a != nil {
		end := toma.CreateElement("end")
		nac := end.CreateElement("endNac")
		text(nac, "cMun", a.CMun)
		text(nac, "CEP", a.CEP)
		text(end, "xLgr", clean(a.Street))
		text(end, "nro", clean(a.Number))
		text(end, "xBairro", clean(a.District))
	}
}

func buildService(parent *etree.Element, s model.Service) {
	serv := parent.CreateElement("serv")

	loc := serv.CreateElement("locPrest")
	text(loc, "cLocPrestacao", s.CLocPrestacao)

	cserv := serv.CreateElement("cServ")
	text(cserv, "cTribNac", s.CTribNac)
	optional(cserv, "cTribMun", s.CTribMun)
	text(cserv, "xDescServ", clean(s.Description))
	optional(cserv, "cNBS", s.CNBS)
	optional(cserv, "cIntContrib", s.CIntContrib)
}

func buildValues(parent *etree.Element, amount decimal.Decimal, g *model.SupplementaryTax) {
	valores := parent.CreateElement("valores")
	text(valores, "vServ", dec.Format(amount))

	if g == nil {
		return
	}
	grp := valores.CreateElement("IBSCBS")
	money(grp, "vIBS", g.VIBS)
	money(grp, "vCBS", g.VCBS)
	money(grp, "aliqIBS", g.AliqIBS)
	money(grp, "aliqCBS", g.AliqCBS)
}

func document(parent *etree.Element, cnpj, cpf string) {
	if cnpj != "" {
		text(parent, "CNPJ", cnpj)
		return
	}
	text(parent, "CPF", cpf)
}

func text(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(value)
}

func optional(parent *etree.Element, tag, value string) {
	if value != "" {
		text(parent, tag, value)
	}
}

func money(parent *etree.Element, tag string, v *decimal.Decimal) {
	if v != nil {
		text(parent, tag, dec.Format(*v))
	}
}

// clean trims and NFC-normalizes free text so accented names compose the
// same way regardless of how the input was typed.
func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

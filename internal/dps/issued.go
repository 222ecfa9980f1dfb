package dps

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/rezonia/nfse-cli/internal/model"
)

// Issued is the subset of an issued NFS-e needed to rebuild templates
type Issued struct {
	AccessKey string          `json:"chaveAcesso"`
	Number    string          `json:"nNFSe,omitempty"`
	IssuedAt  string          `json:"dhEmi,omitempty"`
	Amount    decimal.Decimal `json:"vServ"`
	Provider  model.Provider  `json:"prest"`
	Customer  model.Customer  `json:"toma"`
	Service   model.Service   `json:"serv"`
}

// ParseIssued reads an NFS-e XML as returned by the query operation. The
// embedded DPS is located anywhere in the tree.
func ParseIssued(data []byte) (*Issued, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse NFS-e: %w", err)
	}

	inf := doc.FindElement("//" + TagInfDPS)
	if inf == nil {
		return nil, fmt.Errorf("parse NFS-e: %s not found", TagInfDPS)
	}

	out := &Issued{
		IssuedAt: childText(inf, "dhEmi"),
	}
	if nfse := doc.FindElement("//infNFSe"); nfse != nil {
		out.AccessKey = strings.TrimPrefix(nfse.SelectAttrValue(IDAttr, ""), "NFS")
		out.Number = childText(nfse, "nNFSe")
	}

	if prest := inf.SelectElement("prest"); prest != nil {
		out.Provider = model.Provider{
			CNPJ:  childText(prest, "CNPJ"),
			CPF:   childText(prest, "CPF"),
			Name:  childText(prest, "xNome"),
			CMun:  childText(inf, "cLocEmi"),
			IM:    childText(prest, "IM"),
			Email: childText(prest, "email"),
		}
		if reg := prest.SelectElement("regTrib"); reg != nil {
			out.Provider.Regime.OpSimpNac = childInt(reg, "opSimpNac")
			out.Provider.Regime.RegEspTrib = childInt(reg, "regEspTrib")
			if v := childText(reg, "regApTribSN"); v != "" {
				n, _ := strconv.Atoi(v)
				out.Provider.Regime.RegApTribSN = &n
			}
		}
	}

	if toma := inf.SelectElement("toma"); toma != nil {
		out.Customer = model.Customer{
			CNPJ:  childText(toma, "CNPJ"),
			CPF:   childText(toma, "CPF"),
			Name:  childText(toma, "xNome"),
			Email: childText(toma, "email"),
		}
		if end := toma.SelectElement("end"); end != nil {
			out.Customer.Address = &model.Address{
				Street:   childText(end, "xLgr"),
				Number:   childText(end, "nro"),
				District: childText(end, "xBairro"),
				CMun:     pathText(end, "endNac/cMun"),
				CEP:      pathText(end, "endNac/CEP"),
			}
		}
	}

	if serv := inf.SelectElement("serv"); serv != nil {
		out.Service = model.Service{
			CLocPrestacao: pathText(serv, "locPrest/cLocPrestacao"),
			CTribNac:      pathText(serv, "cServ/cTribNac"),
			CTribMun:      pathText(serv, "cServ/cTribMun"),
			Description:   pathText(serv, "cServ/xDescServ"),
			CNBS:          pathText(serv, "cServ/cNBS"),
			CIntContrib:   pathText(serv, "cServ/cIntContrib"),
		}
	}

	amount := pathText(inf, "valores/vServ")
	if amount == "" {
		amount = pathText(inf, "valores/vServPrest/vServ")
	}
	if amount != "" {
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse NFS-e: vServ: %w", err)
		}
		out.Amount = v
	}

	return out, nil
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

func childInt(e *etree.Element, tag string) int {
	n, _ := strconv.Atoi(childText(e, tag))
	return n
}

func pathText(e *etree.Element, path string) string {
	if c := e.FindElement(path); c != nil {
		return strings.TrimSpace(c.Text())
	}
	return ""
}

package emission

import (
	"time"

	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/storage"
)

// Templates is the set of files written by Import
type Templates struct {
	Provider string `json:"prestador"`
	Customer string `json:"tomador"`
	Service  string `json:"servico"`
}

// Import writes provider, customer and service templates extracted from an
// issued NFS-e as prestadores/prestador_{ts}.json, tomadores/tomador_{ts}.json
// and servicos/servico_{ts}.json. The service template never carries the
// amount or issuance date.
func Import(store *storage.Store, issued *dps.Issued, now time.Time) (*Templates, error) {
	ts := storage.Timestamp(now)

	var (
		t   Templates
		err error
	)
	if t.Provider, err = store.SaveTemplate(storage.DirProviders, "prestador_"+ts+".json", issued.Provider); err != nil {
		return nil, err
	}
	if t.Customer, err = store.SaveTemplate(storage.DirCustomers, "tomador_"+ts+".json", issued.Customer); err != nil {
		return nil, err
	}
	if t.Service, err = store.SaveTemplate(storage.DirServices, "servico_"+ts+".json", issued.Service); err != nil {
		return nil, err
	}
	return &t, nil
}

package emission

import (
	"time"

	"github.com/google/uuid"

	"github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/storage"
)

// Record is the JSON log written for every emission attempt
type Record struct {
	ID          string            `json:"id"`
	Timestamp   string            `json:"timestamp"`
	Environment string            `json:"ambiente"`
	DryRun      bool              `json:"dry_run"`
	Provider    model.Provider    `json:"prestador"`
	Customer    model.Customer    `json:"tomador"`
	Service     model.Service     `json:"servico"`
	Amount      string            `json:"valor"`
	IssuedAt    string            `json:"data_emissao"`
	DPSID       string            `json:"id_dps"`
	Response    *model.Outcome    `json:"resposta_api,omitempty"`
	Error       string            `json:"erro,omitempty"`
	Metadata    map[string]string `json:"metadados,omitempty"`
}

// NewRecord describes an emission of req at time now
func NewRecord(req *model.EmissionRequest, res *Result, emitErr error, now time.Time) *Record {
	r := &Record{
		ID:          uuid.NewString(),
		Timestamp:   now.Format(time.RFC3339),
		Environment: req.Environment.String(),
		DryRun:      req.Simulate,
		Provider:    req.Provider,
		Customer:    req.Customer,
		Service:     req.Service,
		Amount:      decimal.Format(req.Amount),
		IssuedAt:    dps.FormatTimestamp(req.IssuedAt),
		Metadata:    map[string]string{},
	}
	if res != nil {
		r.DPSID = res.DPSID
		r.Response = res.Outcome
		if res.Certificate != nil {
			r.Metadata["certificado"] = res.Certificate.Subject
		}
	}
	if emitErr != nil {
		r.Error = emitErr.Error()
	}
	return r
}

// Archive is where an emission's artifacts were written
type Archive struct {
	DPSPath       string `json:"dps,omitempty"`
	NFSePath      string `json:"nfse,omitempty"`
	RenderingPath string `json:"danfse,omitempty"`
	LogPath       string `json:"log,omitempty"`
}

// Save writes the signed DPS, the returned NFS-e, the DANFSe and the log
// record for one emission. Only artifacts present on res are written.
func Save(store *storage.Store, req *model.EmissionRequest, res *Result, emitErr error, now time.Time) (*Archive, error) {
	ts := storage.Timestamp(now)
	provDoc, _ := req.Provider.Document()
	custDoc, _ := req.Customer.Document()

	var (
		a   Archive
		err error
	)
	record := NewRecord(req, res, emitErr, now)

	if res != nil && len(res.SignedXML) > 0 {
		if a.DPSPath, err = store.SaveDPS(storage.Name(ts, provDoc, custDoc, "xml"), res.SignedXML); err != nil {
			return &a, err
		}
		record.Metadata["arquivo_dps"] = a.DPSPath
	}

	if res != nil && res.Outcome.IsAccepted() {
		if len(res.Outcome.Document) > 0 {
			if a.NFSePath, err = store.SaveNFSe(storage.Name(ts, provDoc, custDoc, "xml"), res.Outcome.Document); err != nil {
				return &a, err
			}
			record.Metadata["arquivo_nfse"] = a.NFSePath
		}
		if len(res.Rendering) > 0 {
			name := storage.RenderingName(ts, provDoc, custDoc, res.Outcome.AccessKey)
			if a.RenderingPath, err = store.SaveRendering(name, res.Rendering); err != nil {
				return &a, err
			}
			record.Metadata["arquivo_danfse"] = a.RenderingPath
		}
	}

	a.LogPath, err = store.SaveLog(storage.Name(ts, provDoc, custDoc, "json"), record)
	return &a, err
}

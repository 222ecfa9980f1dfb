package model

// OutcomeStatus classifies a submission or query attempt
type OutcomeStatus string

const (
	Accepted  OutcomeStatus = "accepted"
	Rejected  OutcomeStatus = "rejected"
	Simulated OutcomeStatus = "simulated"
)

// Outcome is the tagged result of a remote operation.
//
// Accepted carries AccessKey, ProcessedAt and Document. Rejected carries
// StatusCode and ErrorDetail. Simulated has the Accepted shape with an
// empty AccessKey.
type Outcome struct {
	Status      OutcomeStatus `json:"status"`
	Environment Environment   `json:"tipoAmbiente"`
	AppVersion  string        `json:"versaoAplicativo,omitempty"`
	ProcessedAt string        `json:"dataHoraProcessamento,omitempty"`
	AccessKey   string        `json:"chaveAcesso,omitempty"`
	DPSID       string        `json:"idDps,omitempty"`

	// Document is the decoded NFS-e XML returned by the service
	Document []byte `json:"-"`
	// EncodedDocument is the document as received on the wire
	EncodedDocument string `json:"nfseXmlGZipB64,omitempty"`

	StatusCode  int      `json:"statusCode,omitempty"`
	ErrorDetail string   `json:"erro,omitempty"`
	Warnings    []string `json:"alertas,omitempty"`
}

// IsAccepted reports whether the service accepted the document
func (o *Outcome) IsAccepted() bool {
	return o != nil && o.Status == Accepted
}

// IsSimulated reports whether the outcome was produced without a network call
func (o *Outcome) IsSimulated() bool {
	return o != nil && o.Status == Simulated
}

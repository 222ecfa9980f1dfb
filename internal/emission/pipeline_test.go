package emission_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/codec"
	"github.com/rezonia/nfse-cli/internal/decimal"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/metrics"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
	xmlsig "github.com/rezonia/nfse-cli/internal/signature/xml"
	"github.com/rezonia/nfse-cli/internal/storage"
	"github.com/rezonia/nfse-cli/internal/testutil"
)

const accessKey = "35503082123456780001950000000000000042250312345678"

type fakeService struct {
	hits     int32
	status   int
	body     func() []byte
	renderOK bool
}

func (f *fakeService) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.hits, 1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/danfse/"):
			if !f.renderOK {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4 fake"))
		default:
			w.WriteHeader(f.status)
			_, _ = w.Write(f.body())
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPipeline(t *testing.T, srv *httptest.Server, opts ...emission.PipelineOption) *emission.Pipeline {
	t.Helper()
	var clientOpts []sefin.ClientOption
	if srv != nil {
		clientOpts = append(clientOpts, sefin.WithBaseURL(model.Restricted, srv.URL))
	}
	opts = append([]emission.PipelineOption{emission.WithClient(sefin.NewClient(clientOpts...))}, opts...)
	p, err := emission.NewPipeline(opts...)
	require.NoError(t, err)
	return p
}

func credentials(t *testing.T, pki *testutil.PKI) emission.Credentials {
	return emission.Credentials{Bundle: pki.Bundle(t, testutil.Password), Password: testutil.Password}
}

func TestEmit_SimulatedScenario(t *testing.T) {
	svc := &fakeService{status: http.StatusCreated, body: func() []byte { return []byte("{}") }}
	srv := svc.start(t)
	pki := testutil.NewPKI(t)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newPipeline(t, srv, emission.WithMetrics(m))

	req := testutil.Request()
	req.Amount = decimal.MustFromString("1500.00")
	req.Service.CTribNac = "010101"
	req.Simulate = true

	res, err := p.Emit(context.Background(), req, credentials(t, pki))
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.hits), "simulation must not reach the network")
	require.NotNil(t, res.Outcome)
	assert.True(t, res.Outcome.IsSimulated())
	assert.Equal(t, sefin.SimulatedVersion, res.Outcome.AppVersion)
	assert.Empty(t, res.Outcome.AccessKey)
	assert.Equal(t, res.DPSID, res.Outcome.DPSID)

	assert.Contains(t, string(res.SignedXML), "<vServ>1500.00</vServ>")
	assert.Contains(t, string(res.SignedXML), "<cTribNac>010101</cTribNac>")

	decoded, err := codec.Decode(res.Encoded)
	require.NoError(t, err)
	assert.Equal(t, res.SignedXML, decoded)

	store, err := trust.NewTrustStore()
	require.NoError(t, err)
	vr, err := xmlsig.NewXMLVerifier(store, xmlsig.WithIntermediates(pki.Intermediate, pki.Root)).
		Verify(context.Background(), res.SignedXML)
	require.NoError(t, err)
	assert.True(t, vr.Valid, "errors: %v", vr.Errors)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.Emissions.WithLabelValues("producaorestrita", "simulated")))
}

func TestEmit_SimulatedSkipsRevocationCheck(t *testing.T) {
	var ocspHits int32
	responder := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ocspHits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(responder.Close)

	svc := &fakeService{status: http.StatusCreated, body: func() []byte { return []byte("{}") }}
	srv := svc.start(t)
	pki := testutil.NewPKI(t, testutil.WithOCSPServer(responder.URL))

	store, err := trust.NewTrustStore(trust.WithOCSP(), trust.WithSoftFail())
	require.NoError(t, err)
	p := newPipeline(t, srv, emission.WithTrustStore(store))

	req := testutil.Request()
	req.Simulate = true

	res, err := p.Emit(context.Background(), req, credentials(t, pki))
	require.NoError(t, err)
	assert.True(t, res.Outcome.IsSimulated())
	assert.Equal(t, int32(0), atomic.LoadInt32(&ocspHits), "simulation must not contact the OCSP responder")
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.hits))
	assert.Contains(t, res.Warnings, credential.RevocationSkipped)

	// A live emission with the same store does consult the responder
	req.Simulate = false
	_, err = p.Emit(context.Background(), req, credentials(t, pki))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&ocspHits))
}

func TestEmit_Accepted(t *testing.T) {
	var nfse string
	svc := &fakeService{status: http.StatusCreated, renderOK: true}
	svc.body = func() []byte {
		b, _ := json.Marshal(map[string]interface{}{
			"tipoAmbiente":          2,
			"chaveAcesso":           accessKey,
			"dataHoraProcessamento": "2025-03-15T10:30:05-03:00",
			"nfseXmlGZipB64":        nfse,
		})
		return b
	}
	srv := svc.start(t)

	var err error
	nfse, err = codec.Encode([]byte("<NFSe/>"))
	require.NoError(t, err)

	req := testutil.Request()
	req.Simulate = false

	p := newPipeline(t, srv, emission.WithRendering(true))
	res, err := p.Emit(context.Background(), req, credentials(t, testutil.NewPKI(t)))
	require.NoError(t, err)

	assert.True(t, res.Outcome.IsAccepted())
	assert.Equal(t, accessKey, res.Outcome.AccessKey)
	assert.Equal(t, []byte("<NFSe/>"), res.Outcome.Document)
	assert.Equal(t, []byte("%PDF-1.4 fake"), res.Rendering)
	assert.NoError(t, res.RenderingErr)
	assert.Equal(t, int32(2), atomic.LoadInt32(&svc.hits))
}

func TestEmit_RenderingFailureDegrades(t *testing.T) {
	svc := &fakeService{status: http.StatusCreated, body: func() []byte {
		return []byte(`{"chaveAcesso":"` + accessKey + `"}`)
	}}
	srv := svc.start(t)

	req := testutil.Request()
	req.Simulate = false

	res, err := newPipeline(t, srv, emission.WithRendering(true)).
		Emit(context.Background(), req, credentials(t, testutil.NewPKI(t)))
	require.NoError(t, err)
	assert.True(t, res.Outcome.IsAccepted())
	assert.Nil(t, res.Rendering)

	var terr *model.TransportError
	require.True(t, errors.As(res.RenderingErr, &terr))
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)

	dir := t.TempDir()
	now := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	archive, err := emission.Save(storage.NewStore(dir), req, res, nil, now)
	require.NoError(t, err)
	assert.Empty(t, archive.RenderingPath)
	assert.FileExists(t, archive.DPSPath)
	assert.FileExists(t, archive.LogPath)
}

func TestEmit_Rejected(t *testing.T) {
	svc := &fakeService{status: http.StatusBadRequest, body: func() []byte {
		return []byte(`{"mensagem":"E0014 - DPS duplicada"}`)
	}}
	srv := svc.start(t)

	req := testutil.Request()
	req.Simulate = false

	res, err := newPipeline(t, srv).Emit(context.Background(), req, credentials(t, testutil.NewPKI(t)))
	require.NoError(t, err)
	assert.Equal(t, model.Rejected, res.Outcome.Status)
	assert.Equal(t, http.StatusBadRequest, res.Outcome.StatusCode)
	assert.Equal(t, "E0014 - DPS duplicada", res.Outcome.ErrorDetail)
}

func TestEmit_ValidationAbortsBeforeNetwork(t *testing.T) {
	svc := &fakeService{status: http.StatusCreated, body: func() []byte { return []byte("{}") }}
	srv := svc.start(t)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	req := testutil.Request()
	req.Simulate = false
	req.Provider.CNPJ = "12345678000190"

	_, err := newPipeline(t, srv, emission.WithMetrics(m)).
		Emit(context.Background(), req, credentials(t, testutil.NewPKI(t)))

	var verrs model.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.HasRule(model.RuleCheckDigit))
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.hits))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.ValidationErrors))
}

func TestEmit_CredentialErrorsAbortBeforeNetwork(t *testing.T) {
	svc := &fakeService{status: http.StatusCreated, body: func() []byte { return []byte("{}") }}
	srv := svc.start(t)
	p := newPipeline(t, srv)

	req := testutil.Request()
	req.Simulate = false

	creds := credentials(t, testutil.NewPKI(t))
	creds.Password = "errada"
	_, err := p.Emit(context.Background(), req, creds)

	var cerr *signature.CredentialError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, signature.ErrCodeWrongPassword, cerr.Kind)

	untrusted := testutil.NewPKI(t, testutil.WithRootName("Acme", "Acme Root"))
	_, err = p.Emit(context.Background(), req, credentials(t, untrusted))
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, signature.ErrCodeUntrustedIssuer, cerr.Kind)

	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.hits))
}

func TestEmit_TransportError(t *testing.T) {
	svc := &fakeService{}
	srv := svc.start(t)
	srv.Close()

	req := testutil.Request()
	req.Simulate = false

	res, err := newPipeline(t, srv).Emit(context.Background(), req, credentials(t, testutil.NewPKI(t)))
	var terr *model.TransportError
	require.True(t, errors.As(err, &terr))
	require.NotNil(t, res, "signed artifacts are kept for the log")
	assert.NotEmpty(t, res.SignedXML)
	assert.Nil(t, res.Outcome)
}

func TestPreview(t *testing.T) {
	p := newPipeline(t, nil)

	doc, err := p.Preview(testutil.Request())
	require.NoError(t, err)
	assert.False(t, doc.Signed())

	req := testutil.Request()
	req.Series = 0
	_, err = p.Preview(req)
	assert.Error(t, err)
}

func TestLookupAndImport(t *testing.T) {
	pki := testutil.NewPKI(t)

	doc, err := dps.Build(testutil.Request())
	require.NoError(t, err)
	signed, err := doc.Bytes()
	require.NoError(t, err)
	signed = signed[bytes.Index(signed, []byte("<DPS")):]

	nfse := `<NFSe xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.01"><infNFSe Id="NFS` + accessKey +
		`"><nNFSe>7</nNFSe>` + string(signed) + `</infNFSe></NFSe>`
	encoded, err := codec.Encode([]byte(nfse))
	require.NoError(t, err)

	svc := &fakeService{status: http.StatusOK, body: func() []byte {
		return []byte(`{"nfseXmlGZipB64":"` + encoded + `"}`)
	}}
	srv := svc.start(t)

	out, issued, err := newPipeline(t, srv).Lookup(context.Background(), model.Restricted, credentials(t, pki), accessKey)
	require.NoError(t, err)
	require.True(t, out.IsAccepted())
	require.NotNil(t, issued)
	assert.Equal(t, accessKey, issued.AccessKey)
	assert.Equal(t, "12345678000195", issued.Provider.CNPJ)
	assert.Equal(t, "52998224725", issued.Customer.CPF)
	assert.Equal(t, "010101", issued.Service.CTribNac)

	dir := t.TempDir()
	tmpl, err := emission.Import(storage.NewStore(dir), issued, time.Date(2025, 3, 15, 11, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	prov, err := model.LoadProviderFile(tmpl.Provider)
	require.NoError(t, err)
	assert.Equal(t, "12345678000195", prov.CNPJ)

	data, err := os.ReadFile(tmpl.Service)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "vServ")
	assert.NotContains(t, string(data), "dhEmi")
	_, err = model.LoadServiceFile(tmpl.Service)
	require.NoError(t, err)
}

func TestCertificate(t *testing.T) {
	now := time.Now()
	pki := testutil.NewPKI(t, testutil.WithLeafValidity(now.AddDate(-1, 0, 0), now.AddDate(0, 0, 20)))

	info, err := newPipeline(t, nil).Certificate(context.Background(), credentials(t, pki))
	require.NoError(t, err)
	assert.True(t, info.NearExpiry)
	assert.Equal(t, 3, info.ChainLength)
}

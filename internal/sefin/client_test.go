package sefin_test

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/codec"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
	"github.com/rezonia/nfse-cli/internal/testutil"
)

const accessKey = "35503082123456780001950000000000000042250312345678"

func loadCredential(t *testing.T) *credential.Credential {
	t.Helper()
	cred, err := credential.Load(testutil.NewPKI(t).Bundle(t, testutil.Password), testutil.Password)
	require.NoError(t, err)
	t.Cleanup(cred.Release)
	return cred
}

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func clientFor(srv *httptest.Server, opts ...sefin.ClientOption) *sefin.Client {
	opts = append([]sefin.ClientOption{sefin.WithBaseURL(model.Restricted, srv.URL)}, opts...)
	return sefin.NewClient(opts...)
}

func TestSubmit_SimulateMakesNoRequest(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	fixed := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	client := clientFor(srv, sefin.WithClock(func() time.Time { return fixed }))

	out, err := client.Submit(context.Background(), model.Restricted, nil, "ignored", true)
	require.NoError(t, err)

	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
	assert.True(t, out.IsSimulated())
	assert.Equal(t, sefin.SimulatedVersion, out.AppVersion)
	assert.Equal(t, fixed.Format(time.RFC3339), out.ProcessedAt)
	assert.Empty(t, out.AccessKey)
	assert.Equal(t, model.Restricted, out.Environment)
}

func TestSubmit_Accepted(t *testing.T) {
	nfse, err := codec.Encode([]byte("<NFSe/>"))
	require.NoError(t, err)

	var received map[string]string
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/nfse", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &received)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"tipoAmbiente":          2,
			"versaoAplicativo":      "SefinNac_1.2.0",
			"dataHoraProcessamento": "2025-03-15T10:30:05-03:00",
			"chaveAcesso":           accessKey,
			"idDps":                 "DPS355030821234567800019500001000000000000042",
			"nfseXmlGZipB64":        nfse,
			"alertas":               []map[string]string{{"codigo": "A01", "descricao": "aviso"}},
		})
	})

	out, err := clientFor(srv).Submit(context.Background(), model.Restricted, loadCredential(t), "H4sIAAAA", false)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, "H4sIAAAA", received["dpsXmlGZipB64"])
	assert.True(t, out.IsAccepted())
	assert.Equal(t, accessKey, out.AccessKey)
	assert.Equal(t, "2025-03-15T10:30:05-03:00", out.ProcessedAt)
	assert.Equal(t, model.Restricted, out.Environment)
	assert.Equal(t, []byte("<NFSe/>"), out.Document)
	assert.Equal(t, []string{"A01 aviso"}, out.Warnings)
}

func TestSubmit_UndecodableDocumentIsWarning(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"chaveAcesso":"` + accessKey + `","nfseXmlGZipB64":"***"}`))
	})

	out, err := clientFor(srv).Submit(context.Background(), model.Restricted, loadCredential(t), "x", false)
	require.NoError(t, err)
	assert.True(t, out.IsAccepted())
	assert.Nil(t, out.Document)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "could not decode")
}

func TestSubmit_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		detail string
	}{
		{"mensagem", http.StatusBadRequest, `{"mensagem":"DPS invalida"}`, "DPS invalida"},
		{"erros", http.StatusUnprocessableEntity, `{"erros":[{"codigo":"E0001","descricao":"CNPJ invalido"},{"codigo":"E0002","descricao":"serie"}]}`, "E0001 CNPJ invalido; E0002 serie"},
		{"raw body", http.StatusInternalServerError, "upstream down\n", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			out, err := clientFor(srv).Submit(context.Background(), model.Restricted, loadCredential(t), "x", false)
			require.NoError(t, err)
			assert.Equal(t, model.Rejected, out.Status)
			assert.Equal(t, tt.status, out.StatusCode)
			assert.Equal(t, tt.detail, out.ErrorDetail)
			assert.Empty(t, out.AccessKey)
		})
	}
}

func TestSubmit_TransportFailure(t *testing.T) {
	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	url := srv.URL
	srv.Close()

	client := sefin.NewClient(sefin.WithBaseURL(model.Restricted, url))
	out, err := client.Submit(context.Background(), model.Restricted, loadCredential(t), "x", false)
	assert.Nil(t, out)

	var terr *model.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 0, terr.StatusCode)
	assert.Equal(t, sefin.OpSubmit, terr.Op)
}

func TestSubmit_Timeout(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	client := clientFor(srv, sefin.WithTimeout(50*time.Millisecond))
	_, err := client.Submit(context.Background(), model.Restricted, loadCredential(t), "x", false)

	var terr *model.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, 0, terr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits), "no retries")
}

func TestSubmit_MutualTLS(t *testing.T) {
	var clientCN string
	srv := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.TLS.PeerCertificates) > 0 {
			clientCN = r.TLS.PeerCertificates[0].Subject.CommonName
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"chaveAcesso":"` + accessKey + `"}`))
	}))
	srv.TLS = &tls.Config{ClientAuth: tls.RequireAnyClientCert}
	srv.StartTLS()
	defer srv.Close()

	pool := srv.Client().Transport.(*http.Transport).TLSClientConfig.RootCAs
	client := sefin.NewClient(sefin.WithBaseURL(model.Production, srv.URL), sefin.WithRootCAs(pool))

	out, err := client.Submit(context.Background(), model.Production, loadCredential(t), "x", false)
	require.NoError(t, err)
	assert.True(t, out.IsAccepted())
	assert.Equal(t, "PRESTADORA EXEMPLO LTDA:12345678000195", clientCN)
}

func TestSubmit_ReleasedCredential(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	cred := loadCredential(t)
	cred.Release()

	_, err := clientFor(srv).Submit(context.Background(), model.Restricted, cred, "x", false)
	var terr *model.TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestQuery(t *testing.T) {
	nfse, err := codec.Encode([]byte("<NFSe><infNFSe/></NFSe>"))
	require.NoError(t, err)

	srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/nfse/"+accessKey, r.URL.Path)
		_, _ = w.Write([]byte(`{"nfseXmlGZipB64":"` + nfse + `"}`))
	})

	out, err := clientFor(srv).Query(context.Background(), model.Restricted, loadCredential(t), accessKey)
	require.NoError(t, err)
	assert.True(t, out.IsAccepted())
	assert.Equal(t, accessKey, out.AccessKey)
	assert.Equal(t, []byte("<NFSe><infNFSe/></NFSe>"), out.Document)
}

func TestQuery_InvalidKey(t *testing.T) {
	srv, hits := newServer(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := clientFor(srv).Query(context.Background(), model.Restricted, loadCredential(t), "123")
	var verr *model.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestFetchRendering(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantErr     bool
		wantStatus  int
	}{
		{name: "pdf magic", status: 200, contentType: "application/octet-stream", body: "%PDF-1.7 ..."},
		{name: "pdf content type", status: 200, contentType: "application/pdf", body: "binary"},
		{name: "not a pdf", status: 200, contentType: "text/html", body: "<html/>", wantErr: true, wantStatus: 200},
		{name: "not found", status: 404, contentType: "application/json", body: `{"mensagem":"NFS-e nao encontrada"}`, wantErr: true, wantStatus: 404},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/danfse/"+accessKey, r.URL.Path)
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			pdf, err := clientFor(srv).FetchRendering(context.Background(), model.Restricted, loadCredential(t), accessKey)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.Equal(t, []byte(tt.body), pdf)
				return
			}
			var terr *model.TransportError
			require.True(t, errors.As(err, &terr))
			assert.Equal(t, tt.wantStatus, terr.StatusCode)
			assert.Equal(t, sefin.OpRendering, terr.Op)
		})
	}
}

func TestBaseURL(t *testing.T) {
	c := sefin.NewClient(sefin.WithBaseURL(model.Production, "https://example.test/"))

	url, err := c.BaseURL(model.Production)
	require.NoError(t, err)
	assert.Equal(t, "https://example.test", url)

	url, err = c.BaseURL(model.Restricted)
	require.NoError(t, err)
	assert.Equal(t, sefin.DefaultRestrictedURL, url)

	_, err = c.BaseURL(model.Environment(9))
	assert.Error(t, err)
}

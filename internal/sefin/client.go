package sefin

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/codec"
	"github.com/rezonia/nfse-cli/internal/logger"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
	"github.com/rezonia/nfse-cli/internal/validation"
)

const (
	DefaultProductionURL = "https://adn.nfse.gov.br"
	DefaultRestrictedURL = "https://adn.producaorestrita.nfse.gov.br"
	DefaultTimeout       = 30 * time.Second

	// SimulatedVersion is reported as versaoAplicativo for simulated submissions
	SimulatedVersion = "simulado"

	maxResponseBytes = 32 << 20
)

// Operation names used in transport errors
const (
	OpSubmit    = "submit"
	OpQuery     = "query"
	OpRendering = "danfse"
)

// Client talks to the national NFS-e service over mutual TLS. It holds no
// connection state: every call builds its own transport from the
// credential it is given and closes it before returning.
type Client struct {
	urls    map[model.Environment]string
	timeout time.Duration
	rootCAs *x509.CertPool
	logger  *zap.Logger
	now     func() time.Time
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL overrides the endpoint of one environment
func WithBaseURL(env model.Environment, url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.urls[env] = strings.TrimRight(url, "/")
		}
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRootCAs replaces the system pool used to verify the server
func WithRootCAs(pool *x509.CertPool) ClientOption {
	return func(c *Client) {
		c.rootCAs = pool
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source for simulated processing timestamps
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new submission client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		urls: map[model.Environment]string{
			model.Production: DefaultProductionURL,
			model.Restricted: DefaultRestrictedURL,
		},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the endpoint for env
func (c *Client) BaseURL(env model.Environment) (string, error) {
	url, ok := c.urls[env]
	if !ok {
		return "", model.NewValidationError("ambiente", env, model.RuleEnum,
			fmt.Sprintf("unknown environment %d", env))
	}
	return url, nil
}

type submitRequest struct {
	DPS string `json:"dpsXmlGZipB64"`
}

type apiMessage struct {
	Code        string `json:"codigo"`
	Description string `json:"descricao"`
	Complement  string `json:"complemento,omitempty"`
}

func (m apiMessage) String() string {
	s := strings.TrimSpace(m.Code + " " + m.Description)
	if m.Complement != "" {
		s += " (" + m.Complement + ")"
	}
	return s
}

type apiResponse struct {
	Environment model.Environment `json:"tipoAmbiente"`
	AppVersion  string            `json:"versaoAplicativo"`
	ProcessedAt string            `json:"dataHoraProcessamento"`
	AccessKey   string            `json:"chaveAcesso"`
	DPSID       string            `json:"idDps"`
	Document    string            `json:"nfseXmlGZipB64"`
	Alerts      []apiMessage      `json:"alertas"`
	Message     string            `json:"mensagem"`
	Errors      []apiMessage      `json:"erros"`
}

// Submit posts an encoded signed DPS. With simulate set it returns a
// Simulated outcome without building a transport. A response from the
// service, accepted or not, is an Outcome; a *model.TransportError means no
// usable response arrived.
func (c *Client) Submit(ctx context.Context, env model.Environment, cred *credential.Credential, encoded string, simulate bool) (*model.Outcome, error) {
	if simulate {
		c.logger.Info("simulated submission, no request sent", zap.Stringer("ambiente", env))
		return &model.Outcome{
			Status:      model.Simulated,
			Environment: env,
			AppVersion:  SimulatedVersion,
			ProcessedAt: c.now().Format(time.RFC3339),
		}, nil
	}

	base, err := c.BaseURL(env)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(submitRequest{DPS: encoded})
	if err != nil {
		return nil, model.NewTransportError(OpSubmit, 0, "encode request", err)
	}

	status, _, payload, err := c.do(ctx, OpSubmit, cred, http.MethodPost, base+"/nfse", body)
	if err != nil {
		return nil, err
	}
	return c.outcome(OpSubmit, env, status, payload)
}

// Query fetches an issued NFS-e by access key
func (c *Client) Query(ctx context.Context, env model.Environment, cred *credential.Credential, key string) (*model.Outcome, error) {
	if !validation.IsAccessKey(key) {
		return nil, model.NewValidationError("chaveAcesso", key, model.RuleFormat, "access key must have 50 digits")
	}
	base, err := c.BaseURL(env)
	if err != nil {
		return nil, err
	}

	status, _, payload, err := c.do(ctx, OpQuery, cred, http.MethodGet, base+"/nfse/"+key, nil)
	if err != nil {
		return nil, err
	}
	out, err := c.outcome(OpQuery, env, status, payload)
	if err == nil && out.IsAccepted() && out.AccessKey == "" {
		out.AccessKey = key
	}
	return out, err
}

// FetchRendering downloads the DANFSe PDF for an access key. Any non-2xx
// status or non-PDF body is a *model.TransportError.
func (c *Client) FetchRendering(ctx context.Context, env model.Environment, cred *credential.Credential, key string) ([]byte, error) {
	if !validation.IsAccessKey(key) {
		return nil, model.NewValidationError("chaveAcesso", key, model.RuleFormat, "access key must have 50 digits")
	}
	base, err := c.BaseURL(env)
	if err != nil {
		return nil, err
	}

	status, header, payload, err := c.do(ctx, OpRendering, cred, http.MethodGet, base+"/danfse/"+key, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, model.NewTransportError(OpRendering, status, errorDetail(payload), nil)
	}

	contentType := header.Get("Content-Type")
	if !bytes.HasPrefix(payload, []byte("%PDF")) && !strings.Contains(strings.ToLower(contentType), "pdf") {
		return nil, model.NewTransportError(OpRendering, status,
			fmt.Sprintf("response is not a PDF (Content-Type: %s)", contentType), nil)
	}
	return payload, nil
}

// do performs one request over a fresh mTLS transport
func (c *Client) do(ctx context.Context, op string, cred *credential.Credential, method, url string, body []byte) (int, http.Header, []byte, error) {
	if cred == nil || cred.Released() {
		return 0, nil, nil, model.NewTransportError(op, 0, "no client credential", nil)
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{
			Certificates:  []tls.Certificate{cred.TLSCertificate()},
			RootCAs:       c.rootCAs,
			MinVersion:    tls.VersionTLS12,
			Renegotiation: tls.RenegotiateFreelyAsClient,
		},
		TLSHandshakeTimeout: c.timeout,
	}
	defer transport.CloseIdleConnections()

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Transport: transport, Timeout: c.timeout}
	rc.RetryMax = 0
	rc.CheckRetry = func(context.Context, *http.Response, error) (bool, error) {
		return false, nil
	}
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = logger.NewLeveled(c.logger)

	var reqBody interface{}
	if body != nil {
		reqBody = body
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return 0, nil, nil, model.NewTransportError(op, 0, "build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json, application/pdf")

	start := time.Now()
	resp, err := rc.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("op", op), zap.String("url", url), zap.Error(err))
		return 0, nil, nil, model.NewTransportError(op, 0, "no response from service", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, nil, model.NewTransportError(op, resp.StatusCode, "read response body", err)
	}

	c.logger.Debug("response received",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
		zap.Duration("elapsed", time.Since(start)))

	return resp.StatusCode, resp.Header, payload, nil
}

// outcome classifies a JSON response
func (c *Client) outcome(op string, env model.Environment, status int, payload []byte) (*model.Outcome, error) {
	if status < 200 || status > 299 {
		return &model.Outcome{
			Status:      model.Rejected,
			Environment: env,
			StatusCode:  status,
			ErrorDetail: errorDetail(payload),
		}, nil
	}

	var r apiResponse
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, model.NewTransportError(op, status, "malformed response body", err)
	}

	out := &model.Outcome{
		Status:          model.Accepted,
		Environment:     r.Environment,
		AppVersion:      r.AppVersion,
		ProcessedAt:     r.ProcessedAt,
		AccessKey:       r.AccessKey,
		DPSID:           r.DPSID,
		EncodedDocument: r.Document,
		StatusCode:      status,
	}
	if out.Environment == 0 {
		out.Environment = env
	}
	for _, a := range r.Alerts {
		out.Warnings = append(out.Warnings, a.String())
	}

	if r.Document != "" {
		doc, err := codec.Decode(r.Document)
		if err != nil {
			out.Warnings = append(out.Warnings, fmt.Sprintf("could not decode returned NFS-e: %v", err))
		} else {
			out.Document = doc
		}
	}
	return out, nil
}

// errorDetail extracts a human-readable reason from an error body
func errorDetail(payload []byte) string {
	var r apiResponse
	if err := json.Unmarshal(payload, &r); err == nil {
		if r.Message != "" {
			return r.Message
		}
		if len(r.Errors) > 0 {
			parts := make([]string, 0, len(r.Errors))
			for _, e := range r.Errors {
				parts = append(parts, e.String())
			}
			return strings.Join(parts, "; ")
		}
	}
	return strings.TrimSpace(string(payload))
}

package emission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/codec"
	"github.com/rezonia/nfse-cli/internal/danfse"
	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/metrics"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/schema"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
	xmlsig "github.com/rezonia/nfse-cli/internal/signature/xml"
	"github.com/rezonia/nfse-cli/internal/validation"
)

// Credentials locates the provider's PKCS#12 bundle. It is decoded for
// each operation and released when the operation returns.
type Credentials struct {
	Bundle   []byte
	Password string
}

// Result is the outcome of one emission
type Result struct {
	DPSID     string
	SignedXML []byte
	Encoded   string
	Outcome   *model.Outcome

	Certificate *credential.CertificateInfo

	// Rendering is the DANFSe, fetched after acceptance when enabled
	Rendering     []byte
	RenderingInfo *danfse.Info
	RenderingErr  error

	Warnings []string
}

// Pipeline runs validate, build, sign, encode and submit
type Pipeline struct {
	client         *sefin.Client
	trustStore     *trust.TrustStore
	metrics        *metrics.Metrics
	logger         *zap.Logger
	now            func() time.Time
	schemaPath     string
	fetchRendering bool
}

// PipelineOption configures the pipeline
type PipelineOption func(*Pipeline)

// WithClient sets the submission client
func WithClient(c *sefin.Client) PipelineOption {
	return func(p *Pipeline) {
		p.client = c
	}
}

// WithTrustStore sets the store used to validate the signing certificate
func WithTrustStore(ts *trust.TrustStore) PipelineOption {
	return func(p *Pipeline) {
		p.trustStore = ts
	}
}

// WithMetrics enables metric collection
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock sets the time source used for certificate checks
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithSchema validates signed documents against the XSD at path
func WithSchema(path string) PipelineOption {
	return func(p *Pipeline) {
		p.schemaPath = path
	}
}

// WithRendering downloads the DANFSe after an accepted submission
func WithRendering(enabled bool) PipelineOption {
	return func(p *Pipeline) {
		p.fetchRendering = enabled
	}
}

// NewPipeline creates an emission pipeline
func NewPipeline(opts ...PipelineOption) (*Pipeline, error) {
	p := &Pipeline{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.client == nil {
		p.client = sefin.NewClient(sefin.WithLogger(p.logger))
	}
	if p.trustStore == nil {
		ts, err := trust.NewTrustStore()
		if err != nil {
			return nil, err
		}
		p.trustStore = ts
	}
	return p, nil
}

// Validate checks req without touching the credential or the network
func (p *Pipeline) Validate(req *model.EmissionRequest) error {
	if err := validation.ValidateRequest(req).Err(); err != nil {
		p.metrics.RecordValidationError()
		return err
	}
	return nil
}

// Preview validates req and returns the unsigned DPS
func (p *Pipeline) Preview(req *model.EmissionRequest) (*dps.Document, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}
	return dps.Build(req)
}

// Emit validates req, signs the DPS with the provider credential and
// submits it, or simulates the submission when req.Simulate is set.
// Validation and credential errors abort before any network attempt.
func (p *Pipeline) Emit(ctx context.Context, req *model.EmissionRequest, creds Credentials) (*Result, error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	cred, err := credential.Load(creds.Bundle, creds.Password)
	if err != nil {
		return nil, err
	}
	defer cred.Release()

	// A simulated emission must stay off the network, OCSP included
	var vopts []credential.ValidateOption
	if req.Simulate {
		vopts = append(vopts, credential.Offline())
	}
	info, err := credential.Validate(ctx, cred, p.now(), p.trustStore, vopts...)
	if err != nil {
		return nil, err
	}
	p.metrics.SetCertDaysToExpiry(info.DaysToExpiry)

	res := &Result{Certificate: info}
	res.Warnings = append(res.Warnings, info.Warnings...)

	doc, err := dps.Build(req)
	if err != nil {
		return nil, err
	}
	res.DPSID = doc.ID()

	if err := xmlsig.Sign(doc, cred); err != nil {
		return nil, err
	}
	if res.SignedXML, err = doc.Bytes(); err != nil {
		return nil, fmt.Errorf("serialize DPS: %w", err)
	}

	if p.schemaPath != "" {
		switch err := schema.Validate(res.SignedXML, p.schemaPath); {
		case errors.Is(err, schema.ErrUnavailable):
			res.Warnings = append(res.Warnings, err.Error())
		case err != nil:
			return nil, err
		}
	}

	if res.Encoded, err = codec.Encode(res.SignedXML); err != nil {
		return nil, err
	}

	log := p.logger.With(zap.String("id_dps", res.DPSID), zap.Stringer("ambiente", req.Environment))
	log.Info("submitting DPS", zap.Bool("simulado", req.Simulate), zap.Int("bytes", len(res.Encoded)))

	start := time.Now()
	out, err := p.client.Submit(ctx, req.Environment, cred, res.Encoded, req.Simulate)
	if !req.Simulate {
		p.metrics.ObserveSubmit(req.Environment.String(), time.Since(start))
	}
	if err != nil {
		p.metrics.RecordOutcome(req.Environment.String(), "error")
		log.Error("submission failed", zap.Error(err))
		return res, err
	}
	if out.DPSID == "" {
		out.DPSID = res.DPSID
	}
	res.Outcome = out
	p.metrics.RecordOutcome(req.Environment.String(), string(out.Status))

	switch out.Status {
	case model.Accepted:
		log.Info("DPS accepted", zap.String("chave", out.AccessKey))
		if p.fetchRendering && out.AccessKey != "" {
			p.attachRendering(ctx, req.Environment, cred, out.AccessKey, res)
		}
	case model.Rejected:
		log.Warn("DPS rejected", zap.Int("status", out.StatusCode), zap.String("erro", out.ErrorDetail))
	default:
		log.Info("submission simulated")
	}
	return res, nil
}

// attachRendering downloads the DANFSe. Failures are kept on the result
// and never fail the emission.
func (p *Pipeline) attachRendering(ctx context.Context, env model.Environment, cred *credential.Credential, key string, res *Result) {
	pdf, err := p.client.FetchRendering(ctx, env, cred, key)
	if err != nil {
		res.RenderingErr = err
		res.Warnings = append(res.Warnings, fmt.Sprintf("DANFSe unavailable: %v", err))
		return
	}
	res.Rendering = pdf
	if info, err := danfse.Inspect(pdf); err == nil {
		res.RenderingInfo = info
	} else {
		res.Warnings = append(res.Warnings, fmt.Sprintf("DANFSe inspection: %v", err))
	}
}

// Lookup queries an issued NFS-e and parses the returned document when
// the service accepted the query.
func (p *Pipeline) Lookup(ctx context.Context, env model.Environment, creds Credentials, key string) (*model.Outcome, *dps.Issued, error) {
	cred, err := credential.Load(creds.Bundle, creds.Password)
	if err != nil {
		return nil, nil, err
	}
	defer cred.Release()

	out, err := p.client.Query(ctx, env, cred, key)
	if err != nil || !out.IsAccepted() || len(out.Document) == 0 {
		return out, nil, err
	}

	issued, err := dps.ParseIssued(out.Document)
	if err != nil {
		out.Warnings = append(out.Warnings, err.Error())
		return out, nil, nil
	}
	return out, issued, nil
}

// Rendering downloads and inspects the DANFSe for key
func (p *Pipeline) Rendering(ctx context.Context, env model.Environment, creds Credentials, key string) ([]byte, *danfse.Info, error) {
	cred, err := credential.Load(creds.Bundle, creds.Password)
	if err != nil {
		return nil, nil, err
	}
	defer cred.Release()

	pdf, err := p.client.FetchRendering(ctx, env, cred, key)
	if err != nil {
		return nil, nil, err
	}
	info, err := danfse.Inspect(pdf)
	if err != nil {
		p.logger.Warn("DANFSe inspection failed", zap.Error(err))
		return pdf, nil, nil
	}
	return pdf, info, nil
}

// Certificate loads and validates the credential without using it
func (p *Pipeline) Certificate(ctx context.Context, creds Credentials) (*credential.CertificateInfo, error) {
	cred, err := credential.Load(creds.Bundle, creds.Password)
	if err != nil {
		return nil, err
	}
	defer cred.Release()

	info, err := credential.Validate(ctx, cred, p.now(), p.trustStore)
	if err != nil {
		return nil, err
	}
	p.metrics.SetCertDaysToExpiry(info.DaysToExpiry)
	return info, nil
}

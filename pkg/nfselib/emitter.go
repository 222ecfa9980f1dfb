package nfselib

import (
	"context"
	"crypto/x509"
	"time"

	"go.uber.org/zap"

	"github.com/rezonia/nfse-cli/internal/danfse"
	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
	"github.com/rezonia/nfse-cli/internal/signature/xml"
)

// Issuer emits and looks up NFS-e documents
type Issuer interface {
	// Validate runs every input rule and returns all violations at once
	Validate(req *EmissionRequest) error

	// Emit validates, signs and submits (or simulates) one DPS
	Emit(ctx context.Context, req *EmissionRequest, creds Credentials) (*Result, error)

	// Query fetches an issued NFS-e by access key
	Query(ctx context.Context, env Environment, creds Credentials, key string) (*Outcome, *Issued, error)

	// Rendering downloads the DANFSe PDF
	Rendering(ctx context.Context, env Environment, creds Credentials, key string) ([]byte, error)
}

// Verifier checks signed DPS and NFS-e documents
type Verifier interface {
	Verify(ctx context.Context, data []byte) (*VerificationResult, error)
}

// Options configures an Emitter
type Options struct {
	// Service endpoints; empty keeps the published defaults
	ProductionURL string
	RestrictedURL string
	Timeout       time.Duration

	// Trust configuration. With no roots, chains are accepted when they
	// end at a certificate naming ICP-Brasil.
	TrustRoots    []*x509.Certificate
	Intermediates []*x509.Certificate
	OCSP          bool
	OCSPSoftFail  bool

	// FetchRendering downloads the DANFSe after acceptance
	FetchRendering bool

	// SchemaPath enables XSD validation of signed documents
	SchemaPath string

	Logger *zap.Logger
}

// DefaultOptions returns default emitter options
func DefaultOptions() Options {
	return Options{
		ProductionURL:  sefin.DefaultProductionURL,
		RestrictedURL:  sefin.DefaultRestrictedURL,
		Timeout:        sefin.DefaultTimeout,
		OCSPSoftFail:   true,
		FetchRendering: true,
	}
}

// Emitter implements Issuer and Verifier using the internal pipeline
type Emitter struct {
	pipeline *emission.Pipeline
	verifier *xml.XMLVerifier
	options  Options
}

var (
	_ Issuer   = (*Emitter)(nil)
	_ Verifier = (*Emitter)(nil)
)

// NewEmitter creates an emitter with the given options
func NewEmitter(opts Options) (*Emitter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var trustOpts []trust.TrustStoreOption
	if len(opts.TrustRoots) > 0 {
		trustOpts = append(trustOpts, trust.WithRoots(opts.TrustRoots...))
	}
	if opts.OCSP {
		trustOpts = append(trustOpts, trust.WithOCSP())
		if opts.OCSPSoftFail {
			trustOpts = append(trustOpts, trust.WithSoftFail())
		}
	}
	trustStore, err := trust.NewTrustStore(trustOpts...)
	if err != nil {
		return nil, err
	}

	clientOpts := []sefin.ClientOption{sefin.WithLogger(logger)}
	if opts.ProductionURL != "" {
		clientOpts = append(clientOpts, sefin.WithBaseURL(Production, opts.ProductionURL))
	}
	if opts.RestrictedURL != "" {
		clientOpts = append(clientOpts, sefin.WithBaseURL(Restricted, opts.RestrictedURL))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, sefin.WithTimeout(opts.Timeout))
	}
	if len(opts.TrustRoots) > 0 {
		pool := x509.NewCertPool()
		for _, c := range opts.TrustRoots {
			pool.AddCert(c)
		}
		clientOpts = append(clientOpts, sefin.WithRootCAs(pool))
	}

	pipeline, err := emission.NewPipeline(
		emission.WithClient(sefin.NewClient(clientOpts...)),
		emission.WithTrustStore(trustStore),
		emission.WithLogger(logger),
		emission.WithSchema(opts.SchemaPath),
		emission.WithRendering(opts.FetchRendering),
	)
	if err != nil {
		return nil, err
	}

	return &Emitter{
		pipeline: pipeline,
		verifier: xml.NewXMLVerifier(trustStore, xml.WithIntermediates(opts.Intermediates...)),
		options:  opts,
	}, nil
}

// NewDefaultEmitter creates an emitter with default options
func NewDefaultEmitter() (*Emitter, error) {
	return NewEmitter(DefaultOptions())
}

func (e *Emitter) Validate(req *EmissionRequest) error {
	return e.pipeline.Validate(req)
}

// Preview builds the unsigned DPS XML
func (e *Emitter) Preview(req *EmissionRequest) ([]byte, error) {
	doc, err := e.pipeline.Preview(req)
	if err != nil {
		return nil, err
	}
	return doc.Bytes()
}

func (e *Emitter) Emit(ctx context.Context, req *EmissionRequest, creds Credentials) (*Result, error) {
	return e.pipeline.Emit(ctx, req, creds)
}

// EmitBatch emits several requests concurrently. Each request must carry
// its own DPS number. Results keep the input order; the first error is
// returned alongside whatever results were produced.
func (e *Emitter) EmitBatch(ctx context.Context, reqs []*EmissionRequest, creds Credentials) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errCh := make(chan error, len(reqs))

	for i, req := range reqs {
		go func(idx int, r *EmissionRequest) {
			result, err := e.Emit(ctx, r, creds)
			results[idx] = result
			errCh <- err
		}(i, req)
	}

	var firstErr error
	for range reqs {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return results, firstErr
}

func (e *Emitter) Query(ctx context.Context, env Environment, creds Credentials, key string) (*Outcome, *Issued, error) {
	return e.pipeline.Lookup(ctx, env, creds, key)
}

func (e *Emitter) Rendering(ctx context.Context, env Environment, creds Credentials, key string) ([]byte, error) {
	pdf, _, err := e.pipeline.Rendering(ctx, env, creds, key)
	return pdf, err
}

// RenderingInfo reports the page count of a downloaded DANFSe
func (e *Emitter) RenderingInfo(pdf []byte) (*danfse.Info, error) {
	return danfse.Inspect(pdf)
}

func (e *Emitter) Verify(ctx context.Context, data []byte) (*VerificationResult, error) {
	return e.verifier.Verify(ctx, data)
}

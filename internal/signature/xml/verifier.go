package xml

import (
	"context"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/signature"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
)

// XMLVerifier verifies XMLDSig signatures on DPS and NFS-e documents
type XMLVerifier struct {
	trustStore    *trust.TrustStore
	intermediates []*x509.Certificate
	at            time.Time
}

// VerifierOption configures an XMLVerifier
type VerifierOption func(*XMLVerifier)

// WithIntermediates supplies CA certificates for chain building, since a
// signed DPS only embeds the signer's certificate.
func WithIntermediates(certs ...*x509.Certificate) VerifierOption {
	return func(v *XMLVerifier) {
		v.intermediates = append(v.intermediates, certs...)
	}
}

// WithVerificationTime evaluates certificate validity at t instead of now
func WithVerificationTime(t time.Time) VerifierOption {
	return func(v *XMLVerifier) {
		v.at = t
	}
}

// NewXMLVerifier creates a new XML signature verifier
func NewXMLVerifier(ts *trust.TrustStore, opts ...VerifierOption) *XMLVerifier {
	v := &XMLVerifier{trustStore: ts}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the signature in data and the signer's chain. A returned
// error means no signature could be examined; check failures are reported
// in the result.
func (v *XMLVerifier) Verify(ctx context.Context, data []byte) (*signature.VerificationResult, error) {
	result := signature.NewVerificationResult()
	at := v.at
	if at.IsZero() {
		at = time.Now()
	}

	extraction, err := Extract(data)
	if err != nil {
		result.AddError(err.Error())
		return result, signature.ErrNoSignature()
	}
	result.SignatureFound = true
	result.DocumentID = extraction.ReferenceID

	cert, err := ExtractCertificate(extraction.Signature)
	if err != nil {
		result.AddError(err.Error())
		result.ComputeValidity()
		return result, nil
	}
	result.SetSigner(cert)

	validationCtx := dsig.NewDefaultValidationContext(&dsig.MemoryX509CertificateStore{
		Roots: []*x509.Certificate{cert},
	})
	validationCtx.IdAttribute = dps.IDAttr
	validationCtx.Clock = dsig.NewFakeClockAt(at)

	if _, err := validationCtx.Validate(validationTarget(extraction)); err != nil {
		result.AddError(signature.ErrInvalidSignature(err).Error())
	} else {
		result.SignatureValid = true
	}

	chain, err := v.trustStore.VerifyChain(cert, v.intermediates, at)
	if err != nil {
		result.AddError(fmt.Sprintf("certificate chain: %v", err))
	} else {
		result.CertChain = chain
		result.CertChainValid = true
		v.checkRevocation(ctx, result, cert, chain)
	}

	result.ComputeValidity()
	return result, nil
}

func (v *XMLVerifier) checkRevocation(ctx context.Context, result *signature.VerificationResult, cert *x509.Certificate, chain []*x509.Certificate) {
	if len(chain) < 2 {
		result.NotRevoked = true
		result.AddWarning("revocation check skipped: no issuer certificate in chain")
		return
	}

	notRevoked, err := v.trustStore.CheckRevocation(ctx, cert, chain[1])
	switch {
	case err != nil && v.trustStore.IsSoftFail():
		result.AddWarning(fmt.Sprintf("OCSP check: %v", err))
		result.NotRevoked = true
	case err != nil:
		result.AddError(fmt.Sprintf("OCSP check failed: %v", err))
	case !notRevoked:
		result.AddError("certificate has been revoked")
	default:
		result.NotRevoked = true
	}
}

// validationTarget returns the element goxmldsig should validate: the
// referenced element with the Signature inside it. For a DPS the Signature
// is a sibling of infDPS, so a detached copy is assembled.
func validationTarget(e *Extraction) *etree.Element {
	if isAncestor(e.Signed, e.Signature) {
		return e.Signed
	}
	target := detached(e.Signed, e.Document.Root())
	target.AddChild(e.Signature.Copy())
	return target
}

func isAncestor(ancestor, el *etree.Element) bool {
	for p := el.Parent(); p != nil; p = p.Parent() {
		if p == ancestor {
			return true
		}
	}
	return false
}

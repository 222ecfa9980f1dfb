package trust

import (
	"context"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"
)

// TrustStore decides whether a certificate chains to ICP-Brasil and,
// optionally, whether it has been revoked.
type TrustStore struct {
	roots       *x509.CertPool
	rootCerts   []*x509.Certificate
	ocspCache   *OCSPCache
	ocspTimeout time.Duration
	ocspClient  *http.Client
	checkOCSP   bool
	softFail    bool
	loadErr     error
}

// TrustStoreOption configures a TrustStore
type TrustStoreOption func(*TrustStore)

// NewTrustStore creates a trust store. Without configured roots, chains are
// accepted when their top certificate is named as the ICP-Brasil root.
func NewTrustStore(opts ...TrustStoreOption) (*TrustStore, error) {
	store := &TrustStore{
		roots:       x509.NewCertPool(),
		rootCerts:   make([]*x509.Certificate, 0),
		ocspCache:   NewOCSPCache(DefaultOCSPCacheTTL),
		ocspTimeout: DefaultOCSPTimeout,
		ocspClient:  http.DefaultClient,
	}

	for _, opt := range opts {
		opt(store)
	}
	if store.loadErr != nil {
		return nil, store.loadErr
	}
	return store, nil
}

// WithOCSP enables revocation checks against the certificate's OCSP servers
func WithOCSP() TrustStoreOption {
	return func(s *TrustStore) {
		s.checkOCSP = true
	}
}

// WithSoftFail enables soft-fail mode for OCSP checks
// When enabled, OCSP failures don't cause verification to fail
func WithSoftFail() TrustStoreOption {
	return func(s *TrustStore) {
		s.softFail = true
	}
}

// WithOCSPTimeout sets the timeout for OCSP requests
func WithOCSPTimeout(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspTimeout = d
	}
}

// WithOCSPCacheTTL sets the TTL for OCSP cache entries
func WithOCSPCacheTTL(d time.Duration) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspCache = NewOCSPCache(d)
	}
}

// WithOCSPClient sets the HTTP client used for OCSP requests
func WithOCSPClient(c *http.Client) TrustStoreOption {
	return func(s *TrustStore) {
		s.ocspClient = c
	}
}

// WithRoots trusts the given root certificates
func WithRoots(certs ...*x509.Certificate) TrustStoreOption {
	return func(s *TrustStore) {
		s.AddCertificates(certs...)
	}
}

// WithRootsFromFile trusts the certificates in a PEM file, typically the
// ICP-Brasil root chain published by ITI.
func WithRootsFromFile(path string) TrustStoreOption {
	return func(s *TrustStore) {
		data, err := os.ReadFile(path)
		if err != nil {
			s.loadErr = fmt.Errorf("read trust roots: %w", err)
			return
		}
		if err := s.AddCertificatesFromPEM(data); err != nil {
			s.loadErr = fmt.Errorf("load trust roots from %s: %w", path, err)
		}
	}
}

// AddCertificate adds a single certificate to the trust store
func (s *TrustStore) AddCertificate(cert *x509.Certificate) {
	if cert != nil {
		s.roots.AddCert(cert)
		s.rootCerts = append(s.rootCerts, cert)
	}
}

// AddCertificates adds multiple certificates to the trust store
func (s *TrustStore) AddCertificates(certs ...*x509.Certificate) {
	for _, cert := range certs {
		s.AddCertificate(cert)
	}
}

// AddCertificatesFromPEM parses and adds certificates from PEM data
func (s *TrustStore) AddCertificatesFromPEM(pemData []byte) error {
	var added int
	for {
		block, rest := pem.Decode(pemData)
		if block == nil {
			break
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return fmt.Errorf("failed to parse certificate: %w", err)
			}
			s.AddCertificate(cert)
			added++
		}
		pemData = rest
	}
	if added == 0 {
		return fmt.Errorf("no certificates found in PEM data")
	}
	return nil
}

// HasRoots reports whether explicit root certificates were configured
func (s *TrustStore) HasRoots() bool {
	return len(s.rootCerts) > 0
}

// VerifyChain returns the chain from cert to a trusted ICP-Brasil root,
// evaluated at time at. With configured roots this is a full x509
// verification; otherwise the chain is assembled from intermediates and
// its top certificate must be named as the ICP-Brasil root.
func (s *TrustStore) VerifyChain(cert *x509.Certificate, intermediates []*x509.Certificate, at time.Time) ([]*x509.Certificate, error) {
	if cert == nil {
		return nil, fmt.Errorf("certificate is nil")
	}

	if !s.HasRoots() {
		chain := BuildChain(cert, intermediates)
		top := chain[len(chain)-1]
		if !isSelfSigned(top) {
			return chain, fmt.Errorf("chain is incomplete: issuer %q not in bundle", top.Issuer.String())
		}
		if !IsICPBrasilRoot(top) {
			return chain, fmt.Errorf("root %q is not ICP-Brasil", top.Subject.String())
		}
		return chain, nil
	}

	interPool := x509.NewCertPool()
	for _, inter := range intermediates {
		interPool.AddCert(inter)
	}

	opts := x509.VerifyOptions{
		Roots:         s.roots,
		Intermediates: interPool,
		CurrentTime:   at,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}

	chains, err := cert.Verify(opts)
	if err != nil {
		return nil, fmt.Errorf("chain verification failed: %w", err)
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no valid certificate chains found")
	}
	return chains[0], nil
}

// CheckRevocation checks if a certificate has been revoked using OCSP.
// It returns notRevoked=true without a network call when OCSP checking is
// disabled or the certificate lists no responder.
func (s *TrustStore) CheckRevocation(ctx context.Context, cert *x509.Certificate, issuer *x509.Certificate) (bool, error) {
	if cert == nil || issuer == nil {
		return false, fmt.Errorf("certificate or issuer is nil")
	}
	if !s.checkOCSP || len(cert.OCSPServer) == 0 {
		return true, nil
	}

	if notRevoked, found := s.ocspCache.Get(cert); found {
		return notRevoked, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.ocspTimeout)
	defer cancel()

	revoked, err := CheckOCSP(ctx, s.ocspClient, cert, issuer)
	if err != nil {
		if s.softFail {
			return true, fmt.Errorf("OCSP check failed (soft-fail enabled): %w", err)
		}
		return false, fmt.Errorf("OCSP check failed: %w", err)
	}

	s.ocspCache.Set(cert, !revoked)
	return !revoked, nil
}

// Roots returns the certificate pool
func (s *TrustStore) Roots() *x509.CertPool {
	return s.roots
}

// RootCerts returns the root certificates as a slice
func (s *TrustStore) RootCerts() []*x509.Certificate {
	return s.rootCerts
}

// ChecksRevocation reports whether OCSP checks are enabled
func (s *TrustStore) ChecksRevocation() bool {
	return s.checkOCSP
}

// IsSoftFail returns whether soft-fail mode is enabled
func (s *TrustStore) IsSoftFail() bool {
	return s.softFail
}

// Package credential loads the A1 certificate bundle used to sign DPS
// documents and authenticate to the submission service.
package credential

import (
	"context"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/rezonia/nfse-cli/internal/signature"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
)

// NearExpiryDays is the warning threshold for certificate expiry
const NearExpiryDays = 30

// Credential holds decrypted key material. It lives only for the duration
// of one signing or submission scope and must be released afterwards.
type Credential struct {
	PrivateKey  *rsa.PrivateKey
	Certificate *x509.Certificate
	CACerts     []*x509.Certificate
}

// CertificateInfo describes a validated credential
type CertificateInfo struct {
	Subject      string    `json:"subject"`
	Issuer       string    `json:"issuer"`
	SerialNumber string    `json:"serial_number"`
	NotBefore    time.Time `json:"not_before"`
	NotAfter     time.Time `json:"not_after"`
	DaysToExpiry int       `json:"days_to_expiry"`
	NearExpiry   bool      `json:"near_expiry"`
	ChainLength  int       `json:"chain_length"`
	Root         string    `json:"root,omitempty"`
	Warnings     []string  `json:"warnings,omitempty"`
}

// Load decrypts a PKCS#12 bundle. A wrong password yields a
// CredentialError of kind WRONG_PASSWORD.
func Load(bundle []byte, password string) (*Credential, error) {
	key, cert, caCerts, err := pkcs12.DecodeChain(bundle, password)
	if err != nil {
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, signature.ErrWrongPassword(err)
		}
		return nil, signature.ErrInvalidBundle(err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, signature.ErrInvalidBundle(fmt.Errorf("unsupported private key type %T, expected RSA", key))
	}

	return &Credential{
		PrivateKey:  rsaKey,
		Certificate: cert,
		CACerts:     caCerts,
	}, nil
}

// TLSCertificate returns the credential as a client certificate carrying
// the full chain from the bundle.
func (c *Credential) TLSCertificate() tls.Certificate {
	chain := make([][]byte, 0, 1+len(c.CACerts))
	chain = append(chain, c.Certificate.Raw)
	for _, ca := range c.CACerts {
		chain = append(chain, ca.Raw)
	}
	return tls.Certificate{
		Certificate: chain,
		PrivateKey:  c.PrivateKey,
		Leaf:        c.Certificate,
	}
}

// Release drops references to the key and clears the exported big.Ints
// (exponent, primes, CRT values). Copies kept inside Precomputed by the
// rsa package are not reachable from here. The credential is unusable
// afterwards.
func (c *Credential) Release() {
	if c == nil || c.PrivateKey == nil {
		return
	}
	k := c.PrivateKey
	zero(k.D)
	for _, p := range k.Primes {
		zero(p)
	}
	zero(k.Precomputed.Dp)
	zero(k.Precomputed.Dq)
	zero(k.Precomputed.Qinv)
	c.PrivateKey = nil
}

// Released reports whether Release has been called
func (c *Credential) Released() bool {
	return c == nil || c.PrivateKey == nil
}

func zero(n *big.Int) {
	if n != nil {
		n.SetInt64(0)
	}
}

// RevocationSkipped is the warning left by Offline validation when the
// store would otherwise have checked revocation
const RevocationSkipped = "revocation check skipped: offline validation"

// ValidateOption adjusts Validate
type ValidateOption func(*validateConfig)

type validateConfig struct {
	offline bool
}

// Offline validates without contacting OCSP responders
func Offline() ValidateOption {
	return func(c *validateConfig) {
		c.offline = true
	}
}

// Validate checks the credential at time now: validity window, chain to
// the ICP-Brasil root and, when the store has OCSP enabled and the call is
// not Offline, revocation. Less than NearExpiryDays of validity left is
// reported in the result and is not an error.
func Validate(ctx context.Context, c *Credential, now time.Time, store *trust.TrustStore, opts ...ValidateOption) (*CertificateInfo, error) {
	var cfg validateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	cert := c.Certificate
	subject := cert.Subject.String()

	if now.Before(cert.NotBefore) {
		return nil, signature.ErrCertNotYetValid(subject, cert.NotBefore)
	}
	if now.After(cert.NotAfter) {
		return nil, signature.ErrCertExpired(subject, cert.NotAfter)
	}

	chain, err := store.VerifyChain(cert, c.CACerts, now)
	if err != nil {
		return nil, signature.ErrUntrustedIssuer(cert.Issuer.String(), err)
	}

	info := &CertificateInfo{
		Subject:      subject,
		Issuer:       cert.Issuer.String(),
		SerialNumber: cert.SerialNumber.String(),
		NotBefore:    cert.NotBefore,
		NotAfter:     cert.NotAfter,
		DaysToExpiry: DaysToExpiry(cert, now),
		ChainLength:  len(chain),
		Root:         chain[len(chain)-1].Subject.String(),
	}
	info.NearExpiry = info.DaysToExpiry < NearExpiryDays
	if info.NearExpiry {
		info.Warnings = append(info.Warnings,
			fmt.Sprintf("certificate expires in %d days", info.DaysToExpiry))
	}

	if cfg.offline {
		if store.ChecksRevocation() {
			info.Warnings = append(info.Warnings, RevocationSkipped)
		}
		return info, nil
	}

	if len(chain) >= 2 {
		notRevoked, err := store.CheckRevocation(ctx, cert, chain[1])
		switch {
		case err != nil && store.IsSoftFail():
			info.Warnings = append(info.Warnings, err.Error())
		case err != nil:
			return nil, signature.ErrOCSPUnavailable(err)
		case !notRevoked:
			return nil, signature.ErrCertRevoked(subject)
		}
	}

	return info, nil
}

// DaysToExpiry returns the whole days left before cert expires
func DaysToExpiry(cert *x509.Certificate, now time.Time) int {
	return int(math.Floor(cert.NotAfter.Sub(now).Hours() / 24))
}

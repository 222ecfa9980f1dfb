package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// Password protects bundles produced by PKI.Bundle
const Password = "segredo"

// PKI is a root, intermediate and leaf chain modelled on ICP-Brasil
type PKI struct {
	Root, Intermediate, Leaf          *x509.Certificate
	RootKey, IntermediateKey, LeafKey *rsa.PrivateKey
}

// PKIOption adjusts the generated chain
type PKIOption func(*pkiConfig)

type pkiConfig struct {
	rootOrg   string
	rootCN    string
	notBefore time.Time
	notAfter  time.Time
	ocsp      []string
}

// WithRootName overrides the root's organization and common name
func WithRootName(org, cn string) PKIOption {
	return func(c *pkiConfig) {
		c.rootOrg = org
		c.rootCN = cn
	}
}

// WithLeafValidity sets the leaf's validity window
func WithLeafValidity(notBefore, notAfter time.Time) PKIOption {
	return func(c *pkiConfig) {
		c.notBefore = notBefore
		c.notAfter = notAfter
	}
}

// WithOCSPServer lists an OCSP responder in the leaf certificate
func WithOCSPServer(url string) PKIOption {
	return func(c *pkiConfig) {
		c.ocsp = append(c.ocsp, url)
	}
}

// NewPKI generates a fresh chain
func NewPKI(t testing.TB, opts ...PKIOption) *PKI {
	t.Helper()

	now := time.Now()
	cfg := &pkiConfig{
		rootOrg:   "ICP-Brasil",
		rootCN:    "Autoridade Certificadora Raiz Brasileira v10",
		notBefore: now.Add(-24 * time.Hour),
		notAfter:  now.AddDate(1, 0, 0),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	p := &PKI{
		RootKey:         newKey(t),
		IntermediateKey: newKey(t),
		LeafKey:         newKey(t),
	}

	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{Country: []string{"BR"}, Organization: []string{cfg.rootOrg}, CommonName: cfg.rootCN},
		NotBefore:             now.AddDate(-5, 0, 0),
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	p.Root = sign(t, rootTmpl, rootTmpl, &p.RootKey.PublicKey, p.RootKey)

	interTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(2),
		Subject:               pkix.Name{Country: []string{"BR"}, Organization: []string{"ICP-Brasil"}, CommonName: "AC Teste Intermediaria v5"},
		NotBefore:             now.AddDate(-2, 0, 0),
		NotAfter:              now.AddDate(5, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	p.Intermediate = sign(t, interTmpl, p.Root, &p.IntermediateKey.PublicKey, p.RootKey)

	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject: pkix.Name{
			Country:      []string{"BR"},
			Organization: []string{"ICP-Brasil"},
			CommonName:   "PRESTADORA EXEMPLO LTDA:12345678000195",
		},
		NotBefore:   cfg.notBefore,
		NotAfter:    cfg.notAfter,
		KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
		OCSPServer:  cfg.ocsp,
	}
	p.Leaf = sign(t, leafTmpl, p.Intermediate, &p.LeafKey.PublicKey, p.IntermediateKey)

	return p
}

// Bundle encodes the chain as a PKCS#12 file protected by password
func (p *PKI) Bundle(t testing.TB, password string) []byte {
	t.Helper()
	pfx, err := pkcs12.Modern.Encode(p.LeafKey, p.Leaf, []*x509.Certificate{p.Intermediate, p.Root}, password)
	if err != nil {
		t.Fatalf("encode pkcs12: %v", err)
	}
	return pfx
}

func newKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func sign(t testing.TB, tmpl, parent *x509.Certificate, pub *rsa.PublicKey, signer *rsa.PrivateKey) *x509.Certificate {
	t.Helper()
	der, err := x509.CreateCertificate(rand.Reader, tmpl, parent, pub, signer)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	return cert
}

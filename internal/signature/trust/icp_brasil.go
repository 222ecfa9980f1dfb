package trust

import (
	"bytes"
	"crypto/x509"
	"strings"
)

// Name fragments that identify the ICP-Brasil root authority. A chain is
// accepted by name only when no root certificates were configured.
var icpBrasilIndicators = []string{
	"ICP-BRASIL",
	"AUTORIDADE CERTIFICADORA RAIZ BRASILEIRA",
	"AC RAIZ",
}

// IsICPBrasilRoot reports whether cert's subject names the ICP-Brasil root
func IsICPBrasilRoot(cert *x509.Certificate) bool {
	if cert == nil {
		return false
	}
	name := strings.ToUpper(cert.Subject.String())
	for _, ind := range icpBrasilIndicators {
		if strings.Contains(name, ind) {
			return true
		}
	}
	return false
}

// BuildChain orders candidates into the issuing chain of leaf, starting
// with leaf. Each step requires a matching issuer name and a valid
// signature. The walk stops at a self-signed certificate or when no issuer
// is found among candidates.
func BuildChain(leaf *x509.Certificate, candidates []*x509.Certificate) []*x509.Certificate {
	if leaf == nil {
		return nil
	}
	chain := []*x509.Certificate{leaf}
	used := make(map[*x509.Certificate]bool, len(candidates))

	current := leaf
	for !isSelfSigned(current) {
		next := findIssuer(current, candidates, used)
		if next == nil {
			break
		}
		used[next] = true
		chain = append(chain, next)
		current = next
	}
	return chain
}

func findIssuer(cert *x509.Certificate, candidates []*x509.Certificate, used map[*x509.Certificate]bool) *x509.Certificate {
	for _, c := range candidates {
		if used[c] || c.Equal(cert) {
			continue
		}
		if bytes.Equal(cert.RawIssuer, c.RawSubject) && cert.CheckSignatureFrom(c) == nil {
			return c
		}
	}
	return nil
}

func isSelfSigned(cert *x509.Certificate) bool {
	return bytes.Equal(cert.RawIssuer, cert.RawSubject)
}

package trust

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"

	"github.com/rezonia/nfse-cli/internal/testutil"
)

func TestIsICPBrasilRoot(t *testing.T) {
	tests := []struct {
		name    string
		subject pkix.Name
		want    bool
	}{
		{"organization", pkix.Name{Organization: []string{"ICP-Brasil"}, CommonName: "Autoridade Certificadora Raiz Brasileira v10"}, true},
		{"common name only", pkix.Name{CommonName: "Autoridade Certificadora Raiz Brasileira v5"}, true},
		{"lower case", pkix.Name{Organization: []string{"icp-brasil"}}, true},
		{"foreign", pkix.Name{Organization: []string{"Let's Encrypt"}, CommonName: "ISRG Root X1"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cert := &x509.Certificate{Subject: tt.subject}
			if got := IsICPBrasilRoot(cert); got != tt.want {
				t.Errorf("IsICPBrasilRoot(%s) = %v, want %v", tt.subject, got, tt.want)
			}
		})
	}

	if IsICPBrasilRoot(nil) {
		t.Error("nil certificate must not be a root")
	}
}

func TestBuildChain(t *testing.T) {
	pki := testutil.NewPKI(t)
	stranger := testutil.NewPKI(t)

	chain := BuildChain(pki.Leaf, []*x509.Certificate{stranger.Intermediate, pki.Root, stranger.Root, pki.Intermediate})
	if len(chain) != 3 {
		t.Fatalf("chain length: got %d, want 3", len(chain))
	}
	if !chain[1].Equal(pki.Intermediate) {
		t.Error("same-named intermediate with a different key was picked")
	}
	if !chain[2].Equal(pki.Root) {
		t.Error("root not at the end of the chain")
	}

	if got := BuildChain(pki.Root, nil); len(got) != 1 {
		t.Errorf("self-signed chain length: got %d, want 1", len(got))
	}
	if BuildChain(nil, nil) != nil {
		t.Error("nil leaf should give nil chain")
	}
}

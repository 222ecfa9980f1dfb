package cmd

import (
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rezonia/nfse-cli/internal/emission"
	"github.com/rezonia/nfse-cli/internal/model"
	"github.com/rezonia/nfse-cli/internal/sefin"
	"github.com/rezonia/nfse-cli/internal/signature/trust"
	"github.com/rezonia/nfse-cli/internal/storage"
)

func loadCredentials() (emission.Credentials, error) {
	bundle, err := os.ReadFile(cfg.Cert.BundleFile)
	if err != nil {
		return emission.Credentials{}, fmt.Errorf("read certificate: %w", err)
	}
	password, err := cfg.CertPassword()
	if err != nil {
		return emission.Credentials{}, err
	}
	return emission.Credentials{Bundle: bundle, Password: password}, nil
}

func newTrustStore() (*trust.TrustStore, error) {
	var opts []trust.TrustStoreOption
	if cfg.Cert.TrustRoots != "" {
		opts = append(opts, trust.WithRootsFromFile(cfg.Cert.TrustRoots))
	}
	if cfg.Cert.OCSP {
		opts = append(opts, trust.WithOCSP())
		if cfg.Cert.OCSPSoftFail {
			opts = append(opts, trust.WithSoftFail())
		}
	}

	ts, err := trust.NewTrustStore(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create trust store: %w", err)
	}
	return ts, nil
}

func newClient() *sefin.Client {
	return sefin.NewClient(
		sefin.WithBaseURL(model.Production, cfg.URLs.Production),
		sefin.WithBaseURL(model.Restricted, cfg.URLs.Restricted),
		sefin.WithTimeout(cfg.Timeout),
		sefin.WithLogger(log),
	)
}

func newPipeline(opts ...emission.PipelineOption) (*emission.Pipeline, error) {
	ts, err := newTrustStore()
	if err != nil {
		return nil, err
	}
	base := []emission.PipelineOption{
		emission.WithClient(newClient()),
		emission.WithTrustStore(ts),
		emission.WithLogger(log),
		emission.WithSchema(cfg.SchemaFile),
	}
	return emission.NewPipeline(append(base, opts...)...)
}

func newStore() (*storage.Store, error) {
	store := storage.NewStore(cfg.OutputDir)
	if err := store.EnsureLayout(); err != nil {
		return nil, err
	}
	return store, nil
}

// resolve returns path when it exists, otherwise path inside dir
func resolve(dir, path string) string {
	if path == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil || filepath.IsAbs(path) {
		return path
	}
	candidate := filepath.Join(dir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}

// loadCertificates reads every PEM certificate in path
func loadCertificates(path string) ([]*x509.Certificate, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificates: %w", err)
	}

	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse certificate in %s: %w", path, err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, errors.New("no certificates found in " + path)
	}
	return certs, nil
}

func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// printValidation writes one line per violation and returns err unchanged
func printValidation(err error) error {
	var verrs model.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	if outputFormat == "json" {
		_ = printJSON(map[string]interface{}{"valid": false, "errors": verrs})
		return err
	}
	fmt.Println("✗ Dados inválidos:")
	for _, v := range verrs {
		fmt.Printf("  - %s: %s\n", v.Field, v.Message)
	}
	return err
}

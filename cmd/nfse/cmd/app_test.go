package cmd

import (
	"bytes"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/testutil"
)

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	inDir := filepath.Join(dir, "cliente.json")
	require.NoError(t, os.WriteFile(inDir, []byte("{}"), 0o600))

	assert.Equal(t, inDir, resolve(dir, "cliente.json"))
	assert.Equal(t, inDir, resolve(t.TempDir(), inDir))
	assert.Equal(t, "missing.json", resolve(dir, "missing.json"))
	assert.Equal(t, "", resolve(dir, ""))
}

func TestLoadCertificates(t *testing.T) {
	pki := testutil.NewPKI(t)
	path := filepath.Join(t.TempDir(), "chain.pem")

	var data []byte
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: []byte("skipped")})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: pki.Intermediate.Raw})...)
	data = append(data, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: pki.Root.Raw})...)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	certs, err := loadCertificates(path)
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.True(t, certs[0].Equal(pki.Intermediate))

	certs, err = loadCertificates("")
	require.NoError(t, err)
	assert.Nil(t, certs)

	empty := filepath.Join(t.TempDir(), "empty.pem")
	require.NoError(t, os.WriteFile(empty, []byte("nothing here"), 0o600))
	_, err = loadCertificates(empty)
	assert.Error(t, err)
}

func TestCollectVerifyFiles(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "dps")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	for _, name := range []string{"a.xml", "dps/b.XML", "dps/c.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("<x/>"), 0o600))
	}

	files, err := collectVerifyFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.xml"), filepath.Join(sub, "b.XML")}, files)

	files, err = collectVerifyFiles([]string{filepath.Join(dir, "*.xml")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.xml")}, files)

	_, err = collectVerifyFiles([]string{filepath.Join(dir, "missing.xml")})
	assert.Error(t, err)
}

func TestPrintVerifyTable(t *testing.T) {
	results := []*VerifyResult{{
		File:           "dps.xml",
		Valid:          true,
		DocumentID:     "DPS123",
		SignatureFound: true,
		SignatureValid: true,
		CertChainValid: true,
		Signer:         &SignerOutput{Name: "EMPRESA TESTE LTDA", Document: "12345678000195", Issuer: "AC Teste"},
	}}

	var buf bytes.Buffer
	printVerifyTable(&buf, results, false)
	out := buf.String()

	assert.Contains(t, out, "✓ dps.xml: VÁLIDA")
	assert.Contains(t, out, "Signatário:   EMPRESA TESTE LTDA")
	assert.Contains(t, out, "Documento:    12345678000195")
	assert.Contains(t, out, "Cadeia:       ✓")
	assert.Contains(t, out, "Revogação:    - (não verificada)")
	for _, label := range []string{"Signer:", "Cert Chain:", "Not Revoked:", "skipped"} {
		assert.NotContains(t, out, label)
	}
}

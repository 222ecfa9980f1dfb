package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/config"
	"github.com/rezonia/nfse-cli/internal/model"
)

func TestLoad_Defaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, model.Restricted, c.Env())
	assert.True(t, c.DryRun)
	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, "https://adn.nfse.gov.br", c.BaseURL(model.Production))
	assert.Equal(t, "https://adn.producaorestrita.nfse.gov.br", c.BaseURL(model.Restricted))
	assert.Equal(t, "cert/certificado.pfx", c.Cert.BundleFile)
	assert.Equal(t, 1, c.DPS.Series)
	assert.Equal(t, int64(1), c.DPS.NextNumber)
	assert.Equal(t, "nfse-cli-2.0.0", c.AppVersion)
}

func TestLoad_EnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("NFSE_AMBIENTE=producao\nNFSE_DRY_RUN=false\nNFSE_TIMEOUT=5s\nNFSE_SERIE=7\n"), 0o600))

	for _, k := range []string{"NFSE_AMBIENTE", "NFSE_DRY_RUN", "NFSE_TIMEOUT", "NFSE_SERIE"} {
		k := k
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	c, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, model.Production, c.Env())
	assert.False(t, c.DryRun)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 7, c.DPS.Series)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("NFSE_AMBIENTE", "marte")
	_, err := config.Load("")
	assert.Error(t, err)
}

func TestLoad_InvalidSeries(t *testing.T) {
	t.Setenv("NFSE_SERIE", "0")
	_, err := config.Load("")
	assert.Error(t, err)
}

func TestCertPassword(t *testing.T) {
	dir := t.TempDir()
	secret := filepath.Join(dir, "certificado.secret")
	require.NoError(t, os.WriteFile(secret, []byte("s3nha\r\n"), 0o600))

	c := config.Config{Cert: config.CertConfig{PasswordFile: secret}}
	pw, err := c.CertPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3nha", pw)

	c.Cert.Password = "inline"
	pw, err = c.CertPassword()
	require.NoError(t, err)
	assert.Equal(t, "inline", pw)

	_, err = config.Config{Cert: config.CertConfig{PasswordFile: filepath.Join(dir, "none")}}.CertPassword()
	assert.Error(t, err)
}

func TestAdvanceNumber(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NFSE_AMBIENTE=producao\nNFSE_PROXIMO_NUMERO=41\n"), 0o600))

	require.NoError(t, config.AdvanceNumber(path, 42))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "42", values["NFSE_PROXIMO_NUMERO"])
	assert.Equal(t, "producao", values["NFSE_AMBIENTE"])
}

func TestSet_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, config.Set(path, "NFSE_SERIE", "3"))

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"NFSE_SERIE": "3"}, values)
}

func TestWriteDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	created, err := config.WriteDefaults(path)
	require.NoError(t, err)
	assert.True(t, created)

	values, err := godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "producaorestrita", values["NFSE_AMBIENTE"])
	assert.Equal(t, "1", values["NFSE_PROXIMO_NUMERO"])

	require.NoError(t, config.Set(path, "NFSE_SERIE", "9"))
	created, err = config.WriteDefaults(path)
	require.NoError(t, err)
	assert.False(t, created)

	values, err = godotenv.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "9", values["NFSE_SERIE"])
}

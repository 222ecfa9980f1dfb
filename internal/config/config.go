package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	env "github.com/caarlos0/env/v7"
	"github.com/joho/godotenv"

	"github.com/rezonia/nfse-cli/internal/model"
)

// Config holds the emitter settings read from .env and the environment
type Config struct {
	Environment string        `env:"NFSE_AMBIENTE" envDefault:"producaorestrita"`
	DryRun      bool          `env:"NFSE_DRY_RUN" envDefault:"true"`
	Timeout     time.Duration `env:"NFSE_TIMEOUT" envDefault:"30s"`
	AppVersion  string        `env:"NFSE_VERSAO_APLICATIVO" envDefault:"nfse-cli-2.0.0"`

	URLs URLConfig
	Cert CertConfig
	DPS  DPSConfig

	ProviderFile string `env:"NFSE_PRESTADOR" envDefault:"prestadores/prestador.json"`
	CustomersDir string `env:"NFSE_TOMADORES_DIR" envDefault:"tomadores"`
	ServicesDir  string `env:"NFSE_SERVICOS_DIR" envDefault:"servicos"`
	OutputDir    string `env:"NFSE_SAIDA" envDefault:"."`
	SchemaFile   string `env:"NFSE_XSD"`

	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat  string `env:"LOG_FORMAT" envDefault:"console"`
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
}

// URLConfig holds the SEFIN endpoint for each environment
type URLConfig struct {
	Production string `env:"NFSE_URL_PRODUCAO" envDefault:"https://adn.nfse.gov.br"`
	Restricted string `env:"NFSE_URL_PRODUCAO_RESTRITA" envDefault:"https://adn.producaorestrita.nfse.gov.br"`
}

// CertConfig locates the A1 certificate and the trust material
type CertConfig struct {
	BundleFile    string `env:"NFSE_CERT_PFX" envDefault:"cert/certificado.pfx"`
	PasswordFile  string `env:"NFSE_CERT_SENHA" envDefault:"cert/certificado.secret"`
	Password      string `env:"NFSE_CERT_SENHA_VALOR"`
	TrustRoots    string `env:"NFSE_TRUST_ROOTS"`
	OCSP          bool   `env:"NFSE_OCSP" envDefault:"false"`
	OCSPSoftFail  bool   `env:"NFSE_OCSP_SOFT_FAIL" envDefault:"true"`
	Intermediates string `env:"NFSE_INTERMEDIARIAS"`
}

// DPSConfig holds the series and numbering of emitted DPS
type DPSConfig struct {
	Series     int   `env:"NFSE_SERIE" envDefault:"1"`
	NextNumber int64 `env:"NFSE_PROXIMO_NUMERO" envDefault:"1"`
}

// Load reads an optional .env file and then the process environment.
// A missing envPath is not an error.
func Load(envPath string) (Config, error) {
	var c Config

	if envPath != "" {
		err := godotenv.Load(envPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	if err := env.Parse(&c); err != nil {
		return Config{}, err
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks values env parsing cannot
func (c Config) Validate() error {
	if _, err := model.ParseEnvironment(c.Environment); err != nil {
		return fmt.Errorf("NFSE_AMBIENTE: %w", err)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("NFSE_TIMEOUT must be positive, got %s", c.Timeout)
	}
	if c.DPS.Series < 1 || c.DPS.Series > 99999 {
		return fmt.Errorf("NFSE_SERIE must be between 1 and 99999, got %d", c.DPS.Series)
	}
	if c.DPS.NextNumber < 1 {
		return fmt.Errorf("NFSE_PROXIMO_NUMERO must be positive, got %d", c.DPS.NextNumber)
	}
	return nil
}

// Env returns the configured environment
func (c Config) Env() model.Environment {
	e, err := model.ParseEnvironment(c.Environment)
	if err != nil {
		return model.Restricted
	}
	return e
}

// BaseURL returns the endpoint configured for e
func (c Config) BaseURL(e model.Environment) string {
	if e == model.Production {
		return c.URLs.Production
	}
	return c.URLs.Restricted
}

// CertPassword returns the inline password when set, otherwise the first
// line of the password file.
func (c Config) CertPassword() (string, error) {
	if c.Cert.Password != "" {
		return c.Cert.Password, nil
	}
	data, err := os.ReadFile(c.Cert.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("read certificate password: %w", err)
	}
	line, _, _ := strings.Cut(string(data), "\n")
	return strings.TrimRight(line, "\r"), nil
}

// Variables written by WriteDefaults
var defaults = map[string]string{
	"NFSE_AMBIENTE":       "producaorestrita",
	"NFSE_DRY_RUN":        "true",
	"NFSE_CERT_PFX":       "cert/certificado.pfx",
	"NFSE_CERT_SENHA":     "cert/certificado.secret",
	"NFSE_SERIE":          "1",
	"NFSE_PROXIMO_NUMERO": "1",
	"NFSE_PRESTADOR":      "prestadores/prestador.json",
}

// Set stores key=value in the env file at path, keeping its other
// entries. The file is created when missing; comments are not preserved.
func Set(path, key, value string) error {
	values, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		values = map[string]string{}
	}
	values[key] = value
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AdvanceNumber records next as the DPS number for the following emission
func AdvanceNumber(path string, next int64) error {
	return Set(path, "NFSE_PROXIMO_NUMERO", strconv.FormatInt(next, 10))
}

// WriteDefaults creates an env file holding the default configuration.
// An existing file is left untouched and reported as not created.
func WriteDefaults(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}
	if err := godotenv.Write(defaults, path); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

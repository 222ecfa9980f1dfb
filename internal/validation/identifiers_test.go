package validation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/nfse-cli/internal/validation"
)

func TestIsCNPJ(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "12345678000195", true},
		{"valid other", "11222333000181", true},
		{"wrong second digit", "12345678000190", false},
		{"wrong digits", "12345678000191", false},
		{"too short", "1234567800019", false},
		{"too long", "123456780001950", false},
		{"formatted", "12.345.678/0001-95", false},
		{"letters", "1234567800019A", false},
		{"all zeros", "00000000000000", false},
		{"all ones", "11111111111111", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validation.IsCNPJ(tt.input))
		})
	}
}

func TestIsCPF(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "52998224725", true},
		{"valid other", "11144477735", true},
		{"wrong digit", "52998224726", false},
		{"too short", "5299822472", false},
		{"formatted", "529.982.247-25", false},
		{"repeated", "22222222222", false},
		{"cnpj length", "12345678000195", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validation.IsCPF(tt.input))
		})
	}
}

func TestCodeFormats(t *testing.T) {
	assert.True(t, validation.IsMunicipalityCode("3550308"))
	assert.False(t, validation.IsMunicipalityCode("355030"))
	assert.False(t, validation.IsMunicipalityCode("355030X"))

	assert.True(t, validation.IsTaxClassificationCode("010101"))
	assert.False(t, validation.IsTaxClassificationCode("01.01.01"))
	assert.False(t, validation.IsTaxClassificationCode("10101"))

	assert.True(t, validation.IsMunicipalTaxCode("001"))
	assert.False(t, validation.IsMunicipalTaxCode("1"))

	assert.True(t, validation.IsPostalCode("01310100"))
	assert.False(t, validation.IsPostalCode("01310-100"))

	assert.True(t, validation.IsAccessKey("35503081234567800019500000000000000000000000000001"))
	assert.False(t, validation.IsAccessKey("3550308123456780001950000000000000000000000000000"))
}

func FuzzIdentifiers(f *testing.F) {
	f.Add("12345678000195")
	f.Add("52998224725")
	f.Add("")
	f.Add("abc")
	f.Add("1234567800019X")

	f.Fuzz(func(t *testing.T, s string) {
		cnpj := validation.IsCNPJ(s)
		cpf := validation.IsCPF(s)

		if cnpj && len(s) != 14 {
			t.Errorf("IsCNPJ(%q) accepted length %d", s, len(s))
		}
		if cpf && len(s) != 11 {
			t.Errorf("IsCPF(%q) accepted length %d", s, len(s))
		}
		if cnpj || cpf {
			for _, r := range s {
				if r < '0' || r > '9' {
					t.Errorf("accepted non-digit input %q", s)
				}
			}
		}
	})
}

package schema_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/schema"
)

const dpsSchema = `<?xml version="1.0" encoding="UTF-8"?>
<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema"
  targetNamespace="http://www.sped.fazenda.gov.br/nfse"
  xmlns="http://www.sped.fazenda.gov.br/nfse" elementFormDefault="qualified">
  <xs:element name="DPS">
    <xs:complexType>
      <xs:sequence>
        <xs:element name="infDPS" type="xs:string"/>
      </xs:sequence>
      <xs:attribute name="versao" type="xs:string" use="required"/>
    </xs:complexType>
  </xs:element>
</xs:schema>`

func writeSchema(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "DPS_v1.01.xsd")
	require.NoError(t, os.WriteFile(path, []byte(dpsSchema), 0o644))
	return path
}

func TestValidate_MissingSchema(t *testing.T) {
	err := schema.Validate([]byte("<DPS/>"), filepath.Join(t.TempDir(), "none.xsd"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, schema.ErrUnavailable))
}

func TestValidate(t *testing.T) {
	xsd := writeSchema(t)
	valid := []byte(`<DPS xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.01"><infDPS>x</infDPS></DPS>`)
	invalid := []byte(`<DPS xmlns="http://www.sped.fazenda.gov.br/nfse"><outro/></DPS>`)

	if !schema.Available {
		assert.ErrorIs(t, schema.Validate(valid, xsd), schema.ErrUnavailable)
		return
	}

	assert.NoError(t, schema.Validate(valid, xsd))

	err := schema.Validate(invalid, xsd)
	var serr *schema.Error
	require.True(t, errors.As(err, &serr))
	assert.NotEmpty(t, serr.Violations)
}

func TestError_Message(t *testing.T) {
	err := &schema.Error{Violations: []schema.Violation{{Line: 3, Message: "bad"}, {Line: 4, Message: "worse"}}}
	assert.Equal(t, "schema validation failed (line 3): bad and 1 more", err.Error())
	assert.Equal(t, "schema validation failed", (&schema.Error{}).Error())
}

package xml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		wantRef    string
		wantSigned string
		wantErr    bool
	}{
		{
			name:       "sibling signature",
			data:       `<DPS xmlns="urn:x"><infDPS Id="A1"><v>1</v></infDPS><Signature xmlns="http://www.w3.org/2000/09/xmldsig#"><SignedInfo><Reference URI="#A1"/></SignedInfo></Signature></DPS>`,
			wantRef:    "A1",
			wantSigned: "infDPS",
		},
		{
			name:       "prefixed signature",
			data:       `<DPS><infDPS Id="B2"/><ds:Signature xmlns:ds="http://www.w3.org/2000/09/xmldsig#"><ds:SignedInfo><ds:Reference URI="#B2"/></ds:SignedInfo></ds:Signature></DPS>`,
			wantRef:    "B2",
			wantSigned: "infDPS",
		},
		{
			name:       "nested in NFSe",
			data:       `<NFSe><infNFSe Id="NFS1"><DPS><infDPS Id="C3"/><Signature><SignedInfo><Reference URI="#C3"/></SignedInfo></Signature></DPS></infNFSe></NFSe>`,
			wantRef:    "C3",
			wantSigned: "infDPS",
		},
		{
			name:       "empty URI signs parent",
			data:       `<Doc><Signature><SignedInfo><Reference URI=""/></SignedInfo></Signature></Doc>`,
			wantSigned: "Doc",
		},
		{name: "no signature", data: `<DPS><infDPS Id="X"/></DPS>`, wantErr: true},
		{name: "dangling reference", data: `<DPS><Signature><SignedInfo><Reference URI="#missing"/></SignedInfo></Signature></DPS>`, wantErr: true},
		{name: "not xml", data: `{"json": true}`, wantErr: true},
		{name: "empty", data: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := Extract([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRef, ex.ReferenceID)
			assert.Equal(t, tt.wantSigned, ex.Signed.Tag)
			assert.Equal(t, "Signature", ex.Signature.Tag)
		})
	}
}

func TestExtractCertificate_Missing(t *testing.T) {
	ex, err := Extract([]byte(`<DPS><infDPS Id="A"/><Signature><SignedInfo><Reference URI="#A"/></SignedInfo></Signature></DPS>`))
	require.NoError(t, err)

	_, err = ExtractCertificate(ex.Signature)
	assert.Error(t, err)
}

func TestExtractCertificate_Garbage(t *testing.T) {
	ex, err := Extract([]byte(`<DPS><infDPS Id="A"/><Signature><SignedInfo><Reference URI="#A"/></SignedInfo><KeyInfo><X509Data><X509Certificate>bm90IGEgY2VydA==</X509Certificate></X509Data></KeyInfo></Signature></DPS>`))
	require.NoError(t, err)

	_, err = ExtractCertificate(ex.Signature)
	assert.Error(t, err)
}

package dps_test

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/testutil"
)

const accessKey = "35503081234567800019500000000000000000000000000001"

func issuedNFSe(t *testing.T) []byte {
	t.Helper()

	built, err := dps.Build(testutil.Request())
	require.NoError(t, err)

	nfse := etree.NewDocument()
	root := nfse.CreateElement("NFSe")
	root.CreateAttr("xmlns", dps.Namespace)
	inf := root.CreateElement("infNFSe")
	inf.CreateAttr("Id", "NFS"+accessKey)
	inf.CreateElement("nNFSe").SetText("7")
	inf.AddChild(built.Root().Copy())

	data, err := nfse.WriteToBytes()
	require.NoError(t, err)
	return data
}

func TestParseIssued(t *testing.T) {
	issued, err := dps.ParseIssued(issuedNFSe(t))
	require.NoError(t, err)

	want := testutil.Request()
	assert.Equal(t, accessKey, issued.AccessKey)
	assert.Equal(t, "7", issued.Number)
	assert.Equal(t, "2025-03-15T10:30:00-03:00", issued.IssuedAt)
	assert.True(t, issued.Amount.Equal(want.Amount))

	assert.Equal(t, want.Provider.CNPJ, issued.Provider.CNPJ)
	assert.Equal(t, want.Provider.Name, issued.Provider.Name)
	assert.Equal(t, want.Provider.CMun, issued.Provider.CMun)
	assert.Equal(t, want.Provider.Regime, issued.Provider.Regime)

	assert.Equal(t, want.Customer.CPF, issued.Customer.CPF)
	require.NotNil(t, issued.Customer.Address)
	assert.Equal(t, *want.Customer.Address, *issued.Customer.Address)

	assert.Equal(t, want.Service.CTribNac, issued.Service.CTribNac)
	assert.Equal(t, want.Service.Description, issued.Service.Description)
	assert.Equal(t, want.Service.CLocPrestacao, issued.Service.CLocPrestacao)
}

func TestParseIssued_Errors(t *testing.T) {
	_, err := dps.ParseIssued([]byte("not xml"))
	assert.Error(t, err)

	_, err = dps.ParseIssued([]byte("<NFSe><infNFSe/></NFSe>"))
	assert.Error(t, err)
}

package danfse_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/nfse-cli/internal/danfse"
)

func TestInspect_NotPDF(t *testing.T) {
	for _, data := range [][]byte{nil, []byte("<html/>"), []byte(`{"mensagem":"x"}`)} {
		_, err := danfse.Inspect(data)
		assert.True(t, errors.Is(err, danfse.ErrNotPDF))
	}
}

func TestInspect_Truncated(t *testing.T) {
	info, err := danfse.Inspect([]byte("%PDF-1.7\n1 0 obj\n<<"))
	assert.Error(t, err)
	assert.Nil(t, info)
}

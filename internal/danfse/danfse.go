// Package danfse inspects the rendered NFS-e copy (DANFSe) returned by the
// national service.
package danfse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrNotPDF is returned when the payload lacks the PDF header
var ErrNotPDF = errors.New("payload is not a PDF document")

func init() {
	api.DisableConfigDir()
}

// Info summarizes a DANFSe document
type Info struct {
	Pages int `json:"pages"`
	Size  int `json:"size"`
}

// Inspect parses and validates data as a PDF
func Inspect(data []byte) (*Info, error) {
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return nil, ErrNotPDF
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate PDF: %w", err)
	}

	return &Info{Pages: ctx.PageCount, Size: len(data)}, nil
}

//go:build xsd

package schema

import (
	"errors"
	"fmt"
	"strings"

	xsdvalidate "github.com/terminalstatic/go-xsd-validate"
)

// Available reports whether XSD validation is compiled in
const Available = true

// Validate checks data against the schema at xsdPath
func Validate(data []byte, xsdPath string) error {
	if err := checkSchema(xsdPath); err != nil {
		return err
	}

	xsdvalidate.Init()
	defer xsdvalidate.Cleanup()

	handler, err := xsdvalidate.NewXsdHandlerUrl(xsdPath, xsdvalidate.ParsErrDefault)
	if err != nil {
		return fmt.Errorf("load XSD %q: %w", xsdPath, err)
	}
	defer handler.Free()

	err = handler.ValidateMem(data, xsdvalidate.ValidErrDefault)
	if err == nil {
		return nil
	}

	var verr xsdvalidate.ValidationError
	if errors.As(err, &verr) {
		out := &Error{}
		for _, e := range verr.Errors {
			out.Violations = append(out.Violations, Violation{Line: e.Line, Message: strings.TrimSpace(e.Message)})
		}
		return out
	}
	return fmt.Errorf("XSD validation: %w", err)
}

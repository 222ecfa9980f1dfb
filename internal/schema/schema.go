// Package schema validates DPS documents against the national XSD. The
// libxml2-backed validator is compiled in with the "xsd" build tag; other
// builds report ErrUnavailable.
package schema

import (
	"errors"
	"fmt"
	"os"
)

// ErrUnavailable is returned when the binary was built without XSD support
var ErrUnavailable = errors.New("XSD validation not compiled in (build with -tags xsd)")

// Violation is one schema error
type Violation struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Error reports every violation found in a document
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return "schema validation failed"
	}
	first := e.Violations[0]
	msg := fmt.Sprintf("schema validation failed (line %d): %s", first.Line, first.Message)
	if n := len(e.Violations) - 1; n > 0 {
		msg += fmt.Sprintf(" and %d more", n)
	}
	return msg
}

// ValidateFile validates the XML at path against the schema at xsdPath
func ValidateFile(path, xsdPath string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return Validate(data, xsdPath)
}

func checkSchema(xsdPath string) error {
	if _, err := os.Stat(xsdPath); err != nil {
		return fmt.Errorf("XSD not found at %q: %w", xsdPath, err)
	}
	return nil
}

//go:build !xsd

package schema

// Available reports whether XSD validation is compiled in
const Available = false

// Validate checks that the schema exists and returns ErrUnavailable
func Validate(data []byte, xsdPath string) error {
	if err := checkSchema(xsdPath); err != nil {
		return err
	}
	return ErrUnavailable
}

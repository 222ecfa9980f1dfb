package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Keys a service template must never carry
var perSubmissionKeys = []string{"vServ", "dhEmi"}

// LoadProvider decodes a provider document
func LoadProvider(r io.Reader) (*Provider, error) {
	var p Provider
	if err := decodeStrict("prestador", r, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LoadCustomer decodes a customer document
func LoadCustomer(r io.Reader) (*Customer, error) {
	var c Customer
	if err := decodeStrict("tomador", r, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadService decodes a service template. Templates carrying the amount
// or the issuance timestamp are rejected.
func LoadService(r io.Reader) (*Service, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, NewParseError("servico", "", "read failed", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, NewParseError("servico", "", "invalid JSON", err)
	}
	for _, k := range perSubmissionKeys {
		if _, ok := keys[k]; ok {
			return nil, NewValidationError(k, nil, RuleForbidden,
				"must not be part of the service template; it is supplied per emission")
		}
	}

	var s Service
	if err := decodeStrict("servico", bytes.NewReader(data), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadProviderFile reads a provider document from disk
func LoadProviderFile(path string) (*Provider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open provider file: %w", err)
	}
	defer f.Close()
	return LoadProvider(f)
}

// LoadCustomerFile reads a customer document from disk
func LoadCustomerFile(path string) (*Customer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open customer file: %w", err)
	}
	defer f.Close()
	return LoadCustomer(f)
}

// LoadServiceFile reads a service template from disk
func LoadServiceFile(path string) (*Service, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open service file: %w", err)
	}
	defer f.Close()
	return LoadService(f)
}

func decodeStrict(document string, r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewParseError(document, "", "invalid document", err)
	}
	return nil
}

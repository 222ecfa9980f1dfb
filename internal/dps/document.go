// Package dps builds the DPS (Declaração de Prestação de Serviço) XML tree
// and reads issued NFS-e documents back into entities.
package dps

import (
	"fmt"

	"github.com/beevik/etree"
)

// Schema constants for DPS layout 1.01
const (
	Namespace     = "http://www.sped.fazenda.gov.br/nfse"
	SchemaVersion = "1.01"
	TagDPS        = "DPS"
	TagInfDPS     = "infDPS"
	TagSignature  = "Signature"
	IDAttr        = "Id"
)

// Document is a built DPS. It is written once by Build, gains a Signature
// when signed and is then handed to the caller.
type Document struct {
	doc *etree.Document
	id  string
}

// ID returns the infDPS Id attribute
func (d *Document) ID() string {
	return d.id
}

// Root returns the DPS element
func (d *Document) Root() *etree.Element {
	return d.doc.Root()
}

// InfDPS returns the signed subtree
func (d *Document) InfDPS() *etree.Element {
	return d.doc.Root().SelectElement(TagInfDPS)
}

// Signed reports whether a Signature block is present
func (d *Document) Signed() bool {
	return d.doc.Root().SelectElement(TagSignature) != nil
}

// Bytes serializes the document with its XML declaration and no
// indentation, which is the form that gets signed and transmitted.
func (d *Document) Bytes() ([]byte, error) {
	return d.doc.WriteToBytes()
}

// Indented serializes the document for humans
func (d *Document) Indented() ([]byte, error) {
	c := d.doc.Copy()
	c.Indent(2)
	return c.WriteToBytes()
}

// Parse reads a serialized DPS
func Parse(data []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("parse DPS: %w", err)
	}
	root := doc.Root()
	if root == nil || root.Tag != TagDPS {
		return nil, fmt.Errorf("parse DPS: root element is not %s", TagDPS)
	}
	inf := root.SelectElement(TagInfDPS)
	if inf == nil {
		return nil, fmt.Errorf("parse DPS: %s element not found", TagInfDPS)
	}
	return &Document{doc: doc, id: inf.SelectAttrValue(IDAttr, "")}, nil
}

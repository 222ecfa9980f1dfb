package xml

import (
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// XML namespaces
const (
	XMLDSigNamespace = "http://www.w3.org/2000/09/xmldsig#"
)

// Extraction holds a Signature and the element its Reference points to
type Extraction struct {
	Document *etree.Document
	// Signature is the <Signature> element
	Signature *etree.Element
	// Signed is the element whose Id matches the Reference URI
	Signed *etree.Element
	// ReferenceID is the Reference URI without the leading '#'
	ReferenceID string
}

// Extract parses data and locates the signature and the signed element
func Extract(data []byte) (*Extraction, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty XML document")
	}

	sig := findSignatureElement(root)
	if sig == nil {
		return nil, fmt.Errorf("no Signature element found in document")
	}

	out := &Extraction{Document: doc, Signature: sig}

	if ref := findLocal(sig, "SignedInfo", "Reference"); ref != nil {
		out.ReferenceID = strings.TrimPrefix(ref.SelectAttrValue("URI", ""), "#")
	}
	if out.ReferenceID == "" {
		out.Signed = sig.Parent()
	} else {
		out.Signed = findByID(root, out.ReferenceID)
	}
	if out.Signed == nil {
		return nil, fmt.Errorf("signed element #%s not found", out.ReferenceID)
	}
	return out, nil
}

// findSignatureElement looks for the Signature where DPS and NFS-e put it,
// then anywhere in the tree
func findSignatureElement(root *etree.Element) *etree.Element {
	for _, path := range []string{"Signature", "ds:Signature", "infNFSe/DPS/Signature"} {
		if elem := root.FindElement(path); elem != nil {
			return elem
		}
	}
	return findElementRecursive(root, "Signature")
}

func findElementRecursive(elem *etree.Element, localName string) *etree.Element {
	if elem.Tag == localName {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, localName); found != nil {
			return found
		}
	}
	return nil
}

// findLocal walks a path of local names, ignoring namespace prefixes
func findLocal(elem *etree.Element, names ...string) *etree.Element {
	cur := elem
	for _, name := range names {
		var next *etree.Element
		for _, c := range cur.ChildElements() {
			if c.Tag == name {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

func findByID(elem *etree.Element, id string) *etree.Element {
	if elem.SelectAttrValue("Id", "") == id {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// ExtractCertificate decodes the signer certificate from KeyInfo
func ExtractCertificate(sig *etree.Element) (*x509.Certificate, error) {
	elem := findLocal(sig, "KeyInfo", "X509Data", "X509Certificate")
	if elem == nil || strings.TrimSpace(elem.Text()) == "" {
		return nil, fmt.Errorf("no X509Certificate found in Signature")
	}

	der, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(elem.Text()), ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode certificate: %w", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}
	return cert, nil
}

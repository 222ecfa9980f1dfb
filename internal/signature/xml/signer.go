package xml

import (
	"crypto/tls"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/rezonia/nfse-cli/internal/dps"
	"github.com/rezonia/nfse-cli/internal/signature"
	"github.com/rezonia/nfse-cli/internal/signature/credential"
)

// Sign adds an enveloped XMLDSig signature over infDPS to doc. The
// Signature element is appended to the DPS root as a sibling of infDPS and
// uses no namespace prefix, which the national service requires.
func Sign(doc *dps.Document, cred *credential.Credential) error {
	if cred.Released() {
		return signature.ErrSigningFailed(fmt.Errorf("credential has been released"))
	}
	if doc.Signed() {
		return signature.ErrSigningFailed(fmt.Errorf("document %s is already signed", doc.ID()))
	}

	inf := doc.InfDPS()
	if inf == nil {
		return signature.ErrSigningFailed(fmt.Errorf("%s element not found", dps.TagInfDPS))
	}

	ctx, err := newSigningContext(cred)
	if err != nil {
		return signature.ErrSigningFailed(err)
	}

	sig, err := ctx.ConstructSignature(detached(inf, doc.Root()), true)
	if err != nil {
		return signature.ErrSigningFailed(err)
	}

	doc.Root().AddChild(sig)
	return nil
}

func newSigningContext(cred *credential.Credential) (*dsig.SigningContext, error) {
	ks := dsig.TLSCertKeyStore(tls.Certificate{
		Certificate: [][]byte{cred.Certificate.Raw},
		PrivateKey:  cred.PrivateKey,
	})

	ctx := dsig.NewDefaultSigningContext(ks)
	ctx.Prefix = ""
	ctx.IdAttribute = dps.IDAttr
	ctx.Canonicalizer = dsig.MakeC14N10RecCanonicalizer()
	if err := ctx.SetSignatureMethod(dsig.RSASHA256SignatureMethod); err != nil {
		return nil, err
	}
	return ctx, nil
}

// detached copies el out of its tree, carrying the default namespace it
// inherits from root so canonicalization sees the same namespace context.
func detached(el, root *etree.Element) *etree.Element {
	c := el.Copy()
	if c.SelectAttr("xmlns") == nil {
		if ns := root.SelectAttrValue("xmlns", ""); ns != "" {
			c.CreateAttr("xmlns", ns)
		}
	}
	return c
}

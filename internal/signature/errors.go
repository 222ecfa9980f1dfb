package signature

import (
	"fmt"
	"time"
)

// Error codes for signing, verification and credential handling
const (
	ErrCodeNoSignature      = "NO_SIGNATURE"
	ErrCodeInvalidSignature = "INVALID_SIGNATURE"
	ErrCodeSigningFailed    = "SIGNING_FAILED"
	ErrCodeWrongPassword    = "WRONG_PASSWORD"
	ErrCodeInvalidBundle    = "INVALID_BUNDLE"
	ErrCodeCertExpired      = "CERT_EXPIRED"
	ErrCodeCertNotYetValid  = "CERT_NOT_YET_VALID"
	ErrCodeCertRevoked      = "CERT_REVOKED"
	ErrCodeUntrustedIssuer  = "UNTRUSTED_ISSUER"
	ErrCodeOCSPUnavailable  = "OCSP_UNAVAILABLE"
)

// SignatureError represents signing and verification errors
type SignatureError struct {
	Code    string
	Field   string
	Message string
	Cause   error
}

func (e *SignatureError) Error() string {
	return format(e.Code, e.Field, e.Message, e.Cause)
}

func (e *SignatureError) Unwrap() error {
	return e.Cause
}

// NewSignatureError creates a new signature error
func NewSignatureError(code, field, message string, cause error) *SignatureError {
	return &SignatureError{
		Code:    code,
		Field:   field,
		Message: message,
		Cause:   cause,
	}
}

// CredentialError reports a certificate bundle that cannot be used for
// signing or authentication. Kind holds one of the ErrCode constants.
type CredentialError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *CredentialError) Error() string {
	return format(e.Kind, "credential", e.Message, e.Cause)
}

func (e *CredentialError) Unwrap() error {
	return e.Cause
}

// Is matches another CredentialError of the same kind, so callers can
// write errors.Is(err, signature.ErrWrongPassword(nil)).
func (e *CredentialError) Is(target error) bool {
	t, ok := target.(*CredentialError)
	return ok && t.Kind == e.Kind
}

func format(code, field, message string, cause error) string {
	if field != "" && cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", code, field, message, cause)
	}
	if field != "" {
		return fmt.Sprintf("[%s] %s: %s", code, field, message)
	}
	if cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", code, message, cause)
	}
	return fmt.Sprintf("[%s] %s", code, message)
}

// Common error constructors

// ErrNoSignature returns error when no signature found in document
func ErrNoSignature() *SignatureError {
	return NewSignatureError(ErrCodeNoSignature, "", "no signature found in document", nil)
}

// ErrInvalidSignature returns error when signature validation fails
func ErrInvalidSignature(cause error) *SignatureError {
	return NewSignatureError(ErrCodeInvalidSignature, "signature", "signature validation failed", cause)
}

// ErrSigningFailed returns error when a signature cannot be produced
func ErrSigningFailed(cause error) *SignatureError {
	return NewSignatureError(ErrCodeSigningFailed, "signature", "could not sign document", cause)
}

// ErrWrongPassword returns error when the bundle password does not match
func ErrWrongPassword(cause error) *CredentialError {
	return &CredentialError{Kind: ErrCodeWrongPassword, Message: "incorrect certificate password", Cause: cause}
}

// ErrInvalidBundle returns error when the bundle cannot be decoded
func ErrInvalidBundle(cause error) *CredentialError {
	return &CredentialError{Kind: ErrCodeInvalidBundle, Message: "invalid PKCS#12 bundle", Cause: cause}
}

// ErrCertExpired returns error when certificate has expired
func ErrCertExpired(subject string, notAfter time.Time) *CredentialError {
	return &CredentialError{
		Kind:    ErrCodeCertExpired,
		Message: fmt.Sprintf("certificate %s expired on %s", subject, notAfter.Format("2006-01-02")),
	}
}

// ErrCertNotYetValid returns error when certificate is not yet valid
func ErrCertNotYetValid(subject string, notBefore time.Time) *CredentialError {
	return &CredentialError{
		Kind:    ErrCodeCertNotYetValid,
		Message: fmt.Sprintf("certificate %s is only valid from %s", subject, notBefore.Format("2006-01-02")),
	}
}

// ErrCertRevoked returns error when certificate has been revoked
func ErrCertRevoked(subject string) *CredentialError {
	return &CredentialError{Kind: ErrCodeCertRevoked, Message: fmt.Sprintf("certificate revoked: %s", subject)}
}

// ErrUntrustedIssuer returns error when the chain does not end at the
// ICP-Brasil root
func ErrUntrustedIssuer(issuer string, cause error) *CredentialError {
	return &CredentialError{
		Kind:    ErrCodeUntrustedIssuer,
		Message: fmt.Sprintf("issuer is not part of ICP-Brasil: %s", issuer),
		Cause:   cause,
	}
}

// ErrOCSPUnavailable returns error when the revocation status cannot be
// determined and soft-fail is off
func ErrOCSPUnavailable(cause error) *CredentialError {
	return &CredentialError{Kind: ErrCodeOCSPUnavailable, Message: "OCSP check unavailable", Cause: cause}
}

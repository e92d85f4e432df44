package networking

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// ErrorKind is a coarse classification of transport failures, recorded into
// the run-wide error list so failed URLs can be triaged later.
type ErrorKind string

const (
	ErrKindTLS              ErrorKind = "tls"
	ErrKindConnection       ErrorKind = "connection"
	ErrKindTimeout          ErrorKind = "timeout"
	ErrKindTooManyRedirects ErrorKind = "too_many_redirects"
	ErrKindMalformed        ErrorKind = "malformed_response"
	ErrKindCanceled         ErrorKind = "canceled"
	ErrKindRequest          ErrorKind = "request"
)

// TransportError wraps a failed HTTP exchange. It is recoverable per URL:
// the caller records it and moves on to the next frontier entry.
type TransportError struct {
	Kind ErrorKind
	URL  string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func newTransportError(url string, err error) *TransportError {
	return &TransportError{Kind: ClassifyError(err), URL: url, Err: err}
}

// KindOf extracts the transport error kind from an error chain, or
// ErrKindRequest when the chain holds no TransportError.
func KindOf(err error) ErrorKind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ErrKindRequest
}

// ClassifyError maps an error from the HTTP client onto an ErrorKind.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrKindRequest
	}

	if errors.Is(err, context.Canceled) {
		return ErrKindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrKindTimeout
	}

	var recordErr tls.RecordHeaderError
	var verifyErr *tls.CertificateVerificationError
	var unknownAuthErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certErr x509.CertificateInvalidError
	if errors.As(err, &recordErr) || errors.As(err, &verifyErr) ||
		errors.As(err, &unknownAuthErr) || errors.As(err, &hostnameErr) || errors.As(err, &certErr) {
		return ErrKindTLS
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "stopped after"):
		// net/http phrases the redirect limit as "stopped after N redirects".
		return ErrKindTooManyRedirects
	case strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:"):
		return ErrKindTLS
	case strings.Contains(msg, "malformed"):
		return ErrKindMalformed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrKindConnection
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrKindConnection
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrKindConnection
	}

	return ErrKindRequest
}

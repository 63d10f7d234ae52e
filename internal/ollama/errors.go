package ollama

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
)

// Kind identifies one member of the closed error taxonomy surfaced to callers.
type Kind int

const (
	KindInvalidResponse Kind = iota
	KindHTTP
	KindServer
	KindConnectionRefused
	KindConnectionTimeout
	KindNetworkUnavailable
	KindModelNotFound
	KindUpstream
)

// Error is the domain error surfaced for every transport or protocol failure.
// Code carries the HTTP status (or raw errno for KindHTTP transport failures);
// Message carries the server-provided error string for KindUpstream.
type Error struct {
	Kind    Kind
	Code    int
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidResponse:
		return "invalid response from server"
	case KindHTTP:
		return fmt.Sprintf("http error (code %d)", e.Code)
	case KindServer:
		return fmt.Sprintf("server error (status %d)", e.Code)
	case KindConnectionRefused:
		return "cannot connect to server"
	case KindConnectionTimeout:
		return "connection timed out"
	case KindNetworkUnavailable:
		return "network unavailable"
	case KindModelNotFound:
		return "model not found"
	case KindUpstream:
		return "server reported an error: " + e.Message
	}
	return "unknown error"
}

// Hint returns an actionable recovery hint for the kinds that have one,
// and "" for the rest.
func (e *Error) Hint() string {
	switch e.Kind {
	case KindConnectionRefused:
		return "make sure the Ollama server is running and reachable"
	case KindConnectionTimeout:
		return "check the server address and try again; the server may be overloaded"
	case KindModelNotFound:
		return "pull the selected model on the server before translating"
	case KindUpstream:
		return "check the server logs for details"
	}
	return ""
}

// Classify maps a transport-level failure to a domain Error. It is a pure
// function of the error's kind; first match wins. Context cancellation is not
// classified here, callers propagate it as-is.
func Classify(err error) *Error {
	var de *Error
	if errors.As(err, &de) {
		return de
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return &Error{Kind: KindConnectionRefused}
	}

	var nerr net.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &nerr) && nerr.Timeout()) {
		return &Error{Kind: KindConnectionTimeout}
	}

	if errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ENETDOWN) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return &Error{Kind: KindNetworkUnavailable}
	}

	// Scanner overflow on an NDJSON line: the payload is bad, not the wire.
	if errors.Is(err, bufio.ErrTooLong) {
		return &Error{Kind: KindInvalidResponse}
	}

	var errno syscall.Errno
	code := 0
	if errors.As(err, &errno) {
		code = int(errno)
	}
	return &Error{Kind: KindHTTP, Code: code}
}

// ClassifyStatus maps a non-200 HTTP status to a domain Error. A parseable
// `{"error": string}` body wins over the status-derived mapping.
func ClassifyStatus(status int, body []byte) *Error {
	var eb struct {
		Error string `json:"error"`
	}
	if len(body) > 0 && json.Unmarshal(body, &eb) == nil && eb.Error != "" {
		return &Error{Kind: KindUpstream, Code: status, Message: eb.Error}
	}

	switch {
	case status == http.StatusNotFound:
		return &Error{Kind: KindModelNotFound, Code: status}
	case status >= 500 && status <= 599:
		return &Error{Kind: KindServer, Code: status}
	default:
		return &Error{Kind: KindHTTP, Code: status}
	}
}

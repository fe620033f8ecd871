package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	KindNetwork        ErrorKind = "network"
	KindTimeout        ErrorKind = "timeout"
	KindAuth           ErrorKind = "auth"
	KindQuota          ErrorKind = "quota"
	KindServer         ErrorKind = "server"
	KindInvalidRequest ErrorKind = "invalid_request"
	KindBadResponse    ErrorKind = "bad_response"
)

// GatewayError is the only error type a Gateway returns.
type GatewayError struct {
	Kind    ErrorKind
	Message string
	Status  int // HTTP status when one was received
}

func (e *GatewayError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway %s error (status %d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway %s error: %s", e.Kind, e.Message)
}

// Retryable reports whether another attempt could succeed.
func (e *GatewayError) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindTimeout, KindQuota, KindServer:
		return true
	}
	return false
}

// NewGatewayError builds a GatewayError without an HTTP status.
func NewGatewayError(kind ErrorKind, message string) *GatewayError {
	return &GatewayError{Kind: kind, Message: message}
}

// ClassifyStatus maps a non-2xx HTTP response onto a GatewayError.
func ClassifyStatus(status int, body []byte) *GatewayError {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := KindInvalidRequest
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = KindAuth
	case status == http.StatusTooManyRequests:
		kind = KindQuota
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		kind = KindTimeout
	case status >= 500:
		kind = KindServer
	}
	return &GatewayError{Kind: kind, Message: msg, Status: status}
}

// ClassifyTransport maps a transport-level failure (no HTTP response) onto a GatewayError.
func ClassifyTransport(err error) *GatewayError {
	var ge *GatewayError
	if errors.As(err, &ge) {
		return ge
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewGatewayError(KindTimeout, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewGatewayError(KindTimeout, err.Error())
	}
	return NewGatewayError(KindNetwork, err.Error())
}

// AsGatewayError extracts a GatewayError, wrapping foreign errors as network failures.
func AsGatewayError(err error) *GatewayError {
	if err == nil {
		return nil
	}
	return ClassifyTransport(err)
}

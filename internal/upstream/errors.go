// -----------------------------------------------------------------------
// Upstream error taxonomy and status classification
// -----------------------------------------------------------------------

package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind categorizes an upstream failure independent of which service raised
// it.
type Kind string

const (
	KindCancelled     Kind = "cancelled"
	KindUnavailable   Kind = "unavailable"
	KindAuth          Kind = "auth"
	KindNotFound      Kind = "not_found"
	KindThrottled     Kind = "throttled"
	KindMalformed     Kind = "malformed"
	KindServer        Kind = "server"
	KindConfiguration Kind = "configuration"
	KindInternal      Kind = "internal"
)

// ServiceError is a failure attributed to a specific upstream service.
// Reconcilers return these as values; the scheduler surfaces them as
// service_errors entries without failing the whole job.
type ServiceError struct {
	Service string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Service, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Service, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError builds an attributed error without an HTTP status.
func NewServiceError(service string, kind Kind, message string) *ServiceError {
	return &ServiceError{Service: service, Kind: kind, Message: message}
}

// ClassifyStatus maps an HTTP status code from a validation or API call to
// an attributed error. Returns nil for 2xx.
func ClassifyStatus(service string, status int) *ServiceError {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusUnauthorized:
		return &ServiceError{Service: service, Kind: KindAuth, Status: status, Message: "credentials are invalid or expired"}
	case status == http.StatusForbidden:
		return &ServiceError{Service: service, Kind: KindAuth, Status: status, Message: "credentials lack the required permissions"}
	case status == http.StatusNotFound:
		return &ServiceError{Service: service, Kind: KindNotFound, Status: status, Message: "resource not found"}
	case status == http.StatusTooManyRequests:
		return &ServiceError{Service: service, Kind: KindThrottled, Status: status, Message: "request was throttled"}
	default:
		return &ServiceError{Service: service, Kind: KindServer, Status: status, Message: fmt.Sprintf("request failed with status %d", status)}
	}
}

// ClassifyTransport maps a transport-level failure (DNS, connection
// refused, context cancellation) to an attributed error.
func ClassifyTransport(service string, err error) *ServiceError {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return &ServiceError{Service: service, Kind: KindCancelled, Message: "cancelled", Err: err}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ServiceError{Service: service, Kind: KindUnavailable, Message: "host could not be resolved", Err: err}
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ServiceError{Service: service, Kind: KindUnavailable, Message: "service is unreachable", Err: err}
	}

	return &ServiceError{Service: service, Kind: KindUnavailable, Message: err.Error(), Err: err}
}

// IsCancelled reports whether err represents an observed cancellation,
// either a raw context error or a classified ServiceError.
func IsCancelled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var svcErr *ServiceError
	return errors.As(err, &svcErr) && svcErr.Kind == KindCancelled
}

// AsServiceError extracts a ServiceError, wrapping unclassified errors as
// internal failures attributed to the given service.
func AsServiceError(service string, err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return &ServiceError{Service: service, Kind: KindInternal, Message: err.Error(), Err: err}
}

package errutil

import (
	"errors"
	"net/http"
)

// CoreStatus is the transport-agnostic status code carried by BaseError.
type CoreStatus string

const (
	StatusBadRequest         CoreStatus = "BAD_REQUEST"
	StatusValidationFailed   CoreStatus = "VALIDATION_FAILED"
	StatusNotFound           CoreStatus = "NOT_FOUND"
	StatusConflict           CoreStatus = "CONFLICT"
	StatusTimeout            CoreStatus = "TIMEOUT"
	StatusInternal           CoreStatus = "INTERNAL"
	StatusServiceUnavailable CoreStatus = "SERVICE_UNAVAILABLE"
	StatusUnknown            CoreStatus = "UNKNOWN"
)

// HTTPStatus converts the CoreStatus to its closest HTTP status code equivalent.
func (s CoreStatus) HTTPStatus() int {
	switch s {
	case StatusBadRequest, StatusValidationFailed:
		return http.StatusBadRequest
	case StatusNotFound:
		return http.StatusNotFound
	case StatusConflict:
		return http.StatusConflict
	case StatusTimeout:
		return http.StatusGatewayTimeout
	case StatusServiceUnavailable:
		return http.StatusServiceUnavailable
	case StatusInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf extracts the CoreStatus from err, or StatusUnknown when err does
// not carry one.
func StatusOf(err error) CoreStatus {
	var coder interface{ Status() CoreStatus }
	if errors.As(err, &coder) {
		return coder.Status()
	}
	return StatusUnknown
}

// IsConflict reports whether err resolves to a conflict. State machines absorb
// these as idempotent no-ops.
func IsConflict(err error) bool {
	return StatusOf(err) == StatusConflict
}

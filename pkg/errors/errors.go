// Package errors defines the typed faults returned by the API.
//
// Every failure is classified as either a client fault, translated to a 4xx
// response with a stable error code, or a server fault, translated to a
// generic 5xx response with a correlation id while the details are logged.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Error codes
const (
	// CodeUnauthorized is returned when a request carries no usable access token
	CodeUnauthorized = "unauthorized"

	// CodeInsufficientScope is returned when a valid token lacks the required scope
	CodeInsufficientScope = "insufficient_scope"

	// CodeSigningKeyDownload is returned when token signing keys cannot be downloaded
	CodeSigningKeyDownload = "signing_key_download"

	// CodeUserInfoFailure is returned when the extra claims lookup fails
	CodeUserInfoFailure = "userinfo_failure"

	// CodeClaimsFailure is returned when an expected claim is missing from a payload
	CodeClaimsFailure = "claims_failure"

	// CodeServerError is the generic code for unanticipated server failures
	CodeServerError = "server_error"

	// CodeRequestNotFound is returned for requests to routes that do not exist
	CodeRequestNotFound = "request_not_found"

	// CodeCompanyNotFound is returned when a company does not exist or is not visible
	CodeCompanyNotFound = "company_not_found"

	// CodeInvalidCompanyID is returned when a company id is not numeric
	CodeInvalidCompanyID = "invalid_company_id"

	// CodeFileReadError is returned when file backed data cannot be read
	CodeFileReadError = "file_read_error"
)

// ClientError is a fault caused by the calling client. It is expected and
// frequent, carries the full message back to the caller, and is not logged
// as a server incident.
type ClientError struct {
	// Status is the HTTP status code to return
	Status int

	// Code is the stable machine readable error code
	Code string

	// Message is the human readable error message
	Message string

	// Cause is the underlying error, kept for error chain inspection only
	Cause error

	// missingToken marks a 401 caused by the absence of a token, so that the
	// challenge header omits an error attribute as RFC 6750 requires
	missingToken bool
}

// Error returns the error message
func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// ServerError is a fault on the API side. The client receives the code, a
// generic message and the instance id; details stay in the log.
type ServerError struct {
	// Code is the stable machine readable error code
	Code string

	// Message is the generic message returned to the client
	Message string

	// Details holds diagnostic detail that is logged but never returned
	Details string

	// InstanceID correlates the client response with the log entry
	InstanceID string

	// Cause is the underlying error
	Cause error
}

// Error returns the error message
func (e *ServerError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServerError) Unwrap() error {
	return e.Cause
}

// NewClientError creates a new client fault
func NewClientError(status int, code, message string) *ClientError {
	return &ClientError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// NewUnauthorizedError creates a 401 fault. The message may carry the
// validation library's reason for diagnosability but never key material.
func NewUnauthorizedError(message string, cause error) *ClientError {
	return &ClientError{
		Status:  http.StatusUnauthorized,
		Code:    CodeUnauthorized,
		Message: message,
		Cause:   cause,
	}
}

// NewMissingTokenError creates a 401 fault for a request that presented no
// access token at all, as opposed to one that presented an invalid token.
func NewMissingTokenError(message string) *ClientError {
	e := NewUnauthorizedError(message, nil)
	e.missingToken = true
	return e
}

// NewInsufficientScopeError creates a 403 fault, distinct from
// authentication failures.
func NewInsufficientScopeError(message string) *ClientError {
	return &ClientError{
		Status:  http.StatusForbidden,
		Code:    CodeInsufficientScope,
		Message: message,
	}
}

// NewRequestNotFoundError creates the fault for an unknown API route
func NewRequestNotFoundError() *ClientError {
	return NewClientError(
		http.StatusNotFound,
		CodeRequestNotFound,
		"an API request was sent to a route that does not exist")
}

// NewServerError creates a new server fault with a fresh instance id
func NewServerError(code, message string, cause error) *ServerError {
	e := &ServerError{
		Code:       code,
		Message:    message,
		InstanceID: uuid.NewString(),
		Cause:      cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

// NewSigningKeyDownloadError creates the fault for a failed JWKS download
func NewSigningKeyDownloadError(url string, cause error) *ServerError {
	e := NewServerError(CodeSigningKeyDownload, "problem downloading token signing keys", cause)
	e.Details = fmt.Sprintf("%s, URL: %s", e.Details, url)
	return e
}

// NewUserInfoError creates the fault for a failed extra claims lookup
func NewUserInfoError(message string, cause error) *ServerError {
	return NewServerError(CodeUserInfoFailure, message, cause)
}

// NewMissingClaimError creates the fault for a claim that should have been
// present during authorization processing
func NewMissingClaimError(claimName string) *ServerError {
	e := NewServerError(CodeClaimsFailure, "authorization data not found", nil)
	e.Details = fmt.Sprintf("an empty value was found for the expected claim %s", claimName)
	return e
}

// FromError normalises any error into one of the two fault categories, so
// that no raw errors escape to the HTTP layer.
func FromError(err error) error {
	var clientError *ClientError
	if errors.As(err, &clientError) {
		return clientError
	}

	var serverError *ServerError
	if errors.As(err, &serverError) {
		return serverError
	}

	return NewServerError(CodeServerError, "an unexpected exception occurred in the API", err)
}

// IsClient checks if the error is a client fault
func IsClient(err error) bool {
	var clientError *ClientError
	return errors.As(err, &clientError)
}

// IsServer checks if the error is a server fault
func IsServer(err error) bool {
	var serverError *ServerError
	return errors.As(err, &serverError)
}

// StatusCode returns the HTTP status for a normalised fault
func StatusCode(err error) int {
	var clientError *ClientError
	if errors.As(err, &clientError) {
		return clientError.Status
	}
	return http.StatusInternalServerError
}
